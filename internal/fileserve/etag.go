package fileserve

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/cryptoutil"
)

// ETag builds a strong validator that changes whenever the object is
// rewritten, resized or renamed.
func ETag(modTime time.Time, size int64, name string) string {
	return fmt.Sprintf(`"%x-%x-%x"`, modTime.UnixNano(), size, xxhash.Sum64String(name))
}

func opaque(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "W/")
}

// matchesAny reports whether header, an If-None-Match style list, names
// etag under weak comparison.
func matchesAny(header, etag string) bool {
	want := opaque(etag)
	for _, candidate := range strings.Split(header, ",") {
		c := strings.TrimSpace(candidate)
		if c == "*" || cryptoutil.HashEqual(opaque(c), want) {
			return true
		}
	}
	return false
}

// strongMatch is the If-Range comparison: weak tags never match.
func strongMatch(tag, etag string) bool {
	tag = strings.TrimSpace(tag)
	if strings.HasPrefix(tag, "W/") {
		return false
	}
	return cryptoutil.HashEqual(tag, etag)
}
