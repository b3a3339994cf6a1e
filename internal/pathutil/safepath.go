// Package pathutil validates slash-separated names coming from archives
// and request paths before they touch the filesystem.
package pathutil

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for names that are absolute, empty or escape
// their root.
var ErrUnsafePath = errors.New("unsafe path")

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// CleanRelative normalises a slash-separated relative name. Backslashes
// are treated as separators. Absolute names and names that climb out of
// their root are rejected.
func CleanRelative(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || strings.HasPrefix(name, "/") || strings.ContainsRune(name, 0) {
		return "", ErrUnsafePath
	}
	if vol := filepath.VolumeName(name); vol != "" {
		return "", ErrUnsafePath
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", ErrUnsafePath
		}
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", ErrUnsafePath
	}
	return clean, nil
}

// SafeJoin joins a relative name onto root and guarantees the result stays
// below root.
func SafeJoin(root, name string) (string, error) {
	rel, err := CleanRelative(name)
	if err != nil {
		return "", err
	}
	base := filepath.Clean(root)
	full := filepath.Join(base, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", ErrUnsafePath
	}
	return full, nil
}
