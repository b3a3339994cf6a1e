package scorm

import (
	"path"
	"strings"
)

// FileExtension returns the final extension of name including the dot,
// or "" when there is none. Leading dots of a hidden file do not count.
func FileExtension(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	trimmed := strings.TrimLeft(base, ".")
	if trimmed == "" {
		return ""
	}
	return path.Ext(trimmed)
}

// StoragePath is the content-addressed name of an archive:
// {org}/{course}/{blockType}/{blockId}/{sha1}{ext}.
func StoragePath(s Scope, sha1, ext string) string {
	return path.Join(s.Org, s.Course, s.BlockType, s.BlockID, sha1+ext)
}

// PublicBaseURL is {scheme}//{host}/{mediaURL}/scorm/{blockId}. An empty
// scheme gives a protocol-relative URL.
func PublicBaseURL(scheme, host, mediaURL, blockID string) string {
	scheme = strings.TrimSuffix(strings.TrimSuffix(scheme, "//"), ":")
	if scheme != "" {
		scheme += ":"
	}
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("//")
	b.WriteString(strings.TrimSuffix(host, "/"))
	if m := strings.Trim(mediaURL, "/"); m != "" {
		b.WriteString("/")
		b.WriteString(m)
	}
	b.WriteString("/scorm/")
	b.WriteString(blockID)
	return b.String()
}
