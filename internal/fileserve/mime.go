package fileserve

import (
	"mime"
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// fallbackTypes covers extensions the host mime tables may lack.
var fallbackTypes = map[string]string{
	".zip": "application/zip",
	".xsd": "application/xml",
}

// ContentType guesses a media type from the extension of name.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := fallbackTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return defaultContentType
}
