package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
)

// resolvePath maps a URL path relative to the mount prefix onto a file
// in fsys. A directory without a trailing slash yields a redirect to the
// slash form so relative links inside the package resolve.
func resolvePath(urlPath string, fsys fs.FS, index string) (file, redirectTo string, ok bool) {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") || pathutil.HasDotSegments(p) {
		return "", "", false
	}

	trailingSlash := strings.HasSuffix(p, "/")
	clean := path.Clean(p)
	if clean == "/" {
		return "", "", false
	}
	name := strings.TrimPrefix(clean, "/")

	if trailingSlash {
		if existsFile(fsys, name+"/"+index) {
			return name + "/" + index, "", true
		}
		return "", "", false
	}
	if existsFile(fsys, name) {
		return name, "", true
	}
	if existsFile(fsys, name+"/"+index) {
		return "", clean + "/", true
	}
	return "", "", false
}

func existsFile(fsys fs.FS, name string) bool {
	if !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
