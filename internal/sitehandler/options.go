package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger
	// Root holds one unpacked tree per block id, normally os.DirFS(scormRoot).
	Root fs.FS
	// Prefix is the URL path the handler is mounted at, e.g. "/media/scorm".
	Prefix string
	// IndexFile answers directory requests. Default "index.html".
	IndexFile string

	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=3600"
	OtherCacheControl string // default: "public, max-age=3600"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	o.Prefix = "/" + strings.Trim(o.Prefix, "/")
	if o.IndexFile == "" {
		o.IndexFile = "index.html"
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	// trees are replaced in place under stable URLs, so nothing is immutable
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=3600"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "public, max-age=3600"
	}
}

func (o *Options) validate() error {
	if o.Root == nil {
		return fmt.Errorf("%w: Root is nil", ErrInvalidOptions)
	}
	if o.Prefix == "/" {
		return fmt.Errorf("%w: Prefix is empty", ErrInvalidOptions)
	}
	if strings.Contains(o.IndexFile, "/") {
		return fmt.Errorf("%w: IndexFile %q must be a bare file name", ErrInvalidOptions, o.IndexFile)
	}
	return nil
}
