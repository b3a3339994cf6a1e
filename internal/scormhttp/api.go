// Package scormhttp exposes the block API: studio submit, archive
// download, descriptor, launch redirect, record lookup and purge.
package scormhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

// BasePath prefixes every block route.
const BasePath = "/api/v1/blocks"

// Service is the subset of *scorm.Pipeline the handlers use.
type Service interface {
	Ingest(ctx context.Context, up scorm.Upload) (scorm.PackageMetadata, error)
	SetDisplayName(ctx context.Context, s scorm.Scope, name string) (scorm.PackageMetadata, error)
	Metadata(ctx context.Context, s scorm.Scope) (scorm.PackageMetadata, error)
	ArchivePath(ctx context.Context, s scorm.Scope) (string, error)
	Descriptor(ctx context.Context, s scorm.Scope, routedURL string) (scorm.Descriptor, error)
	LaunchURL(ctx context.Context, s scorm.Scope) (string, error)
	Purge(ctx context.Context, s scorm.Scope) error
}

// FileServer writes a stored object with range and cache validation.
// *fileserve.Responder satisfies it.
type FileServer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, name string) error
}

type Options struct {
	Service Service
	Files   FileServer
	Logger  log.Logger

	// MaxUploadBytes caps the submit request body. Default 1 GiB.
	MaxUploadBytes int64
	// FormMemoryBytes is held in memory while parsing multipart bodies;
	// the rest spools to temp files. Default 32 MiB.
	FormMemoryBytes int64
}

type API struct {
	svc       Service
	files     FileServer
	logger    log.Logger
	maxUpload int64
	formMem   int64
}

func New(opts Options) (*API, error) {
	var errs []error
	if opts.Service == nil {
		errs = append(errs, errors.New("service is required"))
	}
	if opts.Files == nil {
		errs = append(errs, errors.New("file server is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 1 << 30
	}
	if opts.FormMemoryBytes <= 0 {
		opts.FormMemoryBytes = 32 << 20
	}
	return &API{
		svc:       opts.Service,
		files:     opts.Files,
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		formMem:   opts.FormMemoryBytes,
	}, nil
}

// RegisterRoutes mounts the block routes on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route(BasePath+"/{org}/{course}/{blockType}/{blockID}", func(r chi.Router) {
		r.With(httpmw.MaxBody(a.maxUpload), httpmw.Scope("submit")).Post("/submit", a.submit)

		archive := httpmw.Scope("archive")(http.HandlerFunc(a.archive))
		r.Method(http.MethodGet, "/archive", archive)
		r.Method(http.MethodHead, "/archive", archive)

		r.With(httpmw.MaxBody(1024)).Group(func(r chi.Router) {
			r.With(httpmw.Scope("descriptor")).Get("/descriptor", a.descriptor)
			r.With(httpmw.Scope("launch")).Get("/launch", a.launch)
			r.With(httpmw.Scope("show")).Get("/", a.show)
			r.With(httpmw.Scope("purge")).Delete("/", a.purge)
		})
	})
}

// scopeFromRequest reads the four route segments. chi matches on the
// escaped path when one exists, so segments are unescaped here.
func scopeFromRequest(r *http.Request) (scorm.Scope, error) {
	var segs [4]string
	for i, key := range [...]string{"org", "course", "blockType", "blockID"} {
		v, err := url.PathUnescape(chi.URLParam(r, key))
		if err != nil {
			return scorm.Scope{}, fmt.Errorf("%w: %s: %v", scorm.ErrInvalidScope, key, err)
		}
		segs[i] = v
	}
	s := scorm.Scope{Org: segs[0], Course: segs[1], BlockType: segs[2], BlockID: segs[3]}
	return s, s.Validate()
}

// ArchiveURL is the routed download path for s.
func ArchiveURL(s scorm.Scope) string {
	return BasePath + "/" + url.PathEscape(s.Org) + "/" + url.PathEscape(s.Course) + "/" +
		url.PathEscape(s.BlockType) + "/" + url.PathEscape(s.BlockID) + "/archive"
}
