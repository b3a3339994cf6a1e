package fileserve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/storage"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// ErrStreamAborted marks failures that happen after the status line was
// written. Callers can only log them.
var ErrStreamAborted = errors.New("fileserve: stream aborted after headers")

// Store is what the responder needs from a storage backend.
type Store interface {
	Opener
	Size(ctx context.Context, name string) (int64, error)
	ModTime(ctx context.Context, name string) (time.Time, error)
}

type Options struct {
	Store  Store
	Logger log.Logger

	// OnServe, when set, is called once per request with the status
	// written and the number of body bytes sent.
	OnServe func(status int, bytes int64)
}

type Responder struct {
	store   Store
	logger  log.Logger
	onServe func(int, int64)
}

func NewResponder(opts Options) (*Responder, error) {
	if opts.Store == nil {
		return nil, errors.New("fileserve: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Responder{store: opts.Store, logger: opts.Logger, onServe: opts.OnServe}, nil
}

func (s *Responder) served(status int, n int64) {
	if s.onServe != nil {
		s.onServe(status, n)
	}
}

// ServeFile writes name to w honouring conditional and range headers. A
// missing object yields a plain 404. Other backend errors are returned
// before anything is written so the caller can still choose the status.
func (s *Responder) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	ctx := r.Context()

	info, err := s.stat(ctx, name)
	if errors.Is(err, storage.ErrNotExist) {
		s.notFound(w)
		return nil
	}
	if err != nil {
		return err
	}
	size, modTime := info.Size, info.ModTime
	etag := ETag(modTime, size, name)

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("ETag", etag)
	h.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))

	if notModified(r, etag, modTime) {
		w.WriteHeader(http.StatusNotModified)
		s.served(http.StatusNotModified, 0)
		return nil
	}

	status := http.StatusOK
	span := byteRange{start: 0, end: size - 1}
	if rh := r.Header.Get("Range"); rh != "" && rangeApplies(r, etag, modTime) {
		br, kind := parseRange(rh, size)
		switch kind {
		case rangeUnsatisfiable:
			h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			h.Del("ETag")
			http.Error(w, http.StatusText(http.StatusRequestedRangeNotSatisfiable), http.StatusRequestedRangeNotSatisfiable)
			s.served(http.StatusRequestedRangeNotSatisfiable, 0)
			return nil
		case rangeSatisfiable:
			status = http.StatusPartialContent
			span = br
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, size))
		}
	}

	length := span.length()
	if size == 0 {
		length = 0
	}
	h.Set("Content-Type", ContentType(name))
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead || length == 0 {
		s.served(status, 0)
		return nil
	}

	var sent int64
	for chunk, err := range Chunks(ctx, s.store, name, span.start, span.end+1) {
		if err != nil {
			s.served(status, sent)
			return fmt.Errorf("%w: %w", ErrStreamAborted, err)
		}
		n, werr := w.Write(chunk)
		sent += int64(n)
		if werr != nil {
			s.served(status, sent)
			return fmt.Errorf("%w: write: %w", ErrStreamAborted, werr)
		}
	}
	s.served(status, sent)
	return nil
}

// stat prefers a single Stat call so size and mtime describe the same
// object version.
func (s *Responder) stat(ctx context.Context, name string) (storage.Info, error) {
	if st, ok := s.store.(storage.Stater); ok {
		info, err := st.Stat(ctx, name)
		if err != nil && !errors.Is(err, storage.ErrNotExist) {
			return storage.Info{}, xerrors.Wrapf(err, "stat %s", name)
		}
		return info, err
	}
	size, err := s.store.Size(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return storage.Info{}, err
		}
		return storage.Info{}, xerrors.Wrapf(err, "size of %s", name)
	}
	modTime, err := s.store.ModTime(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return storage.Info{}, err
		}
		return storage.Info{}, xerrors.Wrapf(err, "mtime of %s", name)
	}
	return storage.Info{Size: size, ModTime: modTime}, nil
}

func (s *Responder) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, "Not found")
	s.served(http.StatusNotFound, 0)
}

// notModified applies If-None-Match, falling back to If-Modified-Since
// only when no entity tag was sent.
func notModified(r *http.Request, etag string, modTime time.Time) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return matchesAny(inm, etag)
	}
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" || modTime.IsZero() {
		return false
	}
	t, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(t)
}

// rangeApplies evaluates If-Range. Without the header a Range is always
// considered.
func rangeApplies(r *http.Request, etag string, modTime time.Time) bool {
	ir := r.Header.Get("If-Range")
	if ir == "" {
		return true
	}
	if len(ir) > 0 && (ir[0] == '"' || len(ir) > 2 && ir[:2] == "W/") {
		return strongMatch(ir, etag)
	}
	t, err := http.ParseTime(ir)
	if err != nil {
		return false
	}
	return modTime.Truncate(time.Second).Equal(t)
}
