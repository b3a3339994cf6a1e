// Package sitehandler serves unpacked package trees under
// {prefix}/{blockID}/..., resolving directories to the index file.
package sitehandler

import (
	"io"
	"net/http"
	"strings"
)

type Handler struct {
	opts Options
}

func New(opts *Options) (*Handler, error) {
	o := *opts
	o.setDefaults()
	if err := o.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: o}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rel, ok := h.relative(r.URL.Path)
	if !ok {
		notFound(w)
		return
	}

	file, redirectTo, found := resolvePath(rel, h.opts.Root, h.opts.IndexFile)
	if redirectTo != "" {
		http.Redirect(w, r, h.opts.Prefix+redirectTo, http.StatusPermanentRedirect)
		return
	}
	if !found {
		notFound(w)
		return
	}

	if cc := cacheControlForFile(file, &h.opts); cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	h.serveFile(w, r, file)
}

// relative strips the mount prefix and rejects paths that do not start
// with a usable block id. Dot-prefixed ids are the pipeline's scratch
// and swap directories.
func (h *Handler) relative(urlPath string) (string, bool) {
	rest, ok := strings.CutPrefix(urlPath, h.opts.Prefix)
	if !ok || !strings.HasPrefix(rest, "/") {
		return "", false
	}
	blockID, _, _ := strings.Cut(rest[1:], "/")
	if blockID == "" || strings.HasPrefix(blockID, ".") {
		return "", false
	}
	return rest, true
}

// serveFile uses ServeContent rather than ServeFileFS, which would
// redirect launch URLs ending in /index.html.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.opts.Root.Open(name)
	if err != nil {
		notFound(w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.opts.Logger.Error(r.Context(), err, "stat unpacked file", "file", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		h.opts.Logger.Warn(r.Context(), "unpacked file is not seekable", "file", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), rs)
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}
