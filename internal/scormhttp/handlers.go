package scormhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/fileserve"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

type result struct {
	Result  string `json:"result"`
	Message string `json:"message,omitempty"`
}

type record struct {
	Scope scorm.Scope `json:"scope"`
	scorm.PackageMetadata
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps domain errors to statuses. Unknown errors are logged and
// reported as 500 without detail.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, scorm.ErrInvalidScope), errors.Is(err, scorm.ErrInvalidPackage):
		writeJSON(w, http.StatusBadRequest, result{Result: "error", Message: err.Error()})
	case errors.Is(err, scorm.ErrNotFound):
		writeJSON(w, http.StatusNotFound, result{Result: "error", Message: "not found"})
	case httpmw.IsBodyTooLarge(err):
		writeJSON(w, http.StatusRequestEntityTooLarge, result{Result: "error", Message: "upload too large"})
	default:
		log.FromContext(ctx).Error(ctx, err, msg)
		writeJSON(w, http.StatusInternalServerError, result{Result: "error", Message: "internal error"})
	}
}

// submit handles the studio form: display_name plus an optional file.
func (a *API) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}

	err = r.ParseMultipartForm(a.formMem)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if httpmw.IsBodyTooLarge(err) {
			a.fail(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusBadRequest, result{Result: "error", Message: "malformed form"})
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	displayName, hasName := r.Form["display_name"]
	name := ""
	if hasName && len(displayName) > 0 {
		name = displayName[0]
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		if !hasName {
			writeJSON(w, http.StatusBadRequest, result{Result: "error", Message: "nothing to update"})
			return
		}
		if _, err := a.svc.SetDisplayName(ctx, s, name); err != nil {
			a.fail(w, r, err, "update display name")
			return
		}
		writeJSON(w, http.StatusOK, result{Result: "success"})
		return
	case err != nil:
		a.fail(w, r, err, "read uploaded file")
		return
	}
	defer file.Close()

	meta, err := a.svc.Ingest(ctx, scorm.Upload{
		Scope:       s,
		Body:        file,
		FileName:    header.Filename,
		DisplayName: name,
	})
	if err != nil {
		a.fail(w, r, err, "ingest scorm package")
		return
	}
	log.FromContext(ctx).Info(ctx, "studio submit accepted",
		"scope", s.Key(), "content_hash", meta.ContentHash, "size", header.Size)
	writeJSON(w, http.StatusOK, result{Result: "success"})
}

// archive streams the stored original. Missing records answer like a
// missing object: plain text 404.
func (a *API) archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	name, err := a.svc.ArchivePath(ctx, s)
	if errors.Is(err, scorm.ErrNotFound) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not found"))
		return
	}
	if err != nil {
		a.fail(w, r, err, "locate archive")
		return
	}

	err = a.files.ServeFile(w, r, name)
	switch {
	case err == nil:
	case errors.Is(err, fileserve.ErrStreamAborted):
		log.FromContext(ctx).Warn(ctx, "archive stream aborted", "storage_path", name, "err", err.Error())
	default:
		a.fail(w, r, err, "serve archive")
	}
}

func (a *API) descriptor(w http.ResponseWriter, r *http.Request) {
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	d, err := a.svc.Descriptor(r.Context(), s, ArchiveURL(s))
	if err != nil {
		a.fail(w, r, err, "build descriptor")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) launch(w http.ResponseWriter, r *http.Request) {
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	u, err := a.svc.LaunchURL(r.Context(), s)
	if err != nil {
		a.fail(w, r, err, "build launch url")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, u, http.StatusFound)
}

func (a *API) show(w http.ResponseWriter, r *http.Request) {
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	meta, err := a.svc.Metadata(r.Context(), s)
	if err != nil {
		a.fail(w, r, err, "load package record")
		return
	}
	writeJSON(w, http.StatusOK, record{Scope: s, PackageMetadata: meta})
}

func (a *API) purge(w http.ResponseWriter, r *http.Request) {
	s, err := scopeFromRequest(r)
	if err != nil {
		a.fail(w, r, err, "")
		return
	}
	if err := a.svc.Purge(r.Context(), s); err != nil {
		a.fail(w, r, err, "purge package")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
