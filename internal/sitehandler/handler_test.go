package sitehandler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func testFS() fstest.MapFS {
	mod := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return fstest.MapFS{
		"b7f3/index.html":           {Data: []byte("<html>launch</html>"), ModTime: mod},
		"b7f3/imsmanifest.xml":      {Data: []byte("<manifest/>"), ModTime: mod},
		"b7f3/js/app.js":            {Data: []byte("console.log(1)"), ModTime: mod},
		"b7f3/media/intro.mp4":      {Data: []byte("0123456789"), ModTime: mod},
		"b7f3/module1/index.html":   {Data: []byte("<html>m1</html>"), ModTime: mod},
		".ingest-1234/index.html":   {Data: []byte("scratch"), ModTime: mod},
		".replaced-5678/index.html": {Data: []byte("old"), ModTime: mod},
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := New(&Options{Root: testFS(), Prefix: "/media/scorm/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func serve(h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTP(t *testing.T) {
	h := newTestHandler(t)
	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
		wantCC   string
		wantLoc  string
	}{
		{"launch file", "/media/scorm/b7f3/index.html", http.StatusOK, "<html>launch</html>", "no-cache", ""},
		{"block root", "/media/scorm/b7f3/", http.StatusOK, "<html>launch</html>", "no-cache", ""},
		{"nested dir", "/media/scorm/b7f3/module1/", http.StatusOK, "<html>m1</html>", "no-cache", ""},
		{"asset", "/media/scorm/b7f3/js/app.js", http.StatusOK, "console.log(1)", "public, max-age=3600", ""},
		{"manifest", "/media/scorm/b7f3/imsmanifest.xml", http.StatusOK, "<manifest/>", "public, max-age=3600", ""},
		{"dir redirect", "/media/scorm/b7f3", http.StatusPermanentRedirect, "", "", "/media/scorm/b7f3/"},
		{"nested redirect", "/media/scorm/b7f3/module1", http.StatusPermanentRedirect, "", "", "/media/scorm/b7f3/module1/"},
		{"missing file", "/media/scorm/b7f3/nope.html", http.StatusNotFound, "Not found", "no-store", ""},
		{"missing block", "/media/scorm/zzzz/index.html", http.StatusNotFound, "Not found", "no-store", ""},
		{"scratch dir hidden", "/media/scorm/.ingest-1234/index.html", http.StatusNotFound, "Not found", "no-store", ""},
		{"swap dir hidden", "/media/scorm/.replaced-5678/", http.StatusNotFound, "Not found", "no-store", ""},
		{"mount root", "/media/scorm/", http.StatusNotFound, "Not found", "no-store", ""},
		{"wrong prefix", "/static/b7f3/index.html", http.StatusNotFound, "Not found", "no-store", ""},
		{"traversal", "/media/scorm/b7f3/../.ingest-1234/index.html", http.StatusNotFound, "Not found", "no-store", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.wantCC != "" && rec.Header().Get("Cache-Control") != tt.wantCC {
				t.Errorf("Cache-Control = %q, want %q", rec.Header().Get("Cache-Control"), tt.wantCC)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLoc)
			}
		})
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := serve(h, m, "/media/scorm/b7f3/index.html", nil)
		if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
			t.Errorf("%s: %d Allow=%q", m, rec.Code, rec.Header().Get("Allow"))
		}
	}
}

func TestServeHTTP_HeadAndRanges(t *testing.T) {
	h := newTestHandler(t)

	rec := serve(h, http.MethodHead, "/media/scorm/b7f3/index.html", nil)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("HEAD: %d body=%q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = serve(h, http.MethodGet, "/media/scorm/b7f3/media/intro.mp4", map[string]string{"Range": "bytes=2-5"})
	if rec.Code != http.StatusPartialContent || rec.Body.String() != "2345" {
		t.Fatalf("range: %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodGet, "/media/scorm/b7f3/js/app.js", map[string]string{
		"If-Modified-Since": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat),
	})
	if rec.Code != http.StatusNotModified {
		t.Fatalf("conditional: %d", rec.Code)
	}
}

func TestServeHTTP_DirFSSeesReplacedTree(t *testing.T) {
	root := t.TempDir()
	write := func(rel, body string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b1/index.html", "v1")

	h, err := New(&Options{Root: os.DirFS(root), Prefix: "/media/scorm"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if rec := serve(h, http.MethodGet, "/media/scorm/b1/index.html", nil); rec.Body.String() != "v1" {
		t.Fatalf("before: %q", rec.Body.String())
	}

	if err := os.RemoveAll(filepath.Join(root, "b1")); err != nil {
		t.Fatal(err)
	}
	write("b1/index.html", "v2")
	if rec := serve(h, http.MethodGet, "/media/scorm/b1/index.html", nil); rec.Body.String() != "v2" {
		t.Fatalf("after: %q", rec.Body.String())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"nil root", Options{Prefix: "/media/scorm"}},
		{"empty prefix", Options{Root: testFS()}},
		{"index with slash", Options{Root: testFS(), Prefix: "/m", IndexFile: "a/index.html"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("err = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestNew_CustomIndex(t *testing.T) {
	fsys := fstest.MapFS{"b1/story.html": {Data: []byte("story")}}
	h, err := New(&Options{Root: fsys, Prefix: "/m", IndexFile: "story.html"})
	if err != nil {
		t.Fatal(err)
	}
	rec := serve(h, http.MethodGet, "/m/b1/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "story") {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
