package scorm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/storage"
)

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, p)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(out)
	return out
}

func TestIngest_WrappedPackageDropsJunk(t *testing.T) {
	f := newFixture(t)
	body := buildZip(t,
		entry{"__MACOSX/", ""},
		entry{"__MACOSX/._index.html", "junk"},
		entry{"mycourse/index.html", "<html>hi</html>"},
		entry{"mycourse/assets/a.png", "png"},
	)

	meta, err := f.p.Ingest(context.Background(), Upload{Scope: testScope, Body: body, FileName: "course.zip", DisplayName: "Safety"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	tree := f.p.TreePath(testScope.BlockID)
	if got, want := listTree(t, tree), []string{"assets/a.png", "index.html"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
	if meta.PublicBaseURL != "https://lms.example.com/media/scorm/b7f3" {
		t.Errorf("PublicBaseURL = %q", meta.PublicBaseURL)
	}
	if meta.EntryPath != filepath.Join(tree, "index.html") {
		t.Errorf("EntryPath = %q", meta.EntryPath)
	}
	if meta.FileExtension != ".zip" || meta.OriginalFileName != "course.zip" || meta.DisplayName != "Safety" {
		t.Errorf("meta = %+v", meta)
	}
	if want := "acme/safety101/scorm/b7f3/" + meta.ContentHash + ".zip"; meta.StoragePath != want {
		t.Errorf("StoragePath = %q, want %q", meta.StoragePath, want)
	}
	if ok, _ := f.store.Exists(context.Background(), meta.StoragePath); !ok {
		t.Error("archive missing from storage")
	}
	if stored, _ := f.records.Get(context.Background(), testScope); stored != meta {
		t.Errorf("stored record = %+v", stored)
	}
	if len(f.observer.calls) != 1 || f.observer.calls[0].result != "success" || f.observer.calls[0].bytes != body.Size() {
		t.Errorf("observer calls = %v", f.observer.calls)
	}

	// scratch directories never survive an ingestion
	entries, _ := os.ReadDir(f.p.Root())
	if len(entries) != 1 || entries[0].Name() != "b7f3" {
		t.Errorf("scorm root entries = %v", entries)
	}
}

func TestIngest_FlatPackage(t *testing.T) {
	f := newFixture(t)
	body := buildZip(t,
		entry{".DS_Store", "x"},
		entry{"imsmanifest.xml", "<manifest/>"},
		entry{"index.html", "hi"},
		entry{"lib/api.js", "js"},
	)
	if _, err := f.p.Ingest(context.Background(), Upload{Scope: testScope, Body: body, FileName: "flat.zip"}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got := listTree(t, f.p.TreePath(testScope.BlockID))
	want := []string{"imsmanifest.xml", "index.html", "lib/api.js"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tree = %v, want %v", got, want)
	}
}

func TestIngest_FlatPackageWithLeadingDirectory(t *testing.T) {
	tests := []struct {
		name    string
		entries []entry
		want    []string
	}{
		{
			name:    "directory sorts first",
			entries: []entry{{"assets/a.png", "png"}, {"imsmanifest.xml", "<manifest/>"}, {"index.html", "hi"}},
			want:    []string{"assets/a.png", "imsmanifest.xml", "index.html"},
		},
		{
			name:    "only directories",
			entries: []entry{{"__MACOSX/._a", "j"}, {"css/site.css", "c"}, {"js/app.js", "j"}},
			want:    []string{"css/site.css", "js/app.js"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.p.Ingest(context.Background(), Upload{Scope: testScope, Body: buildZip(t, tt.entries...), FileName: "flat.zip"}); err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if got := listTree(t, f.p.TreePath(testScope.BlockID)); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("tree = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIngest_ReuploadSameBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := buildZip(t, entry{"pkg/index.html", "v1"})

	first, err := f.p.Ingest(ctx, Upload{Scope: testScope, Body: body, FileName: "pkg.zip"})
	if err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	f.clock.Advance(time.Minute)
	second, err := f.p.Ingest(ctx, Upload{Scope: testScope, Body: body, FileName: "pkg.zip"})
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if first.ContentHash != second.ContentHash || first.StoragePath != second.StoragePath {
		t.Fatalf("hash/path changed: %+v vs %+v", first, second)
	}
	if !second.LastUpdated.After(first.LastUpdated) {
		t.Fatalf("LastUpdated did not advance: %v -> %v", first.LastUpdated, second.LastUpdated)
	}
	if len(f.store.saves) != 2 {
		t.Fatalf("saves = %v, want one per upload", f.store.saves)
	}
	if len(f.store.deletes) != 1 || f.store.deletes[0] != first.StoragePath {
		t.Fatalf("deletes = %v, want the previous archive", f.store.deletes)
	}
}

func TestIngest_ReplacesTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.p.Ingest(ctx, Upload{Scope: testScope, Body: buildZip(t, entry{"v1/old.html", "old"}, entry{"v1/index.html", "1"}), FileName: "a.zip"}); err != nil {
		t.Fatal(err)
	}
	second, err := f.p.Ingest(ctx, Upload{Scope: testScope, Body: buildZip(t, entry{"v2/index.html", "2"}), FileName: "b.zip"})
	if err != nil {
		t.Fatal(err)
	}
	tree := f.p.TreePath(testScope.BlockID)
	if got := listTree(t, tree); !reflect.DeepEqual(got, []string{"index.html"}) {
		t.Fatalf("tree = %v, want only the new content", got)
	}
	data, _ := os.ReadFile(filepath.Join(tree, "index.html"))
	if string(data) != "2" {
		t.Fatalf("index.html = %q", data)
	}
	if second.PublicBaseURL != "https://lms.example.com/media/scorm/b7f3" {
		t.Fatalf("public URL changed: %q", second.PublicBaseURL)
	}
}

func TestIngest_OnlyJunkKeepsPreviousRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good, err := f.p.Ingest(ctx, Upload{Scope: testScope, Body: buildZip(t, entry{"c/index.html", "ok"}), FileName: "good.zip"})
	if err != nil {
		t.Fatal(err)
	}
	puts := f.records.puts

	junk := buildZip(t, entry{"__MACOSX/._x", "j"}, entry{".DS_Store", "j"})
	_, err = f.p.Ingest(ctx, Upload{Scope: testScope, Body: junk, FileName: "junk.zip"})
	if !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("err = %v, want ErrInvalidPackage", err)
	}
	if !strings.Contains(err.Error(), "no content") {
		t.Fatalf("error should describe the problem: %v", err)
	}
	if f.records.puts != puts {
		t.Fatal("record must not be written on failure")
	}
	if stored, _ := f.records.Get(ctx, testScope); stored != good {
		t.Fatalf("record changed: %+v", stored)
	}
	if got := listTree(t, f.p.TreePath(testScope.BlockID)); !reflect.DeepEqual(got, []string{"index.html"}) {
		t.Fatalf("previous tree disturbed: %v", got)
	}
	last := f.observer.calls[len(f.observer.calls)-1]
	if last.result != "invalid" {
		t.Fatalf("observer result = %q", last.result)
	}
}

func TestIngest_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"not a zip", Upload{Scope: testScope, Body: strings.NewReader("plain text, not a zip"), FileName: "a.zip"}, ErrInvalidPackage},
		{"no body", Upload{Scope: testScope, FileName: "a.zip"}, ErrInvalidPackage},
		{"traversal", Upload{Scope: testScope, Body: buildZip(t, entry{"../evil.html", "x"}), FileName: "a.zip"}, ErrInvalidPackage},
		{"bad scope", Upload{Scope: Scope{Org: "acme", Course: "..", BlockType: "scorm", BlockID: "b"}, Body: buildZip(t, entry{"a/b", "x"})}, ErrInvalidScope},
		{"hidden block id", Upload{Scope: Scope{Org: "acme", Course: "safety101", BlockType: "scorm", BlockID: ".hidden"}, Body: buildZip(t, entry{"a/b", "x"})}, ErrInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.p.Ingest(ctx, tt.up)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(f.store.saves) != 1 {
		// only the traversal case gets as far as storing the archive
		t.Fatalf("saves = %v", f.store.saves)
	}
	if _, err := f.records.Get(ctx, testScope); !errors.Is(err, ErrNotFound) {
		t.Fatal("no record should exist after failed ingestions")
	}
	if _, err := os.Stat(filepath.Join(f.p.Root(), ".hidden")); !os.IsNotExist(err) {
		t.Fatalf("hidden block tree created: %v", err)
	}
}

func TestIngest_Deterministic(t *testing.T) {
	a := newFixture(t)
	b := newFixture(t)
	body := buildZip(t, entry{"pkg/index.html", "same"})

	ma, err := a.p.Ingest(context.Background(), Upload{Scope: testScope, Body: body, FileName: "p.zip"})
	if err != nil {
		t.Fatal(err)
	}
	mb, err := b.p.Ingest(context.Background(), Upload{Scope: testScope, Body: body, FileName: "p.zip"})
	if err != nil {
		t.Fatal(err)
	}
	if ma.ContentHash != mb.ContentHash || ma.StoragePath != mb.StoragePath || ma.PublicBaseURL != mb.PublicBaseURL {
		t.Fatalf("same input gave different records: %+v vs %+v", ma, mb)
	}
}

func TestIngest_SizeLimit(t *testing.T) {
	f := newFixture(t)
	f.p.limits.MaxFileSize = 4
	body := buildZip(t, entry{"pkg/index.html", "more than four bytes"})
	if _, err := f.p.Ingest(context.Background(), Upload{Scope: testScope, Body: body, FileName: "a.zip"}); !errors.Is(err, ErrInvalidPackage) {
		t.Fatalf("err = %v, want ErrInvalidPackage", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty options")
	}
	fsys, err := storage.NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystem: %v", err)
	}
	base := Options{
		Storage:    fsys,
		Records:    newMemRecords(),
		ScormRoot:  t.TempDir(),
		PublicHost: "lms.example.com",
	}
	for _, name := range []string{"../outside.html", "pkg/../../x.html", "/"} {
		opts := base
		opts.EntryFile = name
		if _, err := New(opts); err == nil {
			t.Errorf("New with entry file %q: expected error", name)
		}
	}
	opts := base
	opts.EntryFile = "/player/./launch.html"
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.entryFile != "player/launch.html" {
		t.Fatalf("entryFile = %q", p.entryFile)
	}
}
