package scorm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/clock"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/storage"
)

// entry is one member of a test archive. Names ending in "/" are
// directories.
type entry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...entry) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.body); err != nil {
			t.Fatalf("zip write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

type memRecords struct {
	mu   sync.Mutex
	recs map[string]PackageMetadata
	puts int
}

func newMemRecords() *memRecords { return &memRecords{recs: map[string]PackageMetadata{}} }

func (m *memRecords) Get(_ context.Context, s Scope) (PackageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[s.Key()]
	if !ok {
		return PackageMetadata{}, fmt.Errorf("%w: %s", ErrNotFound, s)
	}
	return r, nil
}

func (m *memRecords) Put(_ context.Context, s Scope, meta PackageMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[s.Key()] = meta
	m.puts++
	return nil
}

func (m *memRecords) Delete(_ context.Context, s Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, s.Key())
	return nil
}

// countingStore records calls made against a real filesystem backend.
type countingStore struct {
	*storage.FileSystem
	saves   []string
	deletes []string
	direct  string
}

func (c *countingStore) Save(ctx context.Context, name string, r io.Reader) error {
	c.saves = append(c.saves, name)
	return c.FileSystem.Save(ctx, name, r)
}

func (c *countingStore) Delete(ctx context.Context, name string) error {
	c.deletes = append(c.deletes, name)
	return c.FileSystem.Delete(ctx, name)
}

func (c *countingStore) ServesDirectly() bool { return c.direct != "" }

func (c *countingStore) URL(_ context.Context, name string) (string, error) {
	if c.direct == "" {
		return "", storage.ErrNoDirectURL
	}
	return c.direct + name, nil
}

type recordedIngest struct {
	result string
	bytes  int64
}

type spyObserver struct{ calls []recordedIngest }

func (s *spyObserver) IngestFinished(result string, _ time.Duration, n int64) {
	s.calls = append(s.calls, recordedIngest{result, n})
}

type fixture struct {
	p        *Pipeline
	store    *countingStore
	records  *memRecords
	clock    *clock.FakeClock
	observer *spyObserver
}

var testScope = Scope{Org: "acme", Course: "safety101", BlockType: "scorm", BlockID: "b7f3"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fsys, err := storage.NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystem: %v", err)
	}
	f := &fixture{
		store:    &countingStore{FileSystem: fsys},
		records:  newMemRecords(),
		clock:    clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		observer: &spyObserver{},
	}
	f.p, err = New(Options{
		Storage:      f.store,
		Records:      f.records,
		Clock:        f.clock,
		Observer:     f.observer,
		ScormRoot:    t.TempDir(),
		PublicScheme: "https",
		PublicHost:   "lms.example.com",
		MediaURL:     "/media/",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}
