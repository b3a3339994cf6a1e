package metastore

import (
	"context"
	"sort"
	"sync"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

type Memory struct {
	mu   sync.RWMutex
	recs map[scorm.Scope]scorm.PackageMetadata
}

func NewMemory() *Memory {
	return &Memory{recs: make(map[scorm.Scope]scorm.PackageMetadata)}
}

func (m *Memory) Get(_ context.Context, s scorm.Scope) (scorm.PackageMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recs[s]
	if !ok {
		return scorm.PackageMetadata{}, notFound(s)
	}
	return r, nil
}

func (m *Memory) Put(_ context.Context, s scorm.Scope, meta scorm.PackageMetadata) error {
	m.mu.Lock()
	m.recs[s] = meta
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, s scorm.Scope) error {
	m.mu.Lock()
	delete(m.recs, s)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(context.Context) ([]Entry, error) {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.recs))
	for s, r := range m.recs {
		out = append(out, Entry{Scope: s, Metadata: r})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Scope.Key() < out[j].Scope.Key() })
	return out, nil
}

func (m *Memory) Check(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
