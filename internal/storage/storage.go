// Package storage keeps uploaded package archives. Archives are addressed
// by slash-separated names relative to the backend root.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotExist is returned when a named archive is absent.
	ErrNotExist = errors.New("storage: object does not exist")

	// ErrNoDirectURL is returned by URL on backends that cannot hand out
	// a client-reachable address.
	ErrNoDirectURL = errors.New("storage: backend has no direct url")

	// ErrInvalidName is returned for names that are empty, absolute or
	// escape the backend root.
	ErrInvalidName = errors.New("storage: invalid object name")
)

// Info is one consistent snapshot of an object's size and modification
// time.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Stater is implemented by backends that can report size and modification
// time in a single call.
type Stater interface {
	Stat(ctx context.Context, name string) (Info, error)
}

type Storage interface {
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Save(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
	Size(ctx context.Context, name string) (int64, error)
	ModTime(ctx context.Context, name string) (time.Time, error)

	// URL returns an address clients can fetch name from directly.
	URL(ctx context.Context, name string) (string, error)

	// ServesDirectly reports whether URL is usable.
	ServesDirectly() bool

	// Check is a readiness probe for the backend.
	Check(ctx context.Context) error
}
