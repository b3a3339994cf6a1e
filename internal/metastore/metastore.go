// Package metastore persists scorm.PackageMetadata records keyed by block
// scope. Three backends share one contract: an embedded LevelDB store, a
// DynamoDB table, and an in-memory map for tests and throwaway servers.
// Unknown scopes report scorm.ErrNotFound.
package metastore

import (
	"context"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/scorm"
)

// Entry pairs a record with the scope it belongs to.
type Entry struct {
	Scope    scorm.Scope
	Metadata scorm.PackageMetadata
}

// Store is a scorm.Records that can also enumerate, probe and close.
type Store interface {
	scorm.Records
	List(ctx context.Context) ([]Entry, error)
	Check(ctx context.Context) error
	Close() error
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	// keep sub-second precision and the UTC offset of LastUpdated
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = opts.EncMode(); err != nil {
		panic("metastore: cbor encoder: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("metastore: cbor decoder: " + err.Error())
	}
}

func encode(m scorm.PackageMetadata) ([]byte, error) {
	b, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func decode(b []byte) (scorm.PackageMetadata, error) {
	var m scorm.PackageMetadata
	if err := decMode.Unmarshal(b, &m); err != nil {
		return scorm.PackageMetadata{}, fmt.Errorf("decode record: %w", err)
	}
	return m, nil
}

func notFound(s scorm.Scope) error {
	return fmt.Errorf("%w: %s", scorm.ErrNotFound, s)
}
