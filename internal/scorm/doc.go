// Package scorm ingests uploaded SCORM packages.
//
// An ingestion fingerprints the upload, stores the original archive under
// a content-addressed path, unpacks it into a per-block directory below
// the scorm root and records where everything went. Readers use the
// record to locate the archive and the public URL of the unpacked tree.
package scorm

import "errors"

var (
	// ErrInvalidPackage is returned for uploads that are not usable zip
	// packages. It is a client error.
	ErrInvalidPackage = errors.New("invalid scorm package")

	// ErrNotFound is returned by record stores when a block has no record.
	ErrNotFound = errors.New("scorm package record not found")

	// ErrInvalidScope is returned for scopes with empty or unsafe segments.
	ErrInvalidScope = errors.New("invalid block scope")
)
