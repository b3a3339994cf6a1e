package scorm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// Metadata returns the record for s.
func (p *Pipeline) Metadata(ctx context.Context, s Scope) (PackageMetadata, error) {
	if err := s.Validate(); err != nil {
		return PackageMetadata{}, err
	}
	return p.records.Get(ctx, s)
}

// SetDisplayName updates only the display name, creating the record when
// the block has none yet.
func (p *Pipeline) SetDisplayName(ctx context.Context, s Scope, name string) (PackageMetadata, error) {
	if err := s.Validate(); err != nil {
		return PackageMetadata{}, err
	}
	meta, err := p.records.Get(ctx, s)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PackageMetadata{}, xerrors.Wrap(err, "load package record")
	}
	meta.DisplayName = name
	if err := p.records.Put(ctx, s, meta); err != nil {
		return PackageMetadata{}, xerrors.Wrap(err, "save package record")
	}
	return meta, nil
}

// ingested loads a record and treats never-ingested blocks as missing.
func (p *Pipeline) ingested(ctx context.Context, s Scope) (PackageMetadata, error) {
	meta, err := p.Metadata(ctx, s)
	if err != nil {
		return PackageMetadata{}, err
	}
	if !meta.Ingested() {
		return PackageMetadata{}, fmt.Errorf("%w: %s has no ingested package", ErrNotFound, s)
	}
	return meta, nil
}

// ArchivePath is the storage name of the block's current archive.
func (p *Pipeline) ArchivePath(ctx context.Context, s Scope) (string, error) {
	meta, err := p.ingested(ctx, s)
	if err != nil {
		return "", err
	}
	return meta.StoragePath, nil
}

// Descriptor reports when the archive changed and where clients should
// download it: straight from the backend when it can serve directly,
// otherwise from routedURL.
func (p *Pipeline) Descriptor(ctx context.Context, s Scope, routedURL string) (Descriptor, error) {
	meta, err := p.ingested(ctx, s)
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{LastModified: meta.LastUpdated, ScormData: routedURL}
	if p.store.ServesDirectly() {
		u, err := p.store.URL(ctx, meta.StoragePath)
		if err != nil {
			return Descriptor{}, xerrors.Wrapf(err, "direct url for %s", meta.StoragePath)
		}
		d.ScormData = u
	}
	return d, nil
}

// LaunchURL is the public URL of the entry file.
func (p *Pipeline) LaunchURL(ctx context.Context, s Scope) (string, error) {
	meta, err := p.ingested(ctx, s)
	if err != nil {
		return "", err
	}
	return meta.PublicBaseURL + "/" + p.entryFile, nil
}

// Purge removes the archive, the unpacked tree and the record of a block.
// Purging a block that was never ingested is not an error.
func (p *Pipeline) Purge(ctx context.Context, s Scope) error {
	if err := s.Validate(); err != nil {
		return err
	}
	L := p.logger.With("scope", s.Key())

	meta, err := p.records.Get(ctx, s)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return xerrors.Wrap(err, "load package record")
	case meta.StoragePath != "":
		if err := p.store.Delete(ctx, meta.StoragePath); err != nil {
			return xerrors.Wrapf(err, "delete archive %s", meta.StoragePath)
		}
		L.Info(ctx, "archive removed", "storage_path", meta.StoragePath)
	}

	tree := p.TreePath(s.BlockID)
	if err := os.RemoveAll(tree); err != nil {
		return xerrors.Wrapf(err, "remove unpacked tree %s", tree)
	}
	if err := p.records.Delete(ctx, s); err != nil && !errors.Is(err, ErrNotFound) {
		return xerrors.Wrap(err, "delete package record")
	}
	L.Info(ctx, "scorm package purged", "path", tree)
	return nil
}
