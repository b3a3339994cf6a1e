package scorm

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/clock"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/log"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/storage"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

var tracer = otel.Tracer("github.com/keithlinneman/linnemanlabs-scorm/internal/scorm")

// Records persists one PackageMetadata per scope. Get returns ErrNotFound
// for unknown scopes.
type Records interface {
	Get(ctx context.Context, s Scope) (PackageMetadata, error)
	Put(ctx context.Context, s Scope, m PackageMetadata) error
	Delete(ctx context.Context, s Scope) error
}

// Observer receives the outcome of every ingestion. result is one of
// "success", "invalid" or "error".
type Observer interface {
	IngestFinished(result string, elapsed time.Duration, archiveBytes int64)
}

// File is an uploaded archive. multipart.File and *os.File satisfy it.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

type Upload struct {
	Scope       Scope
	Body        File
	FileName    string
	DisplayName string
}

type Options struct {
	Logger   log.Logger
	Storage  storage.Storage
	Records  Records
	Clock    clock.Clock
	Observer Observer

	// ScormRoot holds one unpacked tree per block id.
	ScormRoot string

	// PublicScheme, PublicHost and MediaURL build the public base URL.
	PublicScheme string
	PublicHost   string
	MediaURL     string

	// EntryFile is the page launched inside the unpacked tree.
	EntryFile string

	Limits Limits
}

type Pipeline struct {
	logger    log.Logger
	store     storage.Storage
	records   Records
	clock     clock.Clock
	observer  Observer
	root      string
	scheme    string
	host      string
	mediaURL  string
	entryFile string
	limits    Limits
}

func New(opts Options) (*Pipeline, error) {
	var errs []error
	if opts.Storage == nil {
		errs = append(errs, errors.New("storage is required"))
	}
	if opts.Records == nil {
		errs = append(errs, errors.New("records store is required"))
	}
	if opts.ScormRoot == "" {
		errs = append(errs, errors.New("scorm root is required"))
	}
	if opts.PublicHost == "" {
		errs = append(errs, errors.New("public host is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, xerrors.Wrap(err, "scorm pipeline options")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.EntryFile == "" {
		opts.EntryFile = "index.html"
	}
	entry, err := pathutil.CleanRelative(strings.TrimLeft(opts.EntryFile, "/"))
	if err != nil {
		return nil, xerrors.Wrapf(err, "entry file %q", opts.EntryFile)
	}
	root, err := filepath.Abs(opts.ScormRoot)
	if err != nil {
		return nil, xerrors.Wrap(err, "resolve scorm root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, xerrors.Wrap(err, "create scorm root")
	}
	return &Pipeline{
		logger:    opts.Logger,
		store:     opts.Storage,
		records:   opts.Records,
		clock:     opts.Clock,
		observer:  opts.Observer,
		root:      root,
		scheme:    opts.PublicScheme,
		host:      opts.PublicHost,
		mediaURL:  opts.MediaURL,
		entryFile: entry,
		limits:    opts.Limits.withDefaults(),
	}, nil
}

// Root is the directory holding the unpacked trees.
func (p *Pipeline) Root() string { return p.root }

// TreePath is where the unpacked tree of blockID lives.
func (p *Pipeline) TreePath(blockID string) string { return filepath.Join(p.root, blockID) }

// Ingest stores and unpacks an upload and records the result. The record
// is written last, so any failure leaves the previous record in place.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (meta PackageMetadata, err error) {
	started := time.Now()
	var size int64
	ctx, span := tracer.Start(ctx, "scorm.Ingest", trace.WithAttributes(
		attribute.String("scorm.scope", up.Scope.Key()),
		attribute.String("scorm.file_name", up.FileName),
	))
	defer func() {
		result := "success"
		switch {
		case errors.Is(err, ErrInvalidPackage) || errors.Is(err, ErrInvalidScope):
			result = "invalid"
		case err != nil:
			result = "error"
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
		if p.observer != nil {
			p.observer.IngestFinished(result, time.Since(started), size)
		}
	}()

	if err := up.Scope.Validate(); err != nil {
		return PackageMetadata{}, err
	}
	if up.Body == nil {
		return PackageMetadata{}, invalid("no file uploaded")
	}
	L := p.logger.With("scope", up.Scope.Key(), "file_name", up.FileName)

	previous, err := p.records.Get(ctx, up.Scope)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PackageMetadata{}, xerrors.Wrap(err, "load package record")
	}

	size, err = up.Body.Seek(0, io.SeekEnd)
	if err != nil {
		return PackageMetadata{}, xerrors.Wrap(err, "measure upload")
	}
	hash, err := cryptoutil.FingerprintSHA1(up.Body)
	if err != nil {
		return PackageMetadata{}, err
	}
	ext := FileExtension(up.FileName)
	archive := StoragePath(up.Scope, hash, ext)
	span.SetAttributes(attribute.String("scorm.content_hash", hash), attribute.Int64("scorm.archive_bytes", size))

	// reject non-zip uploads before anything is written
	zr, err := openZip(up.Body, size)
	if err != nil {
		return PackageMetadata{}, err
	}

	if err := p.storeArchive(ctx, L, archive, io.NewSectionReader(up.Body, 0, size)); err != nil {
		return PackageMetadata{}, err
	}

	target, err := p.unpack(ctx, L, up.Scope.BlockID, zr)
	if err != nil {
		return PackageMetadata{}, err
	}

	meta = PackageMetadata{
		DisplayName:      previous.DisplayName,
		ContentHash:      hash,
		OriginalFileName: up.FileName,
		FileExtension:    ext,
		StoragePath:      archive,
		EntryPath:        filepath.Join(target, filepath.FromSlash(p.entryFile)),
		LastUpdated:      p.clock.Now().UTC(),
		PublicBaseURL:    PublicBaseURL(p.scheme, p.host, p.mediaURL, up.Scope.BlockID),
	}
	if up.DisplayName != "" {
		meta.DisplayName = up.DisplayName
	}
	if err := p.records.Put(ctx, up.Scope, meta); err != nil {
		return PackageMetadata{}, xerrors.Wrap(err, "save package record")
	}
	L.Info(ctx, "scorm package ingested", "content_hash", hash, "storage_path", archive, "bytes", size)
	return meta, nil
}

func (p *Pipeline) storeArchive(ctx context.Context, L log.Logger, name string, body io.Reader) error {
	ctx, span := tracer.Start(ctx, "scorm.storeArchive")
	defer span.End()

	exists, err := p.store.Exists(ctx, name)
	if err != nil {
		return xerrors.Wrapf(err, "check archive %s", name)
	}
	if exists {
		L.Info(ctx, "removing previously uploaded archive", "storage_path", name)
		if err := p.store.Delete(ctx, name); err != nil {
			return xerrors.Wrapf(err, "delete archive %s", name)
		}
	}
	if err := p.store.Save(ctx, name, body); err != nil {
		return xerrors.Wrapf(err, "save archive %s", name)
	}
	L.Info(ctx, "archive stored", "storage_path", name)
	return nil
}

// unpack extracts into a scratch directory inside the scorm root and
// swaps the chosen content root into place.
func (p *Pipeline) unpack(ctx context.Context, L log.Logger, blockID string, zr *zip.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "scorm.unpack")
	defer span.End()

	scratch := filepath.Join(p.root, ".ingest-"+uuid.NewString())
	if err := os.Mkdir(scratch, 0o755); err != nil {
		return "", xerrors.Wrap(err, "create scratch directory")
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			L.Warn(ctx, "scratch directory not removed", "path", scratch, "error", err)
		}
	}()

	if err := extractZip(zr, scratch, p.limits); err != nil {
		return "", err
	}
	content, err := selectContentRoot(scratch)
	if err != nil {
		return "", err
	}

	target := p.TreePath(blockID)
	aside, err := replaceTree(content, target)
	if err != nil {
		return "", err
	}
	if aside != "" {
		L.Info(ctx, "replaced previously unpacked contents", "path", target)
		if err := os.RemoveAll(aside); err != nil {
			L.Warn(ctx, "old unpacked contents not removed", "path", aside, "error", err)
		}
	}
	L.Info(ctx, "moved package contents into place", "path", target)
	return target, nil
}
