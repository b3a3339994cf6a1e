package scorm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// Limits bounds what a single package may unpack to.
type Limits struct {
	MaxEntries    int
	MaxFileSize   int64
	MaxTotalBytes int64
}

// DefaultLimits are generous enough for video-heavy courses.
var DefaultLimits = Limits{
	MaxEntries:    50_000,
	MaxFileSize:   1 << 30,
	MaxTotalBytes: 4 << 30,
}

func (l Limits) withDefaults() Limits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultLimits.MaxEntries
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultLimits.MaxFileSize
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = DefaultLimits.MaxTotalBytes
	}
	return l
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPackage, fmt.Sprintf(format, args...))
}

// openZip reads the central directory of an upload.
func openZip(r io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(r, size)
	// a reader returned alongside an error only flags insecure names,
	// which extractZip checks itself
	if err != nil && zr == nil {
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, invalid("not a zip archive: %v", err)
		}
		return nil, xerrors.Wrap(err, "read zip directory")
	}
	return zr, nil
}

// extractZip writes every entry of zr below dst. Entry names are cleaned
// and must stay inside dst; symlinks and oversized content are refused.
func extractZip(zr *zip.Reader, dst string, limits Limits) error {
	limits = limits.withDefaults()
	if len(zr.File) > limits.MaxEntries {
		return invalid("%d entries exceeds limit of %d", len(zr.File), limits.MaxEntries)
	}

	var total int64
	for _, f := range zr.File {
		name := strings.TrimSuffix(strings.ReplaceAll(f.Name, `\`, "/"), "/")
		if name == "" || name == "." {
			continue
		}
		target, err := pathutil.SafeJoin(dst, name)
		if err != nil {
			return invalid("unsafe entry name %q", f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(target, 0o755); err != nil {
				return xerrors.Wrapf(err, "create directory %s", name)
			}
			continue
		case mode&os.ModeSymlink != 0:
			return invalid("symlink entry %q", f.Name)
		case !mode.IsRegular():
			return invalid("unsupported entry type %q (%s)", f.Name, mode.Type())
		}

		if f.UncompressedSize64 > uint64(limits.MaxFileSize) {
			return invalid("entry %q exceeds max size (%d > %d)", name, f.UncompressedSize64, limits.MaxFileSize)
		}
		n, err := extractFile(f, target, limits.MaxFileSize)
		if err != nil {
			return err
		}
		total += n
		if total > limits.MaxTotalBytes {
			return invalid("total extracted size exceeds limit of %d bytes", limits.MaxTotalBytes)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string, maxSize int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, xerrors.Wrapf(err, "create parent of %s", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, invalid("open entry %q: %v", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, xerrors.Wrapf(err, "create %s", f.Name)
	}
	// the declared size may lie, so cap the copy as well
	n, err := io.Copy(out, io.LimitReader(rc, maxSize+1))
	if cerr := out.Close(); err == nil && cerr != nil {
		return n, xerrors.Wrapf(cerr, "close %s", f.Name)
	}
	if err != nil {
		if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, invalid("corrupt entry %q: %v", f.Name, err)
		}
		return n, xerrors.Wrapf(err, "write %s", f.Name)
	}
	if n > maxSize {
		return n, invalid("entry %q exceeds max size after decompression", f.Name)
	}
	return n, nil
}
