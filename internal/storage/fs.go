package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

const tmpDirName = ".tmp"

// FileSystem stores archives as plain files under Root. Writes land in a
// temp file first and are renamed into place, so readers never observe a
// partial archive.
type FileSystem struct {
	root string
}

// NewFileSystem creates root if needed and returns a backend rooted there.
func NewFileSystem(root string) (*FileSystem, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: empty root", ErrInvalidName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrap(err, "resolve storage root")
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, xerrors.Wrap(err, "create storage root")
	}
	return &FileSystem{root: abs}, nil
}

func (s *FileSystem) Root() string { return s.root }

func (s *FileSystem) path(name string) (string, error) {
	p, err := pathutil.SafeJoin(s.root, name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return p, nil
}

func notExist(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return err
}

func (s *FileSystem) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrapf(err, "stat %s", name)
	}
	return fi.Mode().IsRegular(), nil
}

// Delete removes name. Deleting an absent archive is not an error.
func (s *FileSystem) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return xerrors.Wrapf(err, "delete %s", name)
	}
	s.pruneEmptyDirs(filepath.Dir(p))
	return nil
}

func (s *FileSystem) Save(ctx context.Context, name string, r io.Reader) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDirName), "upload-*")
	if err != nil {
		return xerrors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		return xerrors.Wrapf(err, "write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		return xerrors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrapf(err, "close %s", name)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Wrapf(err, "create parent of %s", name)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return xerrors.Wrapf(err, "commit %s", name)
	}
	committed = true
	return nil
}

func (s *FileSystem) Open(_ context.Context, name string) (io.ReadSeekCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, notExist(name, err)
	}
	return f, nil
}

func (s *FileSystem) stat(name string) (fs.FileInfo, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, notExist(name, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return fi, nil
}

func (s *FileSystem) Size(_ context.Context, name string) (int64, error) {
	fi, err := s.stat(name)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *FileSystem) ModTime(_ context.Context, name string) (time.Time, error) {
	fi, err := s.stat(name)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func (s *FileSystem) Stat(_ context.Context, name string) (Info, error) {
	fi, err := s.stat(name)
	if err != nil {
		return Info{}, err
	}
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (s *FileSystem) URL(context.Context, string) (string, error) { return "", ErrNoDirectURL }

func (s *FileSystem) ServesDirectly() bool { return false }

func (s *FileSystem) Check(context.Context) error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return xerrors.Wrap(err, "stat storage root")
	}
	if !fi.IsDir() {
		return fmt.Errorf("storage root %s is not a directory", s.root)
	}
	return nil
}

// pruneEmptyDirs walks up from dir removing empty directories until it
// reaches the root or a non-empty directory.
func (s *FileSystem) pruneEmptyDirs(dir string) {
	for dir != s.root && len(dir) > len(s.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
