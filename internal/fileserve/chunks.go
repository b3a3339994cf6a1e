package fileserve

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// ChunkSize is the largest slice Chunks yields.
const ChunkSize = 4096

// Opener is the part of a storage backend Chunks reads from.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// Chunks yields the bytes of name from offset start. When stop >= 0
// exactly stop-start bytes are produced unless the object ends first;
// a negative stop reads to EOF.
//
// Every range over the sequence opens the object afresh, so it can be
// consumed more than once. The object is closed when iteration ends for
// any reason. A yielded slice is only valid until the next iteration
// step.
func Chunks(ctx context.Context, store Opener, name string, start, stop int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if stop >= 0 && stop <= start {
			return
		}
		f, err := store.Open(ctx, name)
		if err != nil {
			yield(nil, err)
			return
		}
		defer f.Close()

		if start > 0 {
			if _, err := f.Seek(start, io.SeekStart); err != nil {
				yield(nil, xerrors.Wrapf(err, "seek %s to %d", name, start))
				return
			}
		}

		remaining := int64(-1)
		if stop >= 0 {
			remaining = stop - start
		}
		buf := make([]byte, ChunkSize)
		for remaining != 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			want := buf
			if remaining > 0 && remaining < int64(len(buf)) {
				want = buf[:remaining]
			}
			n, err := io.ReadFull(f, want)
			if n > 0 {
				if remaining > 0 {
					remaining -= int64(n)
				}
				if !yield(want[:n], nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			if err != nil {
				yield(nil, xerrors.Wrapf(err, "read %s", name))
				return
			}
		}
	}
}
