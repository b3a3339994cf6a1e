package cryptoutil

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"io"

	"github.com/keithlinneman/linnemanlabs-scorm/internal/xerrors"
)

// FingerprintBlockSize is the read size used while hashing uploads.
const FingerprintBlockSize = 8 * 1024

// HashEqual compares two hex digests in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FingerprintSHA1 returns the lowercase hex SHA-1 of everything in r and
// leaves r positioned at its start, so the caller can read the same
// stream again. The digest names stored archives; it is not a security
// boundary.
func FingerprintSHA1(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", xerrors.Wrap(err, "rewind before hashing")
	}
	h := sha1.New()
	buf := make([]byte, FingerprintBlockSize)
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); err != nil {
		return "", xerrors.Wrap(err, "hash upload")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", xerrors.Wrap(err, "rewind after hashing")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
