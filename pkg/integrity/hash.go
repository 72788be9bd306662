// Package integrity provides content hashing for the evidence pipeline.
// Every stored artifact carries a SHA-256 digest computed before the first
// storage write; every read re-verifies the digest before bytes reach a
// caller.
package integrity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"io"

	dErrors "pfascert/pkg/domain-errors"
)

// Digest returns the lowercase hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestReader streams r through SHA-256 and returns the hex digest plus the
// number of bytes read. Use for payloads too large to hold in memory twice.
func DigestReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Writer accumulates a SHA-256 digest from writes.
type Writer struct {
	h hash.Hash
	n int64
}

// NewWriter returns a streaming digest writer.
func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.h.Write(p)
	w.n += int64(n)
	return n, err
}

// Sum returns the hex digest of everything written so far.
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Size returns the number of bytes written.
func (w *Writer) Size() int64 { return w.n }

// Verify recomputes the digest of data and compares it against expectedHex in
// constant time. The comparison runs over raw digest bytes so a mismatch does
// not leak position information through timing.
func Verify(data []byte, expectedHex string) error {
	expected, err := hex.DecodeString(expectedHex)
	if err != nil || len(expected) != sha256.Size {
		return dErrors.New(dErrors.CodeIntegrityFailure, "stored hash is not a valid SHA-256 digest")
	}
	actual := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(actual[:], expected) != 1 {
		return dErrors.New(dErrors.CodeIntegrityFailure, "content hash mismatch")
	}
	return nil
}

// Equal compares two hex digests in constant time. Non-hex or ill-sized
// inputs compare unequal.
func Equal(aHex, bHex string) bool {
	a, err := hex.DecodeString(aHex)
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(bHex)
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
