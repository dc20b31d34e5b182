package object

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// digestCounter accumulates a SHA-256 digest and an exact byte count over a
// stream of chunks. It sees every chunk exactly once, in arrival order; Write
// never fails.
type digestCounter struct {
	h hash.Hash
	n int64
}

func newDigestCounter() *digestCounter {
	return &digestCounter{h: sha256.New()}
}

func (d *digestCounter) Write(p []byte) (int, error) {
	d.h.Write(p)
	d.n += int64(len(p))
	return len(p), nil
}

// SumHex returns the hex-encoded digest over everything written so far.
func (d *digestCounter) SumHex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// Size returns the total number of bytes written.
func (d *digestCounter) Size() int64 {
	return d.n
}
