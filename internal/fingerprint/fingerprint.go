// Package fingerprint computes content digests used to detect announcement edits.
package fingerprint

import (
	"encoding/binary"

	"github.com/zeebo/blake3"

	"announcer/internal/domain"
)

// Compute returns the BLAKE3-256 digest of title and body. Each field is
// length-prefixed so that moving bytes between fields changes the digest.
func Compute(title, body string) domain.Fingerprint {
	hasher := blake3.New()
	writeField(hasher, title)
	writeField(hasher, body)

	var f domain.Fingerprint
	copy(f[:], hasher.Sum(nil))
	return f
}

func writeField(h *blake3.Hasher, field string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(field)))
	h.Write(size[:])
	h.WriteString(field)
}
