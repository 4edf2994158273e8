package domain

import (
	"encoding/hex"
	"fmt"
)

// FingerprintSize is the digest length in bytes.
const FingerprintSize = 32

type Fingerprint [FingerprintSize]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint decodes the hex form produced by Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(raw) != FingerprintSize {
		return f, fmt.Errorf("decode fingerprint: want %d bytes, got %d", FingerprintSize, len(raw))
	}
	copy(f[:], raw)
	return f, nil
}
