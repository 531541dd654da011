package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// ChecksumSize is the length of a BLAKE3 checksum as stored in an envelope.
const ChecksumSize = 32

// ErrChecksumMismatch is returned when an envelope's payload no longer
// matches its checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Hash computes the BLAKE3 hash of the input data.
func Hash(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

// Seal prepends the BLAKE3 checksum of payload.
func Seal(payload []byte) []byte {
	out := make([]byte, 0, ChecksumSize+len(payload))
	out = append(out, Hash(payload)...)
	return append(out, payload...)
}

// Unseal verifies an envelope produced by Seal and returns its payload.
func Unseal(envelope []byte) ([]byte, error) {
	if len(envelope) < ChecksumSize {
		return nil, fmt.Errorf("%w: envelope of %d bytes is truncated",
			ErrChecksumMismatch, len(envelope))
	}

	sum, payload := envelope[:ChecksumSize], envelope[ChecksumSize:]
	if !bytes.Equal(sum, Hash(payload)) {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}
