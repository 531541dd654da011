package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealUnseal(t *testing.T) {
	payload := []byte(`{"index":1}`)

	envelope := Seal(payload)
	require.Len(t, envelope, ChecksumSize+len(payload))

	got, err := Unseal(envelope)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestUnsealDetectsCorruption(t *testing.T) {
	envelope := Seal([]byte("chain data"))
	envelope[len(envelope)-1] ^= 0x01

	_, err := Unseal(envelope)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = Unseal(envelope[:10])
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestHashSize(t *testing.T) {
	require.Len(t, Hash(nil), ChecksumSize)
}
