package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidProofKnownValues(t *testing.T) {
	tests := []struct {
		name       string
		lastProof  uint64
		proof      uint64
		difficulty int
		valid      bool
	}{
		{"genesis solution", 100, 35293, 4, true},
		{"neighbour of solution", 100, 35292, 4, false},
		{"easier puzzle", 100, 226, 2, true},
		{"zero difficulty", 100, 1, 0, true},
		{"impossible difficulty", 100, 35293, 65, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.valid, ValidProof(tc.lastProof, tc.proof, tc.difficulty))
		})
	}
}

func TestProofHash(t *testing.T) {
	require.Equal(t,
		"0000c415de5ceea33c02daa85a1c218ecca1b1c9e9864ed34d183597844de8e2",
		ProofHash(100, 35293))
}

func TestMineFindsSmallestProof(t *testing.T) {
	proof, err := Mine(context.Background(), 100, 4)
	require.NoError(t, err)
	require.EqualValues(t, 35293, proof)

	proof, err = Mine(context.Background(), 100, 2)
	require.NoError(t, err)
	require.EqualValues(t, 226, proof)
}

func TestMineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Mine(ctx, 100, 64)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMineProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lastProof := rapid.Uint64().Draw(t, "lastProof")
		difficulty := rapid.IntRange(0, 2).Draw(t, "difficulty")

		proof, err := Mine(context.Background(), lastProof, difficulty)
		if err != nil {
			t.Fatalf("mine: %v", err)
		}
		if !ValidProof(lastProof, proof, difficulty) {
			t.Fatalf("proof %d does not solve %d", proof, lastProof)
		}
		if !strings.HasPrefix(ProofHash(lastProof, proof), strings.Repeat("0", difficulty)) {
			t.Fatalf("digest lacks %d leading zeros", difficulty)
		}
		for p := uint64(0); p < proof; p++ {
			if ValidProof(lastProof, p, difficulty) {
				t.Fatalf("smaller proof %d also solves %d", p, lastProof)
			}
		}
	})
}
