package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateChain(t *testing.T) {
	valid := buildChain(t, 4, "miner")

	tests := []struct {
		name    string
		mutate  func([]Block) []Block
		wantErr error
		atIndex uint64
	}{
		{
			name:   "untouched",
			mutate: func(b []Block) []Block { return b },
		},
		{
			name:    "empty",
			mutate:  func([]Block) []Block { return nil },
			wantErr: ErrEmptyChain,
		},
		{
			name: "foreign genesis",
			mutate: func(b []Block) []Block {
				b[0].Proof = 101
				b[0].Hash = b[0].CalculateHash()
				return b
			},
			wantErr: ErrBadGenesis,
		},
		{
			name: "tampered amount",
			mutate: func(b []Block) []Block {
				b[2].Transactions[0].Amount = 1000
				return b
			},
			atIndex: 3,
		},
		{
			name: "tampered amount with rehash",
			mutate: func(b []Block) []Block {
				b[2].Transactions[0].Amount = 1000
				b[2].Hash = b[2].CalculateHash()
				return b
			},
			atIndex: 4,
		},
		{
			name: "broken proof",
			mutate: func(b []Block) []Block {
				b[1].Proof++
				for ValidProof(b[0].Proof, b[1].Proof, testDifficulty) {
					b[1].Proof++
				}
				b[1].Hash = b[1].CalculateHash()
				return b
			},
			atIndex: 2,
		},
		{
			name: "skipped index",
			mutate: func(b []Block) []Block {
				return append(b[:2:2], b[3])
			},
			atIndex: 4,
		},
		{
			name: "wrong previous hash",
			mutate: func(b []Block) []Block {
				b[3].PreviousHash = genesisHash
				b[3].Hash = b[3].CalculateHash()
				return b
			},
			atIndex: 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChain(tc.mutate(cloneBlocks(valid)), testDifficulty)

			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
			case tc.atIndex != 0:
				var blockErr *InvalidBlockError
				require.ErrorAs(t, err, &blockErr)
				require.Equal(t, tc.atIndex, blockErr.Index)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateChainGenesisOnly(t *testing.T) {
	require.NoError(t, ValidateChain([]Block{GenesisBlock()}, DefaultDifficulty))
}

func TestValidateChainHigherDifficulty(t *testing.T) {
	chain := buildChain(t, 3, "miner")

	// Proofs found at difficulty 2 almost never satisfy 5.
	require.Error(t, ValidateChain(chain, 5))
}
