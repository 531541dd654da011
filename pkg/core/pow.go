package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// DefaultDifficulty is the number of leading hex zeros a proof digest needs.
const DefaultDifficulty = 4

// MineCheckInterval is how many candidates Mine tries between cancellation
// checks.
const MineCheckInterval = 4096

// proofDigest hashes the decimal concatenation of lastProof and proof.
func proofDigest(buf []byte, lastProof, proof uint64) [sha256.Size]byte {
	buf = strconv.AppendUint(buf[:0], lastProof, 10)
	buf = strconv.AppendUint(buf, proof, 10)
	return sha256.Sum256(buf)
}

func meetsDifficulty(digest [sha256.Size]byte, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > 2*sha256.Size {
		return false
	}

	// Each byte holds two hex characters.
	for i := 0; i < difficulty; i++ {
		b := digest[i/2]
		if i%2 == 0 {
			b >>= 4
		}
		if b&0x0f != 0 {
			return false
		}
	}
	return true
}

// ValidProof reports whether sha256("<lastProof><proof>") rendered as hex
// starts with difficulty zero characters.
func ValidProof(lastProof, proof uint64, difficulty int) bool {
	var buf [40]byte
	return meetsDifficulty(proofDigest(buf[:], lastProof, proof), difficulty)
}

// ProofHash returns the hex digest ValidProof inspects.
func ProofHash(lastProof, proof uint64) string {
	var buf [40]byte
	d := proofDigest(buf[:], lastProof, proof)
	return hex.EncodeToString(d[:])
}

// Mine returns the smallest proof p such that ValidProof(lastProof, p,
// difficulty) holds. It checks ctx every MineCheckInterval candidates and
// returns ctx.Err() once the search is cancelled.
func Mine(ctx context.Context, lastProof uint64, difficulty int) (uint64, error) {
	var buf [40]byte
	for proof := uint64(0); ; proof++ {
		if proof%MineCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if meetsDifficulty(proofDigest(buf[:], lastProof, proof), difficulty) {
			return proof, nil
		}
	}
}
