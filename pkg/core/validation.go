package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyChain is returned when validating a chain with no blocks.
	ErrEmptyChain = errors.New("chain has no blocks")

	// ErrBadGenesis is returned when the first block is not the fixed
	// genesis block.
	ErrBadGenesis = errors.New("first block is not genesis")
)

// InvalidBlockError reports the first block that broke a chain.
type InvalidBlockError struct {
	Index  uint64
	Reason string
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
}

// ValidateBlock checks cur against its predecessor prev.
func ValidateBlock(prev, cur *Block, difficulty int) error {
	if cur.Index != prev.Index+1 {
		return &InvalidBlockError{
			Index:  cur.Index,
			Reason: fmt.Sprintf("index does not follow %d", prev.Index),
		}
	}

	prevHash := prev.CalculateHash()
	if cur.PreviousHash != prevHash {
		return &InvalidBlockError{
			Index:  cur.Index,
			Reason: fmt.Sprintf("previous hash %.8s does not match %.8s", cur.PreviousHash, prevHash),
		}
	}

	if !cur.VerifyHash() {
		return &InvalidBlockError{Index: cur.Index, Reason: "hash mismatch"}
	}

	if !ValidProof(prev.Proof, cur.Proof, difficulty) {
		return &InvalidBlockError{
			Index:  cur.Index,
			Reason: fmt.Sprintf("proof %d does not solve %d", cur.Proof, prev.Proof),
		}
	}

	return nil
}

// ValidateChain checks a whole candidate chain end to end. Any violation
// rejects the entire candidate.
func ValidateChain(blocks []Block, difficulty int) error {
	if len(blocks) == 0 {
		return ErrEmptyChain
	}
	if !IsGenesis(&blocks[0]) {
		return ErrBadGenesis
	}

	for i := 1; i < len(blocks); i++ {
		if err := ValidateBlock(&blocks[i-1], &blocks[i], difficulty); err != nil {
			return err
		}
	}

	return nil
}
