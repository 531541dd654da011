package core

// Block is one link of the chain. Hash covers every other field and is
// computed only after they are fixed.
type Block struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Proof        uint64        `json:"proof"`
	Hash         string        `json:"hash"`
}

// CalculateHash returns the canonical hash of the block's non-hash fields.
func (b *Block) CalculateHash() string {
	return CanonicalHash(b)
}

// VerifyHash reports whether the stored hash matches a recomputation.
func (b *Block) VerifyHash() bool {
	return b.Hash == b.CalculateHash()
}

// Clone returns a deep copy so callers can't alias chain-owned slices.
func (b Block) Clone() Block {
	txs := make([]Transaction, len(b.Transactions))
	copy(txs, b.Transactions)
	b.Transactions = txs
	return b
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i := range blocks {
		out[i] = blocks[i].Clone()
	}
	return out
}
