package core

// Genesis parameters shared by every node. The previous hash is a sentinel,
// not a real digest.
const (
	GenesisIndex        = 1
	GenesisPreviousHash = "1"
	GenesisProof        = 100
	GenesisTimestamp    = 0
)

// GenesisBlock returns the fixed first block of every chain.
func GenesisBlock() Block {
	b := Block{
		Index:        GenesisIndex,
		PreviousHash: GenesisPreviousHash,
		Timestamp:    GenesisTimestamp,
		Transactions: []Transaction{},
		Proof:        GenesisProof,
	}
	b.Hash = b.CalculateHash()
	return b
}

// IsGenesis reports whether b is exactly the genesis block, hash included.
func IsGenesis(b *Block) bool {
	g := GenesisBlock()
	return b.Index == g.Index &&
		b.PreviousHash == g.PreviousHash &&
		b.Timestamp == g.Timestamp &&
		b.Proof == g.Proof &&
		len(b.Transactions) == 0 &&
		b.Hash == g.Hash
}
