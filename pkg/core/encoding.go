package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EncodingVersion identifies the canonical block encoding below. Peers must
// agree on it byte for byte or no foreign chain will validate.
const EncodingVersion = 1

// canonicalTx and canonicalBlock declare their fields in sorted key order;
// encoding/json emits struct fields in declaration order.
type canonicalTx struct {
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient"`
	Sender    string  `json:"sender"`
}

type canonicalBlock struct {
	Index        uint64        `json:"index"`
	PreviousHash string        `json:"previous_hash"`
	Proof        uint64        `json:"proof"`
	Timestamp    float64       `json:"timestamp"`
	Transactions []canonicalTx `json:"transactions"`
}

// EncodeCanonical renders every field of b except Hash as compact JSON with
// sorted keys and no HTML escaping.
func EncodeCanonical(b *Block) []byte {
	cb := canonicalBlock{
		Index:        b.Index,
		PreviousHash: b.PreviousHash,
		Proof:        b.Proof,
		Timestamp:    b.Timestamp,
		Transactions: make([]canonicalTx, len(b.Transactions)),
	}
	for i, tx := range b.Transactions {
		cb.Transactions[i] = canonicalTx{
			Amount:    tx.Amount,
			Recipient: tx.Recipient,
			Sender:    tx.Sender,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Only non-finite floats fail to encode, and Validate rejects those
	// before anything reaches a block.
	if err := enc.Encode(cb); err != nil {
		panic("core: canonical encoding failed: " + err.Error())
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// CanonicalHash is the lowercase hex SHA-256 digest of EncodeCanonical(b).
func CanonicalHash(b *Block) string {
	sum := sha256.Sum256(EncodeCanonical(b))
	return hex.EncodeToString(sum[:])
}
