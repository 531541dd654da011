package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidTransaction is returned when a submitted transaction is missing a
// required field.
var ErrInvalidTransaction = errors.New("invalid transaction")

// RewardSender is the sender recorded on the mining reward transaction.
const RewardSender = "0"

// RewardAmount is the amount minted by every mined block.
const RewardAmount = 1

// Transaction represents a value transfer waiting in the pool or embedded in
// a block. It has no identity beyond its position.
type Transaction struct {
	Sender    string  `json:"sender"`
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// NewTransaction creates a new transaction and checks that it can be pooled.
func NewTransaction(sender, recipient string, amount float64) (Transaction, error) {
	tx := Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
	}
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// NewRewardTransaction returns the coinbase credit for the given node.
func NewRewardTransaction(nodeID string) Transaction {
	return Transaction{
		Sender:    RewardSender,
		Recipient: nodeID,
		Amount:    RewardAmount,
	}
}

// Validate reports whether the transaction can be encoded canonically.
// Empty parties are allowed; amounts must be finite.
func (tx Transaction) Validate() error {
	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidTransaction)
	}
	return nil
}

// IsReward reports whether tx is a mining reward.
func (tx Transaction) IsReward() bool {
	return tx.Sender == RewardSender
}
