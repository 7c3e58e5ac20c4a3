package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionType classifies a ledger entry. The type carries the sign
// semantics; Amount itself is always non-negative.
type TransactionType string

const (
	// TransactionIn is realized income: a cash sale or a debt payment received.
	TransactionIn TransactionType = "in"
	// TransactionOut is a realized expense: purchase, loss or write-off.
	TransactionOut TransactionType = "out"
	// TransactionSuspended is income received but not yet attributed to a
	// specific obligation (deferred-sale deposits).
	TransactionSuspended TransactionType = "suspended"
	// TransactionSadaqah is charity income pending settlement.
	TransactionSadaqah TransactionType = "sadaqah"
	// TransactionSadaqahPaid is settled charity, counted as income in rollups.
	TransactionSadaqahPaid TransactionType = "sadaqahPaid"
	// TransactionWithdrawal is an owner cash pull, distinct from an operating
	// expense.
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether t is one of the known ledger entry types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIn, TransactionOut, TransactionSuspended,
		TransactionSadaqah, TransactionSadaqahPaid, TransactionWithdrawal:
		return true
	}
	return false
}

// Winning is a financial ledger entry. The collection is append-only except
// for suspended-entry consumption, which is modeled as delete + insert so the
// ledger stays auditable.
type Winning struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Amount          float64            `bson:"amount" json:"amount"`
	Reason          string             `bson:"reason" json:"reason"`
	TransactionType TransactionType    `bson:"transactionType" json:"transactionType"`
	Date            time.Time          `bson:"date" json:"date"`
}
