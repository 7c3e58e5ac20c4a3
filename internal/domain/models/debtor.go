package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Debtor is a named customer with outstanding credit orders. Outstanding
// balance = sum(orders.total) - PartialPayments; the record is deleted once
// the balance reaches zero and no suspended ledger entries reference it.
type Debtor struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	PartialPayments float64            `bson:"partialPayments" json:"partialPayments"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}

// OrderItem is a frozen snapshot of one credit-sale line as of order time.
type OrderItem struct {
	Name        string   `bson:"name" json:"name"`
	Price       float64  `bson:"price" json:"price"`
	Quantity    float64  `bson:"quantity" json:"quantity"`
	Unit        string   `bson:"unit" json:"unit"`
	Total       float64  `bson:"total" json:"total"`
	UnitOptions []string `bson:"unitOptions,omitempty" json:"unitOptions,omitempty"`
	Product     *Product `bson:"product,omitempty" json:"product,omitempty"`
}

// Order is a credit sale owned by one Debtor and cascade-deleted with it.
type Order struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DebtorID  primitive.ObjectID `bson:"debtorId" json:"debtorId"`
	Total     float64            `bson:"total" json:"total"`
	OrderedAt time.Time          `bson:"orderedAt" json:"orderedAt"`
	Items     []OrderItem        `bson:"items" json:"items"`
}

// Setting is a per-pharmacy key/value configuration document.
type Setting struct {
	Key   string `bson:"key" json:"key"`
	Value string `bson:"value" json:"value"`
}

// DailyReport is the persisted daily profit rollup produced by the scheduler.
type DailyReport struct {
	Date        time.Time `bson:"date" json:"date"`
	Income      float64   `bson:"income" json:"income"`
	Expenses    float64   `bson:"expenses" json:"expenses"`
	Withdrawals float64   `bson:"withdrawals" json:"withdrawals"`
	Profit      float64   `bson:"profit" json:"profit"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
