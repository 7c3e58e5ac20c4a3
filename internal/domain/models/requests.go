package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// AgelItemName marks the non-stock deferred-payment pseudo-product. A
// checkout line with this name carries a cash amount in Quantity and never
// touches the product store.
const AgelItemName = "آجل"

// CheckoutItem is one cashier line: a product reference plus the quantity in
// the cashier-selected unit.
type CheckoutItem struct {
	ProductID primitive.ObjectID `json:"productId"`
	Quantity  float64            `json:"quantity" binding:"required"`
	Unit      string             `json:"unit"`
	Name      string             `json:"name"`
}

// CheckoutRequest is the cashier sale payload.
type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items" binding:"required"`
	IsCharitySale bool           `json:"isCharitySale"`
}

// CheckoutResult summarizes a committed sale.
type CheckoutResult struct {
	TotalAmount    float64 `json:"totalAmount"`
	ItemsProcessed int     `json:"itemsProcessed"`
}

// RestockItem describes an incoming product. Fields may be sparse when the
// item matches an existing product by name; missing fields are backfilled
// from the existing record before validation.
type RestockItem struct {
	Name             string   `json:"name" binding:"required"`
	Type             string   `json:"type"`
	Quantity         float64  `json:"quantity" binding:"required"`
	Price            float64  `json:"price"`
	PurchasePrice    float64  `json:"purchasePrice"`
	ConversionFactor *float64 `json:"conversionFactor,omitempty"`
	Barcode          string   `json:"barcode"`
	ExpiryDate       string   `json:"expiryDate,omitempty"`
	Company          string   `json:"company"`
	Details          string   `json:"details,omitempty"`
	IsGift           bool     `json:"isGift"`
}

// RestockRequest carries a purchase/gift delivery.
type RestockRequest struct {
	Items []RestockItem `json:"items" binding:"required"`
}

// RestockResult reports the products touched by a restock.
type RestockResult struct {
	CreatedProducts []Product `json:"createdProducts"`
	TotalCost       float64   `json:"totalCost"`
}

// ReturnItem identifies a returned product by name, matching the pharmacy's
// observed workflow.
type ReturnItem struct {
	Name     string  `json:"name" binding:"required"`
	Quantity float64 `json:"quantity" binding:"required"`
	Unit     string  `json:"unit"`
}

// ReturnRequest carries a customer return.
type ReturnRequest struct {
	Items []ReturnItem `json:"items" binding:"required"`
}

// ReturnResult summarizes a committed return.
type ReturnResult struct {
	Success      bool     `json:"success"`
	TotalCost    float64  `json:"totalCost"`
	SkippedItems []string `json:"skippedItems,omitempty"`
}

// DebtItem is one line of a credit sale. ProductID is zero for the deferred
// pseudo-item.
type DebtItem struct {
	ProductID primitive.ObjectID `json:"productId,omitempty"`
	Name      string             `json:"name" binding:"required"`
	Price     float64            `json:"price"`
	Quantity  float64            `json:"quantity" binding:"required"`
	Unit      string             `json:"unit" binding:"required"`
	Product   *Product           `json:"product,omitempty"`
}

// RegisterDebtRequest records a credit sale for a named debtor.
type RegisterDebtRequest struct {
	DebtorName     string     `json:"debtorName" binding:"required"`
	Items          []DebtItem `json:"items" binding:"required"`
	PartialPayment float64    `json:"partialPayment"`
}

// RegisterDebtResult reports the recorded obligation.
type RegisterDebtResult struct {
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"totalAmount"`
	PaidAmount      float64     `json:"paidAmount"`
	RemainingAmount float64     `json:"remainingAmount"`
}

// SettleDebtRequest applies a payment against a debtor's balance.
type SettleDebtRequest struct {
	DebtorName string  `json:"debtorName" binding:"required"`
	Amount     float64 `json:"amount" binding:"required"`
}

// SettleDebtResult reports how much of the payment was applied.
type SettleDebtResult struct {
	TotalPaid float64 `json:"totalPaid"`
}

// AdjustMode selects between an authoritative stocktake count and a plain
// field update.
type AdjustMode string

const (
	AdjustInventory AdjustMode = "inventory"
	AdjustUpdate    AdjustMode = "update"
)

// AdjustProductRequest mutates a single product, journaling any monetary
// consequence of the quantity delta.
type AdjustProductRequest struct {
	Mode             AdjustMode `json:"mode" binding:"required"`
	Name             string     `json:"name,omitempty"`
	Type             string     `json:"type,omitempty"`
	Quantity         *float64   `json:"quantity,omitempty"`
	Price            *float64   `json:"price,omitempty"`
	PurchasePrice    *float64   `json:"purchasePrice,omitempty"`
	ConversionFactor *float64   `json:"conversionFactor,omitempty"`
	Barcode          string     `json:"barcode,omitempty"`
	ExpiryDate       string     `json:"expiryDate,omitempty"`
	Company          string     `json:"company,omitempty"`
	Details          string     `json:"details,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	IsGift           bool       `json:"isGift"`
}

// AdjustProductResult carries the updated record plus the signed ledger
// consequence of the adjustment, if any.
type AdjustProductResult struct {
	UpdatedProduct Product  `json:"updatedProduct"`
	ProfitChange   *float64 `json:"profitChange,omitempty"`
}

// DeleteProductResult reports the residual stock value journaled as a loss.
type DeleteProductResult struct {
	LostValue float64 `json:"lostValue"`
}

// WithdrawalRequest pulls cash out of the register. Master role only.
type WithdrawalRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Reason string  `json:"reason"`
}
