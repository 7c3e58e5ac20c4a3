package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a stocked pharmacy item. Quantity is always expressed in the
// product's base unit; conversions to the large unit divide by
// ConversionFactor.
type Product struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Type             string             `bson:"type" json:"type"`
	Unit             string             `bson:"unit" json:"unit"`
	Quantity         float64            `bson:"quantity" json:"quantity"`
	Price            float64            `bson:"price" json:"price"`
	PurchasePrice    float64            `bson:"purchasePrice" json:"purchasePrice"`
	ConversionFactor *float64           `bson:"conversionFactor,omitempty" json:"conversionFactor,omitempty"`
	IsBaseUnit       bool               `bson:"isBaseUnit" json:"isBaseUnit"`
	Barcode          string             `bson:"barcode" json:"barcode"`
	Barcodes         []string           `bson:"barcodes" json:"barcodes"`
	ExpiryDate       *time.Time         `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	IsShortcoming    bool               `bson:"isShortcoming" json:"isShortcoming"`
	Company          string             `bson:"company" json:"company"`
	Details          string             `bson:"details,omitempty" json:"details,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Factor returns the unit conversion factor, defaulting to 1 for
// single-unit products with no declared factor.
func (p Product) Factor() float64 {
	if p.ConversionFactor == nil || *p.ConversionFactor == 0 {
		return 1
	}
	return *p.ConversionFactor
}

// Expired reports whether the product carries an expiry date in the past
// relative to now.
func (p Product) Expired(now time.Time) bool {
	return p.ExpiryDate != nil && p.ExpiryDate.Before(now)
}
