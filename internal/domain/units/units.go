// Package units implements the unit-conversion arithmetic and the low-stock
// policy shared by every stock-mutating flow.
package units

import (
	"fmt"

	"github.com/karimdiab/saydaly/internal/domain/models"
)

// allowedUnits maps a product type to the units it may be sold in. The first
// entry is the base unit; a second entry is the large unit related to it by
// the product's conversion factor.
var allowedUnits = map[string][]string{
	"أقراص":    {"شريط", "علبة"},
	"كبسولات":  {"شريط", "علبة"},
	"شراب":     {"علبة"},
	"حقن":      {"أمبولة", "علبة"},
	"مرهم":     {"أنبوب"},
	"قطرة":     {"علبة"},
	"لبوس":     {"شريط", "علبة"},
	"مستلزمات": {"قطعة"},
}

// UnitsFor returns the allowed units for a product type, or false when the
// type is unknown.
func UnitsFor(productType string) ([]string, bool) {
	u, ok := allowedUnits[productType]
	return u, ok
}

// HasLargeUnit reports whether the product type declares a second, coarser
// unit and therefore requires a positive conversion factor.
func HasLargeUnit(productType string) bool {
	u, ok := allowedUnits[productType]
	return ok && len(u) > 1
}

// ToBaseQuantity converts a quantity in the cashier-selected unit into the
// product's base unit. Selecting the large unit divides by the conversion
// factor. A missing or non-positive factor on a genuinely multi-unit product
// is a data-integrity error and must fail the enclosing transaction.
func ToBaseQuantity(selectedUnit string, quantity float64, p models.Product) (float64, error) {
	if selectedUnit == "" || selectedUnit == p.Unit {
		return quantity, nil
	}
	f, err := requiredFactor(p)
	if err != nil {
		return 0, err
	}
	return quantity / f, nil
}

// UnitPrice returns the product's sale price per one selected unit.
func UnitPrice(p models.Product, selectedUnit string) (float64, error) {
	if selectedUnit == "" || selectedUnit == p.Unit {
		return p.Price, nil
	}
	f, err := requiredFactor(p)
	if err != nil {
		return 0, err
	}
	return p.Price / f, nil
}

func requiredFactor(p models.Product) (float64, error) {
	if !HasLargeUnit(p.Type) {
		// Single-unit product: nothing to convert against.
		return 1, nil
	}
	if p.ConversionFactor == nil || *p.ConversionFactor <= 0 {
		return 0, fmt.Errorf("product %q has two units but no positive conversion factor", p.Name)
	}
	return *p.ConversionFactor, nil
}

// IsShort is the low-stock policy: the shortage flag is quantity strictly
// below the configured threshold. It is recomputed and persisted on every
// quantity mutation; the rest of the system reads the persisted flag.
func IsShort(quantity, threshold float64) bool {
	return quantity < threshold
}
