// Package stock holds the quantity-mutation helpers shared by the checkout,
// return, restock and debt orchestrators. Every mutation recomputes the
// persisted shortage flag against a threshold fetched fresh for the enclosing
// operation.
package stock

import (
	"context"
	"errors"
	"strconv"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/domain/units"
	"github.com/karimdiab/saydaly/internal/repository"
)

// Threshold reads the pharmacy's low-stock threshold. It is read once per
// orchestrator invocation and passed down explicitly, never cached across
// requests.
func Threshold(ctx context.Context, st repository.Store) (float64, error) {
	raw, err := st.Settings().Get(ctx, repository.SettingLowStockThreshold, "")
	if err != nil {
		return 0, errs.Wrap(errs.Infrastructure, err, "read low-stock threshold")
	}
	if raw == "" {
		return repository.DefaultLowStockThreshold, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errs.Wrap(errs.Validation, err, "malformed low-stock threshold %q", raw)
	}
	return v, nil
}

// Apply sets a product's quantity and recomputes its shortage flag,
// reporting whether the flag flipped from false to true.
func Apply(p *models.Product, quantity, threshold float64) (flipped bool) {
	wasShort := p.IsShortcoming
	p.Quantity = quantity
	p.IsShortcoming = units.IsShort(quantity, threshold)
	return !wasShort && p.IsShortcoming
}

// Decrement converts the requested quantity into the product's base unit and
// subtracts it, failing when stock is insufficient. It returns the base
// quantity removed, the sale amount for the line and whether the product
// flipped into shortage.
func Decrement(p *models.Product, quantity float64, unit string, threshold float64) (baseQty, amount float64, flipped bool, err error) {
	baseQty, err = units.ToBaseQuantity(unit, quantity, *p)
	if err != nil {
		return 0, 0, false, errs.Wrap(errs.Validation, err, "unit conversion for %q", p.Name)
	}
	if baseQty > p.Quantity {
		return 0, 0, false, errs.New(errs.InsufficientStock,
			"insufficient stock for %q: requested %g %s, available %g %s",
			p.Name, baseQty, p.Unit, p.Quantity, p.Unit)
	}
	amount = baseQty * p.Price
	flipped = Apply(p, p.Quantity-baseQty, threshold)
	return baseQty, amount, flipped, nil
}

// Increment is the return-path inverse of Decrement: it adds the converted
// base quantity back and reports the cost (purchase-price valuation) of the
// returned goods. Returns never fail on stock level.
func Increment(p *models.Product, quantity float64, unit string, threshold float64) (baseQty, cost float64, err error) {
	baseQty, err = units.ToBaseQuantity(unit, quantity, *p)
	if err != nil {
		return 0, 0, errs.Wrap(errs.Validation, err, "unit conversion for %q", p.Name)
	}
	cost = baseQty * p.PurchasePrice
	Apply(p, p.Quantity+baseQty, threshold)
	return baseQty, cost, nil
}

// Classify maps storage-layer failures leaving a transaction into the
// business taxonomy. Classified business errors pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var be *errs.Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, repository.ErrConflict) {
		return errs.Wrap(errs.Conflict, err, "concurrent transaction conflict, retry the operation")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errs.Wrap(errs.NotFound, err, "record not found")
	}
	return errs.Wrap(errs.Infrastructure, err, "storage failure")
}
