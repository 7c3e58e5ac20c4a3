// Package inventory implements the restock, product-adjustment and
// product-deletion orchestrators. Restock applies create-or-merge semantics;
// every quantity delta with a monetary consequence is journaled inside the
// same transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/domain/units"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/service/stock"
	"github.com/karimdiab/saydaly/pkg/clients/alerts"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const expiryLayout = "2006-01-02"

// lossReasons always classify an adjustment as an expense, regardless of the
// delta's sign.
var lossReasons = map[string]bool{
	"burnt":   true,
	"damaged": true,
	"expired": true,
}

// Service coordinates catalog and ledger mutations for stock intake and
// corrections.
type Service struct {
	pool     repository.Pool
	notifier alerts.Notifier
	logger   *zap.Logger
}

// NewService wires an inventory service. The notifier may be nil.
func NewService(pool repository.Pool, notifier alerts.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, notifier: notifier, logger: logger}
}

// Restock creates or merges each incoming item and journals the total
// purchase cost as one expense entry. Gift items add stock without cost; a
// delivery of only gifts still produces a zero-amount audit entry.
func (s *Service) Restock(ctx context.Context, pharmacyID string, req models.RestockRequest) (*models.RestockResult, error) {
	if len(req.Items) == 0 {
		return nil, errs.New(errs.Validation, "restock requires at least one item")
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.RestockResult

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		threshold, err := stock.Threshold(ctx, st)
		if err != nil {
			return err
		}

		var totalCost float64
		var reasons []string
		var touched []models.Product

		for _, item := range req.Items {
			p, cost, reason, err := s.upsertItem(ctx, st, item, threshold)
			if err != nil {
				return err
			}
			totalCost += cost
			reasons = append(reasons, reason)
			touched = append(touched, *p)
		}

		reason := "اشترى " + strings.Join(reasons, "، ")
		entry := models.Winning{
			Amount:          totalCost,
			Reason:          reason,
			TransactionType: models.TransactionOut,
			Date:            time.Now(),
		}
		if totalCost == 0 {
			entry.Reason = "إضافة بونص: " + strings.Join(reasons, "، ")
		}
		if err := st.Winnings().Insert(ctx, &entry); err != nil {
			return stock.Classify(err)
		}

		result = models.RestockResult{CreatedProducts: touched, TotalCost: totalCost}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}
	return &result, nil
}

// upsertItem performs the create-or-merge step for one restock line and
// returns the cost contribution plus a human-readable reason fragment.
func (s *Service) upsertItem(ctx context.Context, st repository.Store, item models.RestockItem, threshold float64) (*models.Product, float64, string, error) {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return nil, 0, "", errs.New(errs.Validation, "restock item is missing a name")
	}
	if item.Quantity <= 0 {
		return nil, 0, "", errs.New(errs.Validation, "restock quantity for %q must be positive", name)
	}

	existing, err := st.Products().FindByNameTypePrice(ctx, name, item.Type, item.Price)
	if err == nil {
		return s.mergeItem(ctx, st, existing, item, threshold)
	}
	if !isNotFound(err) {
		return nil, 0, "", stock.Classify(err)
	}

	// Backfill sparse payloads from an existing same-named product before
	// validating, so a barcode scan with partial data still lands.
	if prior, err := st.Products().FindByName(ctx, name); err == nil {
		backfill(&item, *prior)
	} else if !isNotFound(err) {
		return nil, 0, "", stock.Classify(err)
	}

	p, err := buildProduct(name, item)
	if err != nil {
		return nil, 0, "", err
	}
	p.IsShortcoming = units.IsShort(p.Quantity, threshold)

	if err := st.Products().Insert(ctx, p); err != nil {
		return nil, 0, "", stock.Classify(err)
	}

	return reasonAndCost(p, item)
}

func (s *Service) mergeItem(ctx context.Context, st repository.Store, p *models.Product, item models.RestockItem, threshold float64) (*models.Product, float64, string, error) {
	if item.Barcode != "" && item.Barcode != p.Barcode {
		if !contains(p.Barcodes, item.Barcode) {
			p.Barcodes = append(p.Barcodes, item.Barcode)
		}
		p.Barcode = item.Barcode
	}
	stock.Apply(p, p.Quantity+item.Quantity, threshold)
	if err := st.Products().Update(ctx, *p); err != nil {
		return nil, 0, "", stock.Classify(err)
	}
	return reasonAndCost(p, item)
}

func reasonAndCost(p *models.Product, item models.RestockItem) (*models.Product, float64, string, error) {
	if item.IsGift {
		return p, 0, fmt.Sprintf("%g %s %s (بونص)", item.Quantity, p.Unit, p.Name), nil
	}
	purchase := item.PurchasePrice
	if purchase == 0 {
		purchase = p.PurchasePrice
	}
	return p, purchase * item.Quantity, fmt.Sprintf("%g %s %s", item.Quantity, p.Unit, p.Name), nil
}

func backfill(item *models.RestockItem, prior models.Product) {
	if item.Type == "" {
		item.Type = prior.Type
	}
	if item.Price == 0 {
		item.Price = prior.Price
	}
	if item.PurchasePrice == 0 {
		item.PurchasePrice = prior.PurchasePrice
	}
	if item.Company == "" {
		item.Company = prior.Company
	}
	if item.Barcode == "" {
		item.Barcode = prior.Barcode
	}
	if item.ConversionFactor == nil {
		item.ConversionFactor = prior.ConversionFactor
	}
}

func buildProduct(name string, item models.RestockItem) (*models.Product, error) {
	switch {
	case item.Type == "":
		return nil, errs.New(errs.Validation, "product %q is missing a type", name)
	case item.Barcode == "":
		return nil, errs.New(errs.Validation, "product %q is missing a barcode", name)
	case item.Company == "":
		return nil, errs.New(errs.Validation, "product %q is missing a company", name)
	case item.PurchasePrice <= 0 && !item.IsGift:
		return nil, errs.New(errs.Validation, "product %q is missing a purchase price", name)
	case item.Price <= 0:
		return nil, errs.New(errs.Validation, "product %q is missing a sale price", name)
	}

	unitList, ok := units.UnitsFor(item.Type)
	if !ok {
		return nil, errs.New(errs.Validation, "unknown product type %q for %q", item.Type, name)
	}
	multiUnit := units.HasLargeUnit(item.Type)
	if multiUnit && (item.ConversionFactor == nil || *item.ConversionFactor <= 0) {
		return nil, errs.New(errs.Validation,
			"product %q of type %q requires a positive conversion factor", name, item.Type)
	}

	p := &models.Product{
		Name:             name,
		Type:             item.Type,
		Unit:             unitList[0],
		Quantity:         item.Quantity,
		Price:            item.Price,
		PurchasePrice:    item.PurchasePrice,
		ConversionFactor: item.ConversionFactor,
		IsBaseUnit:       !multiUnit,
		Barcode:          item.Barcode,
		Barcodes:         []string{item.Barcode},
		Company:          item.Company,
		Details:          item.Details,
	}

	if item.ExpiryDate != "" {
		d, err := time.Parse(expiryLayout, item.ExpiryDate)
		if err != nil {
			return nil, errs.Wrap(errs.Validation, err, "malformed expiry date %q for %q", item.ExpiryDate, name)
		}
		p.ExpiryDate = &d
	}
	return p, nil
}

// AdjustProduct applies a stocktake count or a field update to one product.
// The signed quantity delta is journaled: loss reasons are always expenses,
// gifts generate a zero-amount audit entry, anything else is classified by
// the delta's sign.
func (s *Service) AdjustProduct(ctx context.Context, pharmacyID string, id primitive.ObjectID, req models.AdjustProductRequest) (*models.AdjustProductResult, error) {
	if req.Mode != models.AdjustInventory && req.Mode != models.AdjustUpdate {
		return nil, errs.New(errs.Validation, "unknown adjustment mode %q", req.Mode)
	}
	if req.Mode == models.AdjustInventory && req.Quantity == nil {
		return nil, errs.New(errs.Validation, "stocktake adjustment requires an authoritative quantity")
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.AdjustProductResult
	var shorted []string

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		threshold, err := stock.Threshold(ctx, st)
		if err != nil {
			return err
		}

		p, err := st.Products().GetByID(ctx, id)
		if err != nil {
			return stock.Classify(err)
		}

		if req.Mode == models.AdjustUpdate {
			if err := applyFields(p, req); err != nil {
				return err
			}
		}

		var profitChange *float64
		if req.Quantity != nil {
			delta := *req.Quantity - p.Quantity
			if stock.Apply(p, *req.Quantity, threshold) {
				shorted = append(shorted, p.Name)
			}
			if delta != 0 {
				change, err := s.journalDelta(ctx, st, *p, delta, req)
				if err != nil {
					return err
				}
				profitChange = change
			}
		} else {
			// Field-only update still refreshes the flag against the current
			// threshold.
			stock.Apply(p, p.Quantity, threshold)
		}

		if err := st.Products().Update(ctx, *p); err != nil {
			return stock.Classify(err)
		}

		result = models.AdjustProductResult{UpdatedProduct: *p, ProfitChange: profitChange}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}

	s.alertLowStock(pharmacyID, shorted)
	return &result, nil
}

func (s *Service) journalDelta(ctx context.Context, st repository.Store, p models.Product, delta float64, req models.AdjustProductRequest) (*float64, error) {
	adjReason := strings.TrimSpace(req.Reason)

	if req.IsGift && delta > 0 {
		entry := models.Winning{
			Amount:          0,
			Reason:          fmt.Sprintf("إضافة بونص %g %s %s", delta, p.Unit, p.Name),
			TransactionType: models.TransactionIn,
			Date:            time.Now(),
		}
		if err := st.Winnings().Insert(ctx, &entry); err != nil {
			return nil, stock.Classify(err)
		}
		zero := 0.0
		return &zero, nil
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	amount *= p.PurchasePrice
	if amount == 0 {
		return nil, nil
	}

	entryType := models.TransactionIn
	if delta < 0 || lossReasons[adjReason] {
		entryType = models.TransactionOut
	}

	reason := fmt.Sprintf("تعديل جرد %g %s %s", delta, p.Unit, p.Name)
	if adjReason != "" {
		reason = fmt.Sprintf("%s (%s)", reason, adjReason)
	}

	entry := models.Winning{
		Amount:          amount,
		Reason:          reason,
		TransactionType: entryType,
		Date:            time.Now(),
	}
	if err := st.Winnings().Insert(ctx, &entry); err != nil {
		return nil, stock.Classify(err)
	}

	change := amount
	if entryType == models.TransactionOut {
		change = -amount
	}
	return &change, nil
}

func applyFields(p *models.Product, req models.AdjustProductRequest) error {
	if req.Name != "" {
		p.Name = strings.TrimSpace(req.Name)
	}
	if req.Type != "" {
		unitList, ok := units.UnitsFor(req.Type)
		if !ok {
			return errs.New(errs.Validation, "unknown product type %q", req.Type)
		}
		p.Type = req.Type
		p.Unit = unitList[0]
		p.IsBaseUnit = !units.HasLargeUnit(req.Type)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.PurchasePrice != nil {
		p.PurchasePrice = *req.PurchasePrice
	}
	if req.ConversionFactor != nil {
		p.ConversionFactor = req.ConversionFactor
	}
	if req.Barcode != "" && req.Barcode != p.Barcode {
		if !contains(p.Barcodes, req.Barcode) {
			p.Barcodes = append(p.Barcodes, req.Barcode)
		}
		p.Barcode = req.Barcode
	}
	if req.Company != "" {
		p.Company = req.Company
	}
	if req.Details != "" {
		p.Details = req.Details
	}
	if req.ExpiryDate != "" {
		d, err := time.Parse(expiryLayout, req.ExpiryDate)
		if err != nil {
			return errs.Wrap(errs.Validation, err, "malformed expiry date %q", req.ExpiryDate)
		}
		p.ExpiryDate = &d
	}
	if units.HasLargeUnit(p.Type) && (p.ConversionFactor == nil || *p.ConversionFactor <= 0) {
		return errs.New(errs.Validation,
			"product %q of type %q requires a positive conversion factor", p.Name, p.Type)
	}
	return nil
}

// DeleteProduct removes a product and journals its residual stock value as a
// loss.
func (s *Service) DeleteProduct(ctx context.Context, pharmacyID string, id primitive.ObjectID) (*models.DeleteProductResult, error) {
	st := s.pool.Tenant(pharmacyID)
	var result models.DeleteProductResult

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		p, err := st.Products().GetByID(ctx, id)
		if err != nil {
			return stock.Classify(err)
		}

		lost := p.Quantity * p.PurchasePrice
		if err := st.Products().Delete(ctx, id); err != nil {
			return stock.Classify(err)
		}

		if lost > 0 {
			entry := models.Winning{
				Amount:          lost,
				Reason:          fmt.Sprintf("خسارة حذف المنتج %s (%g %s)", p.Name, p.Quantity, p.Unit),
				TransactionType: models.TransactionOut,
				Date:            time.Now(),
			}
			if err := st.Winnings().Insert(ctx, &entry); err != nil {
				return stock.Classify(err)
			}
		}

		result = models.DeleteProductResult{LostValue: lost}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}
	return &result, nil
}

func (s *Service) alertLowStock(pharmacyID string, products []string) {
	if s.notifier == nil || len(products) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.NotifyLowStock(ctx, pharmacyID, products); err != nil {
			s.logger.Warn("low-stock alert delivery failed",
				zap.Strings("products", products), zap.Error(err))
		}
	}()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errs.Is(err, errs.NotFound) || errors.Is(err, repository.ErrNotFound)
}
