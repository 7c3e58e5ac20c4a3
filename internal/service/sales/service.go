// Package sales implements the cash-register orchestrators: checkout,
// customer returns, owner withdrawals and charity settlement. Every flow
// runs inside one storage transaction; any failure rolls the whole operation
// back.
package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/service/stock"
	"github.com/karimdiab/saydaly/pkg/clients/alerts"
)

// Service coordinates product and ledger mutations for register operations.
type Service struct {
	pool     repository.Pool
	notifier alerts.Notifier
	logger   *zap.Logger
}

// NewService wires a sales service. The notifier may be nil when low-stock
// alerts are disabled.
func NewService(pool repository.Pool, notifier alerts.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, notifier: notifier, logger: logger}
}

// Checkout sells a batch of items. Items are processed in caller order; the
// whole batch commits with exactly one ledger entry or aborts with none.
func (s *Service) Checkout(ctx context.Context, pharmacyID string, req models.CheckoutRequest) (*models.CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, errs.New(errs.Validation, "checkout requires at least one item")
	}
	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Name == models.AgelItemName {
			continue
		}
		if item.ProductID.IsZero() {
			return nil, errs.New(errs.Validation, "item %q is missing a product id", item.Name)
		}
		if seen[item.ProductID.Hex()] {
			return nil, errs.New(errs.Validation, "duplicate product %s in one request", item.ProductID.Hex())
		}
		seen[item.ProductID.Hex()] = true
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.CheckoutResult
	var shorted []string

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		threshold, err := stock.Threshold(ctx, st)
		if err != nil {
			return err
		}

		now := time.Now()
		var total float64
		var processed int
		var expired []string
		var reasons []string

		for _, item := range req.Items {
			if item.Name == models.AgelItemName {
				total += item.Quantity
				reasons = append(reasons, fmt.Sprintf("دفعة آجل %g", item.Quantity))
				processed++
				continue
			}

			p, err := st.Products().GetByID(ctx, item.ProductID)
			if err != nil {
				return stock.Classify(err)
			}
			if p.Expired(now) {
				expired = append(expired, p.Name)
				continue
			}

			_, amount, flipped, err := stock.Decrement(p, item.Quantity, item.Unit, threshold)
			if err != nil {
				return err
			}
			if err := st.Products().Update(ctx, *p); err != nil {
				return stock.Classify(err)
			}
			if flipped {
				shorted = append(shorted, p.Name)
			}

			unit := item.Unit
			if unit == "" {
				unit = p.Unit
			}
			total += amount
			reasons = append(reasons, fmt.Sprintf("%g %s %s", item.Quantity, unit, p.Name))
			processed++
		}

		if len(expired) > 0 {
			return errs.ExpiredItems(expired)
		}

		if total > 0 {
			entryType := models.TransactionIn
			if req.IsCharitySale {
				entryType = models.TransactionSadaqah
			}
			entry := models.Winning{
				Amount:          total,
				Reason:          "بيع " + strings.Join(reasons, "، "),
				TransactionType: entryType,
				Date:            now,
			}
			if err := st.Winnings().Insert(ctx, &entry); err != nil {
				return stock.Classify(err)
			}
		}

		result = models.CheckoutResult{TotalAmount: total, ItemsProcessed: processed}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}

	s.alertLowStock(pharmacyID, shorted)
	return &result, nil
}

// Return puts sold items back into stock, valued at purchase price. Products
// are located by name; unmatched names are skipped with a warning instead of
// failing the batch.
func (s *Service) Return(ctx context.Context, pharmacyID string, req models.ReturnRequest) (*models.ReturnResult, error) {
	if len(req.Items) == 0 {
		return nil, errs.New(errs.Validation, "return requires at least one item")
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.ReturnResult

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		threshold, err := stock.Threshold(ctx, st)
		if err != nil {
			return err
		}

		now := time.Now()
		var cost float64
		var expired []string
		var reasons []string
		var skipped []string

		for _, item := range req.Items {
			p, err := st.Products().FindByName(ctx, item.Name)
			if err != nil {
				if errsIsNotFound(err) {
					s.logger.Warn("return item not matched by name, skipping",
						zap.String("name", item.Name))
					skipped = append(skipped, item.Name)
					continue
				}
				return stock.Classify(err)
			}
			if p.Expired(now) {
				expired = append(expired, p.Name)
				continue
			}

			_, lineCost, err := stock.Increment(p, item.Quantity, item.Unit, threshold)
			if err != nil {
				return err
			}
			if err := st.Products().Update(ctx, *p); err != nil {
				return stock.Classify(err)
			}

			unit := item.Unit
			if unit == "" {
				unit = p.Unit
			}
			cost += lineCost
			reasons = append(reasons, fmt.Sprintf("%g %s %s", item.Quantity, unit, p.Name))
		}

		if len(expired) > 0 {
			return errs.ExpiredItems(expired)
		}

		if cost > 0 {
			entry := models.Winning{
				Amount:          cost,
				Reason:          "مرتجع " + strings.Join(reasons, "، "),
				TransactionType: models.TransactionOut,
				Date:            now,
			}
			if err := st.Winnings().Insert(ctx, &entry); err != nil {
				return stock.Classify(err)
			}
		}

		result = models.ReturnResult{Success: true, TotalCost: cost, SkippedItems: skipped}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}
	return &result, nil
}

// Withdraw journals an owner cash pull. The HTTP layer gates this behind the
// master role.
func (s *Service) Withdraw(ctx context.Context, pharmacyID string, req models.WithdrawalRequest) (*models.Winning, error) {
	if req.Amount <= 0 {
		return nil, errs.New(errs.Validation, "withdrawal amount must be positive")
	}

	st := s.pool.Tenant(pharmacyID)
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "سحب نقدي"
	}
	entry := models.Winning{
		Amount:          req.Amount,
		Reason:          reason,
		TransactionType: models.TransactionWithdrawal,
		Date:            time.Now(),
	}

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		return st.Winnings().Insert(ctx, &entry)
	})
	if err != nil {
		return nil, stock.Classify(err)
	}
	return &entry, nil
}

// SettleSadaqah converts every pending charity entry into its settled form.
// Like suspended consumption, settlement is delete + insert so the ledger
// stays append-only.
func (s *Service) SettleSadaqah(ctx context.Context, pharmacyID string) (float64, error) {
	st := s.pool.Tenant(pharmacyID)
	var settled float64

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		pending, err := st.Winnings().ListByType(ctx, models.TransactionSadaqah)
		if err != nil {
			return stock.Classify(err)
		}
		for _, w := range pending {
			if err := st.Winnings().Delete(ctx, w.ID); err != nil {
				return stock.Classify(err)
			}
			paid := models.Winning{
				Amount:          w.Amount,
				Reason:          w.Reason,
				TransactionType: models.TransactionSadaqahPaid,
				Date:            w.Date,
			}
			if err := st.Winnings().Insert(ctx, &paid); err != nil {
				return stock.Classify(err)
			}
			settled += w.Amount
		}
		return nil
	})
	if err != nil {
		return 0, stock.Classify(err)
	}
	return settled, nil
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

func errsIsNotFound(err error) bool {
	return errs.Is(err, errs.NotFound) || errors.Is(err, repository.ErrNotFound)
}
