// Package debts implements the credit-sale orchestrators: registering an
// obligation for a named debtor and settling payments against it, including
// the greedy consumption of suspended ledger deposits.
package debts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/domain/units"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/service/stock"
	"github.com/karimdiab/saydaly/pkg/clients/alerts"
)

// Service coordinates debtor, order, product and ledger mutations.
type Service struct {
	pool     repository.Pool
	notifier alerts.Notifier
	logger   *zap.Logger
}

// NewService wires a debts service. The notifier may be nil.
func NewService(pool repository.Pool, notifier alerts.Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, notifier: notifier, logger: logger}
}

// Register records a credit sale under a named debtor. Stock decrements are
// soft failures here: recording the obligation outweighs strict inventory
// accuracy, so a failed line decrement is logged and the flow continues.
func (s *Service) Register(ctx context.Context, pharmacyID string, req models.RegisterDebtRequest) (*models.RegisterDebtResult, error) {
	debtorName := strings.TrimSpace(req.DebtorName)
	if debtorName == "" {
		return nil, errs.New(errs.Validation, "debtor name is required")
	}
	if len(req.Items) == 0 {
		return nil, errs.New(errs.Validation, "debt registration requires at least one item")
	}
	if req.PartialPayment < 0 {
		return nil, errs.New(errs.Validation, "partial payment must not be negative")
	}

	orderItems, orderTotal, err := buildOrderItems(req.Items)
	if err != nil {
		return nil, err
	}
	if req.PartialPayment > orderTotal {
		return nil, errs.New(errs.Overpayment,
			"partial payment %g exceeds order total %g", req.PartialPayment, orderTotal)
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.RegisterDebtResult
	var shorted []string

	err = st.RunTransaction(ctx, func(ctx context.Context) error {
		threshold, err := stock.Threshold(ctx, st)
		if err != nil {
			return err
		}

		for _, item := range req.Items {
			if item.Name == models.AgelItemName || item.ProductID.IsZero() {
				continue
			}
			if flipped, err := s.decrementSoft(ctx, st, item, threshold); err != nil {
				s.logger.Warn("debt item stock decrement skipped",
					zap.String("item", item.Name), zap.Error(err))
			} else if flipped {
				shorted = append(shorted, item.Name)
			}
		}

		debtor, err := s.findOrCreateDebtor(ctx, st, debtorName)
		if err != nil {
			return err
		}

		order := models.Order{
			DebtorID:  debtor.ID,
			Total:     orderTotal,
			OrderedAt: time.Now(),
			Items:     orderItems,
		}
		if err := st.Orders().Insert(ctx, &order); err != nil {
			return stock.Classify(err)
		}

		if req.PartialPayment > 0 {
			debtor.PartialPayments += req.PartialPayment
			if err := st.Debtors().SetPartialPayments(ctx, debtor.ID, debtor.PartialPayments); err != nil {
				return stock.Classify(err)
			}
			entry := models.Winning{
				Amount:          req.PartialPayment,
				Reason:          fmt.Sprintf("دفعة من العميل %s عن %s", debtorName, itemNames(orderItems)),
				TransactionType: models.TransactionIn,
				Date:            time.Now(),
			}
			if err := st.Winnings().Insert(ctx, &entry); err != nil {
				return stock.Classify(err)
			}
		} else {
			entry := models.Winning{
				Amount:          orderTotal,
				Reason:          fmt.Sprintf("إيداع أموال غير محددة المنتج للعميل %s", debtorName),
				TransactionType: models.TransactionSuspended,
				Date:            time.Now(),
			}
			if err := st.Winnings().Insert(ctx, &entry); err != nil {
				return stock.Classify(err)
			}
		}

		outstanding, err := s.settleIfPaid(ctx, st, debtor)
		if err != nil {
			return err
		}

		result = models.RegisterDebtResult{
			Items:           orderItems,
			TotalAmount:     orderTotal,
			PaidAmount:      req.PartialPayment,
			RemainingAmount: outstanding,
		}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}

	s.alertLowStock(pharmacyID, shorted)
	return &result, nil
}

// Settle applies a payment to a debtor: suspended deposits referencing the
// debtor are consumed oldest first, and any remainder lands on the debtor's
// partial payments, capped at the outstanding balance.
func (s *Service) Settle(ctx context.Context, pharmacyID string, req models.SettleDebtRequest) (*models.SettleDebtResult, error) {
	debtorName := strings.TrimSpace(req.DebtorName)
	if debtorName == "" {
		return nil, errs.New(errs.Validation, "debtor name is required")
	}
	if req.Amount <= 0 {
		return nil, errs.New(errs.Validation, "payment amount must be positive")
	}

	st := s.pool.Tenant(pharmacyID)
	var result models.SettleDebtResult

	err := st.RunTransaction(ctx, func(ctx context.Context) error {
		debtor, err := st.Debtors().FindByName(ctx, debtorName)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errs.New(errs.NotFound, "debtor %q not found", debtorName)
			}
			return stock.Classify(err)
		}

		remaining := req.Amount
		var applied float64

		consumed, remaining, err := s.consumeSuspended(ctx, st, debtorName, remaining)
		if err != nil {
			return err
		}
		if consumed > 0 {
			// Consumed deposits count toward the debtor's cumulative payments,
			// otherwise a fully repaid suspended-only debt would never settle.
			debtor.PartialPayments += consumed
			if err := st.Debtors().SetPartialPayments(ctx, debtor.ID, debtor.PartialPayments); err != nil {
				return stock.Classify(err)
			}
		}
		applied += consumed

		if remaining > 0 {
			ordersTotal, err := s.ordersTotal(ctx, st, debtor.ID)
			if err != nil {
				return err
			}
			outstanding := ordersTotal - debtor.PartialPayments
			portion := remaining
			if portion > outstanding {
				portion = outstanding
			}
			if portion > 0 {
				debtor.PartialPayments += portion
				if err := st.Debtors().SetPartialPayments(ctx, debtor.ID, debtor.PartialPayments); err != nil {
					return stock.Classify(err)
				}
				entry := models.Winning{
					Amount:          portion,
					Reason:          fmt.Sprintf("سداد دين من العميل %s", debtorName),
					TransactionType: models.TransactionIn,
					Date:            time.Now(),
				}
				if err := st.Winnings().Insert(ctx, &entry); err != nil {
					return stock.Classify(err)
				}
				applied += portion
			}
		}

		if _, err := s.settleIfPaid(ctx, st, debtor); err != nil {
			return err
		}

		result = models.SettleDebtResult{TotalPaid: applied}
		return nil
	})
	if err != nil {
		return nil, stock.Classify(err)
	}
	return &result, nil
}

// consumeSuspended walks the debtor's open suspended entries oldest first.
// A fully covered entry is deleted and replaced by an income entry; a partly
// covered one is deleted and re-inserted with its remaining amount at the
// original date, keeping the ledger append-only and the ordering stable.
func (s *Service) consumeSuspended(ctx context.Context, st repository.Store, debtorName string, payment float64) (consumed, remaining float64, err error) {
	entries, err := st.Winnings().ListSuspendedByReason(ctx, debtorName)
	if err != nil {
		return 0, 0, stock.Classify(err)
	}

	remaining = payment
	for _, entry := range entries {
		if remaining <= 0 {
			break
		}

		if err := st.Winnings().Delete(ctx, entry.ID); err != nil {
			return 0, 0, stock.Classify(err)
		}

		portion := entry.Amount
		if remaining < entry.Amount {
			portion = remaining
			leftover := models.Winning{
				Amount:          entry.Amount - portion,
				Reason:          entry.Reason,
				TransactionType: models.TransactionSuspended,
				Date:            entry.Date,
			}
			if err := st.Winnings().Insert(ctx, &leftover); err != nil {
				return 0, 0, stock.Classify(err)
			}
		}

		income := models.Winning{
			Amount:          portion,
			Reason:          fmt.Sprintf("سداد آجل من العميل %s", debtorName),
			TransactionType: models.TransactionIn,
			Date:            time.Now(),
		}
		if err := st.Winnings().Insert(ctx, &income); err != nil {
			return 0, 0, stock.Classify(err)
		}

		consumed += portion
		remaining -= portion
	}
	return consumed, remaining, nil
}

// settleIfPaid deletes the debtor and all orders once cumulative payments
// cover the total owed, unless unresolved suspended deposits still reference
// the debtor. Orders go first so no state exists where the debtor is gone
// but orders remain. Returns the outstanding balance (zero after deletion).
func (s *Service) settleIfPaid(ctx context.Context, st repository.Store, debtor *models.Debtor) (float64, error) {
	total, err := s.ordersTotal(ctx, st, debtor.ID)
	if err != nil {
		return 0, err
	}
	outstanding := total - debtor.PartialPayments
	if outstanding > 0 {
		return outstanding, nil
	}

	open, err := st.Winnings().ListSuspendedByReason(ctx, debtor.Name)
	if err != nil {
		return 0, stock.Classify(err)
	}
	if len(open) > 0 {
		// Settlement deferred until the suspended deposits resolve.
		return 0, nil
	}

	if err := st.Orders().DeleteByDebtor(ctx, debtor.ID); err != nil {
		return 0, stock.Classify(err)
	}
	if err := st.Debtors().Delete(ctx, debtor.ID); err != nil {
		return 0, stock.Classify(err)
	}
	return 0, nil
}

func (s *Service) ordersTotal(ctx context.Context, st repository.Store, debtorID primitive.ObjectID) (float64, error) {
	orders, err := st.Orders().ListByDebtor(ctx, debtorID)
	if err != nil {
		return 0, stock.Classify(err)
	}
	var total float64
	for _, o := range orders {
		total += o.Total
	}
	return total, nil
}

func (s *Service) findOrCreateDebtor(ctx context.Context, st repository.Store, name string) (*models.Debtor, error) {
	debtor, err := st.Debtors().FindByName(ctx, name)
	if err == nil {
		return debtor, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, stock.Classify(err)
	}
	debtor = &models.Debtor{Name: name}
	if err := st.Debtors().Insert(ctx, debtor); err != nil {
		return nil, stock.Classify(err)
	}
	return debtor, nil
}

func (s *Service) decrementSoft(ctx context.Context, st repository.Store, item models.DebtItem, threshold float64) (bool, error) {
	p, err := st.Products().GetByID(ctx, item.ProductID)
	if err != nil {
		return false, err
	}
	if p.Expired(time.Now()) {
		return false, errs.ExpiredItems([]string{p.Name})
	}
	_, _, flipped, err := stock.Decrement(p, item.Quantity, item.Unit, threshold)
	if err != nil {
		return false, err
	}
	if err := st.Products().Update(ctx, *p); err != nil {
		return false, err
	}
	return flipped, nil
}

func buildOrderItems(items []models.DebtItem) ([]models.OrderItem, float64, error) {
	out := make([]models.OrderItem, 0, len(items))
	var total float64

	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Unit == "" || item.Quantity <= 0 {
			return nil, 0, errs.New(errs.Validation,
				"debt item requires name, unit and a positive quantity")
		}

		price := item.Price
		if price == 0 && item.Product != nil {
			price = item.Product.Price
		}
		lineTotal := price * item.Quantity

		var unitOptions []string
		if item.Product != nil {
			if u, ok := units.UnitsFor(item.Product.Type); ok {
				unitOptions = u
			}
		}

		out = append(out, models.OrderItem{
			Name:        name,
			Price:       price,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Total:       lineTotal,
			UnitOptions: unitOptions,
			Product:     item.Product,
		})
		total += lineTotal
	}
	return out, total, nil
}

func itemNames(items []models.OrderItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, "، ")
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
