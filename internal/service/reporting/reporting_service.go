// Package reporting provides the read-only views over the product catalog
// and the ledger: shortage and expiry reports, per-company sales trend and
// the daily profit rollup.
package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/repository/sheets"
	"github.com/karimdiab/saydaly/internal/service/stock"
)

const dateLayout = "2006-01-02"

// TrendPoint is one day of a company's sales activity.
type TrendPoint struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Mentions int     `json:"mentions"`
}

// Service aggregates over the stores. It never mutates products, debtors or
// the ledger.
type Service struct {
	pool     repository.Pool
	exporter sheets.Exporter
	logger   *zap.Logger
}

// NewService wires a reporting service. The exporter may be nil when sheet
// mirroring is disabled.
func NewService(pool repository.Pool, exporter sheets.Exporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pool: pool, exporter: exporter, logger: logger}
}

// ShortageReport lists products whose persisted shortage flag is set.
func (s *Service) ShortageReport(ctx context.Context, pharmacyID string) ([]models.Product, error) {
	st := s.pool.Tenant(pharmacyID)
	products, err := st.Products().ListShortcomings(ctx)
	if err != nil {
		return nil, stock.Classify(err)
	}
	return products, nil
}

// ExpiryReport lists products already expired or expiring within the given
// horizon.
func (s *Service) ExpiryReport(ctx context.Context, pharmacyID string, within time.Duration) ([]models.Product, error) {
	st := s.pool.Tenant(pharmacyID)
	products, err := st.Products().ListExpiring(ctx, time.Now().Add(within))
	if err != nil {
		return nil, stock.Classify(err)
	}
	return products, nil
}

// CompanyTrend buckets income entries mentioning any of the company's
// products into daily totals. Matching is substring-based against the
// free-text ledger reason, which is the behavior the rest of the system
// observes.
func (s *Service) CompanyTrend(ctx context.Context, pharmacyID, company string, from, to time.Time) ([]TrendPoint, error) {
	st := s.pool.Tenant(pharmacyID)

	products, err := st.Products().ListByCompany(ctx, company)
	if err != nil {
		return nil, stock.Classify(err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	entries, err := st.Winnings().ListByRange(ctx, from, to,
		[]models.TransactionType{models.TransactionIn, models.TransactionSadaqahPaid})
	if err != nil {
		return nil, stock.Classify(err)
	}

	byDay := make(map[string]*TrendPoint)
	var days []string
	for _, entry := range entries {
		if entry.Amount == 0 || !mentionsAny(entry.Reason, products) {
			continue
		}
		day := entry.Date.Format(dateLayout)
		point, ok := byDay[day]
		if !ok {
			point = &TrendPoint{Date: day}
			byDay[day] = point
			days = append(days, day)
		}
		point.Amount += entry.Amount
		point.Mentions++
	}

	out := make([]TrendPoint, 0, len(days))
	for _, day := range days {
		out = append(out, *byDay[day])
	}
	return out, nil
}

// DailyRollup computes one day's profit summary from the ledger. Zero-amount
// audit entries are excluded from every bucket.
func (s *Service) DailyRollup(ctx context.Context, pharmacyID string, day time.Time) (models.DailyReport, error) {
	st := s.pool.Tenant(pharmacyID)

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)

	entries, err := st.Winnings().ListByRange(ctx, start, end, nil)
	if err != nil {
		return models.DailyReport{}, stock.Classify(err)
	}

	report := models.DailyReport{Date: start}
	for _, entry := range entries {
		if entry.Amount == 0 {
			continue
		}
		switch entry.TransactionType {
		case models.TransactionIn, models.TransactionSadaqahPaid:
			report.Income += entry.Amount
		case models.TransactionOut:
			report.Expenses += entry.Amount
		case models.TransactionWithdrawal:
			report.Withdrawals += entry.Amount
		}
	}
	report.Profit = report.Income - report.Expenses
	return report, nil
}

// RecordDailyRollup computes, persists and optionally mirrors one day's
// rollup. Export failures are logged but do not fail the rollup.
func (s *Service) RecordDailyRollup(ctx context.Context, pharmacyID string, day time.Time) (models.DailyReport, error) {
	report, err := s.DailyRollup(ctx, pharmacyID, day)
	if err != nil {
		return models.DailyReport{}, err
	}

	st := s.pool.Tenant(pharmacyID)
	if err := st.Reports().SaveDailyReport(ctx, report); err != nil {
		return models.DailyReport{}, fmt.Errorf("persist daily rollup: %w", err)
	}

	if s.exporter != nil {
		if err := s.exporter.AppendDailyReport(ctx, pharmacyID, report); err != nil {
			s.logger.Warn("sheet export of daily rollup failed",
				zap.String("pharmacy_id", pharmacyID), zap.Error(err))
		}
	}

	s.logger.Info("daily rollup recorded",
		zap.String("pharmacy_id", pharmacyID),
		zap.String("date", report.Date.Format(dateLayout)),
		zap.Float64("profit", report.Profit))
	return report, nil
}

func mentionsAny(reason string, products []models.Product) bool {
	lowered := strings.ToLower(reason)
	for _, p := range products {
		if strings.Contains(lowered, strings.ToLower(p.Name)) {
			return true
		}
	}
	return false
}
