// Package repository defines the persistence contracts the transactional
// orchestrators depend on. Implementations live in the mongodb and memory
// subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karimdiab/saydaly/internal/domain/models"
)

var (
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a storage-level transaction conflict; callers may
	// retry the whole operation verbatim.
	ErrConflict = errors.New("transaction conflict")
)

// SettingLowStockThreshold is the settings key holding the per-pharmacy
// low-stock threshold.
const SettingLowStockThreshold = "lowStockThreshold"

// DefaultLowStockThreshold applies when the setting is absent.
const DefaultLowStockThreshold = 5.0

// Pool routes a pharmacy identifier to its scoped store. No operation may
// cross tenants.
type Pool interface {
	Tenant(pharmacyID string) Store
}

// Store is one pharmacy's persistence handle. Every business operation runs
// its store calls inside RunTransaction; mutations outside a transaction are
// not permitted on quantity- or money-bearing collections.
type Store interface {
	Products() ProductStore
	Winnings() WinningStore
	Debtors() DebtorStore
	Orders() OrderStore
	Settings() SettingStore
	Reports() ReportStore

	// RunTransaction executes fn inside one atomic multi-document
	// transaction. Any error from fn aborts with zero observable side
	// effects. Storage conflicts surface as ErrConflict.
	RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductStore persists the product catalog.
type ProductStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByNameTypePrice(ctx context.Context, name, productType string, price float64) (*models.Product, error)
	FindByName(ctx context.Context, name string) (*models.Product, error)
	Insert(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListShortcomings(ctx context.Context) ([]models.Product, error)
	ListExpiring(ctx context.Context, before time.Time) ([]models.Product, error)
	ListByCompany(ctx context.Context, company string) ([]models.Product, error)
}

// WinningStore persists the financial ledger.
type WinningStore interface {
	Insert(ctx context.Context, w *models.Winning) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByRange(ctx context.Context, from, to time.Time, types []models.TransactionType) ([]models.Winning, error)
	// ListSuspendedByReason returns open suspended entries whose free-text
	// reason contains the given name, case-insensitively, oldest first.
	ListSuspendedByReason(ctx context.Context, name string) ([]models.Winning, error)
	ListByType(ctx context.Context, t models.TransactionType) ([]models.Winning, error)
}

// DebtorStore persists named debtors.
type DebtorStore interface {
	FindByName(ctx context.Context, name string) (*models.Debtor, error)
	Insert(ctx context.Context, d *models.Debtor) error
	SetPartialPayments(ctx context.Context, id primitive.ObjectID, amount float64) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// OrderStore persists debtor orders, exclusively owned by their debtor.
type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	ListByDebtor(ctx context.Context, debtorID primitive.ObjectID) ([]models.Order, error)
	DeleteByDebtor(ctx context.Context, debtorID primitive.ObjectID) error
}

// SettingStore persists per-pharmacy key/value settings.
type SettingStore interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ReportStore persists scheduler-produced daily rollups.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}
