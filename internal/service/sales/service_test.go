package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/repository/memory"
)

const pharmacy = "ph-test"

type capturedAlert struct {
	pharmacyID string
	products   []string
}

type fakeNotifier struct {
	alerts chan capturedAlert
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{alerts: make(chan capturedAlert, 4)}
}

func (f *fakeNotifier) NotifyLowStock(ctx context.Context, pharmacyID string, products []string) error {
	f.alerts <- capturedAlert{pharmacyID: pharmacyID, products: products}
	return nil
}

func factor(v float64) *float64 { return &v }

func seedProduct(t *testing.T, st repository.Store, p models.Product) primitive.ObjectID {
	t.Helper()
	require.NoError(t, st.Products().Insert(context.Background(), &p))
	return p.ID
}

func listEntries(t *testing.T, st repository.Store, typ models.TransactionType) []models.Winning {
	t.Helper()
	entries, err := st.Winnings().ListByType(context.Background(), typ)
	require.NoError(t, err)
	return entries
}

func getProduct(t *testing.T, st repository.Store, id primitive.ObjectID) models.Product {
	t.Helper()
	p, err := st.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return *p
}

func TestCheckoutSimpleSale(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 100, Price: 10, PurchasePrice: 7,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.TotalAmount)
	assert.Equal(t, 1, result.ItemsProcessed)

	assert.Equal(t, 95.0, getProduct(t, st, id).Quantity)

	entries := listEntries(t, st, models.TransactionIn)
	require.Len(t, entries, 1)
	assert.Equal(t, 50.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "بيع")
	assert.Contains(t, entries[0].Reason, "بنادول")
}

func TestCheckoutLargeUnitConversion(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "أموكسيل", Type: "أقراص", Unit: "شريط",
		Quantity: 20, Price: 10, PurchasePrice: 6, ConversionFactor: factor(2),
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 3, Unit: "علبة"}},
	})
	require.NoError(t, err)

	// 3 boxes at factor 2 are 1.5 strips, priced per strip.
	assert.Equal(t, 15.0, result.TotalAmount)
	assert.Equal(t, 18.5, getProduct(t, st, id).Quantity)
}

func TestCheckoutMissingConversionFactorFailsBatch(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	broken := seedProduct(t, st, models.Product{
		Name: "مكسور", Type: "أقراص", Unit: "شريط",
		Quantity: 20, Price: 10,
	})
	fine := seedProduct(t, st, models.Product{
		Name: "سليم", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 5,
	})

	svc := NewService(pool, nil, nil)
	_, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{
			{ProductID: fine, Quantity: 2},
			{ProductID: broken, Quantity: 1, Unit: "علبة"},
		},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))

	// The whole batch rolled back, including the line processed first.
	assert.Equal(t, 10.0, getProduct(t, st, fine).Quantity)
	assert.Equal(t, 20.0, getProduct(t, st, broken).Quantity)
	assert.Empty(t, listEntries(t, st, models.TransactionIn))
}

func TestCheckoutInsufficientStock(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "قليل", Type: "شراب", Unit: "علبة", Quantity: 3, Price: 10,
	})

	svc := NewService(pool, nil, nil)
	_, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 5}},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InsufficientStock))
	assert.Equal(t, 3.0, getProduct(t, st, id).Quantity)
}

func TestCheckoutExpiredItemsAbort(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	past := time.Now().Add(-24 * time.Hour)
	expired := seedProduct(t, st, models.Product{
		Name: "منتهي", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 10, ExpiryDate: &past,
	})
	fine := seedProduct(t, st, models.Product{
		Name: "سليم", Type: "شراب", Unit: "علبة", Quantity: 10, Price: 5,
	})

	svc := NewService(pool, nil, nil)
	_, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{
			{ProductID: fine, Quantity: 2},
			{ProductID: expired, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Expired))
	assert.Contains(t, err.Error(), "منتهي")

	assert.Equal(t, 10.0, getProduct(t, st, fine).Quantity)
	assert.Equal(t, 10.0, getProduct(t, st, expired).Quantity)
	assert.Empty(t, listEntries(t, st, models.TransactionIn))
}

func TestCheckoutDuplicateProduct(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة", Quantity: 10, Price: 10,
	})

	svc := NewService(pool, nil, nil)
	_, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{
			{ProductID: id, Quantity: 1},
			{ProductID: id, Quantity: 2},
		},
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestCheckoutAgelLine(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة", Quantity: 10, Price: 10,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{
			{ProductID: id, Quantity: 2},
			{Name: models.AgelItemName, Quantity: 30},
		},
	})
	require.NoError(t, err)

	// The deferred line carries cash in Quantity and touches no stock.
	assert.Equal(t, 50.0, result.TotalAmount)
	assert.Equal(t, 2, result.ItemsProcessed)
	assert.Equal(t, 8.0, getProduct(t, st, id).Quantity)

	entries := listEntries(t, st, models.TransactionIn)
	require.Len(t, entries, 1)
	assert.Equal(t, 50.0, entries[0].Amount)
}

func TestCheckoutShortageAlert(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة", Quantity: 8, Price: 10,
	})

	notifier := newFakeNotifier()
	svc := NewService(pool, notifier, nil)
	_, err := svc.Checkout(context.Background(), pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 4}},
	})
	require.NoError(t, err)

	p := getProduct(t, st, id)
	assert.Equal(t, 4.0, p.Quantity)
	assert.True(t, p.IsShortcoming)

	select {
	case alert := <-notifier.alerts:
		assert.Equal(t, pharmacy, alert.pharmacyID)
		assert.Equal(t, []string{"بنادول"}, alert.products)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a low-stock alert")
	}
}

func TestCheckoutThresholdReadPerInvocation(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة", Quantity: 100, Price: 10,
	})

	svc := NewService(pool, nil, nil)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 10}},
	})
	require.NoError(t, err)
	assert.False(t, getProduct(t, st, id).IsShortcoming)

	// Raising the threshold takes effect on the next operation.
	require.NoError(t, st.Settings().Set(ctx, repository.SettingLowStockThreshold, "200"))

	_, err = svc.Checkout(ctx, pharmacy, models.CheckoutRequest{
		Items: []models.CheckoutItem{{ProductID: id, Quantity: 10}},
	})
	require.NoError(t, err)
	assert.True(t, getProduct(t, st, id).IsShortcoming)
}

func TestCharitySaleAndSettlement(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة", Quantity: 10, Price: 10,
	})

	svc := NewService(pool, nil, nil)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, pharmacy, models.CheckoutRequest{
		Items:         []models.CheckoutItem{{ProductID: id, Quantity: 3}},
		IsCharitySale: true,
	})
	require.NoError(t, err)

	pending := listEntries(t, st, models.TransactionSadaqah)
	require.Len(t, pending, 1)
	assert.Equal(t, 30.0, pending[0].Amount)
	assert.Empty(t, listEntries(t, st, models.TransactionIn))

	settled, err := svc.SettleSadaqah(ctx, pharmacy)
	require.NoError(t, err)
	assert.Equal(t, 30.0, settled)

	assert.Empty(t, listEntries(t, st, models.TransactionSadaqah))
	paid := listEntries(t, st, models.TransactionSadaqahPaid)
	require.Len(t, paid, 1)
	assert.Equal(t, 30.0, paid[0].Amount)
	assert.Equal(t, pending[0].Reason, paid[0].Reason)
}

func TestReturnRestocksAtPurchasePrice(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 10, PurchasePrice: 7,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Return(context.Background(), pharmacy, models.ReturnRequest{
		Items: []models.ReturnItem{
			{Name: "بنادول", Quantity: 2},
			{Name: "غير موجود", Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 14.0, result.TotalCost)
	assert.Equal(t, []string{"غير موجود"}, result.SkippedItems)

	assert.Equal(t, 12.0, getProduct(t, st, id).Quantity)

	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 14.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "مرتجع")
}

func TestWithdraw(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	svc := NewService(pool, nil, nil)

	_, err := svc.Withdraw(context.Background(), pharmacy, models.WithdrawalRequest{Amount: -5})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))

	entry, err := svc.Withdraw(context.Background(), pharmacy, models.WithdrawalRequest{Amount: 500, Reason: "مصاريف شخصية"})
	require.NoError(t, err)
	assert.Equal(t, 500.0, entry.Amount)
	assert.Equal(t, models.TransactionWithdrawal, entry.TransactionType)

	entries := listEntries(t, st, models.TransactionWithdrawal)
	require.Len(t, entries, 1)
	assert.Equal(t, "مصاريف شخصية", entries[0].Reason)
}
