package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/karimdiab/saydaly/internal/domain/errs"
	"github.com/karimdiab/saydaly/internal/domain/models"
	"github.com/karimdiab/saydaly/internal/repository"
	"github.com/karimdiab/saydaly/internal/repository/memory"
)

const pharmacy = "ph-test"

func factor(v float64) *float64 { return &v }

func floatPtr(v float64) *float64 { return &v }

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

func TestRestockCreatesProduct(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	svc := NewService(pool, nil, nil)

	result, err := svc.Restock(context.Background(), pharmacy, models.RestockRequest{
		Items: []models.RestockItem{{
			Name: "بنادول", Type: "أقراص", Quantity: 10,
			Price: 12, PurchasePrice: 8, ConversionFactor: factor(2),
			Barcode: "622000111", Company: "جلاكسو",
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.CreatedProducts, 1)
	assert.Equal(t, 80.0, result.TotalCost)

	p := result.CreatedProducts[0]
	assert.Equal(t, "شريط", p.Unit)
	assert.False(t, p.IsBaseUnit)
	assert.Equal(t, []string{"622000111"}, p.Barcodes)
	assert.False(t, p.IsShortcoming)

	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 80.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "اشترى")
}

func TestRestockMergesExistingProduct(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 5, Price: 12, PurchasePrice: 8,
		Barcode: "111", Barcodes: []string{"111"}, Company: "جلاكسو",
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Restock(context.Background(), pharmacy, models.RestockRequest{
		Items: []models.RestockItem{{
			Name: "بنادول", Type: "شراب", Quantity: 20, Price: 12,
			PurchasePrice: 8, Barcode: "222",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 160.0, result.TotalCost)

	p := getProduct(t, st, id)
	assert.Equal(t, 25.0, p.Quantity)
	assert.Equal(t, "222", p.Barcode)
	assert.ElementsMatch(t, []string{"111", "222"}, p.Barcodes)
}

func TestRestockBackfillsFromSameName(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 5, Price: 12, PurchasePrice: 8,
		Barcode: "111", Barcodes: []string{"111"}, Company: "جلاكسو",
	})

	svc := NewService(pool, nil, nil)

	// Same name but a new sale price: a distinct record is created, with the
	// sparse payload completed from the existing one.
	result, err := svc.Restock(context.Background(), pharmacy, models.RestockRequest{
		Items: []models.RestockItem{{Name: "بنادول", Quantity: 10, Price: 15}},
	})
	require.NoError(t, err)
	require.Len(t, result.CreatedProducts, 1)

	created := result.CreatedProducts[0]
	assert.Equal(t, "شراب", created.Type)
	assert.Equal(t, 15.0, created.Price)
	assert.Equal(t, 8.0, created.PurchasePrice)
	assert.Equal(t, "جلاكسو", created.Company)
	assert.Equal(t, "111", created.Barcode)
}

func TestRestockValidation(t *testing.T) {
	pool := memory.NewPool()
	svc := NewService(pool, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		item models.RestockItem
	}{
		{"missing type", models.RestockItem{
			Name: "جديد", Quantity: 5, Price: 10, PurchasePrice: 5,
			Barcode: "1", Company: "شركة",
		}},
		{"unknown type", models.RestockItem{
			Name: "جديد", Type: "مجهول", Quantity: 5, Price: 10,
			PurchasePrice: 5, Barcode: "1", Company: "شركة",
		}},
		{"multi-unit type without factor", models.RestockItem{
			Name: "جديد", Type: "أقراص", Quantity: 5, Price: 10,
			PurchasePrice: 5, Barcode: "1", Company: "شركة",
		}},
		{"non-positive quantity", models.RestockItem{
			Name: "جديد", Type: "شراب", Quantity: 0, Price: 10,
			PurchasePrice: 5, Barcode: "1", Company: "شركة",
		}},
		{"bad expiry date", models.RestockItem{
			Name: "جديد", Type: "شراب", Quantity: 5, Price: 10,
			PurchasePrice: 5, Barcode: "1", Company: "شركة",
			ExpiryDate: "31/12/2026",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Restock(ctx, pharmacy, models.RestockRequest{
				Items: []models.RestockItem{tt.item},
			})
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Validation))
		})
	}
}

func TestRestockGiftOnlyDelivery(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 5, Price: 12, PurchasePrice: 8,
		Barcode: "111", Company: "جلاكسو",
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.Restock(context.Background(), pharmacy, models.RestockRequest{
		Items: []models.RestockItem{{
			Name: "بنادول", Type: "شراب", Quantity: 10, Price: 12, IsGift: true,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.TotalCost)
	assert.Equal(t, 15.0, getProduct(t, st, id).Quantity)

	// A gift-only delivery still leaves a zero-amount audit entry.
	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 0.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "بونص")
}

func TestAdjustStocktakeIncrease(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode: models.AdjustInventory, Quantity: floatPtr(14),
	})
	require.NoError(t, err)
	assert.Equal(t, 14.0, result.UpdatedProduct.Quantity)
	require.NotNil(t, result.ProfitChange)
	assert.Equal(t, 32.0, *result.ProfitChange)

	entries := listEntries(t, st, models.TransactionIn)
	require.Len(t, entries, 1)
	assert.Equal(t, 32.0, entries[0].Amount)
}

func TestAdjustStocktakeLoss(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode: models.AdjustInventory, Quantity: floatPtr(6), Reason: "damaged",
	})
	require.NoError(t, err)
	require.NotNil(t, result.ProfitChange)
	assert.Equal(t, -32.0, *result.ProfitChange)

	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 32.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "damaged")
}

func TestAdjustLossReasonForcesExpense(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)

	// A positive delta tagged with a loss reason still journals as expense.
	result, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode: models.AdjustInventory, Quantity: floatPtr(12), Reason: "expired",
	})
	require.NoError(t, err)
	require.NotNil(t, result.ProfitChange)
	assert.Equal(t, -16.0, *result.ProfitChange)

	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 16.0, entries[0].Amount)
}

func TestAdjustGiftIncrease(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode: models.AdjustInventory, Quantity: floatPtr(15), IsGift: true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.ProfitChange)
	assert.Equal(t, 0.0, *result.ProfitChange)

	entries := listEntries(t, st, models.TransactionIn)
	require.Len(t, entries, 1)
	assert.Equal(t, 0.0, entries[0].Amount)
	assert.Contains(t, entries[0].Reason, "بونص")
}

func TestAdjustUpdateFields(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode:             models.AdjustUpdate,
		Type:             "أقراص",
		Price:            floatPtr(20),
		ConversionFactor: factor(3),
	})
	require.NoError(t, err)

	p := result.UpdatedProduct
	assert.Equal(t, "أقراص", p.Type)
	assert.Equal(t, "شريط", p.Unit)
	assert.False(t, p.IsBaseUnit)
	assert.Equal(t, 20.0, p.Price)
	assert.Nil(t, result.ProfitChange)

	// Field-only updates never touch the ledger.
	assert.Empty(t, listEntries(t, st, models.TransactionIn))
	assert.Empty(t, listEntries(t, st, models.TransactionOut))
}

func TestAdjustUpdateToMultiUnitNeedsFactor(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	_, err := svc.AdjustProduct(context.Background(), pharmacy, id, models.AdjustProductRequest{
		Mode: models.AdjustUpdate, Type: "أقراص",
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))

	// The failed update rolled back.
	assert.Equal(t, "شراب", getProduct(t, st, id).Type)
}

func TestAdjustStocktakeRequiresQuantity(t *testing.T) {
	pool := memory.NewPool()
	svc := NewService(pool, nil, nil)

	_, err := svc.AdjustProduct(context.Background(), pharmacy, primitive.NewObjectID(), models.AdjustProductRequest{
		Mode: models.AdjustInventory,
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestDeleteProductJournalsLoss(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "بنادول", Type: "شراب", Unit: "علبة",
		Quantity: 10, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.DeleteProduct(context.Background(), pharmacy, id)
	require.NoError(t, err)
	assert.Equal(t, 80.0, result.LostValue)

	_, err = st.Products().GetByID(context.Background(), id)
	require.Error(t, err)

	entries := listEntries(t, st, models.TransactionOut)
	require.Len(t, entries, 1)
	assert.Equal(t, 80.0, entries[0].Amount)
}

func TestDeleteEmptyProductSkipsLedger(t *testing.T) {
	pool := memory.NewPool()
	st := pool.Tenant(pharmacy)
	id := seedProduct(t, st, models.Product{
		Name: "فارغ", Type: "شراب", Unit: "علبة",
		Quantity: 0, Price: 12, PurchasePrice: 8,
	})

	svc := NewService(pool, nil, nil)
	result, err := svc.DeleteProduct(context.Background(), pharmacy, id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.LostValue)
	assert.Empty(t, listEntries(t, st, models.TransactionOut))
}

func TestDeleteMissingProduct(t *testing.T) {
	pool := memory.NewPool()
	svc := NewService(pool, nil, nil)

	_, err := svc.DeleteProduct(context.Background(), pharmacy, primitive.NewObjectID())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}
