package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karimdiab/saydaly/internal/domain/models"
)

func factor(v float64) *float64 { return &v }

func TestToBaseQuantity(t *testing.T) {
	tablets := models.Product{
		Name:             "بنادول",
		Type:             "أقراص",
		Unit:             "شريط",
		ConversionFactor: factor(2),
	}
	syrup := models.Product{
		Name: "دواء سعال",
		Type: "شراب",
		Unit: "علبة",
	}

	tests := []struct {
		name     string
		product  models.Product
		unit     string
		quantity float64
		want     float64
	}{
		{"base unit passes through", tablets, "شريط", 10, 10},
		{"empty unit means base unit", tablets, "", 10, 10},
		{"large unit divides by factor", tablets, "علبة", 3, 1.5},
		{"single-unit product ignores factor", syrup, "علبة", 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseQuantity(tt.unit, tt.quantity, tt.product)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBaseQuantityMissingFactor(t *testing.T) {
	broken := models.Product{
		Name: "بنادول",
		Type: "أقراص",
		Unit: "شريط",
	}

	_, err := ToBaseQuantity("علبة", 2, broken)
	require.Error(t, err)

	broken.ConversionFactor = factor(0)
	_, err = ToBaseQuantity("علبة", 2, broken)
	require.Error(t, err)

	broken.ConversionFactor = factor(-3)
	_, err = ToBaseQuantity("علبة", 2, broken)
	require.Error(t, err)
}

func TestUnitPrice(t *testing.T) {
	p := models.Product{
		Name:             "بنادول",
		Type:             "أقراص",
		Unit:             "شريط",
		Price:            10,
		ConversionFactor: factor(2),
	}

	base, err := UnitPrice(p, "شريط")
	require.NoError(t, err)
	assert.Equal(t, 10.0, base)

	large, err := UnitPrice(p, "علبة")
	require.NoError(t, err)
	assert.Equal(t, 5.0, large)
}

func TestUnitsFor(t *testing.T) {
	u, ok := UnitsFor("أقراص")
	require.True(t, ok)
	assert.Equal(t, []string{"شريط", "علبة"}, u)
	assert.True(t, HasLargeUnit("أقراص"))

	u, ok = UnitsFor("مرهم")
	require.True(t, ok)
	assert.Equal(t, []string{"أنبوب"}, u)
	assert.False(t, HasLargeUnit("مرهم"))

	_, ok = UnitsFor("مجهول")
	assert.False(t, ok)
}

func TestIsShort(t *testing.T) {
	assert.True(t, IsShort(4, 5))
	assert.False(t, IsShort(5, 5))
	assert.False(t, IsShort(6, 5))

	// Threshold zero never flags anything.
	assert.False(t, IsShort(0, 0))

	// Huge threshold flags the whole catalog.
	assert.True(t, IsShort(1000, 1e9))
}
