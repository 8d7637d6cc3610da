package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

func assertCartTotal(t *testing.T, c *Cart) {
	t.Helper()
	want := decimal.Zero
	for _, item := range c.Items {
		want = want.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	assert.True(t, want.Equal(c.TotalAmount), "total = %s, want %s", c.TotalAmount, want)
}

func TestCartAddItem_MergesSameProduct(t *testing.T) {
	a := Product{ID: 1, SellerID: 10, Name: "A", Price: money("10.00"), StockQuantity: 5}
	c := &Cart{UserID: 1}

	require.NoError(t, c.AddItem(a, 2))
	require.NoError(t, c.AddItem(a, 1))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, int64(10), c.Items[0].SellerID)
	assert.True(t, money("30.00").Equal(c.TotalAmount))
	assertCartTotal(t, c)
}

func TestCartAddItem_StockCheckedAgainstResultingQuantity(t *testing.T) {
	a := Product{ID: 1, Price: money("10.00"), StockQuantity: 3}
	c := &Cart{UserID: 1}

	require.NoError(t, c.AddItem(a, 2))
	err := c.AddItem(a, 2)

	require.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assertCartTotal(t, c)
}

func TestCartAddItem_RejectsNonPositive(t *testing.T) {
	c := &Cart{UserID: 1}
	err := c.AddItem(Product{ID: 1, Price: money("1"), StockQuantity: 1}, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCartMutations_KeepTotalInvariant(t *testing.T) {
	c := &Cart{UserID: 1}
	a := Product{ID: 1, Price: money("10.00"), StockQuantity: 10}
	b := Product{ID: 2, Price: money("5.00"), StockQuantity: 10}
	d := Product{ID: 3, Price: money("0.99"), StockQuantity: 10}

	require.NoError(t, c.AddItem(a, 2))
	assertCartTotal(t, c)
	require.NoError(t, c.AddItem(b, 1))
	assertCartTotal(t, c)
	require.NoError(t, c.AddItem(d, 3))
	assertCartTotal(t, c)

	c.Items[0].ID, c.Items[1].ID, c.Items[2].ID = 100, 101, 102

	require.NoError(t, c.SetQuantity(101, 4))
	assertCartTotal(t, c)
	require.NoError(t, c.RemoveItem(100))
	assertCartTotal(t, c)
	require.NoError(t, c.SetQuantity(102, 0))
	assertCartTotal(t, c)

	require.Len(t, c.Items, 1)
	assert.True(t, money("20.00").Equal(c.TotalAmount))

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, c.TotalAmount.IsZero())
}

func TestCartSetQuantity_UnknownItem(t *testing.T) {
	c := &Cart{UserID: 1}
	assert.ErrorIs(t, c.SetQuantity(5, 1), apperror.ErrNotFound)
	assert.ErrorIs(t, c.RemoveItem(5), apperror.ErrNotFound)
}

func TestCartSetQuantity_ExceedsStock(t *testing.T) {
	c := &Cart{UserID: 1}
	require.NoError(t, c.AddItem(Product{ID: 1, Price: money("2.50"), StockQuantity: 2}, 1))
	c.Items[0].ID = 9

	err := c.SetQuantity(9, 3)
	require.ErrorIs(t, err, apperror.ErrInsufficientStock)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assertCartTotal(t, c)
}

func TestCartRecalculate_IgnoresStoredTotal(t *testing.T) {
	c := &Cart{
		UserID:      1,
		TotalAmount: money("999"),
		Items: []CartItem{
			{ID: 1, ProductID: 1, UnitPrice: money("10.00"), Quantity: 2},
			{ID: 2, ProductID: 2, UnitPrice: money("5.00"), Quantity: 1},
		},
	}
	c.Recalculate()
	assert.True(t, money("25.00").Equal(c.TotalAmount))
}
