package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

func TestGetCart_CreatedLazily(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	cart, err := svc.GetCart(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.ID == 0 || cart.UserID != 5 || !cart.IsEmpty() {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	again, err := svc.GetCart(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if again.ID != cart.ID {
		t.Fatalf("expected the same cart, got %d and %d", cart.ID, again.ID)
	}
}

func TestAddToCart_MergesAndTotals(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	a := repo.addProduct(100, "A", "10.00", 10)
	b := repo.addProduct(200, "B", "5.00", 10)

	if _, err := svc.AddToCart(ctx, 1, a, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if _, err := svc.AddToCart(ctx, 1, b, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	cart, err := svc.AddToCart(ctx, 1, a, 1)
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}

	if len(cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(cart.Items))
	}
	if cart.Items[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", cart.Items[0].Quantity)
	}
	mustEqualMoney(t, "cart total", "25.00", cart.TotalAmount)

	stored, err := svc.GetCart(ctx, 1)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	mustEqualMoney(t, "stored total", "25.00", stored.TotalAmount)
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	svc := newTestService(newMemRepo())

	_, err := svc.AddToCart(context.Background(), 1, 999, 1)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddToCart_InsufficientStockKeepsCart(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	a := repo.addProduct(100, "A", "10.00", 2)

	if _, err := svc.AddToCart(ctx, 1, a, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	_, err := svc.AddToCart(ctx, 1, a, 1)
	if !errors.Is(err, apperror.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	cart, err := svc.GetCart(ctx, 1)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.Items[0].Quantity != 2 {
		t.Fatalf("cart must stay unchanged, got quantity %d", cart.Items[0].Quantity)
	}
}

func TestUpdateAndRemoveCartItems(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	a := repo.addProduct(100, "A", "10.00", 10)
	b := repo.addProduct(100, "B", "3.00", 10)

	if _, err := svc.AddToCart(ctx, 1, a, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	cart, err := svc.AddToCart(ctx, 1, b, 1)
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	itemA, itemB := cart.Items[0].ID, cart.Items[1].ID
	if itemA == 0 || itemB == 0 {
		t.Fatalf("expected persisted item ids, got %d and %d", itemA, itemB)
	}

	cart, err = svc.UpdateCartItem(ctx, 1, itemB, 4)
	if err != nil {
		t.Fatalf("UpdateCartItem: %v", err)
	}
	mustEqualMoney(t, "total after update", "22.00", cart.TotalAmount)

	cart, err = svc.UpdateCartItem(ctx, 1, itemA, 0)
	if err != nil {
		t.Fatalf("UpdateCartItem(0): %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("quantity 0 must remove the line, got %d lines", len(cart.Items))
	}

	if _, err := svc.RemoveCartItem(ctx, 1, itemA); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for removed line, got %v", err)
	}

	cart, err = svc.ClearCart(ctx, 1)
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if !cart.IsEmpty() || !cart.TotalAmount.IsZero() {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestListCarts(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	a := repo.addProduct(100, "A", "10.00", 10)

	if _, err := svc.AddToCart(ctx, 1, a, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if _, err := svc.GetCart(ctx, 2); err != nil {
		t.Fatalf("GetCart: %v", err)
	}

	carts, err := svc.ListCarts(ctx)
	if err != nil {
		t.Fatalf("ListCarts: %v", err)
	}
	if len(carts) != 2 {
		t.Fatalf("expected 2 carts, got %d", len(carts))
	}
	mustEqualMoney(t, "first cart total", "10.00", carts[0].TotalAmount)
}
