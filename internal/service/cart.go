package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/gophermarket/internal/model"
)

// GetCart возвращает корзину пользователя, создавая её при первом обращении.
func (s *Service) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	var cart *model.Cart
	err := s.repo.InTx(ctx, func(tx Tx) error {
		c, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		c.Recalculate()
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// ListCarts возвращает все корзины.
func (s *Service) ListCarts(ctx context.Context) ([]model.Cart, error) {
	carts, err := s.repo.ListCarts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range carts {
		carts[i].Recalculate()
	}
	return carts, nil
}

// AddToCart добавляет товар в корзину пользователя.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, qty int) (*model.Cart, error) {
	return s.mutateCart(ctx, userID, func(tx Tx, cart *model.Cart) error {
		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		return cart.AddItem(*p, qty)
	})
}

// UpdateCartItem меняет количество в строке корзины. Количество <= 0 удаляет строку.
func (s *Service) UpdateCartItem(ctx context.Context, userID, itemID int64, qty int) (*model.Cart, error) {
	return s.mutateCart(ctx, userID, func(_ Tx, cart *model.Cart) error {
		return cart.SetQuantity(itemID, qty)
	})
}

// RemoveCartItem удаляет строку из корзины.
func (s *Service) RemoveCartItem(ctx context.Context, userID, itemID int64) (*model.Cart, error) {
	return s.mutateCart(ctx, userID, func(_ Tx, cart *model.Cart) error {
		return cart.RemoveItem(itemID)
	})
}

// ClearCart очищает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return s.mutateCart(ctx, userID, func(_ Tx, cart *model.Cart) error {
		cart.Clear()
		return nil
	})
}

func (s *Service) mutateCart(ctx context.Context, userID int64, fn func(tx Tx, cart *model.Cart) error) (*model.Cart, error) {
	var cart *model.Cart
	err := s.repo.InTx(ctx, func(tx Tx) error {
		c, err := tx.GetOrCreateCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		c.Recalculate()
		if err := tx.SaveCart(ctx, c); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}
