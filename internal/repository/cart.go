package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

const cartItemsQuery = `
	SELECT ci.id, ci.cart_id, ci.product_id, p.seller_id, p.name, p.price, p.stock_quantity,
	       ci.quantity, ci.created_at, ci.updated_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id`

// GetOrCreateCart блокирует корзину пользователя, создавая её при необходимости.
// Цена и остаток строк берутся из текущих карточек товаров.
func (t *pgTx) GetOrCreateCart(ctx context.Context, userID int64) (*model.Cart, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return nil, apperror.NotFound(fmt.Sprintf("user %d not found", userID))
		}
		return nil, fmt.Errorf("insert cart: %w", err)
	}

	var c model.Cart
	err = t.tx.QueryRow(ctx,
		`SELECT id, user_id, total_amount, created_at, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&c.ID, &c.UserID, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}

	items, err := loadCartItems(ctx, t.tx, cartItemsQuery+` WHERE ci.cart_id = $1 ORDER BY ci.id`, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items[c.ID]

	return &c, nil
}

// SaveCart синхронизирует строки корзины и сохраняет итог.
func (t *pgTx) SaveCart(ctx context.Context, cart *model.Cart) error {
	keep := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.ID != 0 {
			keep = append(keep, item.ID)
		}
	}

	if _, err := t.tx.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND NOT (id = ANY($2))`,
		cart.ID, keep,
	); err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ID == 0 {
			err := t.tx.QueryRow(ctx,
				`INSERT INTO cart_items (cart_id, product_id, quantity)
				 VALUES ($1, $2, $3)
				 RETURNING id, created_at, updated_at`,
				cart.ID, item.ProductID, item.Quantity,
			).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert cart item: %w", err)
			}
			continue
		}

		if _, err := t.tx.Exec(ctx,
			`UPDATE cart_items SET quantity = $3, updated_at = now() WHERE id = $1 AND cart_id = $2 AND quantity <> $3`,
			item.ID, cart.ID, item.Quantity,
		); err != nil {
			return fmt.Errorf("update cart item %d: %w", item.ID, err)
		}
	}

	err := t.tx.QueryRow(ctx,
		`UPDATE carts SET total_amount = $2, updated_at = now() WHERE id = $1 RETURNING updated_at`,
		cart.ID, cart.TotalAmount,
	).Scan(&cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

// ListCarts возвращает все корзины со строками.
func (r *PostgresRepository) ListCarts(ctx context.Context) ([]model.Cart, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, total_amount, created_at, updated_at FROM carts ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select carts: %w", err)
	}
	defer rows.Close()

	var carts []model.Cart
	for rows.Next() {
		var c model.Cart
		if err := rows.Scan(&c.ID, &c.UserID, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		carts = append(carts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	items, err := loadCartItems(ctx, r.pool, cartItemsQuery+` ORDER BY ci.cart_id, ci.id`)
	if err != nil {
		return nil, err
	}
	for i := range carts {
		carts[i].Items = items[carts[i].ID]
	}

	return carts, nil
}

func loadCartItems(ctx context.Context, q querier, sql string, args ...any) (map[int64][]model.CartItem, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.CartItem)
	for rows.Next() {
		var (
			item   model.CartItem
			cartID int64
		)
		if err := rows.Scan(
			&item.ID, &cartID, &item.ProductID, &item.SellerID, &item.ProductName, &item.UnitPrice,
			&item.StockQuantity, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		res[cartID] = append(res[cartID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
