package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/model"
)

// CreateRevenue добавляет запись в журнал доходов площадки.
func (t *pgTx) CreateRevenue(ctx context.Context, rev *model.WebsiteRevenue) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO website_revenue (order_id, product_id, seller_id, amount, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		rev.OrderID, rev.ProductID, rev.SellerID, rev.Amount, rev.Description,
	).Scan(&rev.ID, &rev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert revenue: %w", err)
	}
	return nil
}

// ListRevenue возвращает страницу журнала доходов в порядке добавления.
func (r *PostgresRepository) ListRevenue(ctx context.Context, limit, offset int) ([]model.WebsiteRevenue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, seller_id, amount, description, created_at
		 FROM website_revenue
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select revenue: %w", err)
	}
	defer rows.Close()

	var res []model.WebsiteRevenue
	for rows.Next() {
		var rev model.WebsiteRevenue
		if err := rows.Scan(&rev.ID, &rev.OrderID, &rev.ProductID, &rev.SellerID, &rev.Amount, &rev.Description, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan revenue: %w", err)
		}
		res = append(res, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// TotalRevenue возвращает сумму всех записей журнала доходов.
func (r *PostgresRepository) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM website_revenue`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}
