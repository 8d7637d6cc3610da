package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

const productColumns = `id, seller_id, name, description, price, stock_quantity, created_at, updated_at`

// CreateProduct добавляет товар в каталог.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (seller_id, name, description, price, stock_quantity)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		p.SellerID, p.Name, p.Description, p.Price, p.StockQuantity,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return apperror.NotFound(fmt.Sprintf("seller %d not found", p.SellerID))
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, r.pool, id, false)
}

func (t *pgTx) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, t.tx, id, false)
}

func (t *pgTx) GetProductForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	return getProduct(ctx, t.tx, id, true)
}

// UpdateProductStock сохраняет остаток товара.
func (t *pgTx) UpdateProductStock(ctx context.Context, p *model.Product) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = $2, updated_at = now() WHERE id = $1`,
		p.ID, p.StockQuantity,
	)
	if err != nil {
		if isPgError(err, pgerrcode.CheckViolation) {
			return apperror.New(apperror.CodeInsufficientStock, fmt.Sprintf("stock of product %d would become negative", p.ID))
		}
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound(fmt.Sprintf("product %d not found", p.ID))
	}
	return nil
}

func getProduct(ctx context.Context, q querier, id int64, forUpdate bool) (*model.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var p model.Product
	err := q.QueryRow(ctx, sql, id).Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(fmt.Sprintf("product %d not found", id))
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}
