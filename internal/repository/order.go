package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

const orderColumns = `id, user_id, shipping_address, contact_phone, payment_method, total_amount,
	status, payment_status, settled_at, created_at, updated_at`

// CreateOrder сохраняет заказ вместе со строками и проставляет их идентификаторы.
func (t *pgTx) CreateOrder(ctx context.Context, o *model.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, shipping_address, contact_phone, payment_method, total_amount, status, payment_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		o.UserID, o.ShippingAddress, o.ContactPhone, string(o.PaymentMethod), o.TotalAmount,
		string(o.Status), string(o.PaymentStatus),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Details {
		d := &o.Details[i]
		d.OrderID = o.ID
		err := t.tx.QueryRow(ctx,
			`INSERT INTO order_details (order_id, product_id, seller_id, product_name, product_description, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			d.OrderID, d.ProductID, d.SellerID, d.ProductName, d.ProductDescription, d.UnitPrice, d.Quantity,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert order detail: %w", err)
		}
	}

	return nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

// UpdateOrderStatus сохраняет статус, статус оплаты и отметку расчёта заказа.
// Однажды записанный settled_at не перезаписывается.
func (t *pgTx) UpdateOrderStatus(ctx context.Context, o *model.Order) error {
	var settledAt *time.Time
	if !o.SettledAt.IsZero() {
		settledAt = &o.SettledAt
	}
	err := t.tx.QueryRow(ctx,
		`UPDATE orders
		 SET status = $2, payment_status = $3, settled_at = COALESCE(settled_at, $4), updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		o.ID, string(o.Status), string(o.PaymentStatus), settledAt,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound(fmt.Sprintf("order %d not found", o.ID))
		}
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// DeleteOrder удаляет заказ; строки удаляются каскадно.
func (t *pgTx) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound(fmt.Sprintf("order %d not found", id))
	}
	return nil
}

// GetOrder возвращает заказ со строками.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != 0 {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	sql := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		sql += ` WHERE ` + strings.Join(conds, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []model.Order
		ids    []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	details, err := loadOrderDetails(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Details = details[orders[i].ID]
	}

	return orders, nil
}

func getOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*model.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(fmt.Sprintf("order %d not found", id))
		}
		return nil, err
	}

	details, err := loadOrderDetails(ctx, q, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Details = details[o.ID]

	return o, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                             model.Order
		method, status, paymentStatus string
		settledAt                     *time.Time
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.ShippingAddress, &o.ContactPhone, &method, &o.TotalAmount,
		&status, &paymentStatus, &settledAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	if settledAt != nil {
		o.SettledAt = *settledAt
	}
	return &o, nil
}

func loadOrderDetails(ctx context.Context, q querier, orderIDs []int64) (map[int64][]model.OrderDetail, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, seller_id, product_name, product_description, unit_price, quantity
		 FROM order_details
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order details: %w", err)
	}
	defer rows.Close()

	res := make(map[int64][]model.OrderDetail, len(orderIDs))
	for rows.Next() {
		var d model.OrderDetail
		if err := rows.Scan(
			&d.ID, &d.OrderID, &d.ProductID, &d.SellerID, &d.ProductName, &d.ProductDescription, &d.UnitPrice, &d.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan order detail: %w", err)
		}
		res[d.OrderID] = append(res[d.OrderID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
