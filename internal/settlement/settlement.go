// Package settlement распределяет выручку доставленного заказа между
// кошельками продавцов и журналом доходов площадки.
package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/model"
)

// DefaultSellerRatio задаёт долю продавца по умолчанию.
var DefaultSellerRatio = decimal.RequireFromString("0.75")

// Policy задаёт долю продавца в выручке строки заказа.
type Policy struct {
	SellerRatio decimal.Decimal
}

// DefaultPolicy возвращает политику с долей продавца 75%.
func DefaultPolicy() Policy {
	return Policy{SellerRatio: DefaultSellerRatio}
}

// NewPolicy создаёт политику с проверкой доли: 0 < ratio < 1.
func NewPolicy(ratio decimal.Decimal) (Policy, error) {
	if !ratio.IsPositive() || !ratio.LessThan(decimal.NewFromInt(1)) {
		return Policy{}, fmt.Errorf("seller ratio must be in (0, 1), got %s", ratio)
	}
	return Policy{SellerRatio: ratio}, nil
}

// Split делит сумму строки. Доля продавца округляется до копеек,
// площадка получает остаток, поэтому сумма частей всегда равна lineTotal.
func (p Policy) Split(lineTotal decimal.Decimal) (sellerShare, platformShare decimal.Decimal) {
	sellerShare = lineTotal.Mul(p.SellerRatio).Round(2)
	platformShare = lineTotal.Sub(sellerShare)
	return sellerShare, platformShare
}

// Ledger описывает операции хранилища, нужные для расчёта. Все вызовы выполняются
// внутри транзакции смены статуса заказа.
type Ledger interface {
	EnsureWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	SaveWalletBalance(ctx context.Context, w *model.Wallet) error
	CreateRevenue(ctx context.Context, rev *model.WebsiteRevenue) error
}

// Line содержит результат расчёта по одной строке заказа.
type Line struct {
	ProductID     int64
	SellerID      int64
	LineTotal     decimal.Decimal
	SellerShare   decimal.Decimal
	PlatformShare decimal.Decimal
}

// Result содержит итог расчёта заказа.
type Result struct {
	OrderID       int64
	Lines         []Line
	SellerTotal   decimal.Decimal
	PlatformTotal decimal.Decimal
}

// Engine проводит расчёт заказа по заданной политике.
type Engine struct {
	policy Policy
}

// NewEngine создаёт движок расчётов.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy возвращает политику движка.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Settle зачисляет долю продавца на кошелёк и записывает долю площадки
// по каждой строке заказа. Любая ошибка прерывает расчёт; откат выполняет
// транзакция вызывающей стороны.
func (e *Engine) Settle(ctx context.Context, ledger Ledger, order *model.Order) (*Result, error) {
	res := &Result{
		OrderID:       order.ID,
		Lines:         make([]Line, 0, len(order.Details)),
		SellerTotal:   decimal.Zero,
		PlatformTotal: decimal.Zero,
	}

	for _, d := range order.Details {
		lineTotal := d.Subtotal()
		sellerShare, platformShare := e.policy.Split(lineTotal)

		wallet, err := ledger.EnsureWallet(ctx, d.SellerID)
		if err != nil {
			return nil, fmt.Errorf("seller %d wallet: %w", d.SellerID, err)
		}
		if sellerShare.IsPositive() {
			if err := wallet.AddFunds(sellerShare); err != nil {
				return nil, fmt.Errorf("credit seller %d: %w", d.SellerID, err)
			}
			if err := ledger.SaveWalletBalance(ctx, wallet); err != nil {
				return nil, fmt.Errorf("save seller %d wallet: %w", d.SellerID, err)
			}
		}

		rev := &model.WebsiteRevenue{
			OrderID:     order.ID,
			ProductID:   d.ProductID,
			SellerID:    d.SellerID,
			Amount:      platformShare,
			Description: fmt.Sprintf("Website profit for order %d", order.ID),
		}
		if err := ledger.CreateRevenue(ctx, rev); err != nil {
			return nil, fmt.Errorf("record revenue for product %d: %w", d.ProductID, err)
		}

		res.Lines = append(res.Lines, Line{
			ProductID:     d.ProductID,
			SellerID:      d.SellerID,
			LineTotal:     lineTotal,
			SellerShare:   sellerShare,
			PlatformShare: platformShare,
		})
		res.SellerTotal = res.SellerTotal.Add(sellerShare)
		res.PlatformTotal = res.PlatformTotal.Add(platformShare)
	}

	return res, nil
}
