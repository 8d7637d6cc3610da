// Package model содержит доменные сущности маркетплейса и чистые функции их переходов.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// IsValid сообщает, известна ли роль.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User представляет зарегистрированного пользователя маркетплейса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Actor описывает инициатора операции: идентификатор и роль из сессии.
type Actor struct {
	UserID int64
	Role   Role
}

// IsAdmin сообщает, является ли инициатор администратором.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess сообщает, может ли инициатор работать с ресурсом владельца ownerID.
func (a Actor) CanAccess(ownerID int64) bool {
	return a.IsAdmin() || a.UserID == ownerID
}

// Product описывает товар каталога. Каталог внешний, здесь меняется только остаток.
type Product struct {
	ID            int64
	SellerID      int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReduceStock списывает qty единиц со склада.
func (p *Product) ReduceStock(qty int) error {
	if qty <= 0 {
		return apperror.Validation("quantity must be positive")
	}
	if qty > p.StockQuantity {
		return apperror.New(apperror.CodeInsufficientStock,
			fmt.Sprintf("not enough stock for product %d: requested %d, available %d", p.ID, qty, p.StockQuantity))
	}
	p.StockQuantity -= qty
	return nil
}

// IncreaseStock возвращает qty единиц на склад. Верхней границы нет.
func (p *Product) IncreaseStock(qty int) {
	if qty <= 0 {
		return
	}
	p.StockQuantity += qty
}
