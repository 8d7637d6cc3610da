package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/model"
)

const (
	defaultRevenuePageSize = 50
	maxRevenuePageSize     = 500
)

// CreateProduct добавляет товар продавца в каталог.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperror.Validation("product name is required")
	}
	if p.Price.IsNegative() {
		return apperror.Validation("price must not be negative")
	}
	if p.StockQuantity < 0 {
		return apperror.Validation("stock quantity must not be negative")
	}
	return s.repo.CreateProduct(ctx, p)
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListRevenue возвращает страницу журнала доходов площадки.
func (s *Service) ListRevenue(ctx context.Context, limit, offset int) ([]model.WebsiteRevenue, error) {
	if limit <= 0 {
		limit = defaultRevenuePageSize
	}
	if limit > maxRevenuePageSize {
		limit = maxRevenuePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListRevenue(ctx, limit, offset)
}

// TotalRevenue возвращает суммарный доход площадки.
func (s *Service) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.TotalRevenue(ctx)
}
