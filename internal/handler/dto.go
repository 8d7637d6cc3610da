package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/model"
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

type productResponse struct {
	ID            int64  `json:"id"`
	SellerID      int64  `json:"seller_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	CreatedAt     string `json:"created_at"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		SellerID:      p.SellerID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		CreatedAt:     timestamp(p.CreatedAt),
	}
}

type cartItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type cartResponse struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"user_id"`
	Items       []cartItemResponse `json:"items"`
	TotalAmount string             `json:"total_amount"`
}

func toCartResponse(c *model.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   money(it.UnitPrice),
			Quantity:    it.Quantity,
			Subtotal:    money(it.Subtotal()),
		})
	}
	return cartResponse{
		ID:          c.ID,
		UserID:      c.UserID,
		Items:       items,
		TotalAmount: money(c.TotalAmount),
	}
}

type orderDetailResponse struct {
	ProductID          int64  `json:"product_id"`
	SellerID           int64  `json:"seller_id"`
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
	UnitPrice          string `json:"unit_price"`
	Quantity           int    `json:"quantity"`
	Subtotal           string `json:"subtotal"`
}

type orderResponse struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"user_id"`
	ShippingAddress string                `json:"shipping_address"`
	ContactPhone    string                `json:"contact_phone"`
	PaymentMethod   string                `json:"payment_method"`
	TotalAmount     string                `json:"total_amount"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Details         []orderDetailResponse `json:"details"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	details := make([]orderDetailResponse, 0, len(o.Details))
	for _, d := range o.Details {
		details = append(details, orderDetailResponse{
			ProductID:          d.ProductID,
			SellerID:           d.SellerID,
			ProductName:        d.ProductName,
			ProductDescription: d.ProductDescription,
			UnitPrice:          money(d.UnitPrice),
			Quantity:           d.Quantity,
			Subtotal:           money(d.Subtotal()),
		})
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		ShippingAddress: o.ShippingAddress,
		ContactPhone:    o.ContactPhone,
		PaymentMethod:   string(o.PaymentMethod),
		TotalAmount:     money(o.TotalAmount),
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Details:         details,
		CreatedAt:       timestamp(o.CreatedAt),
		UpdatedAt:       timestamp(o.UpdatedAt),
	}
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp
}

type walletResponse struct {
	UserID    int64  `json:"user_id"`
	Login     string `json:"login,omitempty"`
	Balance   string `json:"balance"`
	UpdatedAt string `json:"updated_at"`
}

type withdrawalResponse struct {
	TransactionCode string `json:"transaction_code"`
	Amount          string `json:"amount"`
	BankCode        string `json:"bank_code,omitempty"`
	Status          string `json:"status"`
	ErrorCode       string `json:"error_code,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func toWithdrawalResponse(t *model.WithdrawalTransaction) withdrawalResponse {
	return withdrawalResponse{
		TransactionCode: t.TransactionCode,
		Amount:          money(t.Amount),
		BankCode:        t.BankCode,
		Status:          string(t.Status),
		ErrorCode:       t.ErrorCode,
		CreatedAt:       timestamp(t.CreatedAt),
		UpdatedAt:       timestamp(t.UpdatedAt),
	}
}

type revenueResponse struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	SellerID    int64  `json:"seller_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}
