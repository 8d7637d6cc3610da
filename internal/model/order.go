package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusReturned   OrderStatus = "RETURNED"
	OrderStatusReceived   OrderStatus = "RECEIVED"
)

// IsValid сообщает, известен ли статус.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusReturned, OrderStatusReceived:
		return true
	}
	return false
}

// PaymentStatus описывает финансовое состояние заказа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// PaymentMethod задаёт способ оплаты, выбранный покупателем.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard      PaymentMethod = "DEBIT_CARD"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodEWallet        PaymentMethod = "E_WALLET"
	PaymentMethodVNPay          PaymentMethod = "VNPAY"
)

// IsValid сообщает, известен ли способ оплаты.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodBankTransfer,
		PaymentMethodCashOnDelivery, PaymentMethodEWallet, PaymentMethodVNPay:
		return true
	}
	return false
}

// OrderDetail хранит неизменяемый снимок купленного товара на момент оформления.
type OrderDetail struct {
	ID                 int64
	OrderID            int64
	ProductID          int64
	SellerID           int64
	ProductName        string
	ProductDescription string
	UnitPrice          decimal.Decimal
	Quantity           int
}

// Subtotal возвращает стоимость строки заказа.
func (d OrderDetail) Subtotal() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
}

// Order описывает заказ пользователя.
type Order struct {
	ID              int64
	UserID          int64
	ShippingAddress string
	ContactPhone    string
	PaymentMethod   PaymentMethod
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	Details         []OrderDetail
	// SettledAt нулевой, пока по заказу не проведён расчёт.
	SettledAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckoutRequest содержит данные покупателя для оформления заказа.
type CheckoutRequest struct {
	ShippingAddress string
	ContactPhone    string
	PaymentMethod   PaymentMethod
}

// NewOrder собирает заказ из корзины и снимков товаров. Корзина должна быть непустой.
func NewOrder(cart *Cart, req CheckoutRequest, details []OrderDetail) (*Order, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, apperror.ErrEmptyCart
	}
	if len(details) != len(cart.Items) {
		return nil, fmt.Errorf("order details mismatch: %d details for %d cart items", len(details), len(cart.Items))
	}

	cart.Recalculate()

	return &Order{
		UserID:          cart.UserID,
		ShippingAddress: req.ShippingAddress,
		ContactPhone:    req.ContactPhone,
		PaymentMethod:   req.PaymentMethod,
		TotalAmount:     cart.TotalAmount,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		Details:         details,
	}, nil
}

// SnapshotDetail фиксирует товар и количество как строку заказа.
func SnapshotDetail(p Product, qty int) OrderDetail {
	return OrderDetail{
		ProductID:          p.ID,
		SellerID:           p.SellerID,
		ProductName:        p.Name,
		ProductDescription: p.Description,
		UnitPrice:          p.Price,
		Quantity:           qty,
	}
}

// Cancel отменяет заказ. Допустимо только из PENDING и PROCESSING.
// Возврат товара на склад выполняет вызывающая сторона по строкам заказа.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending && o.Status != OrderStatusProcessing {
		return apperror.New(apperror.CodeInvalidStateTransition,
			fmt.Sprintf("cannot cancel order %d in status %s", o.ID, o.Status))
	}
	o.Status = OrderStatusCancelled
	o.PaymentStatus = PaymentStatusRefunded
	return nil
}

// StatusChange описывает результат административной смены статуса.
type StatusChange struct {
	From   OrderStatus
	To     OrderStatus
	Settle bool
}

// ApplyStatus применяет административную смену статуса. Settle выставляется
// только при первом переходе в DELIVERED за всю жизнь заказа: повторная
// доставка после RETURNED расчёт не повторяет. Переход в CANCELLED этим путём
// не возвращает товар на склад.
func (o *Order) ApplyStatus(status OrderStatus, now time.Time) (StatusChange, error) {
	if !status.IsValid() {
		return StatusChange{}, apperror.Validation(fmt.Sprintf("unknown order status %q", status))
	}

	change := StatusChange{From: o.Status, To: status}
	o.Status = status

	switch status {
	case OrderStatusDelivered:
		o.PaymentStatus = PaymentStatusPaid
		if o.SettledAt.IsZero() {
			change.Settle = true
			o.SettledAt = now
		}
	case OrderStatusCancelled:
		o.PaymentStatus = PaymentStatusRefunded
	}

	return change, nil
}

// OrderFilter задаёт условия выборки заказов. Нулевые поля не фильтруют.
type OrderFilter struct {
	UserID int64
	Status OrderStatus
	From   time.Time
	To     time.Time
}
