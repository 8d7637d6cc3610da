// Package events публикует доменные события маркетплейса после фиксации транзакций.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Типы событий.
const (
	EventOrderCreated        = "OrderCreated"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventOrderSettled        = "OrderSettled"
	EventWithdrawalRequested = "WithdrawalRequested"
	EventWithdrawalFinalized = "WithdrawalFinalized"
)

const (
	envelopeVersion = 1
	producerName    = "gophermarket"
)

// Envelope задаёт общую обёртку события.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope упаковывает payload. CorrelationID служит ключом партиции.
func NewEnvelope(eventType, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producerName,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// OrderKey возвращает ключ корреляции для событий заказа.
func OrderKey(orderID int64) string {
	return "order-" + strconv.FormatInt(orderID, 10)
}

// WithdrawalKey возвращает ключ корреляции для событий вывода средств.
func WithdrawalKey(code string) string {
	return "withdrawal-" + code
}

type OrderLine struct {
	ProductID int64           `json:"product_id"`
	SellerID  int64           `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Lines         []OrderLine     `json:"lines"`
}

type OrderStatusChangedPayload struct {
	OrderID       int64  `json:"order_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	PaymentStatus string `json:"payment_status"`
	Restocked     bool   `json:"restocked"`
}

type SettlementLine struct {
	ProductID     int64           `json:"product_id"`
	SellerID      int64           `json:"seller_id"`
	SellerShare   decimal.Decimal `json:"seller_share"`
	PlatformShare decimal.Decimal `json:"platform_share"`
}

type OrderSettledPayload struct {
	OrderID       int64            `json:"order_id"`
	SellerTotal   decimal.Decimal  `json:"seller_total"`
	PlatformTotal decimal.Decimal  `json:"platform_total"`
	Lines         []SettlementLine `json:"lines"`
}

type WithdrawalRequestedPayload struct {
	TransactionCode string          `json:"transaction_code"`
	UserID          int64           `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	BankCode        string          `json:"bank_code"`
}

type WithdrawalFinalizedPayload struct {
	TransactionCode string          `json:"transaction_code"`
	UserID          int64           `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	ErrorCode       string          `json:"error_code,omitempty"`
}

// Publisher отправляет события. Реализации не должны блокировать запрос.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// NopPublisher отбрасывает события. Используется, когда брокер не настроен.
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
