package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/gophermarket/internal/apperror"
)

// Wallet хранит денежный баланс пользователя. Баланс никогда не бывает отрицательным.
type Wallet struct {
	ID        int64
	UserID    int64
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddFunds зачисляет положительную сумму на кошелёк.
func (w *Wallet) AddFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount must be positive")
	}
	w.Balance = w.Balance.Add(amount)
	return nil
}

// WithdrawFunds списывает сумму с кошелька. При нехватке средств баланс не меняется.
func (w *Wallet) WithdrawFunds(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount must be positive")
	}
	if amount.GreaterThan(w.Balance) {
		return apperror.New(apperror.CodeInsufficientFunds,
			fmt.Sprintf("wallet of user %d: requested %s, balance %s", w.UserID, amount.StringFixed(2), w.Balance.StringFixed(2)))
	}
	w.Balance = w.Balance.Sub(amount)
	return nil
}

// CanCover сообщает, хватает ли баланса на сумму.
func (w *Wallet) CanCover(amount decimal.Decimal) bool {
	return !amount.GreaterThan(w.Balance)
}

// WalletInfo дополняет кошелёк данными владельца для административного списка.
type WalletInfo struct {
	Wallet
	Login string
}

// WithdrawalStatus описывает состояние заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusCompleted WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed    WithdrawalStatus = "FAILED"
)

// ErrorCodeInsufficientFunds записывается в заявку, если к моменту
// подтверждения шлюзом баланса уже не хватает.
const ErrorCodeInsufficientFunds = "INSUFFICIENT_FUNDS"

// WithdrawalTransaction описывает попытку вывода средств через платёжный шлюз.
type WithdrawalTransaction struct {
	ID              int64
	UserID          int64
	TransactionCode string
	Amount          decimal.Decimal
	BankCode        string
	Status          WithdrawalStatus
	ErrorCode       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateWithdrawalAmount проверяет сумму вывода: она положительна и
// содержит не более двух знаков после запятой.
func ValidateWithdrawalAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperror.Validation(fmt.Sprintf("amount %s has more than 2 decimal places", amount.String()))
	}
	return nil
}

// NewWithdrawal создаёт заявку в статусе PENDING.
func NewWithdrawal(userID int64, code string, amount decimal.Decimal, bankCode string) (*WithdrawalTransaction, error) {
	if err := ValidateWithdrawalAmount(amount); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperror.Validation("transaction code is required")
	}
	return &WithdrawalTransaction{
		UserID:          userID,
		TransactionCode: code,
		Amount:          amount,
		BankCode:        bankCode,
		Status:          WithdrawalStatusPending,
	}, nil
}

// IsTerminal сообщает, что заявка уже завершена.
func (t *WithdrawalTransaction) IsTerminal() bool {
	return t.Status == WithdrawalStatusCompleted || t.Status == WithdrawalStatusFailed
}

// Complete переводит заявку в COMPLETED.
func (t *WithdrawalTransaction) Complete() error {
	if t.IsTerminal() {
		return apperror.New(apperror.CodeInvalidStateTransition,
			fmt.Sprintf("withdrawal %s already %s", t.TransactionCode, t.Status))
	}
	t.Status = WithdrawalStatusCompleted
	t.ErrorCode = ""
	return nil
}

// Fail переводит заявку в FAILED с кодом ошибки.
func (t *WithdrawalTransaction) Fail(errorCode string) error {
	if t.IsTerminal() {
		return apperror.New(apperror.CodeInvalidStateTransition,
			fmt.Sprintf("withdrawal %s already %s", t.TransactionCode, t.Status))
	}
	t.Status = WithdrawalStatusFailed
	t.ErrorCode = errorCode
	return nil
}

// WebsiteRevenue хранит долю платформы по одной строке заказа. Только добавление.
type WebsiteRevenue struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	SellerID    int64
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}
