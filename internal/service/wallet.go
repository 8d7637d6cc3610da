package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/gophermarket/internal/apperror"
	"github.com/mmeshcher/gophermarket/internal/events"
	"github.com/mmeshcher/gophermarket/internal/gateway"
	"github.com/mmeshcher/gophermarket/internal/model"
)

// WithdrawalRequest описывает заявку пользователя на вывод средств.
type WithdrawalRequest struct {
	UserID   int64
	Amount   decimal.Decimal
	BankCode string
	ClientIP string
}

// WithdrawalResult содержит созданную заявку и ссылку на шлюз.
type WithdrawalResult struct {
	Transaction *model.WithdrawalTransaction
	PaymentURL  string
}

// GetWallet возвращает кошелёк пользователя, создавая его при первом обращении.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	var wallet *model.Wallet
	err := s.repo.InTx(ctx, func(tx Tx) error {
		w, err := tx.EnsureWallet(ctx, userID)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// ListWallets возвращает все кошельки с логинами владельцев.
func (s *Service) ListWallets(ctx context.Context) ([]model.WalletInfo, error) {
	return s.repo.ListWallets(ctx)
}

// ListWithdrawals возвращает заявки пользователя на вывод, новые первыми.
func (s *Service) ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalTransaction, error) {
	return s.repo.ListWithdrawals(ctx, userID)
}

// CreateWithdrawalRequest создаёт заявку PENDING и возвращает подписанную
// ссылку на шлюз. Баланс при этом не списывается.
func (s *Service) CreateWithdrawalRequest(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	if s.gateway == nil {
		return nil, errors.New("payment gateway is not configured")
	}
	if err := model.ValidateWithdrawalAmount(req.Amount); err != nil {
		return nil, err
	}

	var res WithdrawalResult
	err := s.repo.InTx(ctx, func(tx Tx) error {
		w, err := tx.EnsureWallet(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !w.CanCover(req.Amount) {
			return apperror.New(apperror.CodeInsufficientFunds,
				fmt.Sprintf("balance %s is less than %s", w.Balance.StringFixed(2), req.Amount.StringFixed(2)))
		}

		t, err := model.NewWithdrawal(req.UserID, newTransactionCode(), req.Amount, req.BankCode)
		if err != nil {
			return err
		}
		if err := tx.CreateWithdrawal(ctx, t); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}

		paymentURL, err := s.gateway.BuildPaymentURL(gateway.PaymentRequest{
			TxnRef:   t.TransactionCode,
			Amount:   t.Amount,
			BankCode: t.BankCode,
			IPAddr:   req.ClientIP,
		})
		if err != nil {
			return fmt.Errorf("build payment url: %w", err)
		}

		res = WithdrawalResult{Transaction: t, PaymentURL: paymentURL}
		return nil
	})
	if err != nil {
		return nil, err
	}

	t := res.Transaction
	s.metrics.IncWithdrawal(string(t.Status))
	s.logger.Info("withdrawal requested",
		zap.String("transactionCode", t.TransactionCode),
		zap.Int64("userID", t.UserID),
		zap.String("amount", t.Amount.StringFixed(2)),
	)
	s.publish(ctx, events.EventWithdrawalRequested, events.WithdrawalKey(t.TransactionCode), events.WithdrawalRequestedPayload{
		TransactionCode: t.TransactionCode,
		UserID:          t.UserID,
		Amount:          t.Amount,
		BankCode:        t.BankCode,
	})

	return &res, nil
}

// ProcessWithdrawalCallback сверяет обратный вызов шлюза с заявкой.
// Успешный код списывает сумму с кошелька, любой другой завершает заявку
// ошибкой. Повторный вызов для завершённой заявки ничего не меняет.
func (s *Service) ProcessWithdrawalCallback(ctx context.Context, cb gateway.Callback) (*model.WithdrawalTransaction, error) {
	if s.gateway == nil {
		return nil, errors.New("payment gateway is not configured")
	}
	if cb.TxnRef == "" {
		return nil, apperror.NotFound("transaction reference is missing")
	}

	existing, err := s.repo.GetWithdrawalByCode(ctx, cb.TxnRef)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.Verify(cb); err != nil {
		s.logger.Warn("callback signature rejected", zap.String("transactionCode", cb.TxnRef), zap.Error(err))
		return nil, err
	}

	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, cb.TxnRef)
		if err != nil {
			s.logger.Warn("callback guard unavailable", zap.String("transactionCode", cb.TxnRef), zap.Error(err))
		} else if seen {
			s.logger.Info("duplicate callback ignored", zap.String("transactionCode", cb.TxnRef))
			return existing, nil
		}
	}

	var (
		txn     *model.WithdrawalTransaction
		applied bool
	)
	err = s.repo.InTx(ctx, func(tx Tx) error {
		t, err := tx.GetWithdrawalForUpdate(ctx, cb.TxnRef)
		if err != nil {
			return err
		}
		txn = t
		if t.IsTerminal() {
			return nil
		}

		if cb.Succeeded() {
			if err := s.debitWallet(ctx, tx, t); err != nil {
				return err
			}
		} else if err := t.Fail(cb.ResponseCode); err != nil {
			return err
		}

		if err := tx.UpdateWithdrawal(ctx, t); err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		if s.guard != nil {
			if relErr := s.guard.Release(ctx, cb.TxnRef); relErr != nil {
				s.logger.Warn("release callback guard failed", zap.String("transactionCode", cb.TxnRef), zap.Error(relErr))
			}
		}
		return nil, err
	}

	if !applied {
		s.logger.Info("callback for finished withdrawal ignored",
			zap.String("transactionCode", txn.TransactionCode),
			zap.String("status", string(txn.Status)),
		)
		return txn, nil
	}

	s.metrics.IncWithdrawal(string(txn.Status))
	s.logger.Info("withdrawal finalized",
		zap.String("transactionCode", txn.TransactionCode),
		zap.String("status", string(txn.Status)),
		zap.String("errorCode", txn.ErrorCode),
	)
	s.publish(ctx, events.EventWithdrawalFinalized, events.WithdrawalKey(txn.TransactionCode), events.WithdrawalFinalizedPayload{
		TransactionCode: txn.TransactionCode,
		UserID:          txn.UserID,
		Amount:          txn.Amount,
		Status:          string(txn.Status),
		ErrorCode:       txn.ErrorCode,
	})

	return txn, nil
}

// debitWallet списывает сумму заявки. Если баланса уже не хватает, заявка
// завершается с кодом INSUFFICIENT_FUNDS, а баланс не меняется.
func (s *Service) debitWallet(ctx context.Context, tx Tx, t *model.WithdrawalTransaction) error {
	w, err := tx.EnsureWallet(ctx, t.UserID)
	if err != nil {
		return err
	}

	if err := w.WithdrawFunds(t.Amount); err != nil {
		if errors.Is(err, apperror.ErrInsufficientFunds) {
			return t.Fail(model.ErrorCodeInsufficientFunds)
		}
		return err
	}
	if err := tx.SaveWalletBalance(ctx, w); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return t.Complete()
}
