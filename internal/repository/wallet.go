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

const withdrawalColumns = `id, user_id, transaction_code, amount, bank_code, status, error_code, created_at, updated_at`

// EnsureWallet блокирует кошелёк пользователя, создавая его при необходимости.
func (t *pgTx) EnsureWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return nil, apperror.NotFound(fmt.Sprintf("user %d not found", userID))
		}
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	var w model.Wallet
	err = t.tx.QueryRow(ctx,
		`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("select wallet: %w", err)
	}
	return &w, nil
}

// SaveWalletBalance сохраняет баланс кошелька.
func (t *pgTx) SaveWalletBalance(ctx context.Context, w *model.Wallet) error {
	err := t.tx.QueryRow(ctx,
		`UPDATE wallets SET balance = $2, updated_at = now() WHERE user_id = $1 RETURNING updated_at`,
		w.UserID, w.Balance,
	).Scan(&w.UpdatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.CheckViolation) {
			return apperror.New(apperror.CodeInsufficientFunds, fmt.Sprintf("wallet of user %d would become negative", w.UserID))
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound(fmt.Sprintf("wallet of user %d not found", w.UserID))
		}
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}

// ListWallets возвращает все кошельки с логинами владельцев.
func (r *PostgresRepository) ListWallets(ctx context.Context) ([]model.WalletInfo, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT w.id, w.user_id, w.balance, w.created_at, w.updated_at, u.login
		 FROM wallets w
		 JOIN users u ON u.id = w.user_id
		 ORDER BY w.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select wallets: %w", err)
	}
	defer rows.Close()

	var res []model.WalletInfo
	for rows.Next() {
		var wi model.WalletInfo
		if err := rows.Scan(&wi.ID, &wi.UserID, &wi.Balance, &wi.CreatedAt, &wi.UpdatedAt, &wi.Login); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		res = append(res, wi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateWithdrawal сохраняет новую заявку на вывод.
func (t *pgTx) CreateWithdrawal(ctx context.Context, w *model.WithdrawalTransaction) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO withdrawal_transactions (user_id, transaction_code, amount, bank_code, status, error_code)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		w.UserID, w.TransactionCode, w.Amount, w.BankCode, string(w.Status), w.ErrorCode,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.UniqueViolation) {
			return apperror.New(apperror.CodeConflict, fmt.Sprintf("transaction %s already exists", w.TransactionCode))
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

func (t *pgTx) GetWithdrawalForUpdate(ctx context.Context, code string) (*model.WithdrawalTransaction, error) {
	return getWithdrawal(ctx, t.tx, code, true)
}

// UpdateWithdrawal сохраняет статус и код ошибки заявки.
func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *model.WithdrawalTransaction) error {
	err := t.tx.QueryRow(ctx,
		`UPDATE withdrawal_transactions SET status = $2, error_code = $3, updated_at = now()
		 WHERE transaction_code = $1
		 RETURNING updated_at`,
		w.TransactionCode, string(w.Status), w.ErrorCode,
	).Scan(&w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound(fmt.Sprintf("transaction %s not found", w.TransactionCode))
		}
		return fmt.Errorf("update withdrawal: %w", err)
	}
	return nil
}

// GetWithdrawalByCode возвращает заявку по коду без блокировки.
func (r *PostgresRepository) GetWithdrawalByCode(ctx context.Context, code string) (*model.WithdrawalTransaction, error) {
	return getWithdrawal(ctx, r.pool, code, false)
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (r *PostgresRepository) ListWithdrawals(ctx context.Context, userID int64) ([]model.WithdrawalTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawal_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.WithdrawalTransaction
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func getWithdrawal(ctx context.Context, q querier, code string, forUpdate bool) (*model.WithdrawalTransaction, error) {
	sql := `SELECT ` + withdrawalColumns + ` FROM withdrawal_transactions WHERE transaction_code = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	w, err := scanWithdrawal(q.QueryRow(ctx, sql, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound(fmt.Sprintf("transaction %s not found", code))
		}
		return nil, err
	}
	return w, nil
}

func scanWithdrawal(row pgx.Row) (*model.WithdrawalTransaction, error) {
	var (
		w      model.WithdrawalTransaction
		status string
	)
	err := row.Scan(&w.ID, &w.UserID, &w.TransactionCode, &w.Amount, &w.BankCode, &status, &w.ErrorCode, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}
