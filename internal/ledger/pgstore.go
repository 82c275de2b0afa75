package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore backs the ledger with Postgres. Each unit of work is one pgx
// transaction; row locks on accounts serialize concurrent balance changes.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgUnitOfWork{tx: tx}, nil
}

// ApplyChangeTx posts one balance change inside an existing transaction:
// lock the account row, move the balance, append the history entry. Callers
// that batch many postings (ingestion, the transfer job) share their
// transaction with this instead of opening a unit of work per posting.
func ApplyChangeTx(ctx context.Context, tx pgx.Tx, accountID, change int64, reason string) (Entry, error) {
	var prev int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrAccountNotFound
		}
		return Entry{}, err
	}

	entry := Entry{
		AccountID:       accountID,
		ChangeDate:      time.Now(),
		PreviousBalance: prev,
		ChangeAmount:    change,
		NewBalance:      prev + change,
		Reason:          reason,
	}
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = $1 WHERE id = $2`, entry.NewBalance, accountID); err != nil {
		return Entry{}, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO account_balance_history
		 (account_id, change_date, previous_balance, change_amount, new_balance, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.AccountID, entry.ChangeDate, entry.PreviousBalance,
		entry.ChangeAmount, entry.NewBalance, entry.Reason); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

type pgUnitOfWork struct {
	tx pgx.Tx
}

func (u *pgUnitOfWork) ApplyChange(ctx context.Context, accountID, change int64, reason string) (Entry, error) {
	return ApplyChangeTx(ctx, u.tx, accountID, change, reason)
}

func (u *pgUnitOfWork) TransactionInfo(ctx context.Context, txID int64) (TransactionInfo, error) {
	var (
		info   TransactionInfo
		linked *int64
	)
	err := u.tx.QueryRow(ctx,
		`SELECT id, account_id, type, amount, category_id, linked_account_id, is_manual_category
		 FROM transactions WHERE id = $1`, txID).
		Scan(&info.ID, &info.AccountID, &info.Type, &info.Amount,
			&info.CategoryID, &linked, &info.ManualCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TransactionInfo{}, ErrTransactionNotFound
		}
		return TransactionInfo{}, err
	}
	if linked != nil {
		info.LinkedAccountID = *linked
	}
	return info, nil
}

func (u *pgUnitOfWork) AccountInfo(ctx context.Context, accountID int64) (AccountInfo, error) {
	var info AccountInfo
	err := u.tx.QueryRow(ctx,
		`SELECT id, name, balance, is_asset, is_investment FROM accounts WHERE id = $1`, accountID).
		Scan(&info.ID, &info.Name, &info.Balance, &info.IsAsset, &info.IsInvestment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountInfo{}, ErrAccountNotFound
		}
		return AccountInfo{}, err
	}
	return info, nil
}

func (u *pgUnitOfWork) CategoryIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := u.tx.QueryRow(ctx,
		`SELECT id FROM categories WHERE code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCategoryNotFound
		}
		return 0, err
	}
	return id, nil
}

func (u *pgUnitOfWork) SetTransactionTransfer(ctx context.Context, txID, linkedAccountID, categoryID int64, txType string) error {
	ct, err := u.tx.Exec(ctx,
		`UPDATE transactions
		 SET type = $1, category_id = $2, linked_account_id = $3
		 WHERE id = $4`, txType, categoryID, linkedAccountID, txID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (u *pgUnitOfWork) SetTransactionCategory(ctx context.Context, txID, categoryID int64, manual bool) error {
	ct, err := u.tx.Exec(ctx,
		`UPDATE transactions SET category_id = $1, is_manual_category = $2 WHERE id = $3`,
		categoryID, manual, txID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (u *pgUnitOfWork) SetInitialBalance(ctx context.Context, accountID, balance int64) error {
	var prevInitial int64
	err := u.tx.QueryRow(ctx,
		`SELECT initial_balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&prevInitial)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}
	// rebase: shift the running balance by the same delta as the initial one
	_, err = u.tx.Exec(ctx,
		`UPDATE accounts
		 SET initial_balance = $1, balance = balance + ($1 - $2)
		 WHERE id = $3`, balance, prevInitial, accountID)
	return err
}

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
