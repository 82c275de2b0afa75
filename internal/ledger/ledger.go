package ledger

import (
	"context"
	"errors"
	"time"
)

// Transaction types carried on the transactions table.
const (
	TypeIncome   = "INCOME"
	TypeExpense  = "EXPENSE"
	TypeTransfer = "TRANSFER"
	TypeInvest   = "INVEST"
)

var (
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	ErrCategoryNotFound    = errors.New("ledger: category not found")
	ErrUnbalancedEntry     = errors.New("ledger: entry does not balance")
	ErrNotExpense          = errors.New("ledger: only expenses can be reclassified")
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
)

// Entry is one row of account_balance_history. Every balance mutation, from
// ingestion to manual correction, produces exactly one entry, so an account's
// balance is always reproducible from its history.
type Entry struct {
	AccountID       int64
	ChangeDate      time.Time
	PreviousBalance int64
	ChangeAmount    int64
	NewBalance      int64
	Reason          string
}

// Validate checks the arithmetic identity every entry must satisfy.
func (e Entry) Validate() error {
	if e.PreviousBalance+e.ChangeAmount != e.NewBalance {
		return ErrUnbalancedEntry
	}
	return nil
}

// TransactionInfo is the ledger's view of one stored transaction.
// Amount is a positive magnitude in minor currency units; Type carries the
// direction. LinkedAccountID is zero when the transaction links no account.
type TransactionInfo struct {
	ID              int64
	AccountID       int64
	Type            string
	Amount          int64
	CategoryID      int64
	LinkedAccountID int64
	ManualCategory  bool
}

// AccountInfo is the ledger's view of one account.
type AccountInfo struct {
	ID           int64
	Name         string
	Balance      int64
	IsAsset      bool
	IsInvestment bool
}

// UnitOfWork scopes a group of ledger mutations to one database transaction.
// Either Commit or Rollback must be called; Rollback after Commit is a no-op,
// which permits the deferred-rollback pattern.
type UnitOfWork interface {
	ApplyChange(ctx context.Context, accountID, change int64, reason string) (Entry, error)
	TransactionInfo(ctx context.Context, txID int64) (TransactionInfo, error)
	AccountInfo(ctx context.Context, accountID int64) (AccountInfo, error)
	CategoryIDByCode(ctx context.Context, code string) (int64, error)
	SetTransactionTransfer(ctx context.Context, txID, linkedAccountID, categoryID int64, txType string) error
	SetTransactionCategory(ctx context.Context, txID, categoryID int64, manual bool) error
	SetInitialBalance(ctx context.Context, accountID, balance int64) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens units of work against the backing storage.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Service owns every balance-affecting operation. Multi-leg operations run
// inside a single unit of work so partial updates never become visible.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Apply posts a single balance change and its history entry.
func (s *Service) Apply(ctx context.Context, accountID, change int64, reason string) (Entry, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer uow.Rollback(ctx)

	entry, err := uow.ApplyChange(ctx, accountID, change, reason)
	if err != nil {
		return Entry{}, err
	}
	if err := uow.Commit(ctx); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Transfer moves amount from one account to another: a debit leg and a credit
// leg committed together. Both accounts gain a history entry with the given
// reason, and either both legs land or neither does.
func (s *Service) Transfer(ctx context.Context, fromID, toID, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if _, err := uow.ApplyChange(ctx, fromID, -amount, reason); err != nil {
		return err
	}
	if _, err := uow.ApplyChange(ctx, toID, amount, reason); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// ReclassifyExpense converts a recorded expense into a transfer toward one of
// the user's own accounts. The source account keeps its original debit; only
// the linked account is credited, since the money never left the user's books.
// The transaction becomes INVEST when the linked account is an investment
// account and TRANSFER otherwise, with the matching category attached.
// Non-expense transactions are rejected with ErrNotExpense.
func (s *Service) ReclassifyExpense(ctx context.Context, txID, linkedAccountID int64) (TransactionInfo, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return TransactionInfo{}, err
	}
	defer uow.Rollback(ctx)

	info, err := uow.TransactionInfo(ctx, txID)
	if err != nil {
		return TransactionInfo{}, err
	}
	if info.Type != TypeExpense {
		return TransactionInfo{}, ErrNotExpense
	}
	linked, err := uow.AccountInfo(ctx, linkedAccountID)
	if err != nil {
		return TransactionInfo{}, err
	}

	newType := TypeTransfer
	categoryCode := CodeCardPayment
	if linked.IsInvestment {
		newType = TypeInvest
		categoryCode = CodeInvestment
	}
	categoryID, err := uow.CategoryIDByCode(ctx, categoryCode)
	if err != nil {
		return TransactionInfo{}, err
	}

	if err := uow.SetTransactionTransfer(ctx, txID, linkedAccountID, categoryID, newType); err != nil {
		return TransactionInfo{}, err
	}
	if _, err := uow.ApplyChange(ctx, linkedAccountID, info.Amount, "expense reclassified as "+newType); err != nil {
		return TransactionInfo{}, err
	}
	if err := uow.Commit(ctx); err != nil {
		return TransactionInfo{}, err
	}

	info.Type = newType
	info.CategoryID = categoryID
	info.LinkedAccountID = linkedAccountID
	return info, nil
}

// SetManualCategory pins a transaction to a user-chosen category. Flagging it
// manual removes it from every future automatic classification pass.
func (s *Service) SetManualCategory(ctx context.Context, txID, categoryID int64) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if _, err := uow.TransactionInfo(ctx, txID); err != nil {
		return err
	}
	if err := uow.SetTransactionCategory(ctx, txID, categoryID, true); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// SetInitialBalance rebases an account. The current balance moves by the same
// delta so that balance == initial balance + sum(history) keeps holding.
func (s *Service) SetInitialBalance(ctx context.Context, accountID, balance int64) error {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback(ctx)

	if _, err := uow.AccountInfo(ctx, accountID); err != nil {
		return err
	}
	if err := uow.SetInitialBalance(ctx, accountID, balance); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// Category codes the ledger resolves at runtime. Codes are stable across
// installs even though category ids are not.
const (
	CodeUncategorized = "UNCATEGORIZED"
	CodeCardPayment   = "CARD_PAYMENT"
	CodeInvestment    = "INVESTMENT"
	CodeTransfer      = "TRANSFER"
)
