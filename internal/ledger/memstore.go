package ledger

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory Store with the same commit/rollback semantics as
// PgStore: a unit of work stages its mutations on copies and publishes them
// atomically on Commit. It backs tests and offline experimentation.
type MemStore struct {
	mu sync.Mutex

	accounts     map[int64]memAccount
	transactions map[int64]TransactionInfo
	categories   map[string]int64
	history      map[int64][]Entry
}

type memAccount struct {
	AccountInfo
	InitialBalance int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts:     make(map[int64]memAccount),
		transactions: make(map[int64]TransactionInfo),
		categories:   make(map[string]int64),
		history:      make(map[int64][]Entry),
	}
}

func (s *MemStore) AddAccount(id int64, name string, balance int64, isInvestment bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = memAccount{
		AccountInfo:    AccountInfo{ID: id, Name: name, Balance: balance, IsAsset: true, IsInvestment: isInvestment},
		InitialBalance: balance,
	}
}

func (s *MemStore) AddTransaction(info TransactionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[info.ID] = info
}

func (s *MemStore) AddCategory(code string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[code] = id
}

func (s *MemStore) Account(id int64) (AccountInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a.AccountInfo, ok
}

func (s *MemStore) Transaction(id int64) (TransactionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

// History returns the committed balance history of an account in order.
func (s *MemStore) History(accountID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.history[accountID]))
	copy(out, s.history[accountID])
	return out
}

// InitialBalance returns the committed starting balance of an account.
func (s *MemStore) InitialBalance(accountID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].InitialBalance
}

func (s *MemStore) Begin(ctx context.Context) (UnitOfWork, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &memUnitOfWork{
		store:        s,
		accounts:     make(map[int64]memAccount, len(s.accounts)),
		transactions: make(map[int64]TransactionInfo, len(s.transactions)),
		history:      make(map[int64][]Entry),
	}
	for id, a := range s.accounts {
		u.accounts[id] = a
	}
	for id, t := range s.transactions {
		u.transactions[id] = t
	}
	return u, nil
}

type memUnitOfWork struct {
	store *MemStore
	done  bool

	accounts     map[int64]memAccount
	transactions map[int64]TransactionInfo
	history      map[int64][]Entry
}

func (u *memUnitOfWork) ApplyChange(ctx context.Context, accountID, change int64, reason string) (Entry, error) {
	a, ok := u.accounts[accountID]
	if !ok {
		return Entry{}, ErrAccountNotFound
	}
	entry := Entry{
		AccountID:       accountID,
		ChangeDate:      time.Now(),
		PreviousBalance: a.Balance,
		ChangeAmount:    change,
		NewBalance:      a.Balance + change,
		Reason:          reason,
	}
	a.Balance = entry.NewBalance
	u.accounts[accountID] = a
	u.history[accountID] = append(u.history[accountID], entry)
	return entry, nil
}

func (u *memUnitOfWork) TransactionInfo(ctx context.Context, txID int64) (TransactionInfo, error) {
	t, ok := u.transactions[txID]
	if !ok {
		return TransactionInfo{}, ErrTransactionNotFound
	}
	return t, nil
}

func (u *memUnitOfWork) AccountInfo(ctx context.Context, accountID int64) (AccountInfo, error) {
	a, ok := u.accounts[accountID]
	if !ok {
		return AccountInfo{}, ErrAccountNotFound
	}
	return a.AccountInfo, nil
}

func (u *memUnitOfWork) CategoryIDByCode(ctx context.Context, code string) (int64, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	id, ok := u.store.categories[code]
	if !ok {
		return 0, ErrCategoryNotFound
	}
	return id, nil
}

func (u *memUnitOfWork) SetTransactionTransfer(ctx context.Context, txID, linkedAccountID, categoryID int64, txType string) error {
	t, ok := u.transactions[txID]
	if !ok {
		return ErrTransactionNotFound
	}
	t.Type = txType
	t.CategoryID = categoryID
	t.LinkedAccountID = linkedAccountID
	u.transactions[txID] = t
	return nil
}

func (u *memUnitOfWork) SetTransactionCategory(ctx context.Context, txID, categoryID int64, manual bool) error {
	t, ok := u.transactions[txID]
	if !ok {
		return ErrTransactionNotFound
	}
	t.CategoryID = categoryID
	t.ManualCategory = manual
	u.transactions[txID] = t
	return nil
}

func (u *memUnitOfWork) SetInitialBalance(ctx context.Context, accountID, balance int64) error {
	a, ok := u.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance += balance - a.InitialBalance
	a.InitialBalance = balance
	u.accounts[accountID] = a
	return nil
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range u.accounts {
		s.accounts[id] = a
	}
	for id, t := range u.transactions {
		s.transactions[id] = t
	}
	for id, entries := range u.history {
		s.history[id] = append(s.history[id], entries...)
	}
	return nil
}

func (u *memUnitOfWork) Rollback(ctx context.Context) error {
	u.done = true
	return nil
}
