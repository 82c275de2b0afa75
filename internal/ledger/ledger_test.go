package ledger

import (
	"context"
	"errors"
	"testing"
)

func newTestStore() *MemStore {
	s := NewMemStore()
	s.AddCategory(CodeUncategorized, 1)
	s.AddCategory(CodeCardPayment, 2)
	s.AddCategory(CodeInvestment, 3)
	s.AddCategory(CodeTransfer, 4)
	return s
}

func TestApplyRecordsBalancedEntry(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 100000, false)
	svc := NewService(s)

	entry, err := svc.Apply(context.Background(), 1, -35000, "coffee")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if entry.PreviousBalance != 100000 || entry.NewBalance != 65000 {
		t.Fatalf("entry %+v, want 100000 -> 65000", entry)
	}
	if err := entry.Validate(); err != nil {
		t.Fatalf("entry does not balance: %v", err)
	}
	if acc, _ := s.Account(1); acc.Balance != 65000 {
		t.Fatalf("balance = %d, want 65000", acc.Balance)
	}
	if h := s.History(1); len(h) != 1 || h[0].Reason != "coffee" {
		t.Fatalf("history = %+v, want one coffee entry", h)
	}
}

func TestApplyUnknownAccount(t *testing.T) {
	svc := NewService(newTestStore())
	if _, err := svc.Apply(context.Background(), 42, 100, "x"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestBalanceReproducibleFromHistory(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 50000, false)
	svc := NewService(s)
	ctx := context.Background()

	changes := []int64{-12000, 300000, -4500, -80000}
	for _, c := range changes {
		if _, err := svc.Apply(ctx, 1, c, "posting"); err != nil {
			t.Fatalf("Apply(%d): %v", c, err)
		}
	}

	sum := s.InitialBalance(1)
	for _, e := range s.History(1) {
		sum += e.ChangeAmount
	}
	acc, _ := s.Account(1)
	if acc.Balance != sum {
		t.Fatalf("balance %d != initial + history sum %d", acc.Balance, sum)
	}
}

func TestTransferBothLegsOrNeither(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 100000, false)
	svc := NewService(s)
	ctx := context.Background()

	// destination does not exist: the debit leg must not survive
	if err := svc.Transfer(ctx, 1, 99, 30000, "move"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if acc, _ := s.Account(1); acc.Balance != 100000 {
		t.Fatalf("debit leaked: balance = %d, want 100000", acc.Balance)
	}
	if h := s.History(1); len(h) != 0 {
		t.Fatalf("history leaked: %+v", h)
	}

	s.AddAccount(2, "savings", 0, false)
	if err := svc.Transfer(ctx, 1, 2, 30000, "move"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	a1, _ := s.Account(1)
	a2, _ := s.Account(2)
	if a1.Balance != 70000 || a2.Balance != 30000 {
		t.Fatalf("balances %d/%d, want 70000/30000", a1.Balance, a2.Balance)
	}
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newTestStore())
	for _, amount := range []int64{0, -500} {
		if err := svc.Transfer(context.Background(), 1, 2, amount, "x"); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestReclassifyExpenseToCardPayment(t *testing.T) {
	// card bill paid from checking: checking already carries the debit, so
	// reclassifying only credits the card account
	s := newTestStore()
	s.AddAccount(1, "checking", 1000, false)
	s.AddAccount(2, "card", 500, false)
	s.AddTransaction(TransactionInfo{ID: 7, AccountID: 1, Type: TypeExpense, Amount: 300, CategoryID: 1})
	svc := NewService(s)

	info, err := svc.ReclassifyExpense(context.Background(), 7, 2)
	if err != nil {
		t.Fatalf("ReclassifyExpense: %v", err)
	}
	if info.Type != TypeTransfer || info.CategoryID != 2 || info.LinkedAccountID != 2 {
		t.Fatalf("got %+v, want TRANSFER / card payment / linked 2", info)
	}

	a1, _ := s.Account(1)
	a2, _ := s.Account(2)
	if a1.Balance != 1000 {
		t.Fatalf("source re-debited: balance = %d, want unchanged 1000", a1.Balance)
	}
	if a2.Balance != 800 {
		t.Fatalf("linked balance = %d, want 800", a2.Balance)
	}
	if h := s.History(1); len(h) != 0 {
		t.Fatalf("source gained history: %+v", h)
	}
	if h := s.History(2); len(h) != 1 || h[0].ChangeAmount != 300 {
		t.Fatalf("linked history = %+v, want one +300 entry", h)
	}
}

func TestReclassifyExpenseToInvestment(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 1000, false)
	s.AddAccount(3, "brokerage", 0, true)
	s.AddTransaction(TransactionInfo{ID: 8, AccountID: 1, Type: TypeExpense, Amount: 400, CategoryID: 1})
	svc := NewService(s)

	info, err := svc.ReclassifyExpense(context.Background(), 8, 3)
	if err != nil {
		t.Fatalf("ReclassifyExpense: %v", err)
	}
	if info.Type != TypeInvest || info.CategoryID != 3 {
		t.Fatalf("got %+v, want INVEST with investment category", info)
	}
	if acc, _ := s.Account(3); acc.Balance != 400 {
		t.Fatalf("brokerage balance = %d, want 400", acc.Balance)
	}
}

func TestReclassifyRejectsNonExpense(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 1000, false)
	s.AddAccount(2, "savings", 0, false)
	s.AddTransaction(TransactionInfo{ID: 9, AccountID: 1, Type: TypeIncome, Amount: 200, CategoryID: 1})
	svc := NewService(s)

	if _, err := svc.ReclassifyExpense(context.Background(), 9, 2); !errors.Is(err, ErrNotExpense) {
		t.Fatalf("err = %v, want ErrNotExpense", err)
	}
	if acc, _ := s.Account(2); acc.Balance != 0 {
		t.Fatalf("rejected reclassify still moved money: %d", acc.Balance)
	}
}

func TestSetManualCategory(t *testing.T) {
	s := newTestStore()
	s.AddTransaction(TransactionInfo{ID: 5, AccountID: 1, Type: TypeExpense, Amount: 100, CategoryID: 1})
	svc := NewService(s)

	if err := svc.SetManualCategory(context.Background(), 5, 33); err != nil {
		t.Fatalf("SetManualCategory: %v", err)
	}
	tx, _ := s.Transaction(5)
	if tx.CategoryID != 33 || !tx.ManualCategory {
		t.Fatalf("got %+v, want category 33 flagged manual", tx)
	}

	if err := svc.SetManualCategory(context.Background(), 404, 33); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("err = %v, want ErrTransactionNotFound", err)
	}
}

func TestSetInitialBalanceRebases(t *testing.T) {
	s := newTestStore()
	s.AddAccount(1, "checking", 10000, false)
	svc := NewService(s)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, 1, -4000, "spend"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := svc.SetInitialBalance(ctx, 1, 25000); err != nil {
		t.Fatalf("SetInitialBalance: %v", err)
	}

	acc, _ := s.Account(1)
	if acc.Balance != 21000 {
		t.Fatalf("balance = %d, want 21000 after rebase", acc.Balance)
	}
	sum := s.InitialBalance(1)
	for _, e := range s.History(1) {
		sum += e.ChangeAmount
	}
	if acc.Balance != sum {
		t.Fatalf("balance %d != initial + history sum %d after rebase", acc.Balance, sum)
	}
}

func TestEntryValidate(t *testing.T) {
	good := Entry{PreviousBalance: 10, ChangeAmount: 5, NewBalance: 15}
	if err := good.Validate(); err != nil {
		t.Fatalf("balanced entry rejected: %v", err)
	}
	bad := Entry{PreviousBalance: 10, ChangeAmount: 5, NewBalance: 14}
	if err := bad.Validate(); !errors.Is(err, ErrUnbalancedEntry) {
		t.Fatalf("err = %v, want ErrUnbalancedEntry", err)
	}
}
