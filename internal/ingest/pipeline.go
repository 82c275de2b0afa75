package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"moneybook/internal/engine"
	"moneybook/internal/ledger"
	"moneybook/internal/logger"
)

// Result summarizes one statement upload.
type Result struct {
	BatchID   string
	Inserted  int
	Skipped   int
	Failed    int
	Transfers int
}

// Pipeline turns raw bank statement rows into committed transactions. One
// upload is one database transaction: every insert and every balance posting
// of the batch lands together or not at all.
type Pipeline struct {
	pool *pgxpool.Pool
}

func NewPipeline(pool *pgxpool.Pool) *Pipeline {
	return &Pipeline{pool: pool}
}

// IngestBank processes a statement for one account. Lines already ingested
// (matched by dedup hash) are skipped, so overlapping exports are safe to
// re-upload. Transfer rules run over the new lines before insert: a matched
// line is stored as TRANSFER with its linked account and both balances move,
// instead of waiting for the nightly pass.
func (p *Pipeline) IngestBank(ctx context.Context, accountID int64, rows []BankRow) (Result, error) {
	res := Result{BatchID: uuid.NewString()}
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback(ctx)

	var exponent int32
	err = tx.QueryRow(ctx,
		`SELECT currency_exponent FROM accounts WHERE id = $1`, accountID).Scan(&exponent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, ledger.ErrAccountNotFound
		}
		return res, err
	}

	seen, err := loadHashes(ctx, tx, accountID)
	if err != nil {
		return res, err
	}
	transferRules, err := LoadTransferRules(ctx, tx)
	if err != nil {
		return res, err
	}
	classRules, err := LoadClassificationRules(ctx, tx)
	if err != nil {
		return res, err
	}
	uncategorizedID, err := categoryID(ctx, tx, ledger.CodeUncategorized)
	if err != nil {
		return res, err
	}
	transferCatID, err := categoryID(ctx, tx, ledger.CodeTransfer)
	if err != nil {
		return res, err
	}

	var (
		batch []Normalized
		recs  []engine.Record
	)
	for _, row := range rows {
		n, err := Normalize(row, exponent)
		if err != nil {
			logger.Audit("ingest: dropping row: " + err.Error())
			res.Failed++
			continue
		}
		if seen[n.Hash] {
			res.Skipped++
			continue
		}
		seen[n.Hash] = true

		recs = append(recs, engine.Record{
			ID: int64(len(batch)),
			Columns: map[string]string{
				"content":              n.Description,
				"transaction_amount":   strconv.FormatInt(n.Amount, 10),
				"type":                 n.Type,
				"transaction_provider": n.Provider,
				"transaction_date":     n.OccurredAt.Format("2006-01-02"),
			},
		})
		batch = append(batch, n)
	}

	linked := engine.DetectLinkedAccounts(recs, transferRules)

	// classification runs over the whole batch; the transfer override below
	// wins for any row a transfer rule claimed
	assigned := make(map[int64]engine.Assignment, len(recs))
	for _, a := range engine.Classify(recs, classRules, uncategorizedID) {
		assigned[a.TransactionID] = a
	}

	for i, n := range batch {
		txType := n.Type
		catID := uncategorizedID
		var (
			linkedID *int64
			ruleID   *int64
		)

		if a, ok := assigned[int64(i)]; ok {
			catID = a.CategoryID
			if a.RuleID != 0 {
				rid := a.RuleID
				ruleID = &rid
			}
		}
		if to, ok := linked[int64(i)]; ok {
			txType = ledger.TypeTransfer
			catID = transferCatID
			linkedID = &to
			ruleID = nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions
			 (account_id, occurred_at, description, amount, type,
			  category_id, linked_account_id, is_manual_category,
			  classified_by_rule_id, provider, dedup_hash, batch_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9, $10, $11)`,
			accountID, n.OccurredAt, n.Description, n.Amount, txType,
			catID, linkedID, ruleID, n.Provider, n.Hash, res.BatchID); err != nil {
			return res, fmt.Errorf("insert %q: %w", n.Description, err)
		}

		if err := post(ctx, tx, accountID, linkedID, txType, n.Amount, n.Description); err != nil {
			return res, err
		}

		res.Inserted++
		if linkedID != nil {
			res.Transfers++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, err
	}
	logger.Audit(fmt.Sprintf("ingest: batch %s account %d inserted=%d skipped=%d failed=%d transfers=%d",
		res.BatchID, accountID, res.Inserted, res.Skipped, res.Failed, res.Transfers))
	return res, nil
}

// post moves balances for one inserted line: income credits the account,
// an expense debits it, and a transfer debits the source while crediting the
// linked account.
func post(ctx context.Context, tx pgx.Tx, accountID int64, linkedID *int64, txType string, amount int64, desc string) error {
	switch txType {
	case ledger.TypeIncome:
		_, err := ledger.ApplyChangeTx(ctx, tx, accountID, amount, desc)
		return err
	case ledger.TypeExpense:
		_, err := ledger.ApplyChangeTx(ctx, tx, accountID, -amount, desc)
		return err
	case ledger.TypeTransfer:
		if _, err := ledger.ApplyChangeTx(ctx, tx, accountID, -amount, desc); err != nil {
			return err
		}
		_, err := ledger.ApplyChangeTx(ctx, tx, *linkedID, amount, desc)
		return err
	}
	return fmt.Errorf("unknown transaction type %q", txType)
}

func loadHashes(ctx context.Context, tx pgx.Tx, accountID int64) (map[string]bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT dedup_hash FROM transactions WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		seen[h] = true
	}
	return seen, rows.Err()
}

func categoryID(ctx context.Context, tx pgx.Tx, code string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `SELECT id FROM categories WHERE code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("category code %q missing: %w", code, ledger.ErrCategoryNotFound)
		}
		return 0, err
	}
	return id, nil
}

// Querier is the slice of pgx shared by pools and transactions that rule
// loading needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadTransferRules reads the transfer rule tables into an evaluation-ready
// set. Loaded once per batch, never per row.
func LoadTransferRules(ctx context.Context, q Querier) (*engine.RuleSet, error) {
	rows, err := q.Query(ctx,
		`SELECT id, priority, linked_account_id FROM transfer_rules`)
	if err != nil {
		return nil, err
	}
	var rules []engine.Rule
	for rows.Next() {
		var r engine.Rule
		if err := rows.Scan(&r.ID, &r.Priority, &r.LinkedAccountID); err != nil {
			rows.Close()
			return nil, err
		}
		rules = append(rules, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx,
		`SELECT rule_id, column_to_check, match_type, value FROM transfer_rule_conditions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var conds []engine.Condition
	for rows.Next() {
		var c engine.Condition
		if err := rows.Scan(&c.RuleID, &c.ColumnToCheck, &c.MatchType, &c.Value); err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return engine.NewRuleSet(rules, conds), nil
}

// LoadClassificationRules reads the classification rule tables into an
// evaluation-ready set.
func LoadClassificationRules(ctx context.Context, q Querier) (*engine.RuleSet, error) {
	rows, err := q.Query(ctx,
		`SELECT id, priority, category_id FROM classification_rules`)
	if err != nil {
		return nil, err
	}
	var rules []engine.Rule
	for rows.Next() {
		var r engine.Rule
		if err := rows.Scan(&r.ID, &r.Priority, &r.CategoryID); err != nil {
			rows.Close()
			return nil, err
		}
		rules = append(rules, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx,
		`SELECT rule_id, column_to_check, match_type, value FROM rule_conditions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var conds []engine.Condition
	for rows.Next() {
		var c engine.Condition
		if err := rows.Scan(&c.RuleID, &c.ColumnToCheck, &c.MatchType, &c.Value); err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return engine.NewRuleSet(rules, conds), nil
}
