package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"moneybook/internal/engine"
	"moneybook/internal/ledger"
	"moneybook/internal/logger"
)

// ProcessUncategorizedTransactions runs one classification pass: every
// non-manual transaction still sitting at the UNCATEGORIZED category is
// evaluated against the full rule set and moved to its first matching rule's
// category. The rule set is loaded once up front, transactions are paged in
// batches, and each batch is written back with a single bulk UPDATE.
func ProcessUncategorizedTransactions(db *pgxpool.Pool, batchSize int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	start := time.Now()
	sqlDB, err := openSQLDB(db)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	defaultCategoryID, err := categoryIDByCode(ctx, sqlDB, ledger.CodeUncategorized)
	if err != nil {
		return err
	}

	var totalCount int
	err = sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE category_id = $1 AND NOT is_manual_category`, defaultCategoryID).Scan(&totalCount)
	if err != nil {
		return fmt.Errorf("failed to count uncategorized transactions: %w", err)
	}
	if totalCount == 0 {
		logger.Audit("classification: no uncategorized transactions")
		return nil
	}
	logger.Audit(fmt.Sprintf("classification: %d uncategorized transactions to process", totalCount))

	rules, err := loadClassificationRules(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to load classification rules: %w", err)
	}
	log.Printf("[AUDIT] classification: loaded %d rules", rules.Len())

	if batchSize <= 0 {
		batchSize = 500
	}

	totalProcessed := 0
	totalClassified := 0
	var lastID int64
	for {
		recs, err := fetchUncategorizedBatch(ctx, sqlDB, defaultCategoryID, lastID, batchSize)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			break
		}
		lastID = recs[len(recs)-1].ID

		assignments := engine.Classify(recs, rules, defaultCategoryID)

		var updates []classificationUpdate
		for _, a := range assignments {
			if a.RuleID == 0 {
				continue
			}
			updates = append(updates, classificationUpdate{
				txnID:      a.TransactionID,
				categoryID: a.CategoryID,
				ruleID:     a.RuleID,
			})
		}
		if err := bulkUpdateCategories(ctx, sqlDB, updates); err != nil {
			return fmt.Errorf("bulk category update: %w", err)
		}

		totalProcessed += len(recs)
		totalClassified += len(updates)
	}

	logger.Audit(fmt.Sprintf("classification: processed %d, classified %d in %s",
		totalProcessed, totalClassified, time.Since(start).Round(time.Millisecond)))
	return nil
}

type classificationUpdate struct {
	txnID      int64
	categoryID int64
	ruleID     int64
}

// fetchUncategorizedBatch pages non-manual transactions at the default
// category into engine records. Keyset pagination on id keeps the walk
// stable while earlier batches move rows out of the predicate.
func fetchUncategorizedBatch(ctx context.Context, db *sql.DB, defaultCategoryID, afterID int64, limit int) ([]engine.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, category_id, is_manual_category,
		        COALESCE(description, ''), amount, type,
		        COALESCE(provider, ''), occurred_at
		 FROM transactions
		 WHERE category_id = $1 AND NOT is_manual_category AND id > $2
		 ORDER BY id ASC
		 LIMIT $3`, defaultCategoryID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncategorized transactions: %w", err)
	}
	defer rows.Close()

	var recs []engine.Record
	for rows.Next() {
		var (
			rec        engine.Record
			desc       string
			amount     int64
			txType     string
			provider   string
			occurredAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.CategoryID, &rec.ManualCategory,
			&desc, &amount, &txType, &provider, &occurredAt); err != nil {
			return nil, err
		}
		rec.Columns = map[string]string{
			"content":              desc,
			"transaction_amount":   strconv.FormatInt(amount, 10),
			"type":                 txType,
			"transaction_provider": provider,
			"transaction_date":     occurredAt.Format("2006-01-02"),
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// loadClassificationRules reads the whole rule and condition tables once.
func loadClassificationRules(ctx context.Context, db *sql.DB) (*engine.RuleSet, error) {
	rows, err := db.QueryContext(ctx,
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

	rows, err = db.QueryContext(ctx,
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

// bulkUpdateCategories writes one batch back with UPDATE FROM unnest().
func bulkUpdateCategories(ctx context.Context, db *sql.DB, updates []classificationUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	txnIDs := make([]int64, len(updates))
	categoryIDs := make([]int64, len(updates))
	ruleIDs := make([]int64, len(updates))
	for i, u := range updates {
		txnIDs[i] = u.txnID
		categoryIDs[i] = u.categoryID
		ruleIDs[i] = u.ruleID
	}

	query := `
		UPDATE transactions AS t
		SET category_id = u.category_id, classified_by_rule_id = u.rule_id
		FROM (
			SELECT unnest($1::bigint[]) AS txn_id,
			       unnest($2::bigint[]) AS category_id,
			       unnest($3::bigint[]) AS rule_id
		) AS u
		WHERE t.id = u.txn_id
	`
	_, err := db.ExecContext(ctx, query, pq.Array(txnIDs), pq.Array(categoryIDs), pq.Array(ruleIDs))
	return err
}

func categoryIDByCode(ctx context.Context, db *sql.DB, code string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE code = $1`, code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("category code %q: %w", code, err)
	}
	return id, nil
}

// openSQLDB derives a database/sql connection from the pgx pool config.
// The bulk update path goes through lib/pq array binding.
func openSQLDB(db *pgxpool.Pool) (*sql.DB, error) {
	cc := db.Config().ConnConfig
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cc.User, cc.Password, cc.Host, cc.Port, cc.Database)
	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql.DB connection: %w", err)
	}
	return sqlDB, nil
}
