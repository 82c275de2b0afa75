package jobs

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"moneybook/internal/engine"
	"moneybook/internal/ingest"
	"moneybook/internal/ledger"
	"moneybook/internal/logger"
)

// ProcessUndetectedTransfers runs one transfer-detection pass: expenses that
// have no linked account yet are evaluated against the transfer rule set, and
// each match is reclassified through the ledger so the linked account is
// credited and the row rewritten as TRANSFER or INVEST.
//
// Reclassifications run one ledger unit of work per match. A failing row is
// logged and skipped; the pass keeps going.
func ProcessUndetectedTransfers(db *pgxpool.Pool, batchSize int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	start := time.Now()
	rules, err := ingest.LoadTransferRules(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to load transfer rules: %w", err)
	}
	if rules.Len() == 0 {
		logger.Audit("transfer pass: no transfer rules defined")
		return nil
	}

	if batchSize <= 0 {
		batchSize = 500
	}

	svc := ledger.NewService(ledger.NewPgStore(db))
	totalProcessed := 0
	totalReclassified := 0
	var lastID int64
	for {
		recs, err := fetchTransferCandidates(ctx, db, lastID, batchSize)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			break
		}
		lastID = recs[len(recs)-1].ID
		totalProcessed += len(recs)

		for txID, linkedID := range engine.DetectLinkedAccounts(recs, rules) {
			if _, err := svc.ReclassifyExpense(ctx, txID, linkedID); err != nil {
				log.Printf("ERROR: transfer pass: transaction %d: %v", txID, err)
				logger.Audit(fmt.Sprintf("transfer pass: transaction %d failed: %v", txID, err))
				continue
			}
			totalReclassified++
		}
	}

	logger.Audit(fmt.Sprintf("transfer pass: scanned %d expenses, reclassified %d in %s",
		totalProcessed, totalReclassified, time.Since(start).Round(time.Millisecond)))
	return nil
}

// fetchTransferCandidates pages non-manual expenses on asset accounts that
// have no linked account yet. Liability-side rows (card statements) never
// originate a transfer themselves.
func fetchTransferCandidates(ctx context.Context, db *pgxpool.Pool, afterID int64, limit int) ([]engine.Record, error) {
	rows, err := db.Query(ctx,
		`SELECT t.id, t.category_id, t.is_manual_category,
		        COALESCE(t.description, ''), t.amount, t.type,
		        COALESCE(t.provider, ''), t.occurred_at
		 FROM transactions t
		 JOIN accounts a ON a.id = t.account_id
		 WHERE t.type = $1 AND NOT t.is_manual_category
		   AND a.is_asset AND t.linked_account_id IS NULL AND t.id > $2
		 ORDER BY t.id ASC
		 LIMIT $3`, ledger.TypeExpense, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer candidates: %w", err)
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
