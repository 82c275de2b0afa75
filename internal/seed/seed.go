package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"moneybook/internal/logger"
)

// Seed data shapes. References between files go by name or code, never by
// id, since ids are assigned at insert time.
type accountSeed struct {
	Name             string `json:"name"`
	InitialBalance   int64  `json:"initial_balance"`
	IsAsset          bool   `json:"is_asset"`
	IsInvestment     bool   `json:"is_investment"`
	CurrencyExponent int32  `json:"currency_exponent"`
}

type categorySeed struct {
	Name            string `json:"name"`
	Code            string `json:"code"`
	TransactionType string `json:"transaction_type"`
	ParentCode      string `json:"parent_code"`
}

type conditionSeed struct {
	ColumnToCheck string `json:"column_to_check"`
	MatchType     string `json:"match_type"`
	Value         string `json:"value"`
}

type ruleSeed struct {
	Priority     int             `json:"priority"`
	CategoryCode string          `json:"category_code"`
	Conditions   []conditionSeed `json:"conditions"`
}

type transferRuleSeed struct {
	Priority          int             `json:"priority"`
	LinkedAccountName string          `json:"linked_account_name"`
	Conditions        []conditionSeed `json:"conditions"`
}

// Run loads the JSON seed files from dir into any table that is still
// empty. Populated tables are left alone, so running at every startup is
// safe. Missing seed files are skipped silently.
func Run(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := seedAccounts(ctx, tx, filepath.Join(dir, "accounts.json")); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	if err := seedCategories(ctx, tx, filepath.Join(dir, "categories.json")); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	if err := seedRules(ctx, tx, filepath.Join(dir, "rules.json")); err != nil {
		return fmt.Errorf("seed rules: %w", err)
	}
	if err := seedTransferRules(ctx, tx, filepath.Join(dir, "transfer_rules.json")); err != nil {
		return fmt.Errorf("seed transfer rules: %w", err)
	}
	return tx.Commit(ctx)
}

func tableEmpty(ctx context.Context, tx pgx.Tx, table string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+`)`).Scan(&exists)
	return !exists, err
}

func loadFile[T any](path string) ([]T, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return items, true, nil
}

func seedAccounts(ctx context.Context, tx pgx.Tx, path string) error {
	empty, err := tableEmpty(ctx, tx, "accounts")
	if err != nil || !empty {
		return err
	}
	items, found, err := loadFile[accountSeed](path)
	if err != nil || !found {
		return err
	}
	for _, a := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO accounts (name, balance, initial_balance, is_asset, is_investment, currency_exponent)
			 VALUES ($1, $2, $2, $3, $4, $5)`,
			a.Name, a.InitialBalance, a.IsAsset, a.IsInvestment, a.CurrencyExponent); err != nil {
			return err
		}
	}
	logger.Audit(fmt.Sprintf("seeded %d accounts", len(items)))
	return nil
}

func seedCategories(ctx context.Context, tx pgx.Tx, path string) error {
	empty, err := tableEmpty(ctx, tx, "categories")
	if err != nil || !empty {
		return err
	}
	items, found, err := loadFile[categorySeed](path)
	if err != nil || !found {
		return err
	}

	type inserted struct {
		id   int64
		path string
	}
	byCode := make(map[string]inserted, len(items))

	// children reference parents by code, so insert in passes until the
	// whole tree lands; a pass without progress means a dangling parent
	pending := items
	for len(pending) > 0 {
		var next []categorySeed
		progressed := false
		for _, c := range pending {
			var (
				parentID   *int64
				parentPath string
			)
			depth := 1
			if c.ParentCode != "" {
				p, ok := byCode[c.ParentCode]
				if !ok {
					next = append(next, c)
					continue
				}
				parentID = &p.id
				parentPath = p.path
				depth = len(splitPath(p.path)) + 1
			}

			var id int64
			if err := tx.QueryRow(ctx,
				`INSERT INTO categories (name, code, transaction_type, parent_id, depth, path)
				 VALUES ($1, $2, $3, $4, $5, 'TEMP')
				 RETURNING id`,
				c.Name, c.Code, c.TransactionType, parentID, depth).Scan(&id); err != nil {
				return err
			}
			catPath := strconv.FormatInt(id, 10)
			if parentPath != "" {
				catPath = parentPath + "-" + catPath
			}
			if _, err := tx.Exec(ctx,
				`UPDATE categories SET path = $1 WHERE id = $2`, catPath, id); err != nil {
				return err
			}
			byCode[c.Code] = inserted{id: id, path: catPath}
			progressed = true
		}
		if !progressed {
			return fmt.Errorf("unresolvable parent codes in %s", path)
		}
		pending = next
	}
	logger.Audit(fmt.Sprintf("seeded %d categories", len(items)))
	return nil
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '-' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

func seedRules(ctx context.Context, tx pgx.Tx, path string) error {
	empty, err := tableEmpty(ctx, tx, "classification_rules")
	if err != nil || !empty {
		return err
	}
	items, found, err := loadFile[ruleSeed](path)
	if err != nil || !found {
		return err
	}
	for _, r := range items {
		var categoryID int64
		if err := tx.QueryRow(ctx,
			`SELECT id FROM categories WHERE code = $1`, r.CategoryCode).Scan(&categoryID); err != nil {
			return fmt.Errorf("rule references unknown category %q: %w", r.CategoryCode, err)
		}
		var ruleID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO classification_rules (priority, category_id)
			 VALUES ($1, $2) RETURNING id`, r.Priority, categoryID).Scan(&ruleID); err != nil {
			return err
		}
		for _, c := range r.Conditions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO rule_conditions (rule_id, column_to_check, match_type, value)
				 VALUES ($1, $2, $3, $4)`,
				ruleID, c.ColumnToCheck, c.MatchType, c.Value); err != nil {
				return err
			}
		}
	}
	logger.Audit(fmt.Sprintf("seeded %d classification rules", len(items)))
	return nil
}

func seedTransferRules(ctx context.Context, tx pgx.Tx, path string) error {
	empty, err := tableEmpty(ctx, tx, "transfer_rules")
	if err != nil || !empty {
		return err
	}
	items, found, err := loadFile[transferRuleSeed](path)
	if err != nil || !found {
		return err
	}
	for _, r := range items {
		var accountID int64
		if err := tx.QueryRow(ctx,
			`SELECT id FROM accounts WHERE name = $1`, r.LinkedAccountName).Scan(&accountID); err != nil {
			return fmt.Errorf("transfer rule references unknown account %q: %w", r.LinkedAccountName, err)
		}
		var ruleID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO transfer_rules (priority, linked_account_id)
			 VALUES ($1, $2) RETURNING id`, r.Priority, accountID).Scan(&ruleID); err != nil {
			return err
		}
		for _, c := range r.Conditions {
			if _, err := tx.Exec(ctx,
				`INSERT INTO transfer_rule_conditions (rule_id, column_to_check, match_type, value)
				 VALUES ($1, $2, $3, $4)`,
				ruleID, c.ColumnToCheck, c.MatchType, c.Value); err != nil {
				return err
			}
		}
	}
	logger.Audit(fmt.Sprintf("seeded %d transfer rules", len(items)))
	return nil
}
