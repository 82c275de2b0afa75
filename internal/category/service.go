package category

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrParentNotFound = errors.New("category: parent not found")

// Category is one row of the categories table. Code is a stable machine
// identifier; Path is the materialized root-to-node id chain.
type Category struct {
	ID              int64
	Name            string
	Code            string
	TransactionType string
	ParentID        int64
	Depth           int
	Path            string
}

// Service manages the category tree in Postgres.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Add inserts a category under parentID (0 for a root) and returns it with
// its path filled in. The id is needed inside the path, so the row is
// inserted with a placeholder and patched in the same transaction.
func (s *Service) Add(ctx context.Context, name, code, transactionType string, parentID int64) (Category, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Category{}, err
	}
	defer tx.Rollback(ctx)

	cat := Category{Name: name, Code: code, TransactionType: transactionType, ParentID: parentID, Depth: 1}
	parentPath := ""
	if parentID != 0 {
		err := tx.QueryRow(ctx,
			`SELECT path, depth FROM categories WHERE id = $1`, parentID).
			Scan(&parentPath, &cat.Depth)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Category{}, ErrParentNotFound
			}
			return Category{}, err
		}
		cat.Depth++
	}

	var parent *int64
	if parentID != 0 {
		parent = &parentID
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO categories (name, code, transaction_type, parent_id, depth, path)
		 VALUES ($1, $2, $3, $4, $5, 'TEMP')
		 RETURNING id`,
		name, code, transactionType, parent, cat.Depth).Scan(&cat.ID)
	if err != nil {
		return Category{}, err
	}

	cat.Path = strconv.FormatInt(cat.ID, 10)
	if parentPath != "" {
		cat.Path = parentPath + "-" + cat.Path
	}
	if _, err := tx.Exec(ctx,
		`UPDATE categories SET path = $1 WHERE id = $2`, cat.Path, cat.ID); err != nil {
		return Category{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Category{}, err
	}
	return cat, nil
}

// RebuildAll recomputes every category path from the stored parent links and
// writes back only the rows whose path or depth actually changed, in one
// bulk update. Returns the number of repaired rows.
func (s *Service) RebuildAll(ctx context.Context) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id, parent_id, path, depth FROM categories`)
	if err != nil {
		return 0, err
	}
	parents := make(map[int64]int64)
	stored := make(map[int64]Category)
	for rows.Next() {
		var (
			c      Category
			parent *int64
		)
		if err := rows.Scan(&c.ID, &parent, &c.Path, &c.Depth); err != nil {
			rows.Close()
			return 0, err
		}
		if parent != nil {
			c.ParentID = *parent
		}
		parents[c.ID] = c.ParentID
		stored[c.ID] = c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	paths := RebuildPaths(parents)

	var (
		ids      []int64
		newPaths []string
		depths   []int32
	)
	for id, path := range paths {
		depth := Depth(path)
		if cur := stored[id]; cur.Path == path && cur.Depth == depth {
			continue
		}
		ids = append(ids, id)
		newPaths = append(newPaths, path)
		depths = append(depths, int32(depth))
	}
	if len(ids) == 0 {
		return 0, tx.Commit(ctx)
	}

	ct, err := tx.Exec(ctx,
		`UPDATE categories c
		 SET path = u.path, depth = u.depth
		 FROM (SELECT unnest($1::bigint[]) AS id,
		              unnest($2::text[])   AS path,
		              unnest($3::int[])    AS depth) u
		 WHERE c.id = u.id`,
		ids, newPaths, depths)
	if err != nil {
		return 0, fmt.Errorf("bulk path update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// IDByCode resolves a category code outside any ledger unit of work.
func (s *Service) IDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM categories WHERE code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("category code %q not found", code)
		}
		return 0, err
	}
	return id, nil
}
