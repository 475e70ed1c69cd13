package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gallery/internal/repository"
)

const defaultLimit = 50

type rowScanner interface {
	Scan(dest ...any) error
}

// queryer 同时被 *sql.DB 和 *sql.Tx 实现。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// argList 负责按顺序生成 $n 占位符。
type argList struct {
	values []any
}

func (a *argList) add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

func pageClause(args *argList, params repository.ListParams) string {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	clause := "LIMIT " + args.add(limit)
	if params.Offset > 0 {
		clause += " OFFSET " + args.add(params.Offset)
	}
	return clause
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func expectOneRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// constraint 把外键和唯一约束错误转换为 repository.ErrConflict。
func constraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503", "23505":
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}

func countRows(ctx context.Context, q queryer, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func collectStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// namedRow 是 locations 和 people 两张表共用的行结构。
type namedRow struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// namedTable 实现只有 name 字段的简单表的增删改查。
type namedTable struct {
	db    *sql.DB
	table string
}

func (t namedTable) create(ctx context.Context, name string) (*namedRow, error) {
	row := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING id, name, created_at`, t.table), name)
	var r namedRow
	if err := row.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t namedTable) get(ctx context.Context, id int64) (*namedRow, error) {
	row := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, name, created_at FROM %s WHERE id = $1`, t.table), id)
	var r namedRow
	if err := row.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (t namedTable) list(ctx context.Context, params repository.ListParams) ([]namedRow, error) {
	args := &argList{}
	query := fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY name, id %s`, t.table, pageClause(args, params))
	rows, err := t.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []namedRow{}
	for rows.Next() {
		var r namedRow
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t namedTable) count(ctx context.Context) (int, error) {
	return countRows(ctx, t.db, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table))
}

func (t namedTable) rename(ctx context.Context, id int64, name string) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET name = $1 WHERE id = $2`, t.table), name, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (t namedTable) delete(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}
