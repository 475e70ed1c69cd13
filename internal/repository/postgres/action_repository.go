package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gallery/internal/repository"
)

// ActionRepository 实现 repository.ActionRepository。
type ActionRepository struct {
	db *sql.DB
}

func NewActionRepository(db *sql.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

var actionSelectColumns = []string{
	"id",
	"timestamp",
	"actor",
	"verb",
	"join_word",
	"target_type",
	"target_id",
	"target_label",
	"object_type",
	"object_id",
	"object_label",
}

func (r *ActionRepository) Create(ctx context.Context, action *repository.Action) (*repository.Action, error) {
	if action == nil {
		return nil, fmt.Errorf("action is nil")
	}
	tType, tID, tLabel := refColumns(action.Target)
	oType, oID, oLabel := refColumns(action.ActionObject)

	query := fmt.Sprintf(`INSERT INTO actions
	(timestamp, actor, verb, join_word, target_type, target_id, target_label, object_type, object_id, object_label)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING %s`, strings.Join(actionSelectColumns, ","))

	row := r.db.QueryRowContext(ctx, query,
		action.Timestamp, action.Actor, action.Verb, nullString(action.Join),
		tType, tID, tLabel, oType, oID, oLabel)
	return scanAction(row)
}

// List 按时间倒序返回动态。
func (r *ActionRepository) List(ctx context.Context, params repository.ListParams) ([]repository.Action, error) {
	args := &argList{}
	query := fmt.Sprintf(`SELECT %s FROM actions ORDER BY timestamp DESC, id DESC %s`,
		strings.Join(actionSelectColumns, ","), pageClause(args, params))

	rows, err := r.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Action{}
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *action)
	}
	return out, rows.Err()
}

func (r *ActionRepository) Count(ctx context.Context) (int, error) {
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM actions`)
}

func (r *ActionRepository) DeleteByObject(ctx context.Context, objectType, objectID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM actions
	WHERE (target_type = $1 AND target_id = $2) OR (object_type = $1 AND object_id = $2)`,
		objectType, objectID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func refColumns(ref *repository.ObjectRef) (sql.NullString, sql.NullString, sql.NullString) {
	if ref == nil {
		return sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return nullString(ref.Type), nullString(ref.ID), nullString(ref.Label)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanAction(rs rowScanner) (*repository.Action, error) {
	var (
		a                  repository.Action
		join               sql.NullString
		tType, tID, tLabel sql.NullString
		oType, oID, oLabel sql.NullString
	)
	if err := rs.Scan(&a.ID, &a.Timestamp, &a.Actor, &a.Verb, &join,
		&tType, &tID, &tLabel, &oType, &oID, &oLabel); err != nil {
		return nil, err
	}
	a.Join = join.String
	if tType.Valid {
		a.Target = &repository.ObjectRef{Type: tType.String, ID: tID.String, Label: tLabel.String}
	}
	if oType.Valid {
		a.ActionObject = &repository.ObjectRef{Type: oType.String, ID: oID.String, Label: oLabel.String}
	}
	return &a, nil
}
