package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gallery/internal/repository"
)

// NewPhotoRepository 返回基于 *sql.DB 的 Postgres 实现。
func NewPhotoRepository(db *sql.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// PhotoRepository 实现 repository.PhotoRepository。
type PhotoRepository struct {
	db *sql.DB
}

var photoSelectColumns = []string{
	"p.id",
	"p.name",
	"p.file",
	"p.album_id",
	"p.created_at",
}

const photoFrom = `FROM photos p JOIN albums a ON a.id = p.album_id`

// Create 插入照片记录，并写入人物标记。
func (r *PhotoRepository) Create(ctx context.Context, photo *repository.Photo) (*repository.Photo, error) {
	if photo == nil {
		return nil, fmt.Errorf("photo is nil")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`INSERT INTO photos (name, file, album_id) VALUES ($1, $2, $3)
	RETURNING id, name, file, album_id, created_at`,
		photo.Name, photo.File, photo.AlbumID)
	created, err := scanPhoto(row)
	if err != nil {
		return nil, constraint(err)
	}

	if len(photo.PersonIDs) > 0 {
		if err := insertPeople(ctx, tx, created.ID, photo.PersonIDs); err != nil {
			return nil, err
		}
		created.PersonIDs = append([]int64(nil), photo.PersonIDs...)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit photo: %w", err)
	}
	return created, nil
}

// GetByID 通过主键查询照片及其人物标记。
func (r *PhotoRepository) GetByID(ctx context.Context, id int64) (*repository.Photo, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE p.id = $1`, strings.Join(photoSelectColumns, ","), photoFrom)
	photo, err := scanPhoto(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT person_id FROM photo_people WHERE photo_id = $1 ORDER BY person_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		photo.PersonIDs = append(photo.PersonIDs, pid)
	}
	return photo, rows.Err()
}

// List 按名称排序返回符合条件的照片。
func (r *PhotoRepository) List(ctx context.Context, filter repository.PhotoFilter, params repository.ListParams) ([]repository.Photo, error) {
	args := &argList{}
	where := photoWhere(args, filter)
	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY p.name, p.id %s`,
		strings.Join(photoSelectColumns, ","), photoFrom, where, pageClause(args, params))

	rows, err := r.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *photo)
	}
	return out, rows.Err()
}

func (r *PhotoRepository) Count(ctx context.Context, filter repository.PhotoFilter) (int, error) {
	args := &argList{}
	where := photoWhere(args, filter)
	return countRows(ctx, r.db, fmt.Sprintf(`SELECT COUNT(*) %s %s`, photoFrom, where), args.values...)
}

func (r *PhotoRepository) IDsByName(ctx context.Context, filter repository.PhotoFilter) ([]int64, error) {
	args := &argList{}
	where := photoWhere(args, filter)
	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT p.id %s %s ORDER BY p.name, p.id`, photoFrom, where), args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PhotoRepository) Rename(ctx context.Context, id int64, name string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *PhotoRepository) Move(ctx context.Context, id, albumID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET album_id = $1 WHERE id = $2`, albumID, id)
	if err != nil {
		return constraint(err)
	}
	return expectOneRow(res)
}

// MoveAll 把一个相册的全部照片移动到另一个相册，返回移动数量。
func (r *PhotoRepository) MoveAll(ctx context.Context, fromAlbumID, toAlbumID int64) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE photos SET album_id = $1 WHERE album_id = $2`, toAlbumID, fromAlbumID)
	if err != nil {
		return 0, constraint(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// SetPeople 用给定集合替换照片的人物标记。
func (r *PhotoRepository) SetPeople(ctx context.Context, id int64, personIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM photos WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM photo_people WHERE photo_id = $1`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if err := insertPeople(ctx, tx, id, personIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PhotoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// FilePaths 返回全部照片记录引用的存储 key。
func (r *PhotoRepository) FilePaths(ctx context.Context) ([]string, error) {
	return collectStrings(ctx, r.db, `SELECT file FROM photos`)
}

func insertPeople(ctx context.Context, q queryer, photoID int64, personIDs []int64) error {
	for _, pid := range personIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO photo_people (photo_id, person_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			photoID, pid); err != nil {
			return fmt.Errorf("tag person %d: %w", pid, constraint(err))
		}
	}
	return nil
}

func photoWhere(args *argList, filter repository.PhotoFilter) string {
	var conds []string
	if q := strings.TrimSpace(filter.Query); q != "" {
		ph := args.add("%" + escapeLike(q) + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR a.name ILIKE %s)", ph, ph))
	}
	if len(filter.AlbumIDs) > 0 {
		conds = append(conds, "p.album_id = ANY("+args.add(filter.AlbumIDs)+")")
	}
	if len(filter.PersonIDs) > 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM photo_people pp WHERE pp.photo_id = p.id AND pp.person_id = ANY("+args.add(filter.PersonIDs)+"))")
	}
	if len(filter.LocationIDs) > 0 {
		conds = append(conds, "a.location_id = ANY("+args.add(filter.LocationIDs)+")")
	}
	return whereClause(conds)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanPhoto(rs rowScanner) (*repository.Photo, error) {
	var photo repository.Photo
	if err := rs.Scan(
		&photo.ID,
		&photo.Name,
		&photo.File,
		&photo.AlbumID,
		&photo.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &photo, nil
}
