package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gallery/internal/repository"
)

// AlbumRepository 实现 repository.AlbumRepository。
type AlbumRepository struct {
	db *sql.DB
}

func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

var albumSelectColumns = []string{"id", "name", "month", "year", "location_id", "created_at"}

func (r *AlbumRepository) Create(ctx context.Context, album *repository.Album) (*repository.Album, error) {
	if album == nil {
		return nil, fmt.Errorf("album is nil")
	}
	query := fmt.Sprintf(`INSERT INTO albums (name, month, year, location_id)
	VALUES ($1, $2, $3, $4)
	RETURNING %s`, strings.Join(albumSelectColumns, ","))

	row := r.db.QueryRowContext(ctx, query,
		album.Name, nullInt(album.Month), nullInt(album.Year), nullInt64(album.LocationID))
	created, err := scanAlbum(row)
	if err != nil {
		return nil, constraint(err)
	}
	return created, nil
}

func (r *AlbumRepository) GetByID(ctx context.Context, id int64) (*repository.Album, error) {
	query := fmt.Sprintf(`SELECT %s FROM albums WHERE id = $1`, strings.Join(albumSelectColumns, ","))
	album, err := scanAlbum(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return album, nil
}

// List 按名称排序返回相册。
func (r *AlbumRepository) List(ctx context.Context, filter repository.AlbumFilter, params repository.ListParams) ([]repository.Album, error) {
	args := &argList{}
	where := albumWhere(args, filter)
	query := fmt.Sprintf(`SELECT %s FROM albums %s ORDER BY name, id %s`,
		strings.Join(albumSelectColumns, ","), where, pageClause(args, params))

	rows, err := r.db.QueryContext(ctx, query, args.values...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Album{}
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *album)
	}
	return out, rows.Err()
}

func (r *AlbumRepository) Count(ctx context.Context, filter repository.AlbumFilter) (int, error) {
	args := &argList{}
	where := albumWhere(args, filter)
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM albums `+where, args.values...)
}

func (r *AlbumRepository) Update(ctx context.Context, album *repository.Album) error {
	if album == nil {
		return fmt.Errorf("album is nil")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE albums SET name = $1, month = $2, year = $3, location_id = $4 WHERE id = $5`,
		album.Name, nullInt(album.Month), nullInt(album.Year), nullInt64(album.LocationID), album.ID)
	if err != nil {
		return constraint(err)
	}
	return expectOneRow(res)
}

// Delete 删除相册，照片由外键级联删除；文件清理由调用方负责。
func (r *AlbumRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func albumWhere(args *argList, filter repository.AlbumFilter) string {
	var conds []string
	if filter.LocationID != nil {
		conds = append(conds, "location_id = "+args.add(*filter.LocationID))
	}
	return whereClause(conds)
}

func scanAlbum(rs rowScanner) (*repository.Album, error) {
	var (
		album    repository.Album
		month    sql.NullInt32
		year     sql.NullInt32
		location sql.NullInt64
	)
	if err := rs.Scan(&album.ID, &album.Name, &month, &year, &location, &album.CreatedAt); err != nil {
		return nil, err
	}
	if month.Valid {
		v := int(month.Int32)
		album.Month = &v
	}
	if year.Valid {
		v := int(year.Int32)
		album.Year = &v
	}
	if location.Valid {
		v := location.Int64
		album.LocationID = &v
	}
	return &album, nil
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
