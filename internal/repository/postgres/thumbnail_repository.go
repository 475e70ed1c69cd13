package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gallery/internal/repository"
)

// ThumbnailRepository 实现 repository.ThumbnailRepository。
type ThumbnailRepository struct {
	db *sql.DB
}

func NewThumbnailRepository(db *sql.DB) *ThumbnailRepository {
	return &ThumbnailRepository{db: db}
}

// Create 插入缩略图记录；(photo_id, size) 已存在时返回已有记录。
func (r *ThumbnailRepository) Create(ctx context.Context, thumb *repository.Thumbnail) (*repository.Thumbnail, error) {
	if thumb == nil {
		return nil, fmt.Errorf("thumbnail is nil")
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO thumbnails (photo_id, size, file) VALUES ($1, $2, $3)
	ON CONFLICT (photo_id, size) DO UPDATE SET file = EXCLUDED.file
	RETURNING id, photo_id, size, file`,
		thumb.PhotoID, thumb.Size, thumb.File)
	return scanThumbnail(row)
}

func (r *ThumbnailRepository) GetByPhotoAndSize(ctx context.Context, photoID int64, size string) (*repository.Thumbnail, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, photo_id, size, file FROM thumbnails WHERE photo_id = $1 AND size = $2`, photoID, size)
	thumb, err := scanThumbnail(row)
	if err != nil {
		return nil, notFound(err)
	}
	return thumb, nil
}

func (r *ThumbnailRepository) ListByPhoto(ctx context.Context, photoID int64) ([]repository.Thumbnail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, photo_id, size, file FROM thumbnails WHERE photo_id = $1 ORDER BY photo_id, size`, photoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Thumbnail{}
	for rows.Next() {
		thumb, err := scanThumbnail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *thumb)
	}
	return out, rows.Err()
}

func (r *ThumbnailRepository) FilePaths(ctx context.Context) ([]string, error) {
	return collectStrings(ctx, r.db, `SELECT file FROM thumbnails`)
}

func scanThumbnail(rs rowScanner) (*repository.Thumbnail, error) {
	var t repository.Thumbnail
	if err := rs.Scan(&t.ID, &t.PhotoID, &t.Size, &t.File); err != nil {
		return nil, err
	}
	return &t, nil
}
