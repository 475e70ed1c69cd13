package postgres

import (
	"context"
	"database/sql"

	"gallery/internal/repository"
)

// LocationRepository 实现 repository.LocationRepository。
type LocationRepository struct {
	t namedTable
}

func NewLocationRepository(db *sql.DB) *LocationRepository {
	return &LocationRepository{t: namedTable{db: db, table: "locations"}}
}

func toLocation(r namedRow) repository.Location {
	return repository.Location{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

func (r *LocationRepository) Create(ctx context.Context, name string) (*repository.Location, error) {
	row, err := r.t.create(ctx, name)
	if err != nil {
		return nil, err
	}
	loc := toLocation(*row)
	return &loc, nil
}

func (r *LocationRepository) GetByID(ctx context.Context, id int64) (*repository.Location, error) {
	row, err := r.t.get(ctx, id)
	if err != nil {
		return nil, err
	}
	loc := toLocation(*row)
	return &loc, nil
}

func (r *LocationRepository) List(ctx context.Context, params repository.ListParams) ([]repository.Location, error) {
	rows, err := r.t.list(ctx, params)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Location, 0, len(rows))
	for _, row := range rows {
		out = append(out, toLocation(row))
	}
	return out, nil
}

func (r *LocationRepository) Count(ctx context.Context) (int, error) {
	return r.t.count(ctx)
}

func (r *LocationRepository) Rename(ctx context.Context, id int64, name string) error {
	return r.t.rename(ctx, id, name)
}

// Delete 删除地点；相册通过外键 ON DELETE SET NULL 保留。
func (r *LocationRepository) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, id)
}

// PersonRepository 实现 repository.PersonRepository。
type PersonRepository struct {
	t namedTable
}

func NewPersonRepository(db *sql.DB) *PersonRepository {
	return &PersonRepository{t: namedTable{db: db, table: "people"}}
}

func toPerson(r namedRow) repository.Person {
	return repository.Person{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

func (r *PersonRepository) Create(ctx context.Context, name string) (*repository.Person, error) {
	row, err := r.t.create(ctx, name)
	if err != nil {
		return nil, err
	}
	p := toPerson(*row)
	return &p, nil
}

func (r *PersonRepository) GetByID(ctx context.Context, id int64) (*repository.Person, error) {
	row, err := r.t.get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := toPerson(*row)
	return &p, nil
}

func (r *PersonRepository) List(ctx context.Context, params repository.ListParams) ([]repository.Person, error) {
	rows, err := r.t.list(ctx, params)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Person, 0, len(rows))
	for _, row := range rows {
		out = append(out, toPerson(row))
	}
	return out, nil
}

func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	return r.t.count(ctx)
}

func (r *PersonRepository) Rename(ctx context.Context, id int64, name string) error {
	return r.t.rename(ctx, id, name)
}

// Delete 删除人物；photo_people 中的标记随外键级联删除。
func (r *PersonRepository) Delete(ctx context.Context, id int64) error {
	return r.t.delete(ctx, id)
}
