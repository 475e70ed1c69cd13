package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gallery/internal/pagination"
	"gallery/internal/repository"
)

type nameInput struct {
	Name string `json:"name" validate:"required,max=200"`
}

// LocationService 管理地点。删除地点时相册保留，location_id 由外键置空。
type LocationService struct {
	repo   repository.LocationRepository
	albums *AlbumService
	photos *PhotoService
	stream *StreamService
	hooks  Hooks
	page   pagination.Options
	logger *slog.Logger
}

func NewLocationService(
	repo repository.LocationRepository,
	albums *AlbumService,
	photos *PhotoService,
	stream *StreamService,
	hooks Hooks,
	page pagination.Options,
	logger *slog.Logger,
) *LocationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationService{repo: repo, albums: albums, photos: photos, stream: stream, hooks: hooks, page: page, logger: logger}
}

func (s *LocationService) Create(ctx context.Context, actor, name string) (*repository.Location, error) {
	if s == nil || s.repo == nil {
		return nil, notInitialized("location")
	}
	name = strings.TrimSpace(name)
	if err := validateStruct(nameInput{Name: name}); err != nil {
		return nil, err
	}
	loc, err := s.repo.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "created the location", WithTarget(LocationRef(loc)))
	return loc, nil
}

func (s *LocationService) Get(ctx context.Context, id int64) (*repository.Location, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LocationService) Rename(ctx context.Context, actor string, id int64, name string) (*repository.Location, error) {
	name = strings.TrimSpace(name)
	if err := validateStruct(nameInput{Name: name}); err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	loc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "renamed the location", WithTarget(LocationRef(loc)))
	return loc, nil
}

func (s *LocationService) List(ctx context.Context, query url.Values) (*pagination.Page, []repository.Location, error) {
	if s == nil || s.repo == nil {
		return nil, nil, notInitialized("location")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, params, err := paginate(total, query, s.page)
	if err != nil {
		return nil, nil, err
	}
	locs, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return page, locs, nil
}

// Albums 分页列出地点下的相册。
func (s *LocationService) Albums(ctx context.Context, id int64, query url.Values) (*repository.Location, *pagination.Page, []repository.Album, error) {
	loc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	page, albums, err := s.albums.List(ctx, repository.AlbumFilter{LocationID: &loc.ID}, query)
	if err != nil {
		return nil, nil, nil, err
	}
	return loc, page, albums, nil
}

// Cover 返回地点下按名称排序的第一张照片。
func (s *LocationService) Cover(ctx context.Context, id int64) (*repository.Photo, error) {
	return s.photos.Cover(ctx, repository.PhotoFilter{LocationIDs: []int64{id}})
}

func (s *LocationService) Delete(ctx context.Context, actor string, id int64) error {
	loc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.hooks.Fire(ctx, s.logger, DeleteEvent{Type: TypeLocation, ID: id})
	s.stream.Send(ctx, actor, fmt.Sprintf("deleted the location %s", loc.Name))
	return nil
}
