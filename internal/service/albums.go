package service

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"gallery/internal/pagination"
	"gallery/internal/repository"
)

// AlbumInput 是创建或编辑相册的表单。
type AlbumInput struct {
	Name       string `json:"name" validate:"required,max=200"`
	Month      *int   `json:"month" validate:"omitempty,min=1,max=12"`
	Year       *int   `json:"year" validate:"omitempty,min=1950"`
	LocationID *int64 `json:"location_id" validate:"omitempty,gt=0"`
}

// AlbumService 管理相册及其中照片的批量操作。
type AlbumService struct {
	albums    repository.AlbumRepository
	locations repository.LocationRepository
	photos    *PhotoService
	stream    *StreamService
	hooks     Hooks
	page      pagination.Options
	logger    *slog.Logger
}

func NewAlbumService(
	albums repository.AlbumRepository,
	locations repository.LocationRepository,
	photos *PhotoService,
	stream *StreamService,
	hooks Hooks,
	page pagination.Options,
	logger *slog.Logger,
) *AlbumService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlbumService{
		albums:    albums,
		locations: locations,
		photos:    photos,
		stream:    stream,
		hooks:     hooks,
		page:      page,
		logger:    logger,
	}
}

func (s *AlbumService) checkInput(ctx context.Context, in *AlbumInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.LocationID != nil && s.locations != nil {
		if _, err := s.locations.GetByID(ctx, *in.LocationID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalid("unknown location %d", *in.LocationID)
			}
			return err
		}
	}
	return nil
}

func (s *AlbumService) Create(ctx context.Context, actor string, in AlbumInput) (*repository.Album, error) {
	if s == nil || s.albums == nil {
		return nil, notInitialized("album")
	}
	if err := s.checkInput(ctx, &in); err != nil {
		return nil, err
	}
	album, err := s.albums.Create(ctx, &repository.Album{
		Name:       in.Name,
		Month:      in.Month,
		Year:       in.Year,
		LocationID: in.LocationID,
	})
	if err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "created the album", WithTarget(AlbumRef(album)))
	return album, nil
}

func (s *AlbumService) Edit(ctx context.Context, actor string, id int64, in AlbumInput) (*repository.Album, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkInput(ctx, &in); err != nil {
		return nil, err
	}
	album.Name, album.Month, album.Year, album.LocationID = in.Name, in.Month, in.Year, in.LocationID
	if err := s.albums.Update(ctx, album); err != nil {
		return nil, err
	}
	s.stream.Send(ctx, actor, "edited the album", WithTarget(AlbumRef(album)))
	return album, nil
}

func (s *AlbumService) Get(ctx context.Context, id int64) (*repository.Album, error) {
	return s.albums.GetByID(ctx, id)
}

// List 分页列出相册，filter 可限定地点。
func (s *AlbumService) List(ctx context.Context, filter repository.AlbumFilter, query url.Values) (*pagination.Page, []repository.Album, error) {
	if s == nil || s.albums == nil {
		return nil, nil, notInitialized("album")
	}
	total, err := s.albums.Count(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	page, params, err := paginate(total, query, s.page)
	if err != nil {
		return nil, nil, err
	}
	albums, err := s.albums.List(ctx, filter, params)
	if err != nil {
		return nil, nil, err
	}
	return page, albums, nil
}

// Photos 分页列出相册中的照片。
func (s *AlbumService) Photos(ctx context.Context, id int64, query url.Values) (*repository.Album, *pagination.Page, []repository.Photo, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	page, photos, err := s.photos.List(ctx, albumFilter(id), query)
	if err != nil {
		return nil, nil, nil, err
	}
	return album, page, photos, nil
}

// Cover 返回相册封面，即按名称排序的第一张照片。
func (s *AlbumService) Cover(ctx context.Context, id int64) (*repository.Photo, error) {
	return s.photos.Cover(ctx, albumFilter(id))
}

// Merge 把 source 相册的全部照片移入 target，然后删除 source。
func (s *AlbumService) Merge(ctx context.Context, actor string, sourceID, targetID int64) (*repository.Album, error) {
	if sourceID == targetID {
		return nil, invalid("cannot merge an album into itself")
	}
	source, err := s.albums.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.albums.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("unknown target album %d", targetID)
		}
		return nil, err
	}

	moved, err := s.photos.Photos.MoveAll(ctx, source.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("move photos: %w", err)
	}
	if err := s.albums.Delete(ctx, source.ID); err != nil {
		return nil, err
	}
	_ = s.hooks.Fire(ctx, s.logger, DeleteEvent{Type: TypeAlbum, ID: source.ID})

	s.logger.Info("albums merged", "source", source.ID, "target", target.ID, "photos", moved)
	s.stream.Send(ctx, actor, fmt.Sprintf("merged %s into", source.Name), WithTarget(AlbumRef(target)))
	return target, nil
}

// Delete 删除相册及其全部照片。数据库级联删除照片记录，文件由 hooks 清理。
func (s *AlbumService) Delete(ctx context.Context, actor string, id int64) error {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return err
	}
	photos, err := s.allPhotos(ctx, id)
	if err != nil {
		return err
	}
	events := make([]DeleteEvent, 0, len(photos)+1)
	for _, photo := range photos {
		files, err := s.photos.filesOf(ctx, photo)
		if err != nil {
			return err
		}
		events = append(events, DeleteEvent{Type: TypePhoto, ID: photo.ID, Files: files})
	}
	events = append(events, DeleteEvent{Type: TypeAlbum, ID: album.ID})

	if err := s.albums.Delete(ctx, id); err != nil {
		return err
	}
	for _, ev := range events {
		_ = s.hooks.Fire(ctx, s.logger, ev)
	}
	s.stream.Send(ctx, actor, fmt.Sprintf("deleted the album %s", album.Name))
	return nil
}

// WriteZip 把相册中的全部照片打包写入 w，返回建议的下载文件名。
func (s *AlbumService) WriteZip(ctx context.Context, id int64, w io.Writer) (string, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	photos, err := s.allPhotos(ctx, id)
	if err != nil {
		return "", err
	}

	zw := zip.NewWriter(w)
	for _, photo := range photos {
		if err := s.addToZip(ctx, zw, photo.File); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	return album.Name + ".zip", nil
}

func (s *AlbumService) addToZip(ctx context.Context, zw *zip.Writer, key string) error {
	rc, err := s.photos.Store.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	defer rc.Close()

	entry, err := zw.Create(path.Base(key))
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, rc)
	return err
}

func (s *AlbumService) allPhotos(ctx context.Context, id int64) ([]repository.Photo, error) {
	filter := albumFilter(id)
	total, err := s.photos.Photos.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	return s.photos.Photos.List(ctx, filter, repository.ListParams{Limit: total})
}

func albumFilter(id int64) repository.PhotoFilter {
	return repository.PhotoFilter{AlbumIDs: []int64{id}}
}
