// Package app 把配置装配成仓储、存储、服务和 HTTP handler，供各个命令共用。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"gallery/internal/api"
	"gallery/internal/cleanup"
	"gallery/internal/config"
	"gallery/internal/database"
	"gallery/internal/migrations"
	"gallery/internal/pagination"
	"gallery/internal/repository"
	"gallery/internal/repository/memory"
	"gallery/internal/repository/postgres"
	"gallery/internal/service"
	"gallery/internal/storage"
	"gallery/internal/storage/local"
	"gallery/internal/storage/s3"
	"gallery/internal/thumbnail"
)

// Repositories 汇总全部仓储。
type Repositories struct {
	Locations  repository.LocationRepository
	Albums     repository.AlbumRepository
	People     repository.PersonRepository
	Photos     repository.PhotoRepository
	Thumbnails repository.ThumbnailRepository
	Actions    repository.ActionRepository

	db *sql.DB
}

// Close 释放数据库连接，内存仓储无需释放。
func (r *Repositories) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// OpenRepositories 按 DB_DRIVER 选择仓储实现。postgres 会先执行迁移。
func OpenRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Repositories, error) {
	if cfg.DBDriver == "memory" {
		logger.Warn("using in-memory repositories, data is lost on restart")
		return memoryRepositories(memory.New()), nil
	}

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.Apply(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Repositories{
		Locations:  postgres.NewLocationRepository(db),
		Albums:     postgres.NewAlbumRepository(db),
		People:     postgres.NewPersonRepository(db),
		Photos:     postgres.NewPhotoRepository(db),
		Thumbnails: postgres.NewThumbnailRepository(db),
		Actions:    postgres.NewActionRepository(db),
		db:         db,
	}, nil
}

func memoryRepositories(store *memory.Store) *Repositories {
	return &Repositories{
		Locations:  store.Locations(),
		Albums:     store.Albums(),
		People:     store.People(),
		Photos:     store.Photos(),
		Thumbnails: store.Thumbnails(),
		Actions:    store.Actions(),
	}
}

// OpenStorage 按 STORAGE_DRIVER 创建文件存储。
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		})
	case "local", "":
		return local.New(cfg.StorageDir, cfg.MediaBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// Services 是 HTTP 层使用的全部业务服务。
type Services struct {
	Stream    *service.StreamService
	Photos    *service.PhotoService
	Albums    *service.AlbumService
	Locations *service.LocationService
	People    *service.PersonService
}

// NewServices 装配业务服务。删除后的 hook 依次清理文件和相关动态。
func NewServices(cfg *config.Config, repos *Repositories, store storage.Storage, logger *slog.Logger) (*Services, error) {
	g := cfg.Gallery
	page := pagination.Options{
		PageSize:            g.PhotosPerPage,
		PageParam:           g.PageParam,
		AllowEmptyFirstPage: true,
	}

	stream := service.NewStreamService(repos.Actions, page, logger)
	hooks := service.Hooks{
		service.NewFileJanitor(store, logger),
		service.NewActionPruner(repos.Actions),
	}

	photos, err := service.NewPhotoService(service.PhotoDeps{
		Photos:     repos.Photos,
		Thumbnails: repos.Thumbnails,
		Albums:     repos.Albums,
		People:     repos.People,
		Store:      store,
		Generator:  thumbnail.NewGenerator(store, g.ThumbnailDir, logger),
		Stream:     stream,
		Hooks:      hooks,
		Logger:     logger,
	}, service.PhotoConfig{
		PhotoDir:          g.PhotoDir,
		AllowedExtensions: g.AllowedExtensions,
		ThumbnailSizes:    g.ThumbnailSizes,
		MaxFileSize:       cfg.MaxUploadSize,
		MaxArchiveSize:    g.MaxArchiveSize,
		Page:              page,
	})
	if err != nil {
		return nil, err
	}

	albums := service.NewAlbumService(repos.Albums, repos.Locations, photos, stream, hooks, page, logger)
	return &Services{
		Stream:    stream,
		Photos:    photos,
		Albums:    albums,
		Locations: service.NewLocationService(repos.Locations, albums, photos, stream, hooks, page, logger),
		People:    service.NewPersonService(repos.People, photos, stream, hooks, page, logger),
	}, nil
}

// NewHandler 构建带全部业务路由的 HTTP handler。
func NewHandler(cfg *config.Config, svcs *Services, logger *slog.Logger) (http.Handler, error) {
	photos := api.NewPhotoHandler(svcs.Photos, cfg.MaxUploadSize)
	albums := api.NewAlbumHandler(svcs.Albums, photos)
	return api.NewRouter(cfg, logger,
		photos,
		albums,
		api.NewLocationHandler(svcs.Locations, albums),
		api.NewPersonHandler(svcs.People, photos),
		api.NewStreamHandler(svcs.Stream),
	)
}

// CleanupTargets 把配置中的 (模型, 字段, 目录) 解析为可执行的清理目标。
func CleanupTargets(cfg *config.Config, repos *Repositories) ([]cleanup.Target, error) {
	registry := cleanup.Registry{
		"photo.file":     repos.Photos.FilePaths,
		"thumbnail.file": repos.Thumbnails.FilePaths,
	}
	specs := make([]cleanup.Spec, 0, len(cfg.Gallery.CleanupTargets))
	for _, t := range cfg.Gallery.CleanupTargets {
		specs = append(specs, cleanup.Spec{Model: t.Model, Field: t.Field, Directory: t.Directory})
	}
	return registry.Resolve(specs)
}
