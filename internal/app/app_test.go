package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/cleanup"
	"gallery/internal/config"
	"gallery/internal/logging"
	"gallery/internal/repository"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBDriver:      "memory",
		StorageDriver: "local",
		StorageDir:    t.TempDir(),
		MediaBaseURL:  "/media",
		MaxUploadSize: 1 << 20,
		Gallery:       config.DefaultGallery(),
	}
}

func TestWiring_MemoryAndLocal(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	logger := logging.Discard()

	repos, err := OpenRepositories(ctx, cfg, logger)
	require.NoError(t, err)
	defer repos.Close()

	store, err := OpenStorage(ctx, cfg)
	require.NoError(t, err)

	svcs, err := NewServices(cfg, repos, store, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"medium", "thumb"}, svcs.Photos.SizeNames())

	h, err := NewHandler(cfg, svcs, logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/albums", strings.NewReader(`{"name":"Summer"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anonymous created the album Summer")
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageDriver = "ftp"
	_, err := OpenStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestCleanupTargets(t *testing.T) {
	cfg := testConfig(t)
	repos, err := OpenRepositories(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)

	targets, err := CleanupTargets(cfg, repos)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "photo.file", targets[0].Name)
	assert.Equal(t, "photos/thumbnail", targets[1].Directory)

	cfg.Gallery.CleanupTargets = append(cfg.Gallery.CleanupTargets, config.CleanupTarget{Model: "album", Field: "cover", Directory: "covers"})
	_, err = CleanupTargets(cfg, repos)
	assert.Error(t, err)
}

func TestCleanup_RemovesOnlyUnreferencedFiles(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	logger := logging.Discard()

	repos, err := OpenRepositories(ctx, cfg, logger)
	require.NoError(t, err)
	store, err := OpenStorage(ctx, cfg)
	require.NoError(t, err)

	album, err := repos.Albums.Create(ctx, &repository.Album{Name: "Summer"})
	require.NoError(t, err)
	kept, err := store.Write(ctx, "photos/photo/kept.jpg", strings.NewReader("kept"))
	require.NoError(t, err)
	_, err = repos.Photos.Create(ctx, &repository.Photo{Name: "kept", File: kept.Path, AlbumID: album.ID})
	require.NoError(t, err)
	_, err = store.Write(ctx, "photos/photo/stray.jpg", strings.NewReader("stray"))
	require.NoError(t, err)

	targets, err := CleanupTargets(cfg, repos)
	require.NoError(t, err)
	report, err := cleanup.NewReclaimer(store, logger, cleanup.Options{}).Run(ctx, targets...)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	exists, err := store.Exists(ctx, "photos/photo/kept.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.Exists(ctx, "photos/photo/stray.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

}
