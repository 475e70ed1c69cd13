package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/url"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/logging"
	"gallery/internal/pagination"
	"gallery/internal/repository"
	"gallery/internal/repository/memory"
	"gallery/internal/storage/local"
	"gallery/internal/thumbnail"
)

type harness struct {
	db        *memory.Store
	store     *local.Store
	stream    *StreamService
	photos    *PhotoService
	albums    *AlbumService
	locations *LocationService
	people    *PersonService
}

func newHarness(t *testing.T, pageSize int, tweaks ...func(*PhotoConfig)) *harness {
	t.Helper()
	db := memory.New()
	store := local.New(t.TempDir(), "/media")
	logger := logging.Discard()
	page := pagination.Options{PageSize: pageSize, PageParam: "p", AllowEmptyFirstPage: true}

	stream := NewStreamService(db.Actions(), page, logger)
	hooks := Hooks{NewFileJanitor(store, logger), NewActionPruner(db.Actions())}

	photos, err := NewPhotoService(PhotoDeps{
		Photos:     db.Photos(),
		Thumbnails: db.Thumbnails(),
		Albums:     db.Albums(),
		People:     db.People(),
		Store:      store,
		Generator:  thumbnail.NewGenerator(store, "photos/thumbnail", logger),
		Stream:     stream,
		Hooks:      hooks,
		Logger:     logger,
	}, photoConfig(page, tweaks...))
	require.NoError(t, err)

	albums := NewAlbumService(db.Albums(), db.Locations(), photos, stream, hooks, page, logger)
	return &harness{
		db:        db,
		store:     store,
		stream:    stream,
		photos:    photos,
		albums:    albums,
		locations: NewLocationService(db.Locations(), albums, photos, stream, hooks, page, logger),
		people:    NewPersonService(db.People(), photos, stream, hooks, page, logger),
	}
}

func photoConfig(page pagination.Options, tweaks ...func(*PhotoConfig)) PhotoConfig {
	cfg := PhotoConfig{
		PhotoDir:          "photos/photo",
		AllowedExtensions: []string{"zip", "bmp", "raw", "jpg", "jpeg", "png", "gif", "tiff"},
		ThumbnailSizes:    map[string]string{"thumb": "200x200-crop", "medium": "1024x1024-fit"},
		Page:              page,
	}
	for _, tweak := range tweaks {
		tweak(&cfg)
	}
	return cfg
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// actionTexts 按写入顺序返回全部动态的文字描述。
func actionTexts(t *testing.T, repo repository.ActionRepository) []string {
	t.Helper()
	ctx := context.Background()
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	actions, err := repo.List(ctx, repository.ListParams{Limit: n})
	require.NoError(t, err)
	out := make([]string, 0, len(actions))
	for i := len(actions) - 1; i >= 0; i-- {
		out = append(out, actions[i].String())
	}
	return out
}

func (h *harness) verbs(t *testing.T) []string {
	return actionTexts(t, h.db.Actions())
}

func (h *harness) album(t *testing.T, name string) *repository.Album {
	t.Helper()
	album, err := h.albums.Create(context.Background(), "tim", AlbumInput{Name: name})
	require.NoError(t, err)
	return album
}

func (h *harness) upload(t *testing.T, albumID int64, names ...string) []repository.Photo {
	t.Helper()
	files := make([]UploadFile, 0, len(names))
	for _, name := range names {
		files = append(files, UploadFile{Name: name, Content: bytes.NewReader(pngBytes(t, 40, 20))})
	}
	photos, err := h.photos.Upload(context.Background(), "tim", albumID, files)
	require.NoError(t, err)
	require.Len(t, photos, len(names))
	return photos
}

func (h *harness) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := h.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func imageSize(t *testing.T, h *harness, key string) (int, int) {
	t.Helper()
	rc, err := h.store.Read(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

/* ─────────────────────────── helpers ─────────────────────────── */

func TestFriendlyName(t *testing.T) {
	tests := map[string]string{
		"path/awesome_filename.jpg":       "awesome filename",
		"path/awesome_[]#_filename.jpg":   "awesome filename",
		"path/family photo # 1  .jpg":     "family photo 1",
		`C:\Users\tim\IMG_0001.JPG`:       "IMG 0001",
		"no-extension":                    "noextension",
		"dir/_leading_and_trailing_.jpeg": "leading and trailing",
	}
	for in, want := range tests {
		assert.Equal(t, want, FriendlyName(in), "input %q", in)
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, FriendlyName(string(long)+".jpg"), maxNameLength)
}

func TestSearchFilter(t *testing.T) {
	filter, err := SearchFilter("q=+beach+&a=1&a=2&p=3&l=4&l=x")
	require.NoError(t, err)
	assert.Equal(t, repository.PhotoFilter{
		Query:       "beach",
		AlbumIDs:    []int64{1, 2},
		PersonIDs:   []int64{3},
		LocationIDs: []int64{4},
	}, filter)

	_, err = SearchFilter("q=%zz")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 4}, ParseIDs([]string{"1,2", "x", "-3", " 4 "}))
	assert.Nil(t, ParseIDs(nil))
}

/* ─────────────────────────── photos ─────────────────────────── */

func TestPhotoService_UploadImagesAndArchive(t *testing.T) {
	h := newHarness(t, 50)
	album := h.album(t, "Summer")

	archive := zipBytes(t, map[string][]byte{
		"trip/day_one.png": pngBytes(t, 10, 10),
		"notes.txt":        []byte("not a photo"),
		"nested.zip":       []byte("PK"),
	})
	photos, err := h.photos.Upload(context.Background(), "tim", album.ID, []UploadFile{
		{Name: "dir/awesome_beach.png", Content: bytes.NewReader(pngBytes(t, 40, 20))},
		{Name: "batch.ZIP", Content: bytes.NewReader(archive)},
	})
	require.NoError(t, err)
	require.Len(t, photos, 2)

	assert.Equal(t, "awesome beach", photos[0].Name)
	assert.Equal(t, "day one", photos[1].Name)
	for _, p := range photos {
		assert.Equal(t, album.ID, p.AlbumID)
		assert.Regexp(t, `^photos/photo/[0-9a-f-]{36}\.png$`, p.File)
		assert.True(t, h.exists(t, p.File))
	}

	assert.Contains(t, h.verbs(t), "tim added 2 photos to the album Summer")
}

func TestPhotoService_UploadRejectsDisallowedType(t *testing.T) {
	h := newHarness(t, 50)
	album := h.album(t, "Summer")

	_, err := h.photos.Upload(context.Background(), "tim", album.ID, []UploadFile{
		{Name: "ok.jpg", Content: bytes.NewReader(nil)},
		{Name: "virus.exe", Content: bytes.NewReader([]byte("MZ"))},
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	keys, err := h.store.List(context.Background(), "photos/photo")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPhotoService_UploadArchiveExtractionLimits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50, func(cfg *PhotoConfig) {
		cfg.MaxFileSize = 1 << 20
		cfg.MaxArchiveSize = 3 << 20
	})
	album := h.album(t, "Summer")

	// 全零内容压缩率极高，压缩包很小但解压后超过单文件上限
	bomb := zipBytes(t, map[string][]byte{"bomb.bmp": make([]byte, 4<<20)})
	assert.Less(t, len(bomb), 1<<20)
	_, err := h.photos.Upload(ctx, "tim", album.ID, []UploadFile{{Name: "bomb.zip", Content: bytes.NewReader(bomb)}})
	require.ErrorIs(t, err, ErrInvalidInput)

	// 每个成员都在单文件上限内，但合计超过总量上限
	big := make([]byte, 900<<10)
	many := zipBytes(t, map[string][]byte{"a.bmp": big, "b.bmp": big, "c.bmp": big, "d.bmp": big})
	photos, err := h.photos.Upload(ctx, "tim", album.ID, []UploadFile{{Name: "many.zip", Content: bytes.NewReader(many)}})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Len(t, photos, 3)

	keys, err := h.store.List(ctx, "photos/photo")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestCappedReader_RejectsUnderstatedSize(t *testing.T) {
	r := &cappedReader{r: bytes.NewReader(make([]byte, 10)), n: 4}
	_, err := io.ReadAll(r)
	require.ErrorIs(t, err, errExtractLimit)
	assert.True(t, r.exceeded)

	r = &cappedReader{r: bytes.NewReader(make([]byte, 4)), n: 4}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 4)
	assert.False(t, r.exceeded)
}

func TestPhotoService_UploadUnknownAlbum(t *testing.T) {
	h := newHarness(t, 50)
	_, err := h.photos.Upload(context.Background(), "tim", 99, []UploadFile{
		{Name: "a.png", Content: bytes.NewReader(pngBytes(t, 4, 4))},
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPhotoService_ThumbnailGetOrCreate(t *testing.T) {
	h := newHarness(t, 50)
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]
	ctx := context.Background()

	thumb, err := h.photos.Thumbnail(ctx, photo.ID, "thumb")
	require.NoError(t, err)
	assert.Equal(t, "thumb", thumb.Size)
	assert.Equal(t, thumbnail.DerivedKey(photo.File, thumbnail.Geometry{Width: 200, Height: 200, Mode: thumbnail.ModeCrop}, "photos/thumbnail"), thumb.File)
	w, hgt := imageSize(t, h, thumb.File)
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, hgt)

	again, err := h.photos.Thumbnail(ctx, photo.ID, "thumb")
	require.NoError(t, err)
	assert.Equal(t, thumb.ID, again.ID)

	// 文件丢失后重新生成
	require.NoError(t, h.store.Delete(ctx, thumb.File))
	regenerated, err := h.photos.Thumbnail(ctx, photo.ID, "thumb")
	require.NoError(t, err)
	assert.True(t, h.exists(t, regenerated.File))

	_, err = h.photos.Thumbnail(ctx, photo.ID, "huge")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []string{"medium", "thumb"}, h.photos.SizeNames())
}

func TestPhotoService_DeleteRemovesFilesAndActions(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]

	thumb, err := h.photos.Thumbnail(ctx, photo.ID, "medium")
	require.NoError(t, err)
	_, err = h.photos.Rename(ctx, "tim", photo.ID, "sunset")
	require.NoError(t, err)

	require.NoError(t, h.photos.Delete(ctx, "tim", photo.ID))

	assert.False(t, h.exists(t, photo.File))
	assert.False(t, h.exists(t, thumb.File))
	_, err = h.photos.Get(ctx, photo.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	verbs := h.verbs(t)
	assert.NotContains(t, verbs, "tim renamed the photo sunset")
	assert.Contains(t, verbs, "tim added 1 photos to the album Summer")
	assert.Contains(t, verbs, "tim deleted a photo from Summer")
}

func TestPhotoService_RenameValidation(t *testing.T) {
	h := newHarness(t, 50)
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]

	_, err := h.photos.Rename(context.Background(), "tim", photo.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.photos.Rename(context.Background(), "tim", 999, "name")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPhotoService_MoveAndTag(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]
	winter := h.album(t, "Winter")

	moved, err := h.photos.Move(ctx, "tim", photo.ID, winter.ID)
	require.NoError(t, err)
	assert.Equal(t, winter.ID, moved.AlbumID)
	assert.Contains(t, h.verbs(t), "tim moved beach to Winter")

	_, err = h.photos.Move(ctx, "tim", photo.ID, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	alice, err := h.people.Create(ctx, "tim", "Alice")
	require.NoError(t, err)

	tagged, err := h.photos.Tag(ctx, "tim", photo.ID, []int64{alice.ID, alice.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.ID}, tagged.PersonIDs)

	_, err = h.photos.Tag(ctx, "tim", photo.ID, []int64{12345})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPhotoService_Rotate(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]

	medium, err := h.photos.Thumbnail(ctx, photo.ID, "medium")
	require.NoError(t, err)
	w, hgt := imageSize(t, h, medium.File)
	require.Equal(t, []int{40, 20}, []int{w, hgt})

	_, err = h.photos.Rotate(ctx, photo.ID)
	require.NoError(t, err)

	w, hgt = imageSize(t, h, photo.File)
	assert.Equal(t, []int{20, 40}, []int{w, hgt})
	w, hgt = imageSize(t, h, medium.File)
	assert.Equal(t, []int{20, 40}, []int{w, hgt})
}

func TestPhotoService_RotateKeepsThumbnailGeometry(t *testing.T) {
	h := newHarness(t, 50, func(cfg *PhotoConfig) {
		cfg.ThumbnailSizes["banner"] = "200x100-crop"
	})
	ctx := context.Background()
	photo := h.upload(t, h.album(t, "Summer").ID, "beach.png")[0]

	banner, err := h.photos.Thumbnail(ctx, photo.ID, "banner")
	require.NoError(t, err)
	w, hgt := imageSize(t, h, banner.File)
	require.Equal(t, []int{200, 100}, []int{w, hgt})

	_, err = h.photos.Rotate(ctx, photo.ID)
	require.NoError(t, err)

	again, err := h.photos.Thumbnail(ctx, photo.ID, "banner")
	require.NoError(t, err)
	assert.Equal(t, banner.File, again.File)
	w, hgt = imageSize(t, h, again.File)
	assert.Equal(t, []int{200, 100}, []int{w, hgt})
}

func TestPhotoService_Neighbors(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	album := h.album(t, "Summer")
	photos := h.upload(t, album.ID, "b.png", "a.png", "c.png")
	b, a, c := photos[0], photos[1], photos[2]

	n, err := h.photos.Neighbors(ctx, b.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n.Index)
	assert.Equal(t, 3, n.Count)
	require.NotNil(t, n.Previous)
	require.NotNil(t, n.Next)
	assert.Equal(t, a.ID, *n.Previous)
	assert.Equal(t, c.ID, *n.Next)

	first, err := h.photos.Neighbors(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, first.Previous)
	assert.Equal(t, 1, first.Index)

	filter, err := SearchFilter("q=c")
	require.NoError(t, err)
	only, err := h.photos.Neighbors(ctx, c.ID, &filter)
	require.NoError(t, err)
	assert.Equal(t, &Neighbors{Index: 1, Count: 1}, only)

	_, err = h.photos.Neighbors(ctx, a.ID, &filter)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPhotoService_ListSearchAndPaging(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	summer := h.album(t, "Summer")
	h.upload(t, summer.ID, "beach_1.png", "beach_2.png", "dune.png")
	h.upload(t, h.album(t, "Beach trip").ID, "car.png")

	filter, err := SearchFilter("q=BEACH")
	require.NoError(t, err)

	page, photos, err := h.photos.List(ctx, filter, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "p=2", page.NextQuery)
	require.Len(t, photos, 2)
	assert.Equal(t, "beach 1", photos[0].Name)

	page, photos, err = h.photos.List(ctx, filter, url.Values{"p": {"2"}})
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "car", photos[0].Name)
	assert.Equal(t, "p=1", page.PreviousQuery)

	_, _, err = h.photos.List(ctx, filter, url.Values{"p": {"3"}})
	assert.ErrorIs(t, err, pagination.ErrPageNotFound)

	cover, err := h.albums.Cover(ctx, summer.ID)
	require.NoError(t, err)
	assert.Equal(t, "beach 1", cover.Name)
}

/* ─────────────────────────── albums ─────────────────────────── */

func intPtr(v int) *int { return &v }

func TestAlbumService_CreateValidation(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	loc, err := h.locations.Create(ctx, "tim", "Coast")
	require.NoError(t, err)
	unknown := int64(777)

	tests := []struct {
		name  string
		input AlbumInput
	}{
		{"empty name", AlbumInput{Name: "  "}},
		{"month out of range", AlbumInput{Name: "x", Month: intPtr(13)}},
		{"year too early", AlbumInput{Name: "x", Year: intPtr(1900)}},
		{"unknown location", AlbumInput{Name: "x", LocationID: &unknown}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.albums.Create(ctx, "tim", tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	album, err := h.albums.Create(ctx, "tim", AlbumInput{Name: " Trip ", Month: intPtr(12), Year: intPtr(2013), LocationID: &loc.ID})
	require.NoError(t, err)
	assert.Equal(t, "Trip", album.Name)
	assert.Equal(t, "December 2013", album.DateDisplay())

	edited, err := h.albums.Edit(ctx, "tim", album.ID, AlbumInput{Name: "Trip", Year: intPtr(2014)})
	require.NoError(t, err)
	assert.Equal(t, "2014", edited.DateDisplay())
	assert.Nil(t, edited.LocationID)
}

func TestAlbumService_Merge(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	source := h.album(t, "Old")
	target := h.album(t, "New")
	h.upload(t, source.ID, "a.png", "b.png")
	h.upload(t, target.ID, "c.png")

	_, err := h.albums.Merge(ctx, "tim", source.ID, source.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	merged, err := h.albums.Merge(ctx, "tim", source.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, merged.ID)

	_, err = h.albums.Get(ctx, source.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, page, photos, err := h.albums.Photos(ctx, target.ID, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Len(t, photos, 3)
	for _, p := range photos {
		assert.True(t, h.exists(t, p.File))
	}
	assert.Contains(t, h.verbs(t), "tim merged Old into New")
}

func TestAlbumService_DeleteCascades(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	album := h.album(t, "Summer")
	photos := h.upload(t, album.ID, "a.png", "b.png")
	thumb, err := h.photos.Thumbnail(ctx, photos[0].ID, "thumb")
	require.NoError(t, err)

	require.NoError(t, h.albums.Delete(ctx, "tim", album.ID))

	for _, p := range photos {
		assert.False(t, h.exists(t, p.File))
		_, err := h.photos.Get(ctx, p.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.False(t, h.exists(t, thumb.File))
	assert.Equal(t, []string{"tim deleted the album Summer"}, h.verbs(t))
}

func TestAlbumService_WriteZip(t *testing.T) {
	h := newHarness(t, 50)
	album := h.album(t, "Summer")
	photos := h.upload(t, album.ID, "a.png", "b.png")

	var buf bytes.Buffer
	name, err := h.albums.WriteZip(context.Background(), album.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Summer.zip", name)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	want := []string{lastSegment(photos[0].File), lastSegment(photos[1].File)}
	assert.ElementsMatch(t, want, got)
}

func lastSegment(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}

func TestAlbumService_ListPaging(t *testing.T) {
	h := newHarness(t, 2)
	for _, name := range []string{"c", "a", "b"} {
		h.album(t, name)
	}
	ctx := context.Background()

	page, albums, err := h.albums.List(ctx, repository.AlbumFilter{}, url.Values{"p": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Number)
	require.Len(t, albums, 1)
	assert.Equal(t, "c", albums[0].Name)

	_, _, err = h.albums.List(ctx, repository.AlbumFilter{}, url.Values{"p": {"3"}})
	assert.ErrorIs(t, err, pagination.ErrPageNotFound)
}

/* ─────────────────────────── locations / people ─────────────────────────── */

func TestLocationService_DeleteKeepsAlbums(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	loc, err := h.locations.Create(ctx, "tim", "Coast")
	require.NoError(t, err)
	album, err := h.albums.Create(ctx, "tim", AlbumInput{Name: "Beach", LocationID: &loc.ID})
	require.NoError(t, err)
	h.upload(t, album.ID, "wave.png")

	_, page, albums, err := h.locations.Albums(ctx, loc.ID, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, album.ID, albums[0].ID)

	cover, err := h.locations.Cover(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, "wave", cover.Name)

	renamed, err := h.locations.Rename(ctx, "tim", loc.ID, "Shore")
	require.NoError(t, err)
	assert.Equal(t, "Shore", renamed.Name)

	require.NoError(t, h.locations.Delete(ctx, "tim", loc.ID))
	kept, err := h.albums.Get(ctx, album.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.LocationID)
	assert.NotContains(t, h.verbs(t), "tim created the location Coast")
}

func TestPersonService_TagAndDelete(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()
	album := h.album(t, "Summer")
	photos := h.upload(t, album.ID, "a.png", "b.png")
	alice, err := h.people.Create(ctx, "tim", "Alice")
	require.NoError(t, err)

	_, err = h.photos.Tag(ctx, "tim", photos[1].ID, []int64{alice.ID})
	require.NoError(t, err)

	_, page, tagged, err := h.people.Photos(ctx, alice.ID, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, photos[1].ID, tagged[0].ID)

	n, err := h.photos.Neighbors(ctx, photos[1].ID, &repository.PhotoFilter{PersonIDs: []int64{alice.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, n.Count)

	require.NoError(t, h.people.Delete(ctx, "tim", alice.ID))
	photo, err := h.photos.Get(ctx, photos[1].ID)
	require.NoError(t, err)
	assert.Empty(t, photo.PersonIDs)
	_, err = h.people.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

/* ─────────────────────────── stream / hooks ─────────────────────────── */

func TestStreamService_List(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.stream.Send(ctx, "", "logged in")
	h.album(t, "Summer")
	h.album(t, "Winter")

	page, actions, err := h.stream.List(ctx, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	require.Len(t, actions, 2)
	assert.Equal(t, "tim created the album Winter", actions[0].String())

	_, actions, err = h.stream.List(ctx, url.Values{"p": {"2"}})
	require.NoError(t, err)
	assert.Equal(t, "anonymous logged in", actions[0].String())
}

func TestHooks_FireRunsEveryHook(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	hooks := Hooks{
		DeleteHookFunc(func(ctx context.Context, ev DeleteEvent) error {
			calls = append(calls, "first")
			return boom
		}),
		DeleteHookFunc(func(ctx context.Context, ev DeleteEvent) error {
			calls = append(calls, "second:"+ev.Type+":"+strconv.FormatInt(ev.ID, 10))
			return nil
		}),
	}

	err := hooks.Fire(context.Background(), logging.Discard(), DeleteEvent{Type: TypePhoto, ID: 7})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second:photo:7"}, calls)
}

func TestActionPruner(t *testing.T) {
	db := memory.New()
	actions := db.Actions()
	ctx := context.Background()
	photo := &repository.ObjectRef{Type: TypePhoto, ID: "3", Label: "beach"}
	album := &repository.ObjectRef{Type: TypeAlbum, ID: "3", Label: "Summer"}

	_, _ = actions.Create(ctx, &repository.Action{Actor: "tim", Verb: "moved", ActionObject: photo, Join: "to", Target: album})
	_, _ = actions.Create(ctx, &repository.Action{Actor: "tim", Verb: "created the album", Target: album})

	require.NoError(t, NewActionPruner(actions).AfterDelete(ctx, DeleteEvent{Type: TypePhoto, ID: 3}))
	assert.Equal(t, []string{"tim created the album Summer"}, actionTexts(t, actions))
}
