package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"gallery/internal/pagination"
	"gallery/internal/repository"
	"gallery/internal/storage"
	"gallery/internal/thumbnail"
)

const zipExtension = "zip"

// PhotoConfig 是照片服务的业务参数。
type PhotoConfig struct {
	PhotoDir          string
	AllowedExtensions []string
	// ThumbnailSizes 把尺寸名映射到几何描述，如 thumb -> 200x200-crop。
	ThumbnailSizes map[string]string
	// MaxFileSize 和 MaxArchiveSize 限制 zip 解压出的单个文件和总量，0 表示不限。
	MaxFileSize    int64
	MaxArchiveSize int64
	Page           pagination.Options
}

// PhotoDeps 汇总照片服务依赖的仓储和基础设施。
type PhotoDeps struct {
	Photos     repository.PhotoRepository
	Thumbnails repository.ThumbnailRepository
	Albums     repository.AlbumRepository
	People     repository.PersonRepository
	Store      storage.Storage
	Generator  *thumbnail.Generator
	Stream     *StreamService
	Hooks      Hooks
	Logger     *slog.Logger
}

// PhotoService 封装照片上传、浏览和编辑流程。
type PhotoService struct {
	PhotoDeps
	dir     string
	allowed map[string]struct{}
	sizes   map[string]thumbnail.Geometry
	page    pagination.Options

	maxFile    int64
	maxArchive int64
}

func NewPhotoService(deps PhotoDeps, cfg PhotoConfig) (*PhotoService, error) {
	if deps.Photos == nil || deps.Albums == nil || deps.Store == nil {
		return nil, errors.New("photo service requires photo and album repositories and a store")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	sizes := make(map[string]thumbnail.Geometry, len(cfg.ThumbnailSizes))
	for name, raw := range cfg.ThumbnailSizes {
		geo, err := thumbnail.ParseGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("thumbnail size %s: %w", name, err)
		}
		sizes[name] = geo
	}

	return &PhotoService{
		PhotoDeps:  deps,
		dir:        cfg.PhotoDir,
		allowed:    extensionSet(cfg.AllowedExtensions),
		sizes:      sizes,
		page:       cfg.Page,
		maxFile:    cfg.MaxFileSize,
		maxArchive: cfg.MaxArchiveSize,
	}, nil
}

// UploadFile 是一次上传中的单个文件。
type UploadFile struct {
	Name    string
	Content io.Reader
}

// Upload 把文件写入相册。zip 压缩包会被展开，其中允许的图片各自成为一张照片。
func (s *PhotoService) Upload(ctx context.Context, actor string, albumID int64, files []UploadFile) ([]repository.Photo, error) {
	if s == nil {
		return nil, notInitialized("photo")
	}
	if len(files) == 0 {
		return nil, invalid("no files uploaded")
	}
	for _, f := range files {
		if !s.isAllowed(f.Name) {
			return nil, invalid("file type not allowed: %s", path.Base(f.Name))
		}
	}

	album, err := s.Albums.GetByID(ctx, albumID)
	if err != nil {
		return nil, err
	}

	var created []repository.Photo
	for _, f := range files {
		var photos []repository.Photo
		if extension(f.Name) == zipExtension {
			photos, err = s.storeArchive(ctx, album.ID, f)
		} else {
			var photo *repository.Photo
			photo, err = s.storePhoto(ctx, album.ID, f.Name, f.Content)
			if photo != nil {
				photos = append(photos, *photo)
			}
		}
		created = append(created, photos...)
		if err != nil {
			break
		}
	}

	if len(created) > 0 {
		s.Stream.Send(ctx, actor, fmt.Sprintf("added %d photos to the album", len(created)), WithTarget(AlbumRef(album)))
	}
	return created, err
}

func (s *PhotoService) storeArchive(ctx context.Context, albumID int64, f UploadFile) ([]repository.Photo, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f.Content); err != nil {
		return nil, fmt.Errorf("read archive %s: %w", f.Name, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		return nil, invalid("bad zip archive %s: %v", path.Base(f.Name), err)
	}

	var (
		photos    []repository.Photo
		extracted int64
	)
	for _, member := range zr.File {
		if member.FileInfo().IsDir() || extension(member.Name) == zipExtension || !s.isAllowed(member.Name) {
			continue
		}
		limit := s.memberLimit(extracted)
		if limit >= 0 && member.UncompressedSize64 > uint64(limit) {
			return photos, invalid("%s in %s exceeds the extraction limit", path.Base(member.Name), path.Base(f.Name))
		}
		rc, err := member.Open()
		if err != nil {
			return photos, fmt.Errorf("open %s in %s: %w", member.Name, f.Name, err)
		}
		var content io.Reader = rc
		var capped *cappedReader
		if limit >= 0 {
			// 头部记录的大小可以伪造，按实际读取量再截断一次
			capped = &cappedReader{r: rc, n: limit}
			content = capped
		}
		photo, err := s.storePhoto(ctx, albumID, member.Name, content)
		_ = rc.Close()
		if errors.Is(err, errExtractLimit) || (capped != nil && capped.exceeded) {
			return photos, invalid("%s in %s exceeds the extraction limit", path.Base(member.Name), path.Base(f.Name))
		}
		if err != nil {
			return photos, err
		}
		if capped != nil {
			extracted += limit - capped.n
		}
		photos = append(photos, *photo)
	}
	return photos, nil
}

// memberLimit 返回下一个成员允许解压的字节数，-1 表示不限。
func (s *PhotoService) memberLimit(extracted int64) int64 {
	limit := int64(-1)
	if s.maxFile > 0 {
		limit = s.maxFile
	}
	if s.maxArchive > 0 {
		remaining := s.maxArchive - extracted
		if remaining < 0 {
			remaining = 0
		}
		if limit < 0 || remaining < limit {
			limit = remaining
		}
	}
	return limit
}

var errExtractLimit = errors.New("extraction limit exceeded")

// cappedReader 在读到超过 n 字节的数据时返回 errExtractLimit。
type cappedReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.n <= 0 {
		var one [1]byte
		k, err := c.r.Read(one[:])
		if k > 0 {
			c.exceeded = true
			return 0, errExtractLimit
		}
		return 0, err
	}
	if int64(len(p)) > c.n {
		p = p[:c.n]
	}
	k, err := c.r.Read(p)
	c.n -= int64(k)
	return k, err
}

func (s *PhotoService) storePhoto(ctx context.Context, albumID int64, name string, content io.Reader) (*repository.Photo, error) {
	key := path.Join(s.dir, uuid.NewString()+"."+extension(name))
	loc, err := s.Store.Write(ctx, key, content)
	if err != nil {
		return nil, fmt.Errorf("write storage: %w", err)
	}

	photo, err := s.Photos.Create(ctx, &repository.Photo{
		Name:    FriendlyName(name),
		File:    loc.Path,
		AlbumID: albumID,
	})
	if err != nil {
		if delErr := s.Store.Delete(ctx, loc.Path); delErr != nil {
			s.Logger.Warn("remove stored file after failed insert", "key", loc.Path, "error", delErr)
		}
		return nil, err
	}
	photosUploaded.Inc()
	s.Logger.Debug("photo stored", "photo_id", photo.ID, "key", photo.File)
	return photo, nil
}

func (s *PhotoService) isAllowed(name string) bool {
	_, ok := s.allowed[extension(name)]
	return ok
}

func (s *PhotoService) Get(ctx context.Context, id int64) (*repository.Photo, error) {
	if s == nil {
		return nil, notInitialized("photo")
	}
	return s.Photos.GetByID(ctx, id)
}

type renameInput struct {
	Name string `validate:"required,max=200"`
}

func (s *PhotoService) Rename(ctx context.Context, actor string, id int64, name string) (*repository.Photo, error) {
	name = strings.TrimSpace(name)
	if err := validateStruct(renameInput{Name: name}); err != nil {
		return nil, err
	}
	if err := s.Photos.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Stream.Send(ctx, actor, "renamed the photo", WithTarget(PhotoRef(photo)))
	return photo, nil
}

// Move 把照片移动到另一个相册。
func (s *PhotoService) Move(ctx context.Context, actor string, id, albumID int64) (*repository.Photo, error) {
	album, err := s.Albums.GetByID(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if err := s.Photos.Move(ctx, id, albumID); err != nil {
		return nil, err
	}
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Stream.Send(ctx, actor, "moved", WithObject(PhotoRef(photo)), WithJoin("to"), WithTarget(AlbumRef(album)))
	return photo, nil
}

// Tag 用给定的人物集合替换照片上的标记。
func (s *PhotoService) Tag(ctx context.Context, actor string, id int64, personIDs []int64) (*repository.Photo, error) {
	unique := dedupeIDs(personIDs)
	if s.People != nil {
		for _, pid := range unique {
			if _, err := s.People.GetByID(ctx, pid); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil, invalid("unknown person %d", pid)
				}
				return nil, err
			}
		}
	}
	if err := s.Photos.SetPeople(ctx, id, unique); err != nil {
		return nil, err
	}
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Stream.Send(ctx, actor, "tagged people in", WithTarget(PhotoRef(photo)))
	return photo, nil
}

// Rotate 将原图顺时针旋转 90 度，并按配置的几何尺寸重新生成已有缩略图。
func (s *PhotoService) Rotate(ctx context.Context, id int64) (*repository.Photo, error) {
	if s.Generator == nil {
		return nil, errors.New("image processing not configured")
	}
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Generator.Rotate(ctx, photo.File); err != nil {
		return nil, fmt.Errorf("rotate %s: %w", photo.File, err)
	}
	if s.Thumbnails == nil {
		return photo, nil
	}

	thumbs, err := s.Thumbnails.ListByPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, thumb := range thumbs {
		geo, ok := s.sizes[thumb.Size]
		if !ok {
			// 尺寸已从配置中移除，Thumbnail 不会再返回它
			continue
		}
		key, err := s.Generator.Generate(ctx, photo.File, geo)
		if err != nil {
			return nil, fmt.Errorf("regenerate %s thumbnail: %w", thumb.Size, err)
		}
		if key != thumb.File {
			if _, err := s.Thumbnails.Create(ctx, &repository.Thumbnail{PhotoID: id, Size: thumb.Size, File: key}); err != nil {
				return nil, err
			}
		}
	}
	return photo, nil
}

// Delete 删除照片记录，随后由 hooks 清理文件和相关动态。
func (s *PhotoService) Delete(ctx context.Context, actor string, id int64) error {
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	files, err := s.filesOf(ctx, *photo)
	if err != nil {
		return err
	}

	if err := s.Photos.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.Hooks.Fire(ctx, s.Logger, DeleteEvent{Type: TypePhoto, ID: id, Files: files})

	if album, err := s.Albums.GetByID(ctx, photo.AlbumID); err == nil {
		s.Stream.Send(ctx, actor, "deleted a photo from", WithTarget(AlbumRef(album)))
	}
	return nil
}

// Open 打开照片原始文件，返回的文件名为存储 key 的最后一段。
func (s *PhotoService) Open(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	rc, err := s.Store.Read(ctx, photo.File)
	if err != nil {
		return nil, "", err
	}
	return rc, path.Base(photo.File), nil
}

// SizeNames 返回已配置的缩略图尺寸名。
func (s *PhotoService) SizeNames() []string {
	names := make([]string, 0, len(s.sizes))
	for name := range s.sizes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Thumbnail 返回指定尺寸的缩略图，不存在时即时生成并记录。
func (s *PhotoService) Thumbnail(ctx context.Context, id int64, size string) (*repository.Thumbnail, error) {
	geo, ok := s.sizes[size]
	if !ok {
		return nil, invalid("unknown thumbnail size %q", size)
	}
	if s.Thumbnails == nil || s.Generator == nil {
		return nil, errors.New("image processing not configured")
	}
	photo, err := s.Photos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	thumb, err := s.Thumbnails.GetByPhotoAndSize(ctx, id, size)
	switch {
	case err == nil:
		exists, err := s.Store.Exists(ctx, thumb.File)
		if err != nil {
			return nil, err
		}
		if exists {
			return thumb, nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	key, err := s.Generator.Generate(ctx, photo.File, geo)
	if err != nil {
		return nil, fmt.Errorf("generate %s thumbnail: %w", size, err)
	}
	return s.Thumbnails.Create(ctx, &repository.Thumbnail{PhotoID: id, Size: size, File: key})
}

// OpenThumbnail 打开缩略图文件。
func (s *PhotoService) OpenThumbnail(ctx context.Context, id int64, size string) (io.ReadCloser, *repository.Thumbnail, error) {
	thumb, err := s.Thumbnail(ctx, id, size)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Store.Read(ctx, thumb.File)
	if err != nil {
		return nil, nil, err
	}
	return rc, thumb, nil
}

// Neighbors 描述照片在浏览上下文中的位置。
type Neighbors struct {
	Previous *int64 `json:"previous,omitempty"`
	Next     *int64 `json:"next,omitempty"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
}

// Neighbors 在按名称排序的上下文中定位照片，给出上一张和下一张。
// 上下文为空时使用照片所在的相册。
func (s *PhotoService) Neighbors(ctx context.Context, id int64, filter *repository.PhotoFilter) (*Neighbors, error) {
	var scope repository.PhotoFilter
	if filter != nil {
		scope = *filter
	} else {
		photo, err := s.Photos.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		scope = repository.PhotoFilter{AlbumIDs: []int64{photo.AlbumID}}
	}

	ids, err := s.Photos.IDsByName(ctx, scope)
	if err != nil {
		return nil, err
	}
	return locate(ids, id)
}

func locate(ids []int64, id int64) (*Neighbors, error) {
	index := -1
	for i, v := range ids {
		if v == id {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, repository.ErrNotFound
	}

	n := &Neighbors{Index: index + 1, Count: len(ids)}
	if index > 0 {
		prev := ids[index-1]
		n.Previous = &prev
	}
	if index < len(ids)-1 {
		next := ids[index+1]
		n.Next = &next
	}
	return n, nil
}

// SearchFilter 解析搜索串：q 匹配照片名或相册名，a/p/l 为相册、人物、地点 ID，可重复。
func SearchFilter(query string) (repository.PhotoFilter, error) {
	values, err := url.ParseQuery(query)
	if err != nil {
		return repository.PhotoFilter{}, invalid("bad search query: %v", err)
	}
	return repository.PhotoFilter{
		Query:       strings.TrimSpace(values.Get("q")),
		AlbumIDs:    ParseIDs(values["a"]),
		PersonIDs:   ParseIDs(values["p"]),
		LocationIDs: ParseIDs(values["l"]),
	}, nil
}

// List 分页列出满足条件的照片。
func (s *PhotoService) List(ctx context.Context, filter repository.PhotoFilter, query url.Values) (*pagination.Page, []repository.Photo, error) {
	if s == nil {
		return nil, nil, notInitialized("photo")
	}
	total, err := s.Photos.Count(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	page, params, err := paginate(total, query, s.page)
	if err != nil {
		return nil, nil, err
	}
	photos, err := s.Photos.List(ctx, filter, params)
	if err != nil {
		return nil, nil, err
	}
	return page, photos, nil
}

// Cover 返回上下文中按名称排序的第一张照片，没有照片时返回 nil。
func (s *PhotoService) Cover(ctx context.Context, filter repository.PhotoFilter) (*repository.Photo, error) {
	photos, err := s.Photos.List(ctx, filter, repository.ListParams{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, nil
	}
	return &photos[0], nil
}

// filesOf 收集照片及其缩略图的存储 key。
func (s *PhotoService) filesOf(ctx context.Context, photo repository.Photo) ([]string, error) {
	files := []string{photo.File}
	if s.Thumbnails == nil {
		return files, nil
	}
	thumbs, err := s.Thumbnails.ListByPhoto(ctx, photo.ID)
	if err != nil {
		return nil, err
	}
	for _, thumb := range thumbs {
		files = append(files, thumb.File)
	}
	return files, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
