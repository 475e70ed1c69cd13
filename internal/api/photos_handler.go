package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gallery/internal/repository"
	"gallery/internal/service"
)

const multipartMemoryBudget int64 = 16 * 1024 * 1024

// PhotoHandler 提供照片相关的 HTTP 端点。
type PhotoHandler struct {
	photos        *service.PhotoService
	maxUploadSize int64
}

func NewPhotoHandler(photos *service.PhotoService, maxUploadSize int64) *PhotoHandler {
	return &PhotoHandler{photos: photos, maxUploadSize: maxUploadSize}
}

func (h *PhotoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/photos", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/upload", h.Upload)
		r.Get("/{id}", h.Detail)
		r.Delete("/{id}", h.Delete)
		r.Get("/{id}/download", h.Download)
		r.Get("/{id}/thumbnails/{size}", h.Thumbnail)
		r.Post("/{id}/rename", h.Rename)
		r.Post("/{id}/move", h.Move)
		r.Post("/{id}/tag", h.Tag)
		r.Post("/{id}/rotate", h.Rotate)
	})
}

type photoView struct {
	*repository.Photo
	Neighbors  *service.Neighbors `json:"neighbors,omitempty"`
	Thumbnails map[string]string  `json:"thumbnails"`
	Download   string             `json:"download"`
}

func (h *PhotoHandler) view(photo *repository.Photo) photoView {
	thumbs := make(map[string]string)
	for _, size := range h.photos.SizeNames() {
		thumbs[size] = fmt.Sprintf("/photos/%d/thumbnails/%s", photo.ID, size)
	}
	return photoView{
		Photo:      photo,
		Thumbnails: thumbs,
		Download:   fmt.Sprintf("/photos/%d/download", photo.ID),
	}
}

func (h *PhotoHandler) views(photos []repository.Photo) []photoView {
	out := make([]photoView, 0, len(photos))
	for i := range photos {
		out = append(out, h.view(&photos[i]))
	}
	return out
}

// List 按搜索串分页列出照片。query 参数承载完整的搜索串（q、a、p、l），页码使用分页参数。
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := service.SearchFilter(r.URL.Query().Get("query"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	page, photos, err := h.photos.List(r.Context(), filter, r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: h.views(photos), Page: page})
}

// Upload 接受 multipart/form-data：album 为目标相册，files 可重复，支持 zip。
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartMemoryBudget)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds size limit (%d bytes)", h.maxUploadSize))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	albumID, err := strconv.ParseInt(r.FormValue("album"), 10, 64)
	if err != nil || albumID <= 0 {
		writeError(w, http.StatusBadRequest, "album field is required")
		return
	}

	headers := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unable to read uploaded file")
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		files = append(files, service.UploadFile{Name: header.Filename, Content: f})
	}

	photos, err := h.photos.Upload(r.Context(), actor(r), albumID, files)
	if err != nil && len(photos) > 0 {
		// 失败前已保存的照片不会回滚，随错误一起返回
		status, message := serviceError(r, err)
		writeJSON(w, status, partialEnvelope{Data: h.views(photos), Error: message})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: h.views(photos)})
}

// Detail 返回照片及其在浏览上下文中的位置。
// 上下文由 album、person 或 query 参数决定，缺省为照片所在相册。
func (h *PhotoHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	photo, err := h.photos.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	filter, err := neighborContext(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	neighbors, err := h.photos.Neighbors(r.Context(), id, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	view := h.view(photo)
	view.Neighbors = neighbors
	writeJSON(w, http.StatusOK, envelope{Data: view})
}

func neighborContext(r *http.Request) (*repository.PhotoFilter, error) {
	q := r.URL.Query()
	if raw, ok := q["query"]; ok {
		filter, err := service.SearchFilter(firstOf(raw))
		if err != nil {
			return nil, err
		}
		return &filter, nil
	}
	if ids := service.ParseIDs(q["person"]); len(ids) > 0 {
		return &repository.PhotoFilter{PersonIDs: ids[:1]}, nil
	}
	if ids := service.ParseIDs(q["album"]); len(ids) > 0 {
		return &repository.PhotoFilter{AlbumIDs: ids[:1]}, nil
	}
	return nil, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Download 以附件形式返回原图。
func (h *PhotoHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, name, err := h.photos.Open(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Disposition", attachment(name))
	if _, err := io.Copy(w, content); err != nil {
		// 客户端可能已断开，无法再写入错误响应
		return
	}
}

// Thumbnail 返回指定尺寸的缩略图，首次访问时生成。
func (h *PhotoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, thumb, err := h.photos.OpenThumbnail(r.Context(), id, chi.URLParam(r, "size"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType(thumb.File))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	_, _ = io.Copy(w, content)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *PhotoHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	photo, err := h.photos.Rename(r.Context(), actor(r), id, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: h.view(photo)})
}

type moveRequest struct {
	AlbumID int64 `json:"album_id"`
}

func (h *PhotoHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.AlbumID <= 0 {
		writeError(w, http.StatusBadRequest, "album_id is required")
		return
	}
	photo, err := h.photos.Move(r.Context(), actor(r), id, req.AlbumID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: h.view(photo)})
}

type tagRequest struct {
	PersonIDs []int64 `json:"person_ids"`
}

func (h *PhotoHandler) Tag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	photo, err := h.photos.Tag(r.Context(), actor(r), id, req.PersonIDs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: h.view(photo)})
}

func (h *PhotoHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	photo, err := h.photos.Rotate(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: h.view(photo)})
}

func (h *PhotoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.photos.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
