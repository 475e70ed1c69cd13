package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gallery/internal/logging"
	"gallery/internal/repository"
	"gallery/internal/service"
)

// AlbumHandler 提供相册的增删改查、合并与打包下载。
type AlbumHandler struct {
	albums *service.AlbumService
	photos *PhotoHandler
}

func NewAlbumHandler(albums *service.AlbumService, photos *PhotoHandler) *AlbumHandler {
	return &AlbumHandler{albums: albums, photos: photos}
}

func (h *AlbumHandler) RegisterRoutes(r chi.Router) {
	r.Route("/albums", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Detail)
		r.Put("/{id}", h.Edit)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/merge", h.Merge)
		r.Get("/{id}/download", h.Download)
	})
}

type albumView struct {
	repository.Album
	DateDisplay string            `json:"date_display"`
	Cover       *repository.Photo `json:"cover"`
}

func (h *AlbumHandler) view(r *http.Request, album repository.Album) (albumView, error) {
	cover, err := h.albums.Cover(r.Context(), album.ID)
	if err != nil {
		return albumView{}, err
	}
	return albumView{Album: album, DateDisplay: album.DateDisplay(), Cover: cover}, nil
}

func (h *AlbumHandler) views(r *http.Request, albums []repository.Album) ([]albumView, error) {
	out := make([]albumView, 0, len(albums))
	for _, album := range albums {
		v, err := h.view(r, album)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// List 分页列出相册，可用 location 参数限定地点。
func (h *AlbumHandler) List(w http.ResponseWriter, r *http.Request) {
	locationID, err := queryID(r, "location")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, albums, err := h.albums.List(r.Context(), repository.AlbumFilter{LocationID: locationID}, r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views, err := h.views(r, albums)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: views, Page: page})
}

func (h *AlbumHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.AlbumInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	album, err := h.albums.Create(r.Context(), actor(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondAlbum(w, r, http.StatusCreated, album)
}

func (h *AlbumHandler) respondAlbum(w http.ResponseWriter, r *http.Request, status int, album *repository.Album) {
	v, err := h.view(r, *album)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, envelope{Data: v})
}

type albumDetail struct {
	albumView
	Photos []photoView `json:"photos"`
}

// Detail 返回相册及其分页后的照片。
func (h *AlbumHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	album, page, photos, err := h.albums.Photos(r.Context(), id, r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := h.view(r, *album)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Data: albumDetail{albumView: v, Photos: h.photos.views(photos)},
		Page: page,
	})
}

func (h *AlbumHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in service.AlbumInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	album, err := h.albums.Edit(r.Context(), actor(r), id, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondAlbum(w, r, http.StatusOK, album)
}

func (h *AlbumHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.albums.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}

type mergeRequest struct {
	AlbumID int64 `json:"album_id"`
}

// Merge 把路径中的相册合并进请求体指定的相册。
func (h *AlbumHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req mergeRequest
	if err := decodeJSON(w, r, &req); err != nil || req.AlbumID <= 0 {
		writeError(w, http.StatusBadRequest, "album_id is required")
		return
	}
	target, err := h.albums.Merge(r.Context(), actor(r), id, req.AlbumID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondAlbum(w, r, http.StatusOK, target)
}

// Download 把相册打包为 zip 流式返回。
func (h *AlbumHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	album, err := h.albums.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// 开始写入 zip 后无法再改状态码
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(album.Name+".zip"))
	if _, err := h.albums.WriteZip(r.Context(), id, w); err != nil {
		logging.FromContext(r.Context()).Error("album download failed", "album", id, "error", err)
	}
}
