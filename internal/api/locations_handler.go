package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gallery/internal/repository"
	"gallery/internal/service"
)

type LocationHandler struct {
	locations *service.LocationService
	albums    *AlbumHandler
}

func NewLocationHandler(locations *service.LocationService, albums *AlbumHandler) *LocationHandler {
	return &LocationHandler{locations: locations, albums: albums}
}

func (h *LocationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/locations", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Detail)
		r.Put("/{id}", h.Rename)
		r.Delete("/{id}", h.Delete)
	})
}

type locationView struct {
	repository.Location
	Cover *repository.Photo `json:"cover"`
}

func (h *LocationHandler) view(r *http.Request, loc repository.Location) (locationView, error) {
	cover, err := h.locations.Cover(r.Context(), loc.ID)
	if err != nil {
		return locationView{}, err
	}
	return locationView{Location: loc, Cover: cover}, nil
}

func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, locs, err := h.locations.List(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]locationView, 0, len(locs))
	for _, loc := range locs {
		v, err := h.view(r, loc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, envelope{Data: views, Page: page})
}

func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	loc, err := h.locations.Create(r.Context(), actor(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: locationView{Location: *loc}})
}

type locationDetail struct {
	locationView
	Albums []albumView `json:"albums"`
}

// Detail 返回地点及其分页后的相册。
func (h *LocationHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	loc, page, albums, err := h.locations.Albums(r.Context(), id, r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := h.view(r, *loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	albumViews, err := h.albums.views(r, albums)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Data: locationDetail{locationView: v, Albums: albumViews},
		Page: page,
	})
}

func (h *LocationHandler) Rename(w http.ResponseWriter, r *http.Request) {
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
	loc, err := h.locations.Rename(r.Context(), actor(r), id, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := h.view(r, *loc)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: v})
}

func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.locations.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}
