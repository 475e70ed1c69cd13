package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gallery/internal/repository"
	"gallery/internal/service"
)

type PersonHandler struct {
	people *service.PersonService
	photos *PhotoHandler
}

func NewPersonHandler(people *service.PersonService, photos *PhotoHandler) *PersonHandler {
	return &PersonHandler{people: people, photos: photos}
}

func (h *PersonHandler) RegisterRoutes(r chi.Router) {
	r.Route("/people", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Detail)
		r.Put("/{id}", h.Rename)
		r.Delete("/{id}", h.Delete)
	})
}

type personView struct {
	repository.Person
	Cover *repository.Photo `json:"cover"`
}

func (h *PersonHandler) view(r *http.Request, person repository.Person) (personView, error) {
	cover, err := h.people.Cover(r.Context(), person.ID)
	if err != nil {
		return personView{}, err
	}
	return personView{Person: person, Cover: cover}, nil
}

func (h *PersonHandler) List(w http.ResponseWriter, r *http.Request) {
	page, people, err := h.people.List(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]personView, 0, len(people))
	for _, person := range people {
		v, err := h.view(r, person)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, envelope{Data: views, Page: page})
}

func (h *PersonHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	person, err := h.people.Create(r.Context(), actor(r), req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: personView{Person: *person}})
}

type personDetail struct {
	personView
	Photos []photoView `json:"photos"`
}

func (h *PersonHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	person, page, photos, err := h.people.Photos(r.Context(), id, r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := h.view(r, *person)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Data: personDetail{personView: v, Photos: h.photos.views(photos)},
		Page: page,
	})
}

func (h *PersonHandler) Rename(w http.ResponseWriter, r *http.Request) {
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
	person, err := h.people.Rename(r.Context(), actor(r), id, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	v, err := h.view(r, *person)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: v})
}

// Delete 移除人物，照片上的标记随之删除，照片本身保留。
func (h *PersonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.people.Delete(r.Context(), actor(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"id": id, "deleted": true}})
}
