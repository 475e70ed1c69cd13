package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gallery/internal/repository"
	"gallery/internal/service"
)

type StreamHandler struct {
	stream *service.StreamService
}

func NewStreamHandler(stream *service.StreamService) *StreamHandler {
	return &StreamHandler{stream: stream}
}

func (h *StreamHandler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.List)
}

type actionView struct {
	repository.Action
	Text string `json:"text"`
}

// List 按时间倒序分页返回动态，text 为可直接展示的句子。
func (h *StreamHandler) List(w http.ResponseWriter, r *http.Request) {
	page, actions, err := h.stream.List(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	views := make([]actionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, actionView{Action: a, Text: a.String()})
	}
	writeJSON(w, http.StatusOK, envelope{Data: views, Page: page})
}
