package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"gallery/internal/logging"
	"gallery/internal/pagination"
	"gallery/internal/repository"
	"gallery/internal/service"
	"gallery/internal/storage"
)

type envelope struct {
	Data any              `json:"data"`
	Page *pagination.Page `json:"page,omitempty"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// partialEnvelope 用于部分成功的请求：data 是已经生效的部分。
type partialEnvelope struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: message})
}

// writeServiceError 把业务层错误映射为 HTTP 状态码。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := serviceError(r, err)
	writeError(w, status, message)
}

func serviceError(r *http.Request, err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, storage.ErrNotExist):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflicting change, reload and retry"
	case errors.Is(err, pagination.ErrPageNotFound):
		return http.StatusNotFound, "page not found"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	default:
		logging.FromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		return http.StatusInternalServerError, "internal error"
	}
}

// attachment 生成 Content-Disposition，非 ASCII 文件名按 RFC 2231 编码。
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
