package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"gallery/internal/config"
	gmiddleware "gallery/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar 是可以把自己的端点挂到路由上的 handler。
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, logger *slog.Logger, handlers ...RouteRegistrar) (http.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	auth, err := authMiddleware(cfg, logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(gmiddleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(gmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(gmiddleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
	r.Use(gmiddleware.Metrics())

	// 健康检查不需要鉴权
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheus 指标端点
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		for _, h := range handlers {
			if h != nil {
				h.RegisterRoutes(r)
			}
		}
	})

	return r, nil
}

// authMiddleware 按配置选择鉴权方式，未启用时返回 nil（开发模式）。
func authMiddleware(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if !cfg.AuthEnabled {
		logger.Warn("authentication disabled")
		return nil, nil
	}
	switch cfg.AuthMode {
	case "jwt":
		return gmiddleware.JWTAuth(cfg.JWTSecret, cfg.JWKSURL, logger)
	case "", "apikey":
		return gmiddleware.APIKeyAuth(cfg.APIKeys), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}
