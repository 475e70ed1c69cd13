package middleware

import (
	"net/http"
	"strings"
)

// CORS 允许配置中的来源跨域访问；"*" 表示任意来源，此时不携带凭据。
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := corsPolicy{allowed: map[string]struct{}{}}
	for _, origin := range allowedOrigins {
		value := strings.TrimRight(strings.TrimSpace(origin), "/")
		switch value {
		case "":
		case "*":
			policy.any = true
		default:
			policy.allowed[value] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin, ok := policy.match(r.Header.Get("Origin"))
			if ok {
				policy.writeHeaders(w.Header(), origin)
			}

			// 预检请求不进入业务路由
			if ok && r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type corsPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func (p corsPolicy) match(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if p.any {
		return "*", true
	}
	if _, ok := p.allowed[origin]; ok {
		return origin, true
	}
	return "", false
}

func (p corsPolicy) writeHeaders(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	// 前端需要读取下载文件名
	h.Set("Access-Control-Expose-Headers", "Content-Disposition")
	h.Set("Access-Control-Max-Age", "600")
	if origin != "*" {
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}
