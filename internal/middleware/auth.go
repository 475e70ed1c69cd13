package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type actorKey struct{}

// WithActor 把已鉴权的操作者名称写入 context，活动流以它作为 actor。
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor 返回 context 中的操作者，未鉴权时为空串。
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok {
		return v
	}
	return ""
}

type apiKey struct {
	actor  string
	secret []byte
}

// parseAPIKeys 解析 "name:secret" 形式的配置项；没有名称时以密钥本身作为 actor。
func parseAPIKeys(entries []string) []apiKey {
	keys := make([]apiKey, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		actor, secret, ok := strings.Cut(entry, ":")
		actor, secret = strings.TrimSpace(actor), strings.TrimSpace(secret)
		if !ok || actor == "" || secret == "" {
			actor, secret = entry, entry
		}
		keys = append(keys, apiKey{actor: actor, secret: []byte(secret)})
	}
	return keys
}

// APIKeyAuth 创建 API Key 鉴权中间件。
// 期望请求头格式：Authorization: ApiKey <token>
func APIKeyAuth(entries []string) func(http.Handler) http.Handler {
	keys := parseAPIKeys(entries)

	match := func(token string) (string, bool) {
		found := ""
		for _, k := range keys {
			// 遍历全部密钥，比较耗时与命中位置无关
			if subtle.ConstantTimeCompare(k.secret, []byte(token)) == 1 && found == "" {
				found = k.actor
			}
		}
		return found, found != ""
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			const prefix = "ApiKey "
			if !strings.HasPrefix(header, prefix) {
				writeAuthError(w, http.StatusUnauthorized, "invalid Authorization format, expected: ApiKey <token>")
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "empty API key")
				return
			}

			actor, ok := match(token)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `ApiKey realm="Gallery API"`)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
