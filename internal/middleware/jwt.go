package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWTAuth 创建 Bearer JWT 鉴权中间件。
// HS256 使用共享密钥校验；RS256/ES256 通过 JWKS 公钥校验。
// 校验通过后将 sub 声明作为 actor 存入 context。
func JWTAuth(secret, jwksURL string, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	if secret == "" && jwksURL == "" {
		return nil, fmt.Errorf("jwt auth requires a secret or a JWKS url")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var jwks *keyfunc.JWKS
	if jwksURL != "" {
		var err error
		// 初始化 JWKS，包含自动刷新
		jwks, err = keyfunc.Get(jwksURL, keyfunc.Options{
			RefreshInterval: time.Hour,
			RefreshErrorHandler: func(err error) {
				logger.Error("jwks refresh failed", "url", jwksURL, "error", err)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init jwks %s: %w", jwksURL, err)
		}
		logger.Info("jwks initialized", "url", jwksURL)
	}

	return jwtMiddleware(keyFuncFor(secret, jwks), logger), nil
}

func keyFuncFor(secret string, jwks *keyfunc.JWKS) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
			if secret == "" {
				return nil, fmt.Errorf("hmac token but no secret configured")
			}
			return []byte(secret), nil
		}
		if jwks != nil {
			return jwks.Keyfunc(token)
		}
		return nil, fmt.Errorf("no suitable verification method for %v", token.Header["alg"])
	}
}

func jwtMiddleware(keyFunc jwt.Keyfunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeAuthError(w, http.StatusUnauthorized, "invalid Authorization format, expected: Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
			if tokenString == "" {
				writeAuthError(w, http.StatusUnauthorized, "empty token")
				return
			}

			token, err := jwt.Parse(tokenString, keyFunc, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				logger.Debug("jwt validation failed", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			sub, err := token.Claims.GetSubject()
			if err != nil || sub == "" {
				writeAuthError(w, http.StatusUnauthorized, "token has no subject")
				return
			}

			ctx := WithActor(r.Context(), sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
