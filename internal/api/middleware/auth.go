package middleware

import (
	"net/http"
	"strings"

	"tradecore/pkg/crypto"
)

// AdminAuth защищает admin endpoints Bearer-токеном
//
// Токен сверяется с bcrypt хэшем из конфигурации (ADMIN_TOKEN_HASH),
// сам токен нигде не хранится. Пустой хэш закрывает admin API полностью.
func AdminAuth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				http.Error(w, "Admin API disabled. Set ADMIN_TOKEN_HASH.", http.StatusForbidden)
				return
			}

			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.CheckTokenMatch(token, tokenHash) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
