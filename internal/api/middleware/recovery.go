package middleware

import (
	"net/http"
	"runtime/debug"

	"tradecore/pkg/utils"
)

// Recovery перехватывает панику в handlers и не даёт серверу упасть
//
// Логирует сообщение и stack trace, клиенту возвращает 500.
func Recovery(log *utils.Logger) func(http.Handler) http.Handler {
	log = log.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic in handler",
						utils.Any("panic", rec),
						utils.String("method", r.Method),
						utils.String("path", r.URL.Path),
						utils.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
