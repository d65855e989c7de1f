package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

// NewRecoveryMiddleware 捕获 panic 并返回 500，避免进程退出。
func NewRecoveryMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)
					utils.RespondError(w, http.StatusInternalServerError, "Error interno.")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
