package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	"github.com/enlacell/melibridge/internal/observability/logger"
)

// WithRecover captura panics en los handlers y responde 500.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// Usar logger del contexto o singleton
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						zap.Any("panic", rec),
					)

					httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
