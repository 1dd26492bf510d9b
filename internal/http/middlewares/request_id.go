package middlewares

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// requestIDHeader propaga el id del request entre el proxy, la app y los logs.
const requestIDHeader = "X-Request-ID"

// WithRequestID asegura que cada request tenga un id: respeta el que trae el
// header (lo setea el reverse proxy) o genera uno de 16 bytes en hex. El id
// se refleja en la respuesta y queda en el contexto para el logging.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if rid == "" {
				rid = newRequestID()
			}

			w.Header().Set(requestIDHeader, rid)
			ctx := setRequestID(r.Context(), rid)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
