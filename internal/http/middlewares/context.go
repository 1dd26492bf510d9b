package middlewares

import (
	"context"

	"github.com/enlacell/melibridge/internal/domain"
	"github.com/enlacell/melibridge/internal/session"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxSessionKey guarda la sesión autenticada
	ctxSessionKey ctxKey = "session"
	// ctxSIDKey guarda el ID de la sesión (para re-guardarla tras mutaciones)
	ctxSIDKey ctxKey = "sid"
	// ctxTokenKey guarda el token OAuth vigente
	ctxTokenKey ctxKey = "token"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// =================================================================================
// CONTEXT SETTERS (Internos, usados por middlewares)
// =================================================================================

// WithSession inyecta la sesión y su ID en el contexto
func WithSession(ctx context.Context, sid string, sess *session.Session) context.Context {
	ctx = context.WithValue(ctx, ctxSIDKey, sid)
	return context.WithValue(ctx, ctxSessionKey, sess)
}

// WithToken inyecta el token OAuth en el contexto
func WithToken(ctx context.Context, tok *domain.Token) context.Context {
	return context.WithValue(ctx, ctxTokenKey, tok)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS (Públicos, usados por handlers/services)
// =================================================================================

// GetSession obtiene la sesión del contexto.
// Retorna nil si no hay sesión (middleware no aplicado).
func GetSession(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(ctxSessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// GetSID obtiene el ID de sesión del contexto.
func GetSID(ctx context.Context) string {
	if sid, ok := ctx.Value(ctxSIDKey).(string); ok {
		return sid
	}
	return ""
}

// GetToken obtiene el token OAuth del contexto.
// Retorna nil si no hay token (ruta no protegida por RequireAuth).
func GetToken(ctx context.Context) *domain.Token {
	if t, ok := ctx.Value(ctxTokenKey).(*domain.Token); ok {
		return t
	}
	return nil
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return rid
	}
	return ""
}
