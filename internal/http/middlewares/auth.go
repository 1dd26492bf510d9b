package middlewares

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/enlacell/melibridge/internal/auth"
	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/session"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARE
// =================================================================================

// RequireAuth resuelve la sesión desde la cookie firmada y garantiza un token
// vigente antes de dejar pasar el request. Si no hay sesión, el token venció y
// no se pudo refrescar, o la cookie está adulterada, guarda la URL solicitada
// como destino post-login y redirige (302) a la página de autorización del
// marketplace. En éxito inyecta sesión, SID y token en el contexto.
func RequireAuth(store *session.Store, codec *session.CookieCodec, authn *auth.Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := codec.ReadSID(r)
			var sess *session.Session
			if ok {
				var err error
				sess, err = store.Get(sid)
				if err != nil {
					// Sesión expirada o corrupta: empezar de cero
					ok = false
				}
			}
			if !ok {
				sid, sess = store.New()
			}

			tok, err := authn.Authenticate(r.Context(), sess)
			if err != nil {
				if errors.Is(err, auth.ErrNotAuthenticated) {
					redirectToLogin(w, r, store, codec, sid, sess, authn.AuthURL())
					return
				}
				httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(err))
				return
			}

			// Authenticate pudo haber refrescado el token: persistir siempre.
			if err := store.Save(sid, sess); err != nil {
				logger.From(r.Context()).Warn("no se pudo guardar la sesión", logger.Err(err))
			}

			// Enriquecer el logger del request: todo lo que se loguee aguas
			// abajo lleva el user_id del vendedor.
			log := logger.From(r.Context()).With(
				logger.UserID(strconv.FormatInt(sess.Profile.ID, 10)))
			log.Debug("sesión autenticada", logger.SessionID(sid))

			ctx := logger.ToContext(r.Context(), log)
			ctx = WithSession(ctx, sid, sess)
			ctx = WithToken(ctx, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redirectToLogin guarda el destino original en la sesión, setea la cookie y
// manda al vendedor a autorizar la aplicación en el marketplace.
func redirectToLogin(w http.ResponseWriter, r *http.Request, store *session.Store, codec *session.CookieCodec, sid string, sess *session.Session, authURL string) {
	sess.NextURL = r.URL.RequestURI()
	if err := store.Save(sid, sess); err != nil {
		logger.From(r.Context()).Warn("no se pudo guardar la sesión pre-login", logger.Err(err))
	}
	if err := codec.WriteSID(w, sid); err != nil {
		logger.From(r.Context()).Warn("no se pudo escribir la cookie de sesión", logger.Err(err))
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}
