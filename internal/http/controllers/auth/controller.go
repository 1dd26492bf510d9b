// Package auth expone los endpoints del round-trip de OAuth contra el
// marketplace: inicio de login, callback con el authorization code y logout.
package auth

import (
	"errors"
	"net/http"

	authsvc "github.com/enlacell/melibridge/internal/auth"
	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	"github.com/enlacell/melibridge/internal/meli"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/session"
)

// Controller maneja /auth, /auth/callback y /auth/logout.
type Controller struct {
	store *session.Store
	codec *session.CookieCodec
	authn *authsvc.Authenticator
}

// NewController crea el controller de autenticación.
func NewController(store *session.Store, codec *session.CookieCodec, authn *authsvc.Authenticator) *Controller {
	return &Controller{store: store, codec: codec, authn: authn}
}

// Login maneja GET /auth: manda al vendedor a la página de autorización.
// Si la URL ya trae un authorization code (el redirect_uri registrado puede
// apuntar acá) se procesa como callback.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code") != "" {
		c.Callback(w, r)
		return
	}
	http.Redirect(w, r, c.authn.AuthURL(), http.StatusFound)
}

// Callback maneja GET /auth/callback?code=...
//
// Sin code responde 400 sin tocar la red. Con code intercambia el token,
// obtiene el perfil, dispara el aprovisionamiento del tenant y redirige al
// destino guardado antes del login (o al dashboard).
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("auth.Callback"))

	code := r.URL.Query().Get("code")

	sid, sess := c.resolveSession(r)

	next, err := c.authn.HandleCallback(ctx, sess, code)
	if err != nil {
		c.handleError(w, r, err)
		return
	}

	if err := c.store.Save(sid, sess); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	if err := c.codec.WriteSID(w, sid); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(err))
		return
	}

	log.Debug("callback completado", logger.Path(next))
	http.Redirect(w, r, next, http.StatusFound)
}

// Logout maneja GET /auth/logout: descarta la sesión server-side y la cookie.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	if sid, ok := c.codec.ReadSID(r); ok {
		c.store.Delete(sid)
	}
	c.codec.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// resolveSession recupera la sesión existente de la cookie o crea una nueva.
func (c *Controller) resolveSession(r *http.Request) (string, *session.Session) {
	if sid, ok := c.codec.ReadSID(r); ok {
		if sess, err := c.store.Get(sid); err == nil {
			return sid, sess
		}
	}
	return c.store.New()
}

// handleError mapea los errores del flujo de login a respuestas HTTP.
func (c *Controller) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authsvc.ErrMissingCode) {
		httperrors.WriteError(w, r, httperrors.ErrMissingCode)
		return
	}
	var pe *meli.ProviderError
	if errors.As(err, &pe) {
		// El body del proveedor se expone tal cual, igual que el original.
		httperrors.WriteError(w, r, httperrors.ErrProvider.WithDetail(pe.Body).WithCause(err))
		return
	}
	httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(err))
}
