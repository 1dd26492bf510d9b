// Package api expone los endpoints de datos del vendedor autenticado:
// perfil, ítems, datos de usuarios y campañas de promociones.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	mw "github.com/enlacell/melibridge/internal/http/middlewares"
	"github.com/enlacell/melibridge/internal/meli"
)

// MarketClient son las lecturas del marketplace que estos endpoints proxean.
type MarketClient interface {
	User(ctx context.Context, accessToken, userID string) (json.RawMessage, error)
	Item(ctx context.Context, accessToken, itemID string) (json.RawMessage, error)
	Campaigns(ctx context.Context, accessToken, userID string) (json.RawMessage, error)
}

// Controller maneja los endpoints GET bajo /api.
type Controller struct {
	client MarketClient
}

// NewController crea el controller de la API del vendedor.
func NewController(client MarketClient) *Controller {
	return &Controller{client: client}
}

// UserInfo maneja GET /api/user_info: el perfil cacheado en la sesión,
// sin round-trip al marketplace.
func (c *Controller) UserInfo(w http.ResponseWriter, r *http.Request) {
	sess := mw.GetSession(r.Context())
	if sess == nil || sess.Profile == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, sess.Profile)
}

// ItemInfo maneja GET /api/item_info?item_id=MLA123: proxy del documento
// del ítem con todos sus atributos.
func (c *Controller) ItemInfo(w http.ResponseWriter, r *http.Request) {
	tok := mw.GetToken(r.Context())
	if tok == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	itemID := strings.TrimSpace(r.URL.Query().Get("item_id"))
	if itemID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("item_id es requerido"))
		return
	}

	raw, err := c.client.Item(r.Context(), tok.AccessToken, itemID)
	if err != nil {
		c.handleError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// UserData maneja GET /api/user_data?user_id=123: proxy del documento
// público de un usuario arbitrario (p.ej. un comprador que preguntó).
func (c *Controller) UserData(w http.ResponseWriter, r *http.Request) {
	tok := mw.GetToken(r.Context())
	if tok == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("user_id es requerido"))
		return
	}

	raw, err := c.client.User(r.Context(), tok.AccessToken, userID)
	if err != nil {
		c.handleError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// Campaigns maneja GET /api/campaigns: las promociones del vendedor logueado.
func (c *Controller) Campaigns(w http.ResponseWriter, r *http.Request) {
	sess := mw.GetSession(r.Context())
	tok := mw.GetToken(r.Context())
	if sess == nil || sess.Profile == nil || tok == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}

	raw, err := c.client.Campaigns(r.Context(), tok.AccessToken, strconv.FormatInt(sess.Profile.ID, 10))
	if err != nil {
		c.handleError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (c *Controller) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *meli.ProviderError
	if errors.As(err, &pe) {
		httperrors.WriteError(w, r, httperrors.ErrProvider.WithDetail(pe.Body).WithCause(err))
		return
	}
	httperrors.WriteError(w, r, httperrors.ErrInternalServerError.WithCause(err))
}

// writeRaw responde el JSON del proveedor sin re-serializar.
func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
