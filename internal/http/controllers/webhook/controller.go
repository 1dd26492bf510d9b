// Package webhook recibe las notificaciones que el marketplace entrega por
// POST y las persiste en la tabla del tenant correspondiente al topic.
package webhook

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/enlacell/melibridge/internal/domain"
	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	"github.com/enlacell/melibridge/internal/notify"
	"github.com/enlacell/melibridge/internal/observability/logger"
)

const maxNotificationBodySize = 64 * 1024 // 64KB

// ackBody es la confirmación en texto plano que espera el marketplace.
const ackBody = "Notification received and stored"

// Controller maneja POST /callback.
type Controller struct {
	ingestor *notify.Ingestor
}

// NewController crea el controller del webhook.
func NewController(ingestor *notify.Ingestor) *Controller {
	return &Controller{ingestor: ingestor}
}

// Receive valida y almacena una notificación entrante.
//
// Este endpoint es público (el marketplace no se autentica) pero solo
// persiste para vendedores con tenant ya aprovisionado: un user_id sin base
// registrada responde 400 y no escribe nada.
func (c *Controller) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("webhook.Receive"))

	r.Body = http.MaxBytesReader(w, r.Body, maxNotificationBodySize)
	defer r.Body.Close()

	var n domain.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInvalidJSON.WithCause(err))
		return
	}

	if err := c.ingestor.Ingest(ctx, &n); err != nil {
		switch {
		case errors.Is(err, notify.ErrInvalidPayload):
			httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail(err.Error()))
		case notify.IsTenantNotFound(err):
			httperrors.WriteError(w, r, httperrors.ErrTenantMissing.WithCause(err))
		default:
			httperrors.WriteError(w, r, httperrors.ErrDatabase.WithCause(err))
		}
		return
	}

	log.Info("notificación almacenada",
		logger.Topic(n.Topic),
		logger.Resource(n.Resource),
		logger.UserID(n.UserID.String()))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ackBody))
}
