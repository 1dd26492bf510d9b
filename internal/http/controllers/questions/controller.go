// Package questions expone las operaciones de preguntas y respuestas
// del vendedor autenticado.
package questions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	dto "github.com/enlacell/melibridge/internal/http/dto/questions"
	httperrors "github.com/enlacell/melibridge/internal/http/errors"
	mw "github.com/enlacell/melibridge/internal/http/middlewares"
	svc "github.com/enlacell/melibridge/internal/http/services/questions"
	"github.com/enlacell/melibridge/internal/meli"
	"github.com/enlacell/melibridge/internal/observability/logger"
)

const maxAnswerBodySize = 32 * 1024 // 32KB

// Controller maneja GET /api/questions y POST /api/answer.
type Controller struct {
	service svc.Service
}

// NewController crea el controller de preguntas.
func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

// List maneja GET /api/questions: devuelve las preguntas sin responder.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess := mw.GetSession(ctx)
	tok := mw.GetToken(ctx)
	if sess == nil || sess.Profile == nil || tok == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}
	userID := strconv.FormatInt(sess.Profile.ID, 10)

	list, err := c.service.ListUnanswered(ctx, tok.AccessToken, userID)
	if err != nil {
		c.handleError(w, r, err)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, dto.ListResponse{Questions: list})
}

// Answer maneja POST /api/answer: publica la respuesta en el marketplace.
func (c *Controller) Answer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("questions.Answer"))

	sess := mw.GetSession(ctx)
	tok := mw.GetToken(ctx)
	if sess == nil || sess.Profile == nil || tok == nil {
		httperrors.WriteError(w, r, httperrors.ErrUnauthorized)
		return
	}
	userID := strconv.FormatInt(sess.Profile.ID, 10)

	r.Body = http.MaxBytesReader(w, r.Body, maxAnswerBodySize)
	defer r.Body.Close()

	var req dto.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, r, httperrors.ErrInvalidJSON)
		return
	}

	qid := strings.TrimSpace(req.QuestionID.String())
	text := strings.TrimSpace(req.Text)
	if qid == "" || text == "" {
		httperrors.WriteError(w, r, httperrors.ErrBadRequest.WithDetail("question_id y text son requeridos"))
		return
	}

	if _, err := c.service.Answer(ctx, tok.AccessToken, userID, qid, text); err != nil {
		c.handleError(w, r, err)
		return
	}

	log.Info("respuesta publicada", logger.QuestionID(qid))
	httperrors.WriteJSON(w, http.StatusOK, dto.AnswerResponse{QuestionID: qid, Status: "answered"})
}

// handleError mapea errores del servicio a respuestas HTTP.
func (c *Controller) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *meli.ProviderError
	if errors.As(err, &pe) {
		httperrors.WriteError(w, r, httperrors.ErrProvider.WithDetail(pe.Body).WithCause(err))
		return
	}
	httperrors.WriteError(w, r, httperrors.ErrDatabase.WithCause(err))
}
