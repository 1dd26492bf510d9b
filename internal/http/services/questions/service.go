// Package questions provee el servicio de preguntas del vendedor: listado
// de preguntas pendientes (reconciliando las notificaciones almacenadas
// contra el estado live del marketplace) y publicación de respuestas.
package questions

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"strings"

	"github.com/enlacell/melibridge/internal/meli"
	"github.com/enlacell/melibridge/internal/metrics"
	"github.com/enlacell/melibridge/internal/notify"
	"github.com/enlacell/melibridge/internal/observability/logger"
)

// QAClient son las operaciones del marketplace que este servicio consume.
type QAClient interface {
	GetQuestion(ctx context.Context, accessToken, questionID string) (*meli.Question, error)
	PostAnswer(ctx context.Context, accessToken, questionID, text string) (json.RawMessage, error)
}

// TenantPools resuelve el pool de conexiones de la base del vendedor.
type TenantPools interface {
	Pool(ctx context.Context, userID string) (*sql.DB, error)
}

// Service define las operaciones sobre preguntas.
type Service interface {
	ListUnanswered(ctx context.Context, accessToken, userID string) ([]json.RawMessage, error)
	Answer(ctx context.Context, accessToken, userID, questionID, text string) (json.RawMessage, error)
}

// service implementa Service.
type service struct {
	client QAClient
	pools  TenantPools
}

// Deps contiene las dependencias del servicio de preguntas.
type Deps struct {
	Client QAClient
	Pools  TenantPools
}

// NewService crea el servicio de preguntas.
func NewService(deps Deps) Service {
	return &service{client: deps.Client, pools: deps.Pools}
}

const questionsTable = "questions"

// ListUnanswered retorna las preguntas todavía sin responder del vendedor.
//
// La tabla de notificaciones acumula una fila por cada reintento del webhook,
// así que primero se compacta dejando la notificación más reciente por
// recurso. Después se consulta el estado live de cada pregunta: las que ya
// fueron respondidas se eliminan de la tabla y no se devuelven.
func (s *service) ListUnanswered(ctx context.Context, accessToken, userID string) ([]json.RawMessage, error) {
	log := logger.From(ctx).With(logger.Component("questions"))

	db, err := s.pools.Pool(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, deleted, err := notify.Dedup(ctx, db, questionsTable, userID)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		metrics.DedupRowsDeleted.Add(float64(deleted))
		log.Debug("notificaciones duplicadas compactadas", logger.Count(deleted))
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		qid := questionIDFromResource(row.Resource)
		if qid == "" {
			continue
		}

		q, err := s.client.GetQuestion(ctx, accessToken, qid)
		if err != nil {
			// No tirar todo el listado por una pregunta que falla:
			// se omite y queda para el próximo refresh.
			log.Warn("no se pudo traer la pregunta",
				logger.QuestionID(qid), logger.Err(err))
			continue
		}

		if q.Status == "UNANSWERED" {
			out = append(out, q.Raw)
			continue
		}

		// Ya respondida (o borrada): limpiar la fila almacenada.
		if err := notify.DeleteRow(ctx, db, questionsTable, row.ID); err != nil {
			log.Warn("no se pudo borrar la notificación respondida",
				logger.QuestionID(qid), logger.Err(err))
		}
	}
	return out, nil
}

// Answer publica la respuesta en el marketplace y, si sale bien, elimina las
// notificaciones almacenadas de esa pregunta.
func (s *service) Answer(ctx context.Context, accessToken, userID, questionID, text string) (json.RawMessage, error) {
	raw, err := s.client.PostAnswer(ctx, accessToken, questionID, text)
	if err != nil {
		return nil, err
	}

	db, err := s.pools.Pool(ctx, userID)
	if err != nil {
		// La respuesta ya fue publicada; la fila huérfana se limpia en el
		// próximo listado cuando la pregunta aparezca como ANSWERED.
		logger.From(ctx).Warn("respuesta publicada pero no se pudo limpiar la tabla",
			logger.QuestionID(questionID), logger.Err(err))
		return raw, nil
	}
	if _, err := notify.DeleteByResource(ctx, db, questionsTable, "/questions/"+questionID); err != nil {
		logger.From(ctx).Warn("no se pudieron borrar las notificaciones de la pregunta",
			logger.QuestionID(questionID), logger.Err(err))
	}
	return raw, nil
}

// questionIDFromResource extrae el ID numérico del resource de la
// notificación, p.ej. "/questions/5036111111" -> "5036111111".
func questionIDFromResource(resource string) string {
	qid := path.Base(strings.TrimSpace(resource))
	if qid == "." || qid == "/" {
		return ""
	}
	return qid
}
