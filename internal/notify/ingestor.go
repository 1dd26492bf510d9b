package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/enlacell/melibridge/internal/domain"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/tenant"
)

var (
	// ErrInvalidPayload: falta algún campo requerido.
	ErrInvalidPayload = errors.New("notify: payload incompleto")
)

// TenantPools abstrae el acceso al pool del tenant (lo implementa
// tenant.Manager; los tests usan un fake).
type TenantPools interface {
	Pool(ctx context.Context, userID string) (*sql.DB, error)
}

// MetricsFunc reporta el resultado de cada ingesta. El primer argumento es
// la tabla destino (mapping cerrado, nunca el topic crudo del payload: el
// endpoint es público y un topic forjado crearía una serie nueva por request).
type MetricsFunc func(table, result string)

// Ingestor inserta notificaciones en la tabla del topic dentro de la base
// del tenant. Una notificación = un INSERT; sin batching ni transacciones.
// La idempotencia NO está garantizada: redeliveries duplican filas y el
// dedup queda diferido al read-path del proxy de preguntas.
type Ingestor struct {
	pools   TenantPools
	metrics MetricsFunc
}

func NewIngestor(pools TenantPools, metrics MetricsFunc) *Ingestor {
	return &Ingestor{pools: pools, metrics: metrics}
}

// Ingest valida presencia, normaliza timestamps y persiste la fila.
// Si el tenant no existe retorna tenant.ErrTenantNotFound sin tocar
// ninguna base (acá no hay provisioning on-demand: el tenant se crea
// en el flujo de login).
func (i *Ingestor) Ingest(ctx context.Context, n *domain.Notification) error {
	log := logger.From(ctx).With(logger.Component("notify"), logger.Op("Ingest"))

	if err := validate(n); err != nil {
		i.report(n.Topic, "rejected")
		return err
	}

	sent, err := ParseTimestamp(n.Sent)
	if err != nil {
		i.report(n.Topic, "rejected")
		return fmt.Errorf("%w: sent: %v", ErrInvalidPayload, err)
	}
	received, err := ParseTimestamp(n.Received)
	if err != nil {
		i.report(n.Topic, "rejected")
		return fmt.Errorf("%w: received: %v", ErrInvalidPayload, err)
	}

	userID := n.UserID.String()
	db, err := i.pools.Pool(ctx, userID)
	if err != nil {
		i.report(n.Topic, "error")
		return err
	}

	table := TableForTopic(n.Topic)
	// table sale de un mapping cerrado, nunca del payload.
	query := fmt.Sprintf("INSERT INTO `%s` (_id, resource, topic, application_id, attempts, sent, received, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", table)
	if _, err := db.ExecContext(ctx, query,
		n.ID, n.Resource, n.Topic, n.ApplicationID.String(), n.Attempts,
		ToWire(sent), ToWire(received), userID,
	); err != nil {
		i.report(n.Topic, "error")
		return fmt.Errorf("notify: insert en %s: %w", table, err)
	}

	i.report(n.Topic, "ok")
	log.Info("notification stored",
		logger.Topic(n.Topic), logger.Resource(n.Resource),
		logger.UserID(userID), logger.String("table", table))
	return nil
}

func (i *Ingestor) report(topic, result string) {
	if i.metrics != nil {
		i.metrics(TableForTopic(topic), result)
	}
}

// IsTenantNotFound ayuda a los controllers a mapear el error a 400.
func IsTenantNotFound(err error) bool {
	return errors.Is(err, tenant.ErrTenantNotFound)
}

func validate(n *domain.Notification) error {
	if n == nil {
		return ErrInvalidPayload
	}
	var missing []string
	if n.ID == "" {
		missing = append(missing, "_id")
	}
	if n.Resource == "" {
		missing = append(missing, "resource")
	}
	if n.Topic == "" {
		missing = append(missing, "topic")
	}
	if n.ApplicationID.String() == "" {
		missing = append(missing, "application_id")
	}
	if n.Sent == "" {
		missing = append(missing, "sent")
	}
	if n.Received == "" {
		missing = append(missing, "received")
	}
	if n.UserID.String() == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: falta %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}
	return nil
}
