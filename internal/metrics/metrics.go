package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de negocio. Paquete standalone para evitar ciclos de import
// entre auth/notify y las capas HTTP.

var (
	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meli_token_refreshes_total",
		Help: "Renovaciones de token por resultado (ok|error)",
	}, []string{"result"})

	// El label table sale del mapping cerrado topic->tabla (12 valores),
	// nunca del payload: el webhook es público y el topic lo elige el emisor.
	NotificationsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meli_notifications_ingested_total",
		Help: "Notificaciones de webhook por tabla destino y resultado",
	}, []string{"table", "result"})

	TenantProvisionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenant_provision_duration_ms",
		Help:    "Duración del aprovisionamiento de tenant en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	DedupRowsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meli_dedup_rows_deleted_total",
		Help: "Filas de notificaciones eliminadas por el pase de dedup",
	})
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		TokenRefreshes,
		NotificationsIngested,
		TenantProvisionDuration,
		DedupRowsDeleted,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
