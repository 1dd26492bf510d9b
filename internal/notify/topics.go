// Package notify ingiere las notificaciones de webhook del marketplace en la
// base del tenant correspondiente, y provee el pase de deduplicación que usa
// el proxy de preguntas.
package notify

import "github.com/enlacell/melibridge/internal/tenant"

// topicTables es el mapping explícito topic -> tabla. Reemplaza el chequeo
// de existencia contra el schema vivo del código original: el dispatch es una
// enumeración cerrada con default definido.
var topicTables = func() map[string]string {
	m := make(map[string]string, len(tenant.Topics))
	for _, t := range tenant.Topics {
		m[t] = t
	}
	return m
}()

// TableForTopic resuelve la tabla destino de un topic.
// Topics desconocidos van a la tabla catch-all.
func TableForTopic(topic string) string {
	if t, ok := topicTables[topic]; ok {
		return t
	}
	return tenant.CatchAllTable
}
