// Package cache provee el backend de almacenamiento de sesiones.
//
// Soporta:
//   - Memory (in-process, dev/testing)
//   - Redis (distribuido, producción)
package cache

import "time"

// Cache es el contrato mínimo que necesita el session store.
type Cache interface {
	Get(k string) ([]byte, bool)
	Set(k string, v []byte, ttl time.Duration)
	Delete(k string)
}
