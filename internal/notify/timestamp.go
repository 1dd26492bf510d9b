package notify

import (
	"fmt"
	"time"
)

// WireFormat es el formato con el que los DATETIME(3) viajan a MySQL.
const WireFormat = "2006-01-02 15:04:05.000"

// acceptedLayouts: el marketplace manda RFC3339 con offset y milisegundos;
// se aceptan también variantes sin fracción y el propio wire format por si
// un payload ya viene normalizado.
var acceptedLayouts = []string{
	"2006-01-02T15:04:05.999Z07:00",
	"2006-01-02T15:04:05Z07:00",
	WireFormat,
	"2006-01-02 15:04:05",
}

// ParseTimestamp convierte el timestamp del payload a time.Time (UTC).
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("notify: timestamp inválido: %q", s)
}

// ToWire normaliza a wire format, truncando a milisegundos.
func ToWire(t time.Time) string {
	return t.UTC().Format(WireFormat)
}
