package logger

import "go.uber.org/zap"

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path crea un campo para el path del request.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

// Bytes crea un campo para los bytes de respuesta.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - NEGOCIO
// =================================================================================

// UserID crea un campo para el ID del vendedor (user_id del marketplace).
func UserID(v string) zap.Field {
	return zap.String("user_id", v)
}

// TenantDB crea un campo para el nombre de la base del tenant.
func TenantDB(v string) zap.Field {
	return zap.String("tenant_db", v)
}

// Topic crea un campo para el topic de una notificación.
func Topic(v string) zap.Field {
	return zap.String("topic", v)
}

// Resource crea un campo para el resource de una notificación.
func Resource(v string) zap.Field {
	return zap.String("resource", v)
}

// QuestionID crea un campo para el ID de una pregunta.
func QuestionID(v string) zap.Field {
	return zap.String("question_id", v)
}

// SessionID crea un campo para el ID de sesión (usar solo en debug).
func SessionID(v string) zap.Field {
	return zap.String("session_id", v)
}

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Count crea un campo para un conteo.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String crea un campo string genérico.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
