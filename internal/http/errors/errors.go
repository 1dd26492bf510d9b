package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/enlacell/melibridge/internal/observability/logger"
)

// WriteError centraliza la escritura de errores al cliente: setea el
// status, serializa el AppError y registra la causa original en el log.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)

	fields := []zap.Field{
		logger.Method(r.Method),
		logger.Path(r.URL.Path),
		logger.Status(appErr.HTTPStatus),
		logger.String("code", appErr.Code),
	}
	if appErr.Err != nil {
		fields = append(fields, logger.Err(appErr.Err))
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.L().Error("request failed", fields...)
	} else {
		logger.L().Warn("request rejected", fields...)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	if encodeErr := json.NewEncoder(w).Encode(appErr); encodeErr != nil {
		logger.L().Error("no se pudo serializar el error", logger.Err(encodeErr))
	}
}

// WriteJSON responde con un payload JSON arbitrario y el status dado.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L().Error("no se pudo serializar la respuesta", logger.Err(err))
	}
}
