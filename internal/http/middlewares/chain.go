package middlewares

import "net/http"

// Middleware decora un http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain envuelve h con los middlewares dados, del más externo al más
// interno: Chain(h, A, B, C) atiende el request como A -> B -> C -> h.
// El router lo usa para armar la pila global (recover, request id, logging).
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
