// Package router arma el árbol de rutas de la aplicación: páginas
// estáticas, el round-trip de OAuth, el webhook de notificaciones y la
// API del vendedor autenticado.
package router

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authsvc "github.com/enlacell/melibridge/internal/auth"
	apictrl "github.com/enlacell/melibridge/internal/http/controllers/api"
	authctrl "github.com/enlacell/melibridge/internal/http/controllers/auth"
	questionsctrl "github.com/enlacell/melibridge/internal/http/controllers/questions"
	webhookctrl "github.com/enlacell/melibridge/internal/http/controllers/webhook"
	mw "github.com/enlacell/melibridge/internal/http/middlewares"
	"github.com/enlacell/melibridge/internal/rate"
	"github.com/enlacell/melibridge/internal/session"
)

// Deps contiene las dependencias para armar el router.
type Deps struct {
	Auth      *authctrl.Controller
	Webhook   *webhookctrl.Controller
	Questions *questionsctrl.Controller
	API       *apictrl.Controller

	SessionStore  *session.Store
	Cookies       *session.CookieCodec
	Authenticator *authsvc.Authenticator

	// RateLimiter acota el webhook por IP. Opcional.
	RateLimiter rate.Limiter

	// PublicDir es el directorio de páginas estáticas del frontend.
	PublicDir string

	// MetricsRegistry expone /metrics. Opcional.
	MetricsRegistry *prometheus.Registry
}

// New construye el handler raíz con todos los middlewares aplicados.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	// ─── Infraestructura ───
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	// ─── Webhook del marketplace (público, rate-limited) ───
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRateLimit(deps.RateLimiter))
		r.Post("/callback", deps.Webhook.Receive)
	})

	// ─── OAuth round-trip ───
	r.Get("/auth", deps.Auth.Login)
	r.Get("/auth/callback", deps.Auth.Callback)
	r.Get("/auth/logout", deps.Auth.Logout)

	// ─── Landing pública ───
	r.Get("/", servePage(deps.PublicDir, "index.html"))
	r.Handle("/static/*", http.StripPrefix("/static/",
		http.FileServer(http.Dir(filepath.Join(deps.PublicDir, "static")))))

	// ─── Rutas que requieren sesión con token vigente ───
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth(deps.SessionStore, deps.Cookies, deps.Authenticator))

		r.Get("/dashboard", servePage(deps.PublicDir, "dashboard.html"))
		r.Get("/questions", servePage(deps.PublicDir, "questions.html"))
		r.Get("/campaigns", servePage(deps.PublicDir, "campaigns.html"))

		r.Get("/api/user_info", deps.API.UserInfo)
		r.Get("/api/item_info", deps.API.ItemInfo)
		r.Get("/api/user_data", deps.API.UserData)
		r.Get("/api/campaigns", deps.API.Campaigns)
		r.Get("/api/questions", deps.Questions.List)
		r.Post("/api/answer", deps.Questions.Answer)
	})

	// Pila global: recover por fuera de todo, request id antes del logging.
	return mw.Chain(r, mw.WithRecover(), mw.WithRequestID(), mw.WithLogging())
}

// servePage retorna un handler que sirve una página fija del directorio público.
func servePage(dir, name string) http.HandlerFunc {
	full := filepath.Join(dir, name)
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, full)
	}
}
