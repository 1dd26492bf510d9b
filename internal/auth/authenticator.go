// Package auth implementa el ciclo de vida del token OAuth del vendedor:
// gate de autenticación con refresh proactivo por staleness, y el
// intercambio code -> token -> perfil del callback.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enlacell/melibridge/internal/domain"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/session"
)

var (
	// ErrNotAuthenticated: no hay sesión válida; el caller debe redirigir
	// al proveedor. Un refresh fallido también cae acá (sin retry ni
	// backoff: el usuario vuelve al login en su próxima acción).
	ErrNotAuthenticated = errors.New("auth: not authenticated")

	// ErrMissingCode: el callback llegó sin authorization code.
	ErrMissingCode = errors.New("auth: authorization code not provided")
)

// Provider es la porción del cliente del marketplace que auth necesita.
type Provider interface {
	AuthURL() string
	ExchangeCode(ctx context.Context, code string) (*domain.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Token, error)
	Me(ctx context.Context, accessToken string) (*domain.Profile, error)
}

// Provisioner aprovisiona la base del tenant (idempotente).
type Provisioner interface {
	EnsureTenant(ctx context.Context, profile *domain.Profile) error
}

// RefreshMetricsFunc reporta cada intento de refresh (ok|error).
type RefreshMetricsFunc func(result string)

// Authenticator decide, por request, si el token de la sesión sirve,
// hay que renovarlo, o hay que mandar al usuario al proveedor.
type Authenticator struct {
	provider    Provider
	provisioner Provisioner
	staleAfter  time.Duration
	metrics     RefreshMetricsFunc

	// now es inyectable para tests.
	now func() time.Time
}

// Config del Authenticator.
type Config struct {
	Provider    Provider
	Provisioner Provisioner
	// StaleAfter: umbral de staleness (default 5h). El expires_in del
	// token lo acota cuando el proveedor emite tokens más cortos.
	StaleAfter time.Duration
	Metrics    RefreshMetricsFunc
}

func New(cfg Config) *Authenticator {
	stale := cfg.StaleAfter
	if stale <= 0 {
		stale = 5 * time.Hour
	}
	return &Authenticator{
		provider:    cfg.Provider,
		provisioner: cfg.Provisioner,
		staleAfter:  stale,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
}

// AuthURL expone la URL de autorización para el redirect de login.
func (a *Authenticator) AuthURL() string { return a.provider.AuthURL() }

// Authenticate es el gate de toda ruta protegida.
//
//   - Sesión sin token/perfil: ErrNotAuthenticated (el caller registra
//     NextURL y redirige al proveedor; no debe continuar).
//   - Token fresco: se retorna sin tocar y sin llamadas de red.
//   - Token stale: exactamente un intento de refresh; éxito reemplaza el
//     token completo (perfil intacto), fallo es ErrNotAuthenticated.
//
// Como efecto colateral de cada llamada autenticada se re-ejecuta el
// aprovisionamiento del tenant (idempotente por diseño).
func (a *Authenticator) Authenticate(ctx context.Context, sess *session.Session) (*domain.Token, error) {
	log := logger.From(ctx).With(logger.Component("auth"), logger.Op("Authenticate"))

	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	tok := sess.Token
	if tok.Age(a.now()) >= a.threshold(tok) {
		log.Info("renovando token", logger.UserID(fmt.Sprint(sess.Profile.ID)))
		fresh, err := a.provider.Refresh(ctx, tok.RefreshToken)
		if err != nil {
			a.report("error")
			log.Warn("refresh falló, sesión queda sin autenticar", logger.Err(err))
			return nil, ErrNotAuthenticated
		}
		a.report("ok")
		// Reemplazo total del token; el perfil no se vuelve a pedir.
		sess.Token = fresh
		tok = fresh
	}

	a.ensureTenant(ctx, sess.Profile)
	return tok, nil
}

// threshold es el staleness configurado, acotado por el expires_in real
// del proveedor cuando éste es menor.
func (a *Authenticator) threshold(tok *domain.Token) time.Duration {
	t := a.staleAfter
	if tok.ExpiresIn > 0 {
		if ttl := time.Duration(tok.ExpiresIn) * time.Second; ttl < t {
			t = ttl
		}
	}
	return t
}

// HandleCallback intercambia el authorization code, obtiene el perfil y
// deja ambos en la sesión. Retorna la URL de destino post-login.
func (a *Authenticator) HandleCallback(ctx context.Context, sess *session.Session, code string) (string, error) {
	log := logger.From(ctx).With(logger.Component("auth"), logger.Op("HandleCallback"))

	if code == "" {
		return "", ErrMissingCode
	}

	tok, err := a.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	profile, err := a.provider.Me(ctx, tok.AccessToken)
	if err != nil {
		return "", err
	}

	sess.Token = tok
	sess.Profile = profile
	log.Info("login ok",
		logger.UserID(fmt.Sprint(profile.ID)),
		logger.String("nickname", profile.Nickname))

	a.ensureTenant(ctx, profile)

	next := sess.NextURL
	if next == "" {
		next = "/dashboard"
	}
	sess.NextURL = ""
	return next, nil
}

// ensureTenant corre el aprovisionamiento idempotente. Un fallo acá no
// tumba el request autenticado: se loguea y se reintenta en la próxima
// llamada (la ingesta de webhooks sí exige el tenant ya creado).
func (a *Authenticator) ensureTenant(ctx context.Context, profile *domain.Profile) {
	if a.provisioner == nil || profile == nil {
		return
	}
	if err := a.provisioner.EnsureTenant(ctx, profile); err != nil {
		logger.From(ctx).Warn("tenant provisioning falló",
			logger.Err(err), logger.UserID(fmt.Sprint(profile.ID)))
	}
}

func (a *Authenticator) report(result string) {
	if a.metrics != nil {
		a.metrics(result)
	}
}
