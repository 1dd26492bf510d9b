package middlewares_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/enlacell/melibridge/internal/auth"
	"github.com/enlacell/melibridge/internal/cache/memory"
	"github.com/enlacell/melibridge/internal/domain"
	mw "github.com/enlacell/melibridge/internal/http/middlewares"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/session"
)

const providerAuthURL = "https://auth.example/authorization?client_id=app"

type stubProvider struct {
	refreshCalls int
	token        *domain.Token
}

func (s *stubProvider) AuthURL() string { return providerAuthURL }

func (s *stubProvider) ExchangeCode(ctx context.Context, code string) (*domain.Token, error) {
	return s.token, nil
}

func (s *stubProvider) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	s.refreshCalls++
	return s.token, nil
}

func (s *stubProvider) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	return &domain.Profile{ID: 1, Nickname: "X"}, nil
}

func fixture(t *testing.T) (*session.Store, *session.CookieCodec, *auth.Authenticator, *stubProvider) {
	t.Helper()
	store := session.NewStore(memory.New(time.Hour), time.Hour)
	codec := &session.CookieCodec{
		Name:     "mb_session",
		Secret:   []byte("secreto"),
		TTL:      time.Hour,
		SameSite: http.SameSiteLaxMode,
	}
	p := &stubProvider{}
	authn := auth.New(auth.Config{Provider: p, StaleAfter: 5 * time.Hour})
	return store, codec, authn, p
}

func protected(t *testing.T) (http.HandlerFunc, *bool) {
	reached := false
	return func(w http.ResponseWriter, r *http.Request) {
		reached = true
		require.NotNil(t, mw.GetSession(r.Context()))
		require.NotNil(t, mw.GetToken(r.Context()))
		require.NotEmpty(t, mw.GetSID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}, &reached
}

func TestRequireAuthRedirectsWithoutCookie(t *testing.T) {
	store, codec, authn, _ := fixture(t)
	handler, reached := protected(t)
	h := mw.RequireAuth(store, codec, authn)(handler)

	req := httptest.NewRequest(http.MethodGet, "/questions?foo=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.False(t, *reached, "el handler no debe ejecutarse sin sesión")
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, providerAuthURL, rec.Header().Get("Location"))

	// La URL pedida queda guardada como destino post-login.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	sid, err := codec.Decode(cookies[0].Value)
	require.NoError(t, err)
	sess, err := store.Get(sid)
	require.NoError(t, err)
	require.Equal(t, "/questions?foo=1", sess.NextURL)
}

func TestRequireAuthPassesWithFreshToken(t *testing.T) {
	store, codec, authn, p := fixture(t)
	handler, reached := protected(t)
	h := mw.RequireAuth(store, codec, authn)(handler)

	sid, sess := store.New()
	sess.Token = &domain.Token{
		AccessToken:  "tok",
		RefreshToken: "r1",
		ExpiresIn:    21600,
		CreatedAt:    time.Now(),
	}
	sess.Profile = &domain.Profile{ID: 1, Nickname: "X"}
	require.NoError(t, store.Save(sid, sess))

	signed, err := codec.Encode(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: signed})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, *reached)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, p.refreshCalls, "token fresco no debe refrescarse")
}

func TestRequireAuthRefreshesStaleToken(t *testing.T) {
	store, codec, authn, p := fixture(t)
	p.token = &domain.Token{AccessToken: "nuevo", RefreshToken: "r2", ExpiresIn: 21600, CreatedAt: time.Now()}
	handler, reached := protected(t)
	h := mw.RequireAuth(store, codec, authn)(handler)

	sid, sess := store.New()
	sess.Token = &domain.Token{
		AccessToken:  "viejo",
		RefreshToken: "r1",
		ExpiresIn:    21600,
		CreatedAt:    time.Now().Add(-6 * time.Hour),
	}
	sess.Profile = &domain.Profile{ID: 1, Nickname: "X"}
	require.NoError(t, store.Save(sid, sess))

	signed, err := codec.Encode(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: signed})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, *reached)
	require.Equal(t, 1, p.refreshCalls)

	// El token renovado queda persistido en la sesión.
	got, err := store.Get(sid)
	require.NoError(t, err)
	require.Equal(t, "nuevo", got.Token.AccessToken)
}

func TestRequireAuthTamperedCookieRedirects(t *testing.T) {
	store, codec, authn, _ := fixture(t)
	handler, reached := protected(t)
	h := mw.RequireAuth(store, codec, authn)(handler)

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: "no.es.jwt"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.False(t, *reached)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, providerAuthURL, rec.Header().Get("Location"))
}

func TestRequireAuthScopesLoggerWithUserID(t *testing.T) {
	store, codec, authn, _ := fixture(t)

	core, logs := observer.New(zap.DebugLevel)
	observed := zap.New(core)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.From(r.Context()).Info("procesando request")
		w.WriteHeader(http.StatusOK)
	})
	h := mw.RequireAuth(store, codec, authn)(handler)

	sid, sess := store.New()
	sess.Token = &domain.Token{
		AccessToken:  "tok",
		RefreshToken: "r1",
		ExpiresIn:    21600,
		CreatedAt:    time.Now(),
	}
	sess.Profile = &domain.Profile{ID: 123, Nickname: "X"}
	require.NoError(t, store.Save(sid, sess))

	signed, err := codec.Encode(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/questions", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: signed})
	req = req.WithContext(logger.ToContext(req.Context(), observed))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// Lo que loguea el handler lleva el user_id que agregó el middleware.
	entries := logs.FilterMessage("procesando request").All()
	require.Len(t, entries, 1)
	require.Equal(t, "123", entries[0].ContextMap()["user_id"])

	// También queda el rastro debug de la autenticación, con el sid.
	authEntries := logs.FilterMessage("sesión autenticada").All()
	require.Len(t, authEntries, 1)
	require.Equal(t, sid, authEntries[0].ContextMap()["session_id"])
}
