package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	authsvc "github.com/enlacell/melibridge/internal/auth"
	"github.com/enlacell/melibridge/internal/cache/memory"
	"github.com/enlacell/melibridge/internal/domain"
	authctrl "github.com/enlacell/melibridge/internal/http/controllers/auth"
	"github.com/enlacell/melibridge/internal/meli"
	"github.com/enlacell/melibridge/internal/session"
)

type stubProvider struct {
	exchangeCalls int
	exchangeErr   error
	token         *domain.Token
	profile       *domain.Profile
}

func (s *stubProvider) AuthURL() string { return "https://auth.example/authorization" }

func (s *stubProvider) ExchangeCode(ctx context.Context, code string) (*domain.Token, error) {
	s.exchangeCalls++
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return s.token, nil
}

func (s *stubProvider) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	return s.token, nil
}

func (s *stubProvider) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	return s.profile, nil
}

func fixture(p *stubProvider) (*authctrl.Controller, *session.Store, *session.CookieCodec) {
	store := session.NewStore(memory.New(time.Hour), time.Hour)
	codec := &session.CookieCodec{
		Name:     "mb_session",
		Secret:   []byte("secreto"),
		TTL:      time.Hour,
		SameSite: http.SameSiteLaxMode,
	}
	authn := authsvc.New(authsvc.Config{Provider: p})
	return authctrl.NewController(store, codec, authn), store, codec
}

func TestLoginRedirectsToProvider(t *testing.T) {
	c, _, _ := fixture(&stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	rec := httptest.NewRecorder()
	c.Login(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "https://auth.example/authorization", rec.Header().Get("Location"))
}

func TestCallbackMissingCode(t *testing.T) {
	p := &stubProvider{}
	c, _, _ := fixture(p)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	rec := httptest.NewRecorder()
	c.Callback(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "MISSING_CODE")
	require.Zero(t, p.exchangeCalls, "sin code no debe haber llamada saliente")
}

func TestCallbackProviderError(t *testing.T) {
	const body = `{"error":"invalid_grant","status":400}`
	p := &stubProvider{exchangeErr: &meli.ProviderError{StatusCode: 400, Body: body}}
	c, _, _ := fixture(p)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=MALO", nil)
	rec := httptest.NewRecorder()
	c.Callback(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// El body del proveedor viaja verbatim en el detalle.
	require.Contains(t, rec.Body.String(), "invalid_grant")
}

func TestCallbackSuccess(t *testing.T) {
	p := &stubProvider{
		token:   &domain.Token{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 21600, CreatedAt: time.Now()},
		profile: &domain.Profile{ID: 123, Nickname: "VENDEDOR"},
	}
	c, store, codec := fixture(p)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=OK-1", nil)
	rec := httptest.NewRecorder()
	c.Callback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/dashboard", rec.Header().Get("Location"))

	// La sesión queda persistida y la cookie firmada la referencia.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	sid, err := codec.Decode(cookies[0].Value)
	require.NoError(t, err)
	sess, err := store.Get(sid)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	require.Equal(t, "VENDEDOR", sess.Profile.Nickname)
}

func TestCallbackResumesNextURL(t *testing.T) {
	p := &stubProvider{
		token:   &domain.Token{AccessToken: "a1", ExpiresIn: 21600},
		profile: &domain.Profile{ID: 123, Nickname: "VENDEDOR"},
	}
	c, store, codec := fixture(p)

	// Sesión pre-login con destino guardado, como la deja RequireAuth.
	sid, sess := store.New()
	sess.NextURL = "/questions?foo=1"
	require.NoError(t, store.Save(sid, sess))
	signed, err := codec.Encode(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=OK-2", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: signed})
	rec := httptest.NewRecorder()
	c.Callback(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/questions?foo=1", rec.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	c, store, codec := fixture(&stubProvider{})

	sid, sess := store.New()
	require.NoError(t, store.Save(sid, sess))
	signed, err := codec.Encode(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: codec.Name, Value: signed})
	rec := httptest.NewRecorder()
	c.Logout(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	// La sesión server-side se descarta.
	_, err = store.Get(sid)
	require.ErrorIs(t, err, session.ErrNotFound)

	// Y la cookie queda invalidada.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}
