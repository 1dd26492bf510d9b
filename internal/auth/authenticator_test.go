package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/enlacell/melibridge/internal/domain"
	"github.com/enlacell/melibridge/internal/session"
)

// fakeProvider cuenta llamadas para verificar que el gate no toca la red
// cuando no corresponde.
type fakeProvider struct {
	exchangeCalls int
	refreshCalls  int
	meCalls       int

	refreshErr  error
	exchangeErr error

	nextToken   *domain.Token
	nextProfile *domain.Profile
}

func (f *fakeProvider) AuthURL() string { return "https://auth.example/authorization" }

func (f *fakeProvider) ExchangeCode(ctx context.Context, code string) (*domain.Token, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.nextToken, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.nextToken, nil
}

func (f *fakeProvider) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	f.meCalls++
	return f.nextProfile, nil
}

type fakeProvisioner struct{ calls int }

func (f *fakeProvisioner) EnsureTenant(ctx context.Context, profile *domain.Profile) error {
	f.calls++
	return nil
}

func sessionWith(tok *domain.Token) *session.Session {
	return &session.Session{
		Token:   tok,
		Profile: &domain.Profile{ID: 123, Nickname: "VENDEDOR"},
	}
}

func TestAuthenticateUnauthenticated(t *testing.T) {
	p := &fakeProvider{}
	a := New(Config{Provider: p})

	_, err := a.Authenticate(context.Background(), &session.Session{})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if p.refreshCalls+p.exchangeCalls+p.meCalls != 0 {
		t.Fatal("sesión vacía no debe tocar la red")
	}
}

func TestAuthenticateFreshTokenNoNetwork(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	p := &fakeProvider{}
	prov := &fakeProvisioner{}
	a := New(Config{Provider: p, Provisioner: prov, StaleAfter: 5 * time.Hour})
	a.now = func() time.Time { return now }

	tok := &domain.Token{
		AccessToken:  "fresh",
		RefreshToken: "r1",
		ExpiresIn:    21600, // 6h
		CreatedAt:    now.Add(-time.Hour),
	}
	sess := sessionWith(tok)

	got, err := a.Authenticate(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if got != tok {
		t.Fatal("token fresco debe retornarse sin tocar")
	}
	if p.refreshCalls != 0 {
		t.Fatalf("refreshCalls = %d, want 0", p.refreshCalls)
	}
	if prov.calls != 1 {
		t.Fatalf("EnsureTenant calls = %d, want 1", prov.calls)
	}
}

func TestAuthenticateStaleTokenRefreshesOnce(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	fresh := &domain.Token{AccessToken: "new", RefreshToken: "r2", ExpiresIn: 21600, CreatedAt: now}
	p := &fakeProvider{nextToken: fresh}
	a := New(Config{Provider: p, StaleAfter: 5 * time.Hour})
	a.now = func() time.Time { return now }

	old := &domain.Token{
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresIn:    21600,
		CreatedAt:    now.Add(-6 * time.Hour), // pasó el umbral
	}
	sess := sessionWith(old)

	got, err := a.Authenticate(context.Background(), sess)
	if err != nil {
		t.Fatal(err)
	}
	if p.refreshCalls != 1 {
		t.Fatalf("refreshCalls = %d, want exactamente 1", p.refreshCalls)
	}
	// Reemplazo total del token en la sesión; el perfil queda intacto.
	if sess.Token != fresh || got != fresh {
		t.Fatal("el token de la sesión no fue reemplazado")
	}
	if sess.Profile == nil || sess.Profile.Nickname != "VENDEDOR" {
		t.Fatal("el perfil no debe tocarse en un refresh")
	}
	if p.meCalls != 0 {
		t.Fatal("refresh no debe volver a pedir el perfil")
	}
}

func TestAuthenticateThresholdCappedByExpiresIn(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	fresh := &domain.Token{AccessToken: "new", RefreshToken: "r2", ExpiresIn: 3600, CreatedAt: now}
	p := &fakeProvider{nextToken: fresh}
	// StaleAfter 5h, pero el proveedor emite tokens de 1h: manda expires_in.
	a := New(Config{Provider: p, StaleAfter: 5 * time.Hour})
	a.now = func() time.Time { return now }

	old := &domain.Token{
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresIn:    3600,
		CreatedAt:    now.Add(-2 * time.Hour),
	}
	sess := sessionWith(old)

	if _, err := a.Authenticate(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	if p.refreshCalls != 1 {
		t.Fatalf("refreshCalls = %d, want 1 (umbral acotado por expires_in)", p.refreshCalls)
	}
}

func TestAuthenticateRefreshFailure(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	p := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	var results []string
	a := New(Config{
		Provider:   p,
		StaleAfter: 5 * time.Hour,
		Metrics:    func(result string) { results = append(results, result) },
	})
	a.now = func() time.Time { return now }

	old := &domain.Token{
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresIn:    21600,
		CreatedAt:    now.Add(-6 * time.Hour),
	}
	sess := sessionWith(old)

	_, err := a.Authenticate(context.Background(), sess)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if p.refreshCalls != 1 {
		t.Fatalf("refreshCalls = %d, want 1 (sin retry)", p.refreshCalls)
	}
	if len(results) != 1 || results[0] != "error" {
		t.Fatalf("metrics = %v, want [error]", results)
	}
}

func TestHandleCallbackMissingCode(t *testing.T) {
	p := &fakeProvider{}
	a := New(Config{Provider: p})

	_, err := a.HandleCallback(context.Background(), &session.Session{}, "")
	if !errors.Is(err, ErrMissingCode) {
		t.Fatalf("err = %v, want ErrMissingCode", err)
	}
	if p.exchangeCalls != 0 {
		t.Fatal("sin code no debe haber llamada saliente")
	}
}

func TestHandleCallbackSuccess(t *testing.T) {
	tok := &domain.Token{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 21600, CreatedAt: time.Now()}
	profile := &domain.Profile{ID: 123, Nickname: "VENDEDOR"}
	p := &fakeProvider{nextToken: tok, nextProfile: profile}
	prov := &fakeProvisioner{}
	a := New(Config{Provider: p, Provisioner: prov})

	sess := &session.Session{NextURL: "/questions"}
	next, err := a.HandleCallback(context.Background(), sess, "CODE-123")
	if err != nil {
		t.Fatal(err)
	}
	if next != "/questions" {
		t.Fatalf("next = %q, want /questions", next)
	}
	if sess.NextURL != "" {
		t.Fatal("NextURL debe limpiarse tras consumirse")
	}
	if sess.Token != tok || sess.Profile != profile {
		t.Fatal("la sesión debe guardar token y perfil")
	}
	if prov.calls != 1 {
		t.Fatalf("EnsureTenant calls = %d, want 1", prov.calls)
	}
}

func TestHandleCallbackDefaultsToDashboard(t *testing.T) {
	tok := &domain.Token{AccessToken: "a1", ExpiresIn: 21600}
	p := &fakeProvider{nextToken: tok, nextProfile: &domain.Profile{ID: 1, Nickname: "X"}}
	a := New(Config{Provider: p})

	next, err := a.HandleCallback(context.Background(), &session.Session{}, "CODE")
	if err != nil {
		t.Fatal(err)
	}
	if next != "/dashboard" {
		t.Fatalf("next = %q, want /dashboard", next)
	}
}
