package meli_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/enlacell/melibridge/internal/meli"
)

func newClient(apiBase string) *meli.Client {
	return meli.New(meli.Config{
		ClientID:     "app-123",
		ClientSecret: "secreto",
		RedirectURI:  "https://example.com/auth/callback",
		APIBase:      apiBase,
		AuthBase:     "https://auth.example",
		Timeout:      5 * time.Second,
	})
}

func TestAuthURL(t *testing.T) {
	c := newClient("https://api.example")
	u, err := url.Parse(c.AuthURL())
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/authorization" {
		t.Fatalf("path = %q", u.Path)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "app-123" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("redirect_uri") != "https://example.com/auth/callback" {
		t.Fatalf("redirect_uri = %q", q.Get("redirect_uri"))
	}
}

func TestExchangeCodeSendsForm(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			t.Errorf("request inesperado: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		_ = r.ParseForm()
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "APP_USR-abc",
			"token_type":    "bearer",
			"expires_in":    21600,
			"user_id":       123456,
			"refresh_token": "TG-xyz",
		})
	}))
	defer srv.Close()

	tok, err := newClient(srv.URL).ExchangeCode(context.Background(), "CODE-1")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     "app-123",
		"client_secret": "secreto",
		"code":          "CODE-1",
		"redirect_uri":  "https://example.com/auth/callback",
	}
	for k, v := range want {
		if gotForm.Get(k) != v {
			t.Errorf("form[%s] = %q, want %q", k, gotForm.Get(k), v)
		}
	}

	if tok.AccessToken != "APP_USR-abc" || tok.RefreshToken != "TG-xyz" || tok.UserID != 123456 {
		t.Fatalf("token = %+v", tok)
	}
	if tok.CreatedAt.IsZero() {
		t.Fatal("CreatedAt debe asignarse al recibir el token")
	}
}

func TestRefreshSendsForm(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "nuevo", "refresh_token": "TG-rotado", "expires_in": 21600,
		})
	}))
	defer srv.Close()

	tok, err := newClient(srv.URL).Refresh(context.Background(), "TG-viejo")
	if err != nil {
		t.Fatal(err)
	}
	if gotForm.Get("grant_type") != "refresh_token" || gotForm.Get("refresh_token") != "TG-viejo" {
		t.Fatalf("form = %v", gotForm)
	}
	if tok.RefreshToken != "TG-rotado" {
		t.Fatal("el refresh_token rotado debe reemplazar al anterior")
	}
}

func TestProviderErrorBodyVerbatim(t *testing.T) {
	const body = `{"message":"invalid_grant","error":"invalid_grant","status":400}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).ExchangeCode(context.Background(), "CODE-MALO")
	var pe *meli.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if pe.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", pe.StatusCode)
	}
	// El body del proveedor se conserva tal cual.
	if pe.Body != body {
		t.Fatalf("body = %q, want %q", pe.Body, body)
	}
}

func TestGetQuestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/questions/5036111111" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-1" {
			t.Errorf("Authorization = %q", auth)
		}
		_, _ = w.Write([]byte(`{"id":5036111111,"status":"UNANSWERED","text":"¿Hay stock?","item_id":"MLA1"}`))
	}))
	defer srv.Close()

	q, err := newClient(srv.URL).GetQuestion(context.Background(), "tok-1", "5036111111")
	if err != nil {
		t.Fatal(err)
	}
	if q.Status != "UNANSWERED" || q.Text != "¿Hay stock?" {
		t.Fatalf("question = %+v", q)
	}
	if len(q.Raw) == 0 {
		t.Fatal("Raw debe conservar el documento original")
	}
}

func TestItemIncludesAttributes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("include_attributes") != "all" {
			t.Errorf("query = %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"id":"MLA1"}`))
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL).Item(context.Background(), "tok", "MLA1"); err != nil {
		t.Fatal(err)
	}
}
