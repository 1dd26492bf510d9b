// Package meli implementa el cliente HTTP contra la API de MercadoLibre:
// intercambio/refresh de tokens OAuth y los recursos que la app consume
// (perfil, preguntas, respuestas, items, promociones).
package meli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/enlacell/melibridge/internal/domain"
)

// ProviderError representa cualquier respuesta no-2xx del marketplace.
// El body se conserva verbatim: los callers lo exponen tal cual al cliente.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("meli: http %d: %s", e.StatusCode, e.Body)
}

// Client habla con la API del marketplace.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// APIBase: https://api.mercadolibre.com (override en tests)
	APIBase string
	// AuthBase: https://auth.mercadolibre.com.mx
	AuthBase string

	http *http.Client
}

// Config parámetros para construir el cliente.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBase      string
	AuthBase     string
	Timeout      time.Duration
}

// New crea el cliente. Timeout default: 10s (el proveedor no define uno).
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		APIBase:      strings.TrimRight(cfg.APIBase, "/"),
		AuthBase:     strings.TrimRight(cfg.AuthBase, "/"),
		http:         &http.Client{Timeout: timeout},
	}
}

// AuthURL construye la URL de autorización del proveedor.
func (c *Client) AuthURL() string {
	u, _ := url.Parse(c.AuthBase + "/authorization")
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	u.RawQuery = q.Encode()
	return u.String()
}

// ExchangeCode cambia el authorization code por un par de tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.RedirectURI)
	return c.tokenRequest(ctx, form)
}

// Refresh cambia el refresh_token por un par nuevo.
// El token devuelto reemplaza al anterior completo (refresh_token rota).
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*domain.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBase+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, newProviderError(resp)
	}
	var tok domain.Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("meli: decode token: %w", err)
	}
	tok.CreatedAt = time.Now()
	return &tok, nil
}

// Me obtiene el perfil del vendedor autenticado (/users/me).
func (c *Client) Me(ctx context.Context, accessToken string) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.getJSON(ctx, accessToken, "/users/me", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// User obtiene datos públicos de un usuario arbitrario.
func (c *Client) User(ctx context.Context, accessToken, userID string) (json.RawMessage, error) {
	return c.getRaw(ctx, accessToken, "/users/"+url.PathEscape(userID))
}

// Item obtiene un artículo con todos sus atributos.
func (c *Client) Item(ctx context.Context, accessToken, itemID string) (json.RawMessage, error) {
	return c.getRaw(ctx, accessToken, "/items/"+url.PathEscape(itemID)+"?include_attributes=all")
}

// Campaigns obtiene las promociones activas del vendedor.
func (c *Client) Campaigns(ctx context.Context, accessToken, userID string) (json.RawMessage, error) {
	return c.getRaw(ctx, accessToken, "/seller-promotions/users/"+url.PathEscape(userID)+"?app_version=v2")
}

// Question es la vista mínima de una pregunta que la app necesita.
type Question struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"` // UNANSWERED | ANSWERED | ...
	Text   string          `json:"text"`
	ItemID string          `json:"item_id"`
	Raw    json.RawMessage `json:"-"`
}

// GetQuestion trae el estado live de una pregunta.
func (c *Client) GetQuestion(ctx context.Context, accessToken, questionID string) (*Question, error) {
	raw, err := c.getRaw(ctx, accessToken, "/questions/"+url.PathEscape(questionID))
	if err != nil {
		return nil, err
	}
	var q Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("meli: decode question: %w", err)
	}
	q.Raw = raw
	return &q, nil
}

// PostAnswer responde una pregunta.
func (c *Client) PostAnswer(ctx context.Context, accessToken, questionID, text string) (json.RawMessage, error) {
	body, _ := json.Marshal(map[string]string{
		"question_id": questionID,
		"text":        text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBase+"/answers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, newProviderError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, out any) error {
	raw, err := c.getRaw(ctx, accessToken, path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) getRaw(ctx context.Context, accessToken, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBase+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, newProviderError(resp)
	}
	return io.ReadAll(resp.Body)
}

func newProviderError(resp *http.Response) *ProviderError {
	// 32KB alcanzan para cualquier error del proveedor
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 32<<10))
	return &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}
