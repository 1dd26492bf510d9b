// Package domain define los tipos centrales compartidos entre capas:
// el token OAuth del vendedor, su perfil y las notificaciones del marketplace.
package domain

import (
	"encoding/json"
	"time"
)

// Token es el par access/refresh emitido por el marketplace.
// Se reemplaza completo en cada refresh; nunca se mergea campo a campo.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`

	// CreatedAt lo asigna esta aplicación al almacenar el token;
	// el proveedor no lo envía.
	CreatedAt time.Time `json:"created_at"`
}

// Age retorna cuánto tiempo pasó desde que el token fue emitido/almacenado.
func (t *Token) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}

// Address es la dirección registrada del vendedor.
type Address struct {
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Address string `json:"address"`
}

// Profile es el perfil del vendedor devuelto por /users/me.
// Inmutable una vez obtenido; solo se vuelve a pedir en un login fresco.
type Profile struct {
	ID               int64          `json:"id"`
	Nickname         string         `json:"nickname"`
	Email            string         `json:"email"`
	FirstName        string         `json:"first_name,omitempty"`
	LastName         string         `json:"last_name,omitempty"`
	CountryID        string         `json:"country_id,omitempty"`
	Address          *Address       `json:"address,omitempty"`
	Phone            map[string]any `json:"phone,omitempty"`
	Permalink        string         `json:"permalink,omitempty"`
	SellerReputation map[string]any `json:"seller_reputation,omitempty"`
	Status           map[string]any `json:"status,omitempty"`
	SiteStatus       string         `json:"site_status,omitempty"`
	Company          map[string]any `json:"company,omitempty"`
}

// Notification es el payload que el marketplace entrega en POST /callback.
// Todos los campos son requeridos (validación por presencia, sin schema).
// user_id y application_id llegan como número JSON; se normalizan a string
// porque las tablas los guardan como VARCHAR.
type Notification struct {
	ID            string      `json:"_id"`
	Resource      string      `json:"resource"`
	Topic         string      `json:"topic"`
	ApplicationID json.Number `json:"application_id"`
	Attempts      int         `json:"attempts"`
	Sent          string      `json:"sent"`
	Received      string      `json:"received"`
	UserID        json.Number `json:"user_id"`
}

// NotificationRow es la fila tal como se persiste en la tabla del tenant.
type NotificationRow struct {
	ID            int64
	NotifID       string
	Resource      string
	Topic         string
	ApplicationID string
	Attempts      int
	Sent          time.Time
	Received      time.Time
	UserID        string
}
