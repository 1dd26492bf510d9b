package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// CookieCodec firma el session ID como un JWT HS256 compacto.
// Una cookie adulterada o expirada simplemente no resuelve sesión.
type CookieCodec struct {
	Name     string
	Secret   []byte
	TTL      time.Duration
	SameSite http.SameSite
	Secure   bool
}

// SameSiteFromString mapea el valor de config a http.SameSite.
func SameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

type sidClaims struct {
	SID string `json:"sid"`
	jwtv5.RegisteredClaims
}

// Encode firma el session ID.
func (c *CookieCodec) Encode(sid string) (string, error) {
	now := time.Now()
	claims := sidClaims{
		SID: sid,
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(c.TTL)),
		},
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tok.SignedString(c.Secret)
}

var errBadCookie = errors.New("session: invalid cookie")

// Decode verifica firma y expiración, y devuelve el session ID.
func (c *CookieCodec) Decode(value string) (string, error) {
	var claims sidClaims
	tok, err := jwtv5.ParseWithClaims(value, &claims, func(t *jwtv5.Token) (any, error) {
		return c.Secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid || claims.SID == "" {
		return "", errBadCookie
	}
	return claims.SID, nil
}

// ReadSID extrae y valida el session ID del request. ok=false si no hay
// cookie, no valida, o está vencida.
func (c *CookieCodec) ReadSID(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.Name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	sid, err := c.Decode(ck.Value)
	if err != nil {
		return "", false
	}
	return sid, true
}

// WriteSID setea la cookie de sesión firmada.
func (c *CookieCodec) WriteSID(w http.ResponseWriter, sid string) error {
	v, err := c.Encode(sid)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    v,
		Path:     "/",
		MaxAge:   int(c.TTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
	return nil
}

// Clear invalida la cookie en el browser.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}
