// Package session implementa el estado de sesión del vendedor autenticado.
//
// El estado vive server-side en un cache (memory o redis) y el browser solo
// lleva una cookie firmada con el ID de sesión. El token y el perfil quedan
// estrictamente ligados a la sesión del request: nunca hay estado global de
// proceso compartido entre usuarios.
package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/enlacell/melibridge/internal/cache"
	"github.com/enlacell/melibridge/internal/domain"
)

// Session es el estado por-vendedor que sobrevive entre requests.
type Session struct {
	Token   *domain.Token   `json:"token,omitempty"`
	Profile *domain.Profile `json:"profile,omitempty"`

	// NextURL guarda el destino solicitado antes del round-trip de OAuth.
	NextURL string `json:"next_url,omitempty"`
}

// Authenticated indica si la sesión tiene un par token/perfil completo.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != nil && s.Profile != nil
}

var ErrNotFound = errors.New("session: not found")

// Store persiste sesiones serializadas a JSON en el cache backend.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{cache: c, ttl: ttl}
}

// New crea una sesión vacía y retorna su ID.
func (s *Store) New() (string, *Session) {
	return uuid.NewString(), &Session{}
}

// Get recupera la sesión por ID.
func (s *Store) Get(id string) (*Session, error) {
	b, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		// Entrada corrupta: tratarla como inexistente.
		s.cache.Delete(id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Save escribe la sesión renovando el TTL.
func (s *Store) Save(id string, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.cache.Set(id, b, s.ttl)
	return nil
}

// Delete descarta la sesión (fin del ciclo de vida del token).
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// TTL expone el tiempo de vida configurado (lo usa la cookie).
func (s *Store) TTL() time.Duration { return s.ttl }
