package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrTenantNotFound: no hay base registrada para ese user_id.
	ErrTenantNotFound = errors.New("tenant: not found")
)

// Registry mapea user_id -> nombre de base en la base de control.
// Reemplaza el scan de SHOW DATABASES por sufijo del código original:
// la resolución es una búsqueda exacta sobre un mapping explícito.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// EnsureSchema crea la tabla del registro si no existe.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			user_id VARCHAR(45) PRIMARY KEY,
			db_name VARCHAR(64) NOT NULL UNIQUE,
			nickname VARCHAR(255),
			created_at DATETIME(3) DEFAULT CURRENT_TIMESTAMP(3)
		)`)
	if err != nil {
		return fmt.Errorf("tenant: ensure registry schema: %w", err)
	}
	return nil
}

// Lookup resuelve la base del tenant por user_id.
func (r *Registry) Lookup(ctx context.Context, userID string) (string, error) {
	var dbName string
	err := r.db.QueryRowContext(ctx,
		"SELECT db_name FROM tenants WHERE user_id = ?", userID).Scan(&dbName)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTenantNotFound
	}
	if err != nil {
		return "", fmt.Errorf("tenant: lookup %s: %w", userID, err)
	}
	return dbName, nil
}

// Upsert registra (o re-registra, idempotente) el mapping del tenant.
func (r *Registry) Upsert(ctx context.Context, userID, dbName, nickname string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (user_id, db_name, nickname)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE db_name = VALUES(db_name), nickname = VALUES(nickname)`,
		userID, dbName, nickname)
	if err != nil {
		return fmt.Errorf("tenant: upsert %s: %w", userID, err)
	}
	return nil
}

// List devuelve todos los tenants registrados (lo usa el CLI).
type Entry struct {
	UserID   string
	DBName   string
	Nickname string
}

func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id, db_name, COALESCE(nickname, '') FROM tenants ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.DBName, &e.Nickname); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
