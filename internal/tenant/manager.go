package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"golang.org/x/sync/singleflight"

	"github.com/enlacell/melibridge/internal/domain"
	"github.com/enlacell/melibridge/internal/observability/logger"
)

var (
	ErrInvalidName = errors.New("tenant: invalid database name")
)

// PoolConfig define parámetros del pool por tenant.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ProvisionMetricsFunc callback opcional para reportar la duración del
// aprovisionamiento.
type ProvisionMetricsFunc func(dbName string, d time.Duration)

// Config personaliza la instancia del Manager.
type Config struct {
	// ServerDSN conecta sin base seleccionada (para CREATE DATABASE).
	ServerDSN string
	// TenantDSN arma el DSN de una base ya validada.
	TenantDSN func(dbName string) string
	Pool      PoolConfig
	// MetricsFunc opcional.
	MetricsFunc ProvisionMetricsFunc
}

// Manager administra las bases por tenant: aprovisionamiento idempotente y
// un pool *sql.DB cacheado por base, evitando creaciones en paralelo
// mediante singleflight.
type Manager struct {
	registry  *Registry
	serverDB  *sql.DB
	tenantDSN func(string) string
	poolCfg   PoolConfig
	metrics   ProvisionMetricsFunc

	mu    sync.RWMutex
	pools map[string]*sql.DB
	sf    singleflight.Group
}

// NewManager abre la conexión administrativa y construye el manager.
func NewManager(ctx context.Context, registry *Registry, cfg Config) (*Manager, error) {
	if cfg.TenantDSN == nil {
		return nil, errors.New("tenant: TenantDSN requerido")
	}
	if cfg.Pool.MaxOpenConns <= 0 {
		cfg.Pool.MaxOpenConns = 10
	}
	if cfg.Pool.MaxIdleConns <= 0 {
		cfg.Pool.MaxIdleConns = 2
	}
	if cfg.Pool.ConnMaxLifetime <= 0 {
		cfg.Pool.ConnMaxLifetime = 30 * time.Minute
	}

	serverDB, err := sql.Open("mysql", cfg.ServerDSN)
	if err != nil {
		return nil, fmt.Errorf("tenant: open server conn: %w", err)
	}
	serverDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	serverDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	serverDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)

	if err := serverDB.PingContext(ctx); err != nil {
		serverDB.Close()
		return nil, fmt.Errorf("tenant: ping: %w", err)
	}

	return &Manager{
		registry:  registry,
		serverDB:  serverDB,
		tenantDSN: cfg.TenantDSN,
		poolCfg:   cfg.Pool,
		metrics:   cfg.MetricsFunc,
		pools:     make(map[string]*sql.DB),
	}, nil
}

// EnsureTenant aprovisiona la base y las tablas del vendedor. Idempotente:
// se invoca en cada request autenticado y en el callback de login.
// Llamadas concurrentes para el mismo vendedor colapsan en una sola vía
// singleflight; el DDL además corre bajo GET_LOCK por si hay otro proceso.
func (m *Manager) EnsureTenant(ctx context.Context, profile *domain.Profile) error {
	if profile == nil || profile.ID == 0 {
		return errors.New("tenant: profile sin id")
	}
	userID := strconv.FormatInt(profile.ID, 10)

	_, err, _ := m.sf.Do(userID, func() (interface{}, error) {
		return nil, m.provision(ctx, userID, profile.Nickname, profile.ID)
	})
	return err
}

func (m *Manager) provision(ctx context.Context, userID, nickname string, id int64) error {
	log := logger.From(ctx).With(logger.Component("tenant"), logger.Op("provision"))
	start := time.Now()

	// Nombre preferentemente el ya registrado (mapping estable aunque el
	// vendedor cambie de nickname); si no hay registro, derivar.
	dbName, err := m.registry.Lookup(ctx, userID)
	if errors.Is(err, ErrTenantNotFound) {
		dbName = DBName(nickname, id)
		err = nil
	}
	if err != nil {
		return err
	}
	if !ValidIdentifier(dbName) {
		return fmt.Errorf("%w: %q", ErrInvalidName, dbName)
	}

	if err := m.createDatabaseAndTables(ctx, dbName); err != nil {
		return err
	}
	if err := m.registry.Upsert(ctx, userID, dbName, nickname); err != nil {
		return err
	}

	d := time.Since(start)
	if m.metrics != nil {
		m.metrics(dbName, d)
	}
	log.Info("tenant provisioned",
		logger.TenantDB(dbName), logger.UserID(userID), logger.DurationMs(d.Milliseconds()))
	return nil
}

// createDatabaseAndTables ejecuta el DDL bajo advisory lock. El lock y el
// release deben ir por la misma conexión, por eso se pinea una del pool;
// la conexión se devuelve siempre, incluso en el path de error.
func (m *Manager) createDatabaseAndTables(ctx context.Context, dbName string) error {
	conn, err := m.serverDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("tenant: acquire conn: %w", err)
	}
	defer conn.Close()

	lockName := "tenant_provision:" + dbName
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 30)", lockName).Scan(&got); err != nil {
		return fmt.Errorf("tenant: get_lock: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		return fmt.Errorf("tenant: lock timeout para %s", dbName)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "DO RELEASE_LOCK(?)", lockName)
	}()

	stmt, err := CreateDatabaseStmt(dbName)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("tenant: create database %s: %w", dbName, err)
	}
	for _, table := range Tables() {
		qualified := fmt.Sprintf("`%s`.`%s`", dbName, table)
		if _, err := conn.ExecContext(ctx, notificationTableDDL(qualified)); err != nil {
			return fmt.Errorf("tenant: create table %s.%s: %w", dbName, table, err)
		}
	}
	return nil
}

// Pool devuelve (o abre) el pool de la base del tenant resuelto por user_id.
func (m *Manager) Pool(ctx context.Context, userID string) (*sql.DB, error) {
	dbName, err := m.registry.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ValidIdentifier(dbName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, dbName)
	}

	m.mu.RLock()
	if db, ok := m.pools[dbName]; ok {
		m.mu.RUnlock()
		return db, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.sf.Do("pool:"+dbName, func() (interface{}, error) {
		m.mu.RLock()
		if db, ok := m.pools[dbName]; ok {
			m.mu.RUnlock()
			return db, nil
		}
		m.mu.RUnlock()

		db, err := sql.Open("mysql", m.tenantDSN(dbName))
		if err != nil {
			return nil, fmt.Errorf("tenant: open pool %s: %w", dbName, err)
		}
		db.SetMaxOpenConns(m.poolCfg.MaxOpenConns)
		db.SetMaxIdleConns(m.poolCfg.MaxIdleConns)
		db.SetConnMaxLifetime(m.poolCfg.ConnMaxLifetime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("tenant: ping %s: %w", dbName, err)
		}

		m.mu.Lock()
		m.pools[dbName] = db
		m.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.DB), nil
}

// PoolCount retorna el número de pools activos.
func (m *Manager) PoolCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Close cierra todos los pools y la conexión administrativa.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, db := range m.pools {
		if db != nil {
			db.Close()
		}
		delete(m.pools, name)
	}
	return m.serverDB.Close()
}
