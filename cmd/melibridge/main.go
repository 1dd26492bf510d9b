package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	authsvc "github.com/enlacell/melibridge/internal/auth"
	"github.com/enlacell/melibridge/internal/cache"
	memcache "github.com/enlacell/melibridge/internal/cache/memory"
	rediscache "github.com/enlacell/melibridge/internal/cache/redis"
	"github.com/enlacell/melibridge/internal/config"
	"github.com/enlacell/melibridge/internal/domain"
	httpserver "github.com/enlacell/melibridge/internal/http"
	apictrl "github.com/enlacell/melibridge/internal/http/controllers/api"
	authctrl "github.com/enlacell/melibridge/internal/http/controllers/auth"
	questionsctrl "github.com/enlacell/melibridge/internal/http/controllers/questions"
	webhookctrl "github.com/enlacell/melibridge/internal/http/controllers/webhook"
	"github.com/enlacell/melibridge/internal/http/router"
	questionssvc "github.com/enlacell/melibridge/internal/http/services/questions"
	"github.com/enlacell/melibridge/internal/meli"
	"github.com/enlacell/melibridge/internal/metrics"
	"github.com/enlacell/melibridge/internal/notify"
	"github.com/enlacell/melibridge/internal/observability/logger"
	"github.com/enlacell/melibridge/internal/rate"
	"github.com/enlacell/melibridge/internal/session"
	"github.com/enlacell/melibridge/internal/tenant"
)

func main() {
	// .env opcional, pisa nada: solo completa el entorno
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:   "melibridge",
		Short: "Backend puente entre vendedores y el marketplace",
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta del YAML de configuración (opcional)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Operaciones sobre las bases por vendedor",
	}

	var provUserID string
	var provNickname string
	provisionCmd := &cobra.Command{
		Use:   "provision",
		Short: "Crea (idempotente) la base y tablas de un vendedor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if provUserID == "" || provNickname == "" {
				return fmt.Errorf("--user y --nickname son requeridos")
			}
			return runProvision(configPath, provUserID, provNickname)
		},
	}
	provisionCmd.Flags().StringVar(&provUserID, "user", "", "user_id del vendedor")
	provisionCmd.Flags().StringVar(&provNickname, "nickname", "", "nickname del vendedor")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista los tenants registrados",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(configPath)
		},
	}

	tenantCmd.AddCommand(provisionCmd, listCmd)
	root.AddCommand(serveCmd, tenantCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe arma todo el árbol de dependencias y sirve hasta SIGINT/SIGTERM.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "melibridge",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Métricas ───
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// ─── Cache de sesiones y rate limiter ───
	var sessionCache cache.Cache
	var limiter rate.Limiter
	switch cfg.Cache.Kind {
	case "redis":
		rc := rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		sessionCache = rc
		if cfg.Rate.Enabled {
			window, _ := time.ParseDuration(cfg.Rate.Window)
			limiter = rate.NewRedisLimiter(rc.Client(), "rl:webhook:", cfg.Rate.MaxRequests, window)
		}
	default:
		ttl, _ := time.ParseDuration(cfg.Cache.Memory.DefaultTTL)
		sessionCache = memcache.New(ttl)
		if cfg.Rate.Enabled {
			log.Warn("rate limiting requiere cache redis, queda deshabilitado")
		}
	}

	store := session.NewStore(sessionCache, cfg.Auth.Session.TTL)
	codec := &session.CookieCodec{
		Name:     cfg.Auth.Session.CookieName,
		Secret:   []byte(cfg.Auth.SessionSecret),
		TTL:      cfg.Auth.Session.TTL,
		SameSite: session.SameSiteFromString(cfg.Auth.Session.SameSite),
		Secure:   cfg.Auth.Session.Secure,
	}

	// ─── Storage ───
	controlDB, err := openControlDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer controlDB.Close()

	registryRepo := tenant.NewRegistry(controlDB)
	if err := registryRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("tenant registry: %w", err)
	}

	manager, err := tenant.NewManager(ctx, registryRepo, tenant.Config{
		ServerDSN: cfg.ServerDSN(),
		TenantDSN: cfg.TenantDSN,
		Pool:      poolConfig(cfg),
		MetricsFunc: func(dbName string, d time.Duration) {
			metrics.TenantProvisionDuration.Observe(float64(d.Milliseconds()))
		},
	})
	if err != nil {
		return fmt.Errorf("tenant manager: %w", err)
	}
	defer func() { _ = manager.Close() }()

	// ─── Marketplace y autenticación ───
	client := meli.New(meli.Config{
		ClientID:     cfg.Meli.ClientID,
		ClientSecret: cfg.Meli.ClientSecret,
		RedirectURI:  cfg.Meli.RedirectURI,
		APIBase:      cfg.Meli.APIBaseURL,
		AuthBase:     cfg.Meli.AuthBaseURL,
	})

	authn := authsvc.New(authsvc.Config{
		Provider:    client,
		Provisioner: manager,
		StaleAfter:  cfg.Auth.TokenStaleAfter,
		Metrics: func(result string) {
			metrics.TokenRefreshes.WithLabelValues(result).Inc()
		},
	})

	// ─── Ingesta de webhooks ───
	ingestor := notify.NewIngestor(manager, func(table, result string) {
		metrics.NotificationsIngested.WithLabelValues(table, result).Inc()
	})

	// ─── HTTP ───
	questionService := questionssvc.NewService(questionssvc.Deps{
		Client: client,
		Pools:  manager,
	})

	handler := router.New(router.Deps{
		Auth:            authctrl.NewController(store, codec, authn),
		Webhook:         webhookctrl.NewController(ingestor),
		Questions:       questionsctrl.NewController(questionService),
		API:             apictrl.NewController(client),
		SessionStore:    store,
		Cookies:         codec,
		Authenticator:   authn,
		RateLimiter:     limiter,
		PublicDir:       cfg.Server.PublicDir,
		MetricsRegistry: registry,
	})

	srv := httpserver.NewServer(cfg.Server.Addr, handler)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runProvision crea la base y tablas de un vendedor desde la línea de comandos.
func runProvision(configPath, userID, nickname string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "melibridge"})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	controlDB, err := openControlDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer controlDB.Close()

	registryRepo := tenant.NewRegistry(controlDB)
	if err := registryRepo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("tenant registry: %w", err)
	}

	manager, err := tenant.NewManager(ctx, registryRepo, tenant.Config{
		ServerDSN: cfg.ServerDSN(),
		TenantDSN: cfg.TenantDSN,
		Pool:      poolConfig(cfg),
	})
	if err != nil {
		return fmt.Errorf("tenant manager: %w", err)
	}
	defer func() { _ = manager.Close() }()

	var id int64
	if _, err := fmt.Sscanf(userID, "%d", &id); err != nil {
		return fmt.Errorf("--user debe ser numérico: %w", err)
	}
	if err := manager.EnsureTenant(ctx, &domain.Profile{ID: id, Nickname: nickname}); err != nil {
		return err
	}

	dbName, err := registryRepo.Lookup(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Printf("tenant listo: user_id=%s db=%s\n", userID, dbName)
	return nil
}

// runList imprime los tenants registrados.
func runList(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: "warn", ServiceName: "melibridge"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	controlDB, err := openControlDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer controlDB.Close()

	registryRepo := tenant.NewRegistry(controlDB)
	entries, err := registryRepo.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%-15s %-45s %s\n", e.UserID, e.DBName, e.Nickname)
	}
	return nil
}

func openControlDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	// Primer arranque: la base de control puede no existir todavía.
	if err := ensureControlDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.ControlDSN())
	if err != nil {
		return nil, fmt.Errorf("control db: %w", err)
	}
	db.SetMaxOpenConns(cfg.Storage.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Storage.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("control db ping: %w", err)
	}
	return db, nil
}

// ensureControlDatabase crea la base de control si no existe, conectando
// sin base seleccionada.
func ensureControlDatabase(ctx context.Context, cfg *config.Config) error {
	stmt, err := tenant.CreateDatabaseStmt(cfg.Storage.ControlDB)
	if err != nil {
		return fmt.Errorf("control db: %w", err)
	}

	db, err := sql.Open("mysql", cfg.ServerDSN())
	if err != nil {
		return fmt.Errorf("control db bootstrap: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("control db bootstrap: %w", err)
	}
	return nil
}

func poolConfig(cfg *config.Config) tenant.PoolConfig {
	lifetime, _ := time.ParseDuration(cfg.Storage.ConnMaxLifetime)
	return tenant.PoolConfig{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: lifetime,
	}
}
