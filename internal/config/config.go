package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
		// Nivel de log: debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr      string `yaml:"addr"`
		PublicDir string `yaml:"public_dir"`
	} `yaml:"server"`

	// Credenciales y endpoints del marketplace.
	Meli struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RedirectURI  string `yaml:"redirect_uri"`
		// APIBaseURL y AuthBaseURL permiten apuntar a un mock en tests.
		APIBaseURL  string `yaml:"api_base_url"`
		AuthBaseURL string `yaml:"auth_base_url"`
	} `yaml:"meli"`

	Auth struct {
		SessionSecret string `yaml:"session_secret"`
		// TokenStaleAfter: edad a partir de la cual se renueva el token
		// proactivamente. El expires_in del proveedor la acota si es menor.
		TokenStaleAfter time.Duration `yaml:"token_stale_after"`
		Session         struct {
			CookieName string        `yaml:"cookie_name"`
			TTL        time.Duration `yaml:"ttl"`
			SameSite   string        `yaml:"samesite"`
			Secure     bool          `yaml:"secure"`
		} `yaml:"session"`
	} `yaml:"auth"`

	Storage struct {
		Host     string `yaml:"host"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		// ControlDB guarda el registro user_id -> base del tenant.
		ControlDB       string `yaml:"control_db"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Rate limita el endpoint del webhook (requiere cache redis).
	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
	} `yaml:"rate"`
}

// Load lee el YAML en path (opcional: path vacío ⇒ solo env/defaults),
// aplica defaults, pisa con variables de entorno y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.PublicDir == "" {
		c.Server.PublicDir = "./public"
	}
	if c.Meli.APIBaseURL == "" {
		c.Meli.APIBaseURL = "https://api.mercadolibre.com"
	}
	if c.Meli.AuthBaseURL == "" {
		c.Meli.AuthBaseURL = "https://auth.mercadolibre.com.mx"
	}
	if c.Auth.TokenStaleAfter == 0 {
		c.Auth.TokenStaleAfter = 5 * time.Hour
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "sid"
	}
	if c.Auth.Session.TTL == 0 {
		c.Auth.Session.TTL = time.Hour
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "Lax"
	}
	if c.Storage.ControlDB == "" {
		c.Storage.ControlDB = "melibridge"
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Storage.MaxIdleConns == 0 {
		c.Storage.MaxIdleConns = 2
	}
	if c.Storage.ConnMaxLifetime == "" {
		c.Storage.ConnMaxLifetime = "30m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "1h"
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 300
	}

	c.applyEnvOverrides()

	// validate string durations
	if _, err := time.ParseDuration(c.Storage.ConnMaxLifetime); err != nil {
		return nil, fmt.Errorf("storage.conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.Memory.DefaultTTL); err != nil {
		return nil, fmt.Errorf("cache.memory.default_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Rate.Window); err != nil {
		return nil, fmt.Errorf("rate.window: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate exige lo mínimo para poder hablar con el proveedor.
// El resto de los campos tienen defaults utilizables en dev.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Meli.ClientID) == "" {
		return fmt.Errorf("config: CLIENT_ID requerido")
	}
	if strings.TrimSpace(c.Meli.ClientSecret) == "" {
		return fmt.Errorf("config: CLIENT_SECRET requerido")
	}
	if strings.TrimSpace(c.Meli.RedirectURI) == "" {
		return fmt.Errorf("config: REDIRECT_URI requerido")
	}
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		return fmt.Errorf("config: SESSION_SECRET requerido")
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
// Los nombres siguen el .env original del proyecto (CLIENT_ID, DB_HOST, ...).
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + strings.TrimPrefix(strings.TrimSpace(v), ":")
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("PUBLIC_DIR"); ok {
		c.Server.PublicDir = v
	}

	// MELI
	if v, ok := getEnvStr("CLIENT_ID"); ok {
		c.Meli.ClientID = v
	}
	if v, ok := getEnvStr("CLIENT_SECRET"); ok {
		c.Meli.ClientSecret = v
	}
	if v, ok := getEnvStr("REDIRECT_URI"); ok {
		c.Meli.RedirectURI = v
	}
	if v, ok := getEnvStr("MELI_API_URL"); ok {
		c.Meli.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvStr("MELI_AUTH_URL"); ok {
		c.Meli.AuthBaseURL = strings.TrimRight(v, "/")
	}

	// AUTH
	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Auth.SessionSecret = v
	}
	if d, ok := getEnvDur("TOKEN_STALE_AFTER"); ok {
		c.Auth.TokenStaleAfter = d
	}
	if v, ok := getEnvStr("SESSION_COOKIE_NAME"); ok {
		c.Auth.Session.CookieName = v
	}
	if d, ok := getEnvDur("SESSION_TTL"); ok {
		c.Auth.Session.TTL = d
	}
	if v, ok := getEnvStr("SESSION_SAMESITE"); ok {
		c.Auth.Session.SameSite = v
	}
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Auth.Session.Secure = v
	}

	// STORAGE
	if v, ok := getEnvStr("DB_HOST"); ok {
		c.Storage.Host = v
	}
	if v, ok := getEnvStr("DB_USER"); ok {
		c.Storage.User = v
	}
	if v, ok := getEnvStr("DB_PASSWORD"); ok {
		c.Storage.Password = v
	}
	if v, ok := getEnvStr("DB_CONTROL_NAME"); ok {
		c.Storage.ControlDB = v
	}
	if v, ok := getEnvInt("DB_MAX_OPEN_CONNS"); ok {
		c.Storage.MaxOpenConns = v
	}
	if v, ok := getEnvInt("DB_MAX_IDLE_CONNS"); ok {
		c.Storage.MaxIdleConns = v
	}
	if v, ok := getEnvStr("DB_CONN_MAX_LIFETIME"); ok {
		c.Storage.ConnMaxLifetime = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
}

// ControlDSN arma el DSN de la base de control.
// parseTime=true para que DATETIME escanee a time.Time.
func (c *Config) ControlDSN() string {
	return c.dsn(c.Storage.ControlDB)
}

// TenantDSN arma el DSN para la base de un tenant ya validada.
func (c *Config) TenantDSN(dbName string) string {
	return c.dsn(dbName)
}

// ServerDSN arma un DSN sin base seleccionada (para CREATE DATABASE).
func (c *Config) ServerDSN() string {
	return c.dsn("")
}

func (c *Config) dsn(db string) string {
	host := c.Storage.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if !strings.Contains(host, ":") {
		host += ":3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&multiStatements=true",
		c.Storage.User, c.Storage.Password, host, db)
}
