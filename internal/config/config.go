package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Store     StoreConfig     `toml:"store"`
	Redis     RedisConfig     `toml:"redis"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	CORS      CORSConfig      `toml:"cors"`
	Tool      ToolConfig      `toml:"tool"`
}

type ServerConfig struct {
	Host            string        `toml:"host"`
	Port            string        `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	Environment     string        `toml:"environment"`
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"`
	Path            string        `toml:"path"`
	Host            string        `toml:"host"`
	Port            string        `toml:"port"`
	User            string        `toml:"user"`
	Password        string        `toml:"password"`
	Name            string        `toml:"name"`
	SSLMode         string        `toml:"ssl_mode"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `toml:"conn_max_idle_time"`
	LogLevel        string        `toml:"log_level"`
}

type StoreConfig struct {
	Backend      string `toml:"backend"`
	FilePath     string `toml:"file_path"`
	Vocabulary   string `toml:"vocabulary"`
	DefaultOwner string `toml:"default_owner"`
}

type RedisConfig struct {
	Enabled      bool          `toml:"enabled"`
	Host         string        `toml:"host"`
	Port         string        `toml:"port"`
	Password     string        `toml:"password"`
	DB           int           `toml:"db"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	MaxRetries   int           `toml:"max_retries"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	CacheTTL     time.Duration `toml:"cache_ttl"`
}

type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_minute"`
	BurstSize      int  `toml:"burst_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

type ToolConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BackendDatabase = "database"
	BackendFile     = "file"
)

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            "8000",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "todo.db",
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "todo",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			LogLevel:        "warn",
		},
		Store: StoreConfig{
			Backend:      BackendDatabase,
			FilePath:     "tasks.json",
			Vocabulary:   "canonical",
			DefaultOwner: "default",
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			CacheTTL:     time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 600,
			BurstSize:      50,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Tool: ToolConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: 15 * time.Second,
		},
	}
}

// LoadConfig layers defaults, then the TOML file named by CONFIG_FILE (if
// any), then environment variables, and validates the result.
func LoadConfig() (*Config, error) {
	config := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		md, err := toml.DecodeFile(path, config)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HOST", s.Host)
	s.Port = getEnv("PORT", s.Port)
	s.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.Environment = getEnv("ENVIRONMENT", s.Environment)

	d := &c.Database
	d.Driver = getEnv("DB_DRIVER", d.Driver)
	d.Path = getEnv("DB_PATH", d.Path)
	d.Host = getEnv("DB_HOST", d.Host)
	d.Port = getEnv("DB_PORT", d.Port)
	d.User = getEnv("DB_USER", d.User)
	d.Password = getEnv("DB_PASSWORD", d.Password)
	d.Name = getEnv("DB_NAME", d.Name)
	d.SSLMode = getEnv("DB_SSL_MODE", d.SSLMode)
	d.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
	d.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", d.ConnMaxLifetime)
	d.ConnMaxIdleTime = getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", d.ConnMaxIdleTime)
	d.LogLevel = getEnv("DB_LOG_LEVEL", d.LogLevel)

	st := &c.Store
	st.Backend = getEnv("STORE_BACKEND", st.Backend)
	st.FilePath = getEnv("TASKS_FILE", st.FilePath)
	st.Vocabulary = getEnv("TASKS_FILE_VOCABULARY", st.Vocabulary)
	st.DefaultOwner = getEnv("TASKS_DEFAULT_OWNER", st.DefaultOwner)

	r := &c.Redis
	r.Enabled = getEnvAsBool("REDIS_ENABLED", r.Enabled)
	r.Host = getEnv("REDIS_HOST", r.Host)
	r.Port = getEnv("REDIS_PORT", r.Port)
	r.Password = getEnv("REDIS_PASSWORD", r.Password)
	r.DB = getEnvAsInt("REDIS_DB", r.DB)
	r.PoolSize = getEnvAsInt("REDIS_POOL_SIZE", r.PoolSize)
	r.MinIdleConns = getEnvAsInt("REDIS_MIN_IDLE_CONNS", r.MinIdleConns)
	r.MaxRetries = getEnvAsInt("REDIS_MAX_RETRIES", r.MaxRetries)
	r.DialTimeout = getEnvAsDuration("REDIS_DIAL_TIMEOUT", r.DialTimeout)
	r.ReadTimeout = getEnvAsDuration("REDIS_READ_TIMEOUT", r.ReadTimeout)
	r.WriteTimeout = getEnvAsDuration("REDIS_WRITE_TIMEOUT", r.WriteTimeout)
	r.CacheTTL = getEnvAsDuration("CACHE_TTL", r.CacheTTL)

	rl := &c.RateLimit
	rl.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", rl.Enabled)
	rl.RequestsPerMin = getEnvAsInt("RATE_LIMIT_RPM", rl.RequestsPerMin)
	rl.BurstSize = getEnvAsInt("RATE_LIMIT_BURST", rl.BurstSize)

	c.CORS.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)

	c.Tool.BaseURL = getEnv("TODO_API_BASE_URL", c.Tool.BaseURL)
	c.Tool.Timeout = getEnvAsDuration("TOOL_TIMEOUT", c.Tool.Timeout)
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q (want sqlite or postgres)", c.Database.Driver)
	}

	switch c.Store.Backend {
	case BackendDatabase, BackendFile:
	default:
		return fmt.Errorf("unknown store backend %q (want database or file)", c.Store.Backend)
	}

	switch c.Store.Vocabulary {
	case "canonical", "legacy":
	default:
		return fmt.Errorf("unknown status vocabulary %q (want canonical or legacy)", c.Store.Vocabulary)
	}

	switch strings.ToLower(c.Database.LogLevel) {
	case "silent", "error", "warn", "info":
	default:
		return fmt.Errorf("unknown database log level %q", c.Database.LogLevel)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("rate limit must allow at least one request per minute")
	}

	if c.Tool.Timeout <= 0 {
		return fmt.Errorf("tool timeout must be positive")
	}

	if c.IsProduction() && c.Store.Backend == BackendDatabase &&
		c.Database.Driver == DriverPostgres && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	return nil
}

// GetDatabaseDSN returns the sqlite file path or a postgres DSN.
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.Path
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
