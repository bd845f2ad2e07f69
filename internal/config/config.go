package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Database     DatabaseConfig
	Remote       RemoteConfig
	Connectivity ConnectivityConfig
	Sync         SyncConfig
	WebSocket    WebSocketConfig
	CORS         CORSConfig
	Logging      LoggingConfig
	CartServer   CartServerConfig
	JWT          JWTConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type StoreConfig struct {
	Driver     string
	SQLitePath string
	// AllowShared skips the single-instance claim on the durable store.
	AllowShared bool
	ClaimTTL    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", d.User, d.Password, d.Host, d.Port)
}

type RemoteConfig struct {
	BaseURL        string
	ClientID       string
	ClientSecret   string
	RequestTimeout time.Duration
}

type ConnectivityConfig struct {
	ProbeInterval    time.Duration
	MaxProbeInterval time.Duration
	ProbeTimeout     time.Duration
}

type SyncConfig struct {
	CreateCart           bool
	NotifyPartialSuccess bool
	PassTimeout          time.Duration
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxClients      int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type CartServerConfig struct {
	Host             string
	Port             string
	ClientID         string
	ClientSecretHash string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	remoteTimeout, err := getEnvAsDuration("REMOTE_REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	probeInterval, err := getEnvAsDuration("CONNECTIVITY_PROBE_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	maxProbeInterval, err := getEnvAsDuration("CONNECTIVITY_MAX_PROBE_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	probeTimeout, err := getEnvAsDuration("CONNECTIVITY_PROBE_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, err
	}
	passTimeout, err := getEnvAsDuration("SYNC_PASS_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	claimTTL, err := getEnvAsDuration("INSTANCE_CLAIM_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	jwtExp, err := getEnvAsDuration("JWT_EXPIRATION", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("ENGINE_PORT", "8090"),
			Host: getEnv("ENGINE_HOST", "127.0.0.1"),
			Env:  getEnv("ENV", "development"),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "sqlite"),
			SQLitePath:  getEnv("STORE_SQLITE_PATH", "cartsync.db"),
			AllowShared: getEnvAsBool("STORE_ALLOW_SHARED", false),
			ClaimTTL:    claimTTL,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "cartsync"),
		},
		Remote: RemoteConfig{
			BaseURL:        getEnv("REMOTE_BASE_URL", "http://localhost:8080"),
			ClientID:       getEnv("REMOTE_CLIENT_ID", "cartsync-engine"),
			ClientSecret:   getEnv("REMOTE_CLIENT_SECRET", ""),
			RequestTimeout: remoteTimeout,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval:    probeInterval,
			MaxProbeInterval: maxProbeInterval,
			ProbeTimeout:     probeTimeout,
		},
		Sync: SyncConfig{
			CreateCart:           getEnvAsBool("SYNC_CREATE_CART", true),
			NotifyPartialSuccess: getEnvAsBool("SYNC_NOTIFY_PARTIAL_SUCCESS", true),
			PassTimeout:          passTimeout,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 65536)),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
			MaxClients:      getEnvAsInt("WS_MAX_CLIENTS", 32),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOGGING_LEVEL", "INFO"),
			Format: getEnv("LOGGING_FORMAT", "CONSOLE"),
		},
		CartServer: CartServerConfig{
			Host:             getEnv("CARTSERVER_HOST", "0.0.0.0"),
			Port:             getEnv("CARTSERVER_PORT", "8080"),
			ClientID:         getEnv("CARTSERVER_CLIENT_ID", "cartsync-engine"),
			ClientSecretHash: getEnv("CARTSERVER_CLIENT_SECRET_HASH", ""),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration: jwtExp,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "couch", "memory":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: must be sqlite, couch or memory", c.Store.Driver)
	}

	if c.Connectivity.MaxProbeInterval < c.Connectivity.ProbeInterval {
		return fmt.Errorf("CONNECTIVITY_MAX_PROBE_INTERVAL must not be below CONNECTIVITY_PROBE_INTERVAL")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
