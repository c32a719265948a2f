package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	HTTP         HTTPConfig
	Reservation  ReservationConfig
	Ledger       LedgerConfig
	Sweeper      SweeperConfig
	ERP          ERPConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reservation.validate(); err != nil {
		return nil, err
	}
	if err := cfg.ERP.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKHOLD_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKHOLD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKHOLD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKHOLD_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOCKHOLD_LOG_FORMAT" default:"json"`
	MetricsPort  string `envconfig:"STOCKHOLD_METRICS_PORT" default:"9102"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKHOLD_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKHOLD_DB_DSN"`
	Driver string `envconfig:"STOCKHOLD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKHOLD_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKHOLD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKHOLD_DB_USER"`
	LegacyPassword string `envconfig:"STOCKHOLD_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKHOLD_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKHOLD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKHOLD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKHOLD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKHOLD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOCKHOLD_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKHOLD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOCKHOLD_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKHOLD_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKHOLD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKHOLD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKHOLD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKHOLD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKHOLD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKHOLD_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"STOCKHOLD_REDIS_KEY_PREFIX" default:"stockhold"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOCKHOLD_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOCKHOLD_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOCKHOLD_JWT_EXPIRATION_MINUTES" default:"60"`
}

// HTTPConfig holds the API edge policy.
type HTTPConfig struct {
	CORSOrigins       []string      `envconfig:"STOCKHOLD_CORS_ORIGINS"`
	ReserveRateLimit  int           `envconfig:"STOCKHOLD_RESERVE_RATE_LIMIT" default:"60"`
	ReserveRateWindow time.Duration `envconfig:"STOCKHOLD_RESERVE_RATE_WINDOW" default:"1m"`
}

// ReservationConfig drives the reservation manager defaults.
type ReservationConfig struct {
	DefaultWarehouseID     string `envconfig:"STOCKHOLD_RESERVATION_DEFAULT_WAREHOUSE_ID"`
	DefaultDurationMinutes int    `envconfig:"STOCKHOLD_RESERVATION_DEFAULT_DURATION_MINUTES" default:"15"`
	MaxDurationMinutes     int    `envconfig:"STOCKHOLD_RESERVATION_MAX_DURATION_MINUTES" default:"1440"`
	MaxItems               int    `envconfig:"STOCKHOLD_RESERVATION_MAX_ITEMS" default:"100"`
}

// DefaultDuration returns the hold length applied when a request omits one.
func (r ReservationConfig) DefaultDuration() time.Duration {
	return time.Duration(r.DefaultDurationMinutes) * time.Minute
}

func (r ReservationConfig) validate() error {
	if r.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationDefaultDuration)
	}
	if r.MaxDurationMinutes > 0 && r.MaxDurationMinutes < r.DefaultDurationMinutes {
		return fmt.Errorf("%s must be >= %s", EnvReservationMaxDuration, EnvReservationDefaultDuration)
	}
	return nil
}

type LedgerConfig struct {
	MaxAttempts int `envconfig:"STOCKHOLD_LEDGER_MAX_ATTEMPTS" default:"3"`
}

type SweeperConfig struct {
	Interval  time.Duration `envconfig:"STOCKHOLD_SWEEPER_INTERVAL" default:"1m"`
	BatchSize int           `envconfig:"STOCKHOLD_SWEEPER_BATCH_SIZE" default:"200"`
	LockTTL   time.Duration `envconfig:"STOCKHOLD_SWEEPER_LOCK_TTL" default:"5m"`
}

// ERPConfig configures the external stock bridge. The bridge is off unless enabled.
type ERPConfig struct {
	Enabled    bool          `envconfig:"STOCKHOLD_ERP_ENABLED" default:"false"`
	BaseURL    string        `envconfig:"STOCKHOLD_ERP_BASE_URL"`
	APIToken   string        `envconfig:"STOCKHOLD_ERP_API_TOKEN"`
	Timeout    time.Duration `envconfig:"STOCKHOLD_ERP_TIMEOUT" default:"10s"`
	Mandatory  bool          `envconfig:"STOCKHOLD_ERP_MANDATORY" default:"false"`
	TTLMinutes int           `envconfig:"STOCKHOLD_ERP_TTL_MINUTES" default:"30"`
}

func (e ERPConfig) validate() error {
	if !e.Enabled {
		return nil
	}
	if strings.TrimSpace(e.BaseURL) == "" {
		return fmt.Errorf("%s is required when %s=true", EnvERPBaseURL, EnvERPEnabled)
	}
	if strings.TrimSpace(e.APIToken) == "" {
		return fmt.Errorf("%s is required when %s=true", EnvERPAPIToken, EnvERPEnabled)
	}
	return nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOCKHOLD_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ReservationsTopic string `envconfig:"STOCKHOLD_PUBSUB_RESERVATIONS_TOPIC" default:"stockhold-reservation-events"`
	InventoryTopic    string `envconfig:"STOCKHOLD_PUBSUB_INVENTORY_TOPIC" default:"stockhold-inventory-events"`
}

type OutboxConfig struct {
	BatchSize      int  `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int  `envconfig:"STOCKHOLD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int  `envconfig:"STOCKHOLD_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int  `envconfig:"STOCKHOLD_OUTBOX_RETENTION_DAYS" default:"7"`
	Ordered        bool `envconfig:"STOCKHOLD_OUTBOX_ORDERED" default:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKHOLD_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
