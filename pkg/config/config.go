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
	DB           DBConfig
	Redis        RedisConfig
	Messenger    MessengerConfig
	Match        MatchConfig
	Sync         SyncConfig
	KeepAlive    KeepAliveConfig
	Cron         CronConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GRUPOFY_APP_ENV" required:"true"`
	Port         string `envconfig:"GRUPOFY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GRUPOFY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GRUPOFY_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"GRUPOFY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GRUPOFY_DB_DSN"`
	Driver string `envconfig:"GRUPOFY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GRUPOFY_DB_HOST"`
	LegacyPort     int    `envconfig:"GRUPOFY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GRUPOFY_DB_USER"`
	LegacyPassword string `envconfig:"GRUPOFY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GRUPOFY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GRUPOFY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GRUPOFY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GRUPOFY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GRUPOFY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GRUPOFY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional infrastructure: when neither URL nor Address is set
// the service degrades to DB-only idempotency and an in-process cron lock.
type RedisConfig struct {
	URL          string        `envconfig:"GRUPOFY_REDIS_URL"`
	Address      string        `envconfig:"GRUPOFY_REDIS_ADDR"`
	Password     string        `envconfig:"GRUPOFY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GRUPOFY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GRUPOFY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GRUPOFY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GRUPOFY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GRUPOFY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GRUPOFY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type MessengerConfig struct {
	AuthPath             string        `envconfig:"GRUPOFY_MESSENGER_AUTH_PATH" default:"data/messenger.db"`
	SessionID            string        `envconfig:"GRUPOFY_MESSENGER_SESSION_ID" default:"primary"`
	BackupEnabled        bool          `envconfig:"GRUPOFY_MESSENGER_BACKUP_ENABLED" default:"true"`
	ReconnectBase        time.Duration `envconfig:"GRUPOFY_MESSENGER_RECONNECT_BASE" default:"5s"`
	ReconnectMax         time.Duration `envconfig:"GRUPOFY_MESSENGER_RECONNECT_MAX" default:"60s"`
	MaxReconnectAttempts int           `envconfig:"GRUPOFY_MESSENGER_MAX_RECONNECT_ATTEMPTS" default:"10"`
	LogoutRetryDelay     time.Duration `envconfig:"GRUPOFY_MESSENGER_LOGOUT_RETRY_DELAY" default:"2s"`
}

type MatchConfig struct {
	Strategy string `envconfig:"GRUPOFY_MATCH_STRATEGY" default:"contains"`
}

type SyncConfig struct {
	Interval     time.Duration `envconfig:"GRUPOFY_SYNC_INTERVAL" default:"1h"`
	RosterMaxAge time.Duration `envconfig:"GRUPOFY_SYNC_ROSTER_MAX_AGE" default:"24h"`
}

// KeepAliveConfig enables a periodic self-ping against the externally
// reachable base URL so idle-shutdown hosts keep the process warm.
type KeepAliveConfig struct {
	BaseURL  string        `envconfig:"GRUPOFY_KEEPALIVE_BASE_URL"`
	Interval time.Duration `envconfig:"GRUPOFY_KEEPALIVE_INTERVAL" default:"5m"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GRUPOFY_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"GRUPOFY_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GRUPOFY_AUTO_MIGRATE" default:"false"`
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
