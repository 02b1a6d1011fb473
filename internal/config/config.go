package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/pricing"
	"github.com/iliyamo/smart-parking/internal/queue"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; money is in the smallest currency unit.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DB             database.Config
	JWTSecret      string        // secret used to verify operator and gate JWTs
	NodeID         int64         // snowflake node for token numbers, 0-1023
	Pricing        pricing.Config
	PricingCache   time.Duration // TTL of cached pricing rules in Redis
	EventsEnabled  bool          // publish session events to RabbitMQ
	AuditConsumer  bool          // run the audit consumer in-process
	AuditDir       string        // directory of parking.log
	BrokerURL      string        // RabbitMQ URL
	ShutdownPeriod time.Duration // graceful shutdown bound
}

// Load reads .env (when present) and then the environment. Required
// variables are enforced by must() and missing values stop the program.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("APP_PORT", "8080"),
		DB:        LoadDB(),
		JWTSecret: must("JWT_SECRET"),
		NodeID:    int64(envInt("NODE_ID", 1)),
		Pricing: pricing.Config{
			TaxBasisPoints:    int64(envInt("TAX_BASIS_POINTS", pricing.DefaultTaxBasisPoints)),
			DefaultHourlyRate: int64(envInt("DEFAULT_HOURLY_RATE", pricing.DefaultHourlyRate)),
		},
		PricingCache:   envDur("PRICING_CACHE_TTL", time.Minute),
		EventsEnabled:  envBool("EVENTS_ENABLED", true),
		AuditConsumer:  envBool("AUDIT_CONSUMER_ENABLED", false),
		AuditDir:       envStr("AUDIT_LOG_DIR", "logs"),
		BrokerURL:      queue.BrokerURL(),
		ShutdownPeriod: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// LoadDB reads the DB_* and TX_* variables. SQLite needs only DB_PATH; the
// server databases require user, host, port and name.
func LoadDB() database.Config {
	driver := envStr("DB_DRIVER", "mysql")
	dbc := database.Config{
		Driver:       driver,
		LockTimeout:  envDur("DB_LOCK_TIMEOUT", 5*time.Second),
		TxTimeout:    envDur("TX_TIMEOUT", 5*time.Second),
		MaxAttempts:  envInt("TX_MAX_ATTEMPTS", 3),
		RetryBackoff: envDur("TX_RETRY_BACKOFF", 50*time.Millisecond),
	}
	d, err := database.ParseDialect(driver)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if d == database.SQLite {
		dbc.Path = envStr("DB_PATH", "parking.db")
		return dbc
	}
	dbc.User = must("DB_USER")
	dbc.Pass = os.Getenv("DB_PASS") // empty allowed
	dbc.Host = must("DB_HOST")
	dbc.Port = must("DB_PORT")
	dbc.Name = must("DB_NAME")
	dbc.SSLMode = os.Getenv("DB_SSLMODE")
	return dbc
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
