package config // package config loads application configuration from environment variables

import (
    "log"  // log is used to report configuration errors and halt execution
    "os"   // os provides access to environment variables
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values are enforced by must(); the
// reservation and payment settings fall back to defaults.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    LogLevel     string // debug, info, warn or error
    DBUser       string // database username
    DBPass       string // database password (optional)
    DBHost       string // database host address
    DBPort       string // database port number
    DBName       string // database name
    AutoMigrate  bool   // apply the embedded schema on start
    SeedHalls    bool   // create the default halls when none exist
    JWTSecret    string // secret used to sign JWTs
    AccessTTLMin int    // access token time‑to‑live in minutes
    BcryptCost   int    // bcrypt cost for password hashing

    StripeSecretKey     string // Stripe API key; empty disables payments
    StripeWebhookSecret string // signing secret for /v1/webhooks/stripe
    Currency            string // ISO currency of every reservation

    Timezone      *time.Location // cinema time zone for showtime tokens and day windows
    HoldTTL       time.Duration  // how long a pending reservation holds its seats
    SweepInterval time.Duration  // period of the stale-hold reconciliation job
    LockTTL       time.Duration  // lifetime of a screening lock in Redis

    RabbitURL    string // AMQP URL for reservation events; empty disables publishing
    EventQueue   string // queue name for reservation events
    EventLogPath string // file the event consumer appends to
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    tzName := envStr("CINEMA_TIMEZONE", "UTC")
    loc, err := time.LoadLocation(tzName)
    if err != nil {
        log.Fatalf("invalid CINEMA_TIMEZONE %q: %v", tzName, err)
    }
    return Config{
        Env:          must("APP_ENV"),
        Port:         must("APP_PORT"),
        LogLevel:     envStr("LOG_LEVEL", "info"),
        DBUser:       must("DB_USER"),
        DBPass:       os.Getenv("DB_PASS"), // empty allowed
        DBHost:       must("DB_HOST"),
        DBPort:       must("DB_PORT"),
        DBName:       must("DB_NAME"),
        AutoMigrate:  envBool("DB_AUTO_MIGRATE", true),
        SeedHalls:    envBool("SEED_HALLS", false),
        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:   mustInt("BCRYPT_COST"),

        StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
        StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
        Currency:            envStr("CURRENCY", "usd"),

        Timezone:      loc,
        HoldTTL:       envDur("HOLD_TTL", 15*time.Minute),
        SweepInterval: envDur("SWEEP_INTERVAL", time.Minute),
        LockTTL:       envDur("SCREENING_LOCK_TTL", 10*time.Second),

        RabbitURL:    os.Getenv("RABBITMQ_URL"),
        EventQueue:   envStr("RESERVATION_EVENT_QUEUE", "reservation.events"),
        EventLogPath: envStr("RESERVATION_EVENT_LOG", "logs/reservations.log"),
    }
}
