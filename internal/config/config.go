package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Types reflect how the values are used:
// strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env             string // application environment (e.g. "dev", "prod")
    Port            string // HTTP port to listen on
    DBUser          string // database username
    DBPass          string // database password (optional)
    DBHost          string // database host address
    DBPort          string // database port number
    DBName          string // database name
    JWTSecret       string // secret used to sign JWTs
    AccessTTLMin    int    // access token time-to-live in minutes
    RefreshTTLDays  int    // refresh token time-to-live in days
    BcryptCost      int    // bcrypt cost for password hashing
    CodePrefix      string // reservation code prefix (codes look like TRV-0001)
    DefaultCurrency string // ISO 4217 currency for quotes
    HoldTTLHours    int    // how long a hold keeps inventory before lapsing
    SweepIntervalMin int   // minutes between background sweeps of expired holds
}

// Load reads configuration from the environment.  A .env file in the
// working directory is merged in first, so local development does not need
// exported variables.  Required values are enforced by must(); missing
// ones abort startup.
func Load() Config {
    _ = godotenv.Load()
    return Config{
        Env:             must("APP_ENV"),
        Port:            must("APP_PORT"),
        DBUser:          must("DB_USER"),
        DBPass:          os.Getenv("DB_PASS"), // empty allowed
        DBHost:          must("DB_HOST"),
        DBPort:          must("DB_PORT"),
        DBName:          must("DB_NAME"),
        JWTSecret:       must("JWT_SECRET"),
        AccessTTLMin:    mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays:  mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:      mustInt("BCRYPT_COST"),
        CodePrefix:      envStr("RESERVATION_CODE_PREFIX", "TRV"),
        DefaultCurrency: envStr("DEFAULT_CURRENCY", "EUR"),
        HoldTTLHours:    envInt("HOLD_TTL_HOURS", 3),
        SweepIntervalMin: envInt("SWEEP_INTERVAL_MIN", 10),
    }
}

// must retrieves a required environment variable.  If the variable is
// unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
