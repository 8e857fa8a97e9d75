package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested structs group optional subsystems.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing
    MaxUploadBytes int64  // largest accepted document upload

    Log     LogConfig
    AI      AIConfig
    Storage StorageConfig
    AMQP    AMQPConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
    Level  string // debug | info | warn | error
    Format string // json | text
}

// AIConfig configures study content generation.  With no APIKey the
// offline heuristic generator is used.
type AIConfig struct {
    APIKey  string
    BaseURL string
    Model   string
    Workers int           // concurrent generation calls
    Timeout time.Duration // per upload generation budget
}

// StorageConfig points at an S3 compatible bucket for raw documents.
type StorageConfig struct {
    Region     string
    Endpoint   string // set for MinIO and other non-AWS endpoints
    AccessKey  string
    SecretKey  string
    Bucket     string
    PresignTTL time.Duration
}

// AMQPConfig configures domain event publishing.  An empty URL disables it.
type AMQPConfig struct {
    URL    string
    LogDir string // where the consumer appends event logs
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding variables already set.  Missing files are ignored.
func LoadDotEnv(files ...string) {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if _, err := os.Stat(f); err != nil {
            continue
        }
        if err := godotenv.Load(f); err != nil {
            log.Printf("config: cannot load %s: %v", f, err)
        }
    }
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
        Log:            LoadLogConfig(),
        AI:             LoadAIConfig(),
        Storage:        LoadStorageConfig(),
        AMQP:           LoadAMQPConfig(),
    }
}

func LoadLogConfig() LogConfig {
    return LogConfig{
        Level:  envStr("LOG_LEVEL", "info"),
        Format: envStr("LOG_FORMAT", "json"),
    }
}

func LoadAIConfig() AIConfig {
    c := AIConfig{
        APIKey:  os.Getenv("OPENAI_API_KEY"),
        BaseURL: envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
        Model:   envStr("OPENAI_MODEL", "gpt-4o-mini"),
        Workers: envInt("AI_WORKERS", 4),
        Timeout: envDur("AI_TIMEOUT", 90*time.Second),
    }
    if c.Workers < 1 {
        c.Workers = 1
    }
    return c
}

func LoadStorageConfig() StorageConfig {
    return StorageConfig{
        Region:     envStr("S3_REGION", "us-east-1"),
        Endpoint:   os.Getenv("S3_ENDPOINT"),
        AccessKey:  os.Getenv("S3_ACCESS_KEY"),
        SecretKey:  os.Getenv("S3_SECRET_KEY"),
        Bucket:     envStr("S3_BUCKET", "notes"),
        PresignTTL: envDur("S3_PRESIGN_TTL", 15*time.Minute),
    }
}

func LoadAMQPConfig() AMQPConfig {
    return AMQPConfig{
        URL:    os.Getenv("AMQP_URL"),
        LogDir: envStr("EVENT_LOG_DIR", "logs"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
