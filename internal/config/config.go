package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/harborview/support-service/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Support  SupportConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN switches the
// service to its in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	EventStream string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines boundary token parameters. Tokens are issued by the
// portal's identity service; this core only verifies and reads them.
type AuthConfig struct {
	JWTSecret string
}

// Lookup is a value/label pair surfaced by the lookup endpoints.
type Lookup struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// SupportConfig carries the support-desk routing and derived-fact inputs.
type SupportConfig struct {
	Categories        []Lookup
	OverdueThresholds domain.OverdueThresholds
	ExtraRoles        []domain.Role
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	categories, err := parseCategories(getEnv("SUPPORT_CATEGORIES", defaultCategories))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			EventStream: getEnv("REDIS_EVENT_STREAM", "support.ticket.events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Support: SupportConfig{
			Categories: categories,
			OverdueThresholds: domain.OverdueThresholds{
				domain.TicketPriorityLow:    getEnvAsInt("SUPPORT_OVERDUE_LOW_DAYS", 14),
				domain.TicketPriorityMedium: getEnvAsInt("SUPPORT_OVERDUE_MEDIUM_DAYS", 10),
				domain.TicketPriorityHigh:   getEnvAsInt("SUPPORT_OVERDUE_HIGH_DAYS", 5),
				domain.TicketPriorityUrgent: getEnvAsInt("SUPPORT_OVERDUE_URGENT_DAYS", 2),
			},
			ExtraRoles: parseRoles(os.Getenv("SUPPORT_EXTRA_ROLES")),
		},
	}

	return cfg, nil
}

// defaultCategories covers the portal's support topics; override through
// SUPPORT_CATEGORIES as "value:Label,value:Label,...".
const defaultCategories = "billing:Billing & Invoicing," +
	"scheduling:Appointment Scheduling," +
	"account:Account & Access," +
	"consent:Consent & Records," +
	"technical:Technical Issue," +
	"other:Other"

func parseCategories(raw string) ([]Lookup, error) {
	parts := strings.Split(raw, ",")
	categories := make([]Lookup, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, label, found := strings.Cut(part, ":")
		if !found || strings.TrimSpace(value) == "" {
			return nil, fmt.Errorf("invalid SUPPORT_CATEGORIES entry %q", part)
		}
		categories = append(categories, Lookup{
			Value: strings.ToLower(strings.TrimSpace(value)),
			Label: strings.TrimSpace(label),
		})
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("SUPPORT_CATEGORIES must define at least one category")
	}
	return categories, nil
}

func parseRoles(raw string) []domain.Role {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]domain.Role, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			roles = append(roles, domain.NormalizeRole(trimmed))
		}
	}
	return roles
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
