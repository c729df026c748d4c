package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	Alerts     AlertsConfig
	Legacy     LegacyConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig holds configuration for EventStoreDB.
type EventStoreConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// AlertsConfig controls the asynchronous alert writer.
type AlertsConfig struct {
	BufferSize int
}

// LegacyConfig holds configuration for the legacy practice-management
// system importer (SQL Server).
type LegacyConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	PatientTable string
	PollInterval time.Duration
	BatchSize    int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "clinica"),
			Password: getEnv("DB_PASSWORD", "clinica"),
			Database: getEnv("DB_NAME", "clinica"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		EventStore: EventStoreConfig{
			Host:     getEnv("EVENTSTORE_HOST", "localhost"),
			Port:     getEnvInt("EVENTSTORE_PORT", 2113),
			Insecure: getEnvBool("EVENTSTORE_INSECURE", true),
			Username: getEnv("EVENTSTORE_USERNAME", ""),
			Password: getEnv("EVENTSTORE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Alerts: AlertsConfig{
			BufferSize: getEnvInt("ALERTS_BUFFER_SIZE", 256),
		},
		Legacy: LegacyConfig{
			Enabled:      getEnvBool("LEGACY_IMPORT_ENABLED", false),
			Host:         getEnv("LEGACY_DB_HOST", "localhost"),
			Port:         getEnvInt("LEGACY_DB_PORT", 1433),
			User:         getEnv("LEGACY_DB_USER", ""),
			Password:     getEnv("LEGACY_DB_PASSWORD", ""),
			Database:     getEnv("LEGACY_DB_NAME", "consultorio"),
			PatientTable: getEnv("LEGACY_PATIENT_TABLE", "dbo.Pacientes"),
			PollInterval: getEnvDuration("LEGACY_POLL_INTERVAL", 5*time.Minute),
			BatchSize:    getEnvInt("LEGACY_BATCH_SIZE", 100),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
