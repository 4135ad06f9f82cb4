package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	API       APIConfig       `json:"api"`
	Storage   StorageConfig   `json:"storage"`
	Session   SessionConfig   `json:"session"`
	Cart      CartConfig      `json:"cart"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Currency  string          `json:"currency"`
}

type APIConfig struct {
	BaseURL    string        `json:"base_url"`
	Timeout    time.Duration `json:"timeout"`
	Retries    int           `json:"retries"`
	HTTPClient *http.Client  `json:"-"`
}

// StorageConfig selects the local persistence backend. Azure wins when an
// account name is set.
type StorageConfig struct {
	Dir         string `json:"dir"`
	AccountName string `json:"account_name"`
	AccountKey  string `json:"-"`
	Container   string `json:"container"`
}

type SessionConfig struct {
	Passphrase string `json:"-"` // encrypts the persisted token when set
}

type CartConfig struct {
	SequenceResponses bool `json:"sequence_responses"`
}

type TelemetryConfig struct {
	LogLevel     string `json:"log_level"`
	OTLPEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
	// LogBlobPrefix turns on shipping logs to append blobs in LogStorage.
	LogBlobPrefix string        `json:"log_blob_prefix"`
	LogStorage    StorageConfig `json:"-"`
}

// Load reads an optional .env file and then the environment. Variables that
// are already set are not overridden by the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	timeout, err := getDurationOrDefault("STOREFRONT_API_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	retries, err := getIntOrDefault("STOREFRONT_API_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	sequence, err := getBoolOrDefault("STOREFRONT_SEQUENCE_RESPONSES", false)
	if err != nil {
		return nil, err
	}

	storage := StorageConfig{
		Dir:         getEnvOrDefault("STOREFRONT_CACHE_DIR", "./data"),
		AccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		AccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
		Container:   getEnvOrDefault("AZURE_STORAGE_CONTAINER", "storefront"),
	}

	config := &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnvOrDefault("STOREFRONT_API_URL", "http://localhost:5000/api"), "/"),
			Timeout: timeout,
			Retries: retries,
		},
		Storage: storage,
		Session: SessionConfig{
			Passphrase: os.Getenv("STOREFRONT_SESSION_PASSPHRASE"),
		},
		Cart: CartConfig{
			SequenceResponses: sequence,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     getEnvOrDefault("STOREFRONT_LOG_LEVEL", "info"),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "storefront"),

			LogBlobPrefix: os.Getenv("STOREFRONT_LOG_BLOB_PREFIX"),
			LogStorage:    storage,
		},
		Currency: getEnvOrDefault("STOREFRONT_CURRENCY", "INR"),
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
