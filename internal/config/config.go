package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Azure     AzureConfig
	AWS       AWSConfig
	Fetch     FetchConfig
	Queue     QueueConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	Env         string `validate:"oneof=development production test"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	CORSOrigins []string
}

type StorageConfig struct {
	Backend           string        `validate:"oneof=azure s3"`
	ProductsContainer string        `validate:"required"`
	ImagesContainer   string        `validate:"required"`
	CatalogObject     string        `validate:"required"`
	DocumentTTL       time.Duration `validate:"gt=0"`
	ImageTTL          time.Duration `validate:"gt=0"`
}

type AzureConfig struct {
	AccountName      string
	AccountKey       string
	BlobEndpoint     string
	ConnectionString string
}

type AWSConfig struct {
	Region      string
	EndpointURL string
}

type FetchConfig struct {
	CatalogURL string        `validate:"omitempty,url"`
	Timeout    time.Duration `validate:"gt=0"`
	MaxBytes   int64         `validate:"gt=0"`
}

type QueueConfig struct {
	Backend      string        `validate:"oneof=azure redis postgres"`
	Name         string        `validate:"required"`
	Timeout      time.Duration `validate:"gt=0"`
	Base64Encode bool
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int           `validate:"gte=0"`
	Window   time.Duration `validate:"gt=0"`
}

var (
	ErrMissingAzureCredentials = errors.New("azure storage requires AZURE_STORAGE_CONNECTION_STRING or account name and key")
	ErrMissingAzureQueue       = errors.New("azure queue requires AZURE_STORAGE_CONNECTION_STRING")
	ErrMissingAWSRegion        = errors.New("s3 storage requires AWS_REGION")
	ErrMissingDatabase         = errors.New("postgres queue requires DB_HOST, DB_USER and DB_DATABASE")
)

// Load reads configuration from the environment, with values from a .env file in the
// working directory filling the gaps. Each call uses its own viper instance.
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with explicit .env file paths; missing files are ignored
func LoadFrom(envFiles ...string) (*Config, error) {
	fileValues := map[string]string{}
	for _, path := range envFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range values {
			if _, exists := fileValues[k]; !exists {
				fileValues[k] = v
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	// Process environment wins over the file.
	for k, val := range fileValues {
		v.SetDefault(k, val)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("SERVER_PORT"),
			Env:         v.GetString("SERVER_ENV"),
			LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),
			CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Storage: StorageConfig{
			Backend:           strings.ToLower(v.GetString("STORAGE_BACKEND")),
			ProductsContainer: v.GetString("STORAGE_PRODUCTS_CONTAINER"),
			ImagesContainer:   v.GetString("STORAGE_IMAGES_CONTAINER"),
			CatalogObject:     v.GetString("STORAGE_CATALOG_OBJECT"),
			DocumentTTL:       v.GetDuration("STORAGE_DOCUMENT_TTL"),
			ImageTTL:          v.GetDuration("STORAGE_IMAGE_TTL"),
		},
		Azure: AzureConfig{
			AccountName:      v.GetString("AZURE_STORAGE_ACCOUNT_NAME"),
			AccountKey:       v.GetString("AZURE_STORAGE_ACCOUNT_KEY"),
			BlobEndpoint:     v.GetString("AZURE_STORAGE_BLOB_ENDPOINT"),
			ConnectionString: ExpandConnectionString(v.GetString("AZURE_STORAGE_CONNECTION_STRING")),
		},
		AWS: AWSConfig{
			Region:      v.GetString("AWS_REGION"),
			EndpointURL: v.GetString("AWS_ENDPOINT_URL"),
		},
		Fetch: FetchConfig{
			CatalogURL: v.GetString("CATALOG_URL"),
			Timeout:    v.GetDuration("FETCH_TIMEOUT"),
			MaxBytes:   v.GetInt64("FETCH_MAX_BYTES"),
		},
		Queue: QueueConfig{
			Backend:      strings.ToLower(v.GetString("QUEUE_BACKEND")),
			Name:         v.GetString("QUEUE_NAME"),
			Timeout:      v.GetDuration("QUEUE_TIMEOUT"),
			Base64Encode: v.GetBool("QUEUE_BASE64_ENCODE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("STORAGE_BACKEND", "azure")
	v.SetDefault("STORAGE_PRODUCTS_CONTAINER", "products")
	v.SetDefault("STORAGE_IMAGES_CONTAINER", "images")
	v.SetDefault("STORAGE_CATALOG_OBJECT", "product.json")
	v.SetDefault("STORAGE_DOCUMENT_TTL", time.Hour)
	v.SetDefault("STORAGE_IMAGE_TTL", 24*time.Hour)
	v.SetDefault("FETCH_TIMEOUT", 5*time.Second)
	v.SetDefault("FETCH_MAX_BYTES", 8<<20)
	v.SetDefault("QUEUE_BACKEND", "azure")
	v.SetDefault("QUEUE_NAME", "orders")
	v.SetDefault("QUEUE_TIMEOUT", 5*time.Second)
	v.SetDefault("QUEUE_BASE64_ENCODE", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
}

// Validate checks field constraints and the settings each selected backend needs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return fmt.Errorf("invalid config %s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Storage.Backend == "azure" && c.Azure.ConnectionString == "" && (c.Azure.AccountName == "" || c.Azure.AccountKey == "") {
		return ErrMissingAzureCredentials
	}
	if c.Queue.Backend == "azure" && c.Azure.ConnectionString == "" {
		return ErrMissingAzureQueue
	}
	if c.Storage.Backend == "s3" && c.AWS.Region == "" {
		return ErrMissingAWSRegion
	}
	if c.Queue.Backend == "postgres" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "") {
		return ErrMissingDatabase
	}

	return nil
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// DevelopmentStorageConnectionString points at the Azurite emulator's well-known account
const DevelopmentStorageConnectionString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;" +
	"QueueEndpoint=http://127.0.0.1:10001/devstoreaccount1"

// ExpandConnectionString replaces the UseDevelopmentStorage=true shorthand, which the
// blob and queue SDKs do not parse, with the emulator's full connection string
func ExpandConnectionString(raw string) string {
	for _, part := range strings.Split(raw, ";") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		if strings.EqualFold(key, "UseDevelopmentStorage") && strings.EqualFold(value, "true") {
			return DevelopmentStorageConnectionString
		}
	}
	return raw
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
