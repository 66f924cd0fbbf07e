package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeEnvFile(t, "AZURE_STORAGE_CONNECTION_STRING=UseDevelopmentStorage=true\n")

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "azure", cfg.Storage.Backend)
	assert.Equal(t, "products", cfg.Storage.ProductsContainer)
	assert.Equal(t, "images", cfg.Storage.ImagesContainer)
	assert.Equal(t, "product.json", cfg.Storage.CatalogObject)
	assert.Equal(t, time.Hour, cfg.Storage.DocumentTTL)
	assert.Equal(t, 24*time.Hour, cfg.Storage.ImageTTL)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "orders", cfg.Queue.Name)
	assert.Equal(t, 5*time.Second, cfg.Queue.Timeout)
	assert.False(t, cfg.Queue.Base64Encode)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := writeEnvFile(t, `STORAGE_BACKEND=s3
AWS_REGION=eu-west-1
QUEUE_BACKEND=redis
QUEUE_NAME=storefront-orders
QUEUE_TIMEOUT=2s
STORAGE_IMAGE_TTL=30m
CATALOG_URL=https://cdn.example.com/catalog.json
CORS_ALLOWED_ORIGINS=https://shop.example.com, https://admin.example.com
`)

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "redis", cfg.Queue.Backend)
	assert.Equal(t, "storefront-orders", cfg.Queue.Name)
	assert.Equal(t, 2*time.Second, cfg.Queue.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Storage.ImageTTL)
	assert.Equal(t, "https://cdn.example.com/catalog.json", cfg.Fetch.CatalogURL)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
}

func TestEnvironmentOverridesEnvFile(t *testing.T) {
	path := writeEnvFile(t, "AZURE_STORAGE_CONNECTION_STRING=UseDevelopmentStorage=true\nQUEUE_NAME=from-file\n")
	t.Setenv("QUEUE_NAME", "from-env")

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Queue.Name)
}

func TestLoadIgnoresMissingEnvFile(t *testing.T) {
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))

	assert.NoError(t, err)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "unknown storage backend", content: "STORAGE_BACKEND=gcs\n"},
		{name: "unknown queue backend", content: "AZURE_STORAGE_CONNECTION_STRING=x\nQUEUE_BACKEND=kafka\n"},
		{name: "non-positive ttl", content: "AZURE_STORAGE_CONNECTION_STRING=x\nSTORAGE_DOCUMENT_TTL=0s\n"},
		{name: "bad catalog url", content: "AZURE_STORAGE_CONNECTION_STRING=x\nCATALOG_URL=not a url\n"},
		{name: "azure without credentials", content: "QUEUE_BACKEND=redis\n", wantErr: ErrMissingAzureCredentials},
		{name: "azure queue without connection string", content: "AZURE_STORAGE_ACCOUNT_NAME=acct\nAZURE_STORAGE_ACCOUNT_KEY=a2V5\n", wantErr: ErrMissingAzureQueue},
		{name: "s3 without region", content: "STORAGE_BACKEND=s3\nQUEUE_BACKEND=redis\n", wantErr: ErrMissingAWSRegion},
		{name: "postgres without database", content: "STORAGE_BACKEND=s3\nAWS_REGION=us-east-1\nQUEUE_BACKEND=postgres\n", wantErr: ErrMissingDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeEnvFile(t, tt.content))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEachLoadIsIndependent(t *testing.T) {
	first, err := LoadFrom(writeEnvFile(t, "AZURE_STORAGE_CONNECTION_STRING=x\nQUEUE_NAME=first\n"))
	require.NoError(t, err)

	second, err := LoadFrom(writeEnvFile(t, "AZURE_STORAGE_CONNECTION_STRING=x\n"))
	require.NoError(t, err)

	assert.Equal(t, "first", first.Queue.Name)
	assert.Equal(t, "orders", second.Queue.Name)
}

func TestLoadExpandsDevelopmentStorage(t *testing.T) {
	path := writeEnvFile(t, "AZURE_STORAGE_CONNECTION_STRING=UseDevelopmentStorage=true\n")

	cfg, err := LoadFrom(path)

	require.NoError(t, err)
	assert.Equal(t, DevelopmentStorageConnectionString, cfg.Azure.ConnectionString)
	assert.Contains(t, cfg.Azure.ConnectionString, "BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1")
	assert.Contains(t, cfg.Azure.ConnectionString, "QueueEndpoint=http://127.0.0.1:10001/devstoreaccount1")
}

func TestExpandConnectionString(t *testing.T) {
	account := "DefaultEndpointsProtocol=https;AccountName=shop;AccountKey=a2V5;EndpointSuffix=core.chinacloudapi.cn"

	assert.Equal(t, DevelopmentStorageConnectionString, ExpandConnectionString("UseDevelopmentStorage=true"))
	assert.Equal(t, DevelopmentStorageConnectionString, ExpandConnectionString("usedevelopmentstorage=TRUE;"))
	assert.Equal(t, account, ExpandConnectionString(account))
	assert.Equal(t, "UseDevelopmentStorage=false", ExpandConnectionString("UseDevelopmentStorage=false"))
	assert.Empty(t, ExpandConnectionString(""))
}

func TestIsProduction(t *testing.T) {
	assert.True(t, (&Config{Server: ServerConfig{Env: "production"}}).IsProduction())
	assert.False(t, (&Config{Server: ServerConfig{Env: "development"}}).IsProduction())
}
