package signer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

var errMissingAccountKey = errors.New("storage account name and key are required")

// AzureConfig identifies the storage account used to sign blob URLs when no
// connection string is configured
type AzureConfig struct {
	AccountName string
	AccountKey  string
	// BlobEndpoint overrides https://<account>.blob.core.windows.net
	BlobEndpoint string
}

// AzureSigner issues blob service SAS URLs with read permission only
type AzureSigner struct {
	svc     *service.Client
	credErr error
}

// NewAzureSigner creates a signer from explicit account settings.
// A missing or malformed key does not fail construction; every Sign call reports it instead.
func NewAzureSigner(cfg AzureConfig) *AzureSigner {
	if cfg.AccountName == "" || cfg.AccountKey == "" {
		return &AzureSigner{credErr: errMissingAccountKey}
	}

	endpoint := strings.TrimRight(cfg.BlobEndpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return &AzureSigner{credErr: fmt.Errorf("invalid storage account key: %w", err)}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(endpoint+"/", cred, nil)
	if err != nil {
		return &AzureSigner{credErr: fmt.Errorf("failed to create blob client: %w", err)}
	}
	return &AzureSigner{svc: client.ServiceClient()}
}

// NewAzureSignerFromConnectionString creates a signer from a storage connection string,
// honouring EndpointSuffix, DefaultEndpointsProtocol and BlobEndpoint.
// Connection strings without an account key produce a signer whose Sign calls fail.
func NewAzureSignerFromConnectionString(connectionString string) *AzureSigner {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return &AzureSigner{credErr: fmt.Errorf("invalid storage connection string: %w", err)}
	}
	return &AzureSigner{svc: client.ServiceClient()}
}

func (s *AzureSigner) Backend() string { return "azure" }

func (s *AzureSigner) Sign(_ context.Context, container, objectName string, issuedAt time.Time, ttl time.Duration) (domain.SignedAccessGrant, error) {
	if s.svc == nil {
		return domain.SignedAccessGrant{}, s.credErr
	}

	expiresAt := issuedAt.Add(ttl)
	blobClient := s.svc.NewContainerClient(container).NewBlobClient(objectName)

	signed, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, expiresAt, nil)
	if err != nil {
		return domain.SignedAccessGrant{}, fmt.Errorf("failed to sign blob SAS: %w", err)
	}

	return domain.SignedAccessGrant{
		Container:  container,
		ObjectName: objectName,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Permission: domain.PermissionRead,
		URL:        signed,
	}, nil
}
