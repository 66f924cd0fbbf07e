package queue

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// AzureConfig selects the storage queue orders are written to
type AzureConfig struct {
	ConnectionString string
	QueueName        string
	// Base64 encodes message text, which Azure Functions queue triggers expect
	Base64  bool
	Timeout time.Duration
}

// AzurePublisher enqueues orders on an Azure Storage queue
type AzurePublisher struct {
	client  *azqueue.QueueClient
	base64  bool
	timeout time.Duration
}

// ClientOptions disables SDK retries; submission is attempted exactly once per call.
func ClientOptions() *azqueue.ClientOptions {
	return &azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}
}

// NewAzurePublisher connects to the queue named in cfg
func NewAzurePublisher(cfg AzureConfig) (*AzurePublisher, error) {
	if cfg.ConnectionString == "" || cfg.QueueName == "" {
		return nil, errors.New("azure queue requires a connection string and a queue name")
	}

	svc, err := azqueue.NewServiceClientFromConnectionString(cfg.ConnectionString, ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create queue service client: %w", err)
	}

	return NewAzurePublisherFromClient(svc.NewQueueClient(cfg.QueueName), cfg), nil
}

// NewAzurePublisherFromClient wraps an existing queue client
func NewAzurePublisherFromClient(client *azqueue.QueueClient, cfg AzureConfig) *AzurePublisher {
	return &AzurePublisher{
		client:  client,
		base64:  cfg.Base64,
		timeout: cfg.Timeout,
	}
}

func (p *AzurePublisher) Backend() string { return BackendAzure }

func (p *AzurePublisher) Publish(ctx context.Context, msg domain.OrderMessage) error {
	payload, err := Encode(msg)
	if err != nil {
		return submissionError(p.Backend(), err)
	}

	content := string(payload)
	if p.base64 {
		content = base64.StdEncoding.EncodeToString(payload)
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.client.EnqueueMessage(ctx, content, nil); err != nil {
		return submissionError(p.Backend(), err)
	}
	return nil
}

func (p *AzurePublisher) Close() error { return nil }
