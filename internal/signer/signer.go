// Package signer issues short-lived, read-only URLs for objects in remote storage.
package signer

import (
	"context"
	"errors"
	"time"

	"storefront/internal/clock"
	"storefront/internal/domain"
	"storefront/internal/metrics"

	"go.uber.org/zap"
)

const (
	// DefaultDocumentTTL bounds URLs used for fetching documents such as the catalog
	DefaultDocumentTTL = time.Hour
	// DefaultImageTTL bounds image URLs handed to browsers
	DefaultImageTTL = 24 * time.Hour
)

var (
	errEmptyContainer  = errors.New("container is required")
	errEmptyObjectName = errors.New("object name is required")
	errInvalidDuration = errors.New("duration must be positive")
)

// Signer is a storage backend able to sign a read-only URL for one object
type Signer interface {
	Sign(ctx context.Context, container, objectName string, issuedAt time.Time, ttl time.Duration) (domain.SignedAccessGrant, error)
	Backend() string
}

// Issuer hands out signed read URLs
type Issuer interface {
	// Issue returns a signed URL, or an empty string when the object cannot be signed.
	// Callers must treat an empty result as unavailable and must not fetch it.
	Issue(ctx context.Context, container, objectName string, ttl time.Duration) string
	// Grant is Issue with the failure reported as a *domain.SigningError
	Grant(ctx context.Context, container, objectName string, ttl time.Duration) (domain.SignedAccessGrant, error)
}

type issuer struct {
	signer  Signer
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewIssuer creates an Issuer on top of a storage backend
func NewIssuer(signer Signer, clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) Issuer {
	if clk == nil {
		clk = clock.System()
	}
	return &issuer{
		signer:  signer,
		clock:   clk,
		logger:  logger.Named("signer"),
		metrics: m,
	}
}

func (i *issuer) Issue(ctx context.Context, container, objectName string, ttl time.Duration) string {
	grant, err := i.Grant(ctx, container, objectName, ttl)
	if err != nil {
		i.logger.Warn("Failed to issue signed URL",
			zap.String("backend", i.signer.Backend()),
			zap.String("container", container),
			zap.String("object", objectName),
			zap.Error(err),
		)
		i.metrics.RecordSigningFailure(container)
		return ""
	}
	return grant.URL
}

func (i *issuer) Grant(ctx context.Context, container, objectName string, ttl time.Duration) (domain.SignedAccessGrant, error) {
	var err error
	switch {
	case container == "":
		err = errEmptyContainer
	case objectName == "":
		err = errEmptyObjectName
	case ttl <= 0:
		err = errInvalidDuration
	}
	if err != nil {
		return domain.SignedAccessGrant{}, &domain.SigningError{Container: container, ObjectName: objectName, Err: err}
	}

	grant, err := i.signer.Sign(ctx, container, objectName, i.clock.Now().UTC(), ttl)
	if err != nil {
		return domain.SignedAccessGrant{}, &domain.SigningError{Container: container, ObjectName: objectName, Err: err}
	}

	return grant, nil
}
