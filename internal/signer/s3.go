package signer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner is the part of s3.PresignClient used for read URLs
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Signer issues SigV4 presigned GET URLs. Containers map to buckets.
type S3Signer struct {
	presigner Presigner
	sigv4     *v4.Signer
}

// NewS3Signer wraps an existing presigner
func NewS3Signer(p Presigner) *S3Signer {
	return &S3Signer{
		presigner: p,
		// S3 object keys are signed unescaped.
		sigv4: v4.NewSigner(func(o *v4.SignerOptions) {
			o.DisableURIPathEscaping = true
		}),
	}
}

// NewS3SignerFromConfig builds the S3 client and presigner.
// A non-empty endpoint (LocalStack, MinIO) switches to path-style addressing.
func NewS3SignerFromConfig(cfg aws.Config, endpoint string) *S3Signer {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Signer(s3.NewPresignClient(client))
}

// LoadAWSConfig loads the default credential chain for region
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

func (s *S3Signer) Backend() string { return "s3" }

func (s *S3Signer) Sign(ctx context.Context, container, objectName string, issuedAt time.Time, ttl time.Duration) (domain.SignedAccessGrant, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(objectName),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
		o.Presigner = issueTimePresigner{signer: s.sigv4, signedAt: issuedAt}
	})
	if err != nil {
		return domain.SignedAccessGrant{}, fmt.Errorf("failed to presign object: %w", err)
	}

	return domain.SignedAccessGrant{
		Container:  container,
		ObjectName: objectName,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
		Permission: domain.PermissionRead,
		URL:        req.URL,
	}, nil
}

// issueTimePresigner signs at the issue time handed to Sign instead of the SDK's wall clock
type issueTimePresigner struct {
	signer   *v4.Signer
	signedAt time.Time
}

func (p issueTimePresigner) PresignHTTP(
	ctx context.Context, credentials aws.Credentials, r *http.Request,
	payloadHash string, service string, region string, _ time.Time,
	optFns ...func(*v4.SignerOptions),
) (string, http.Header, error) {
	return p.signer.PresignHTTP(ctx, credentials, r, payloadHash, service, region, p.signedAt, optFns...)
}
