package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"reflect"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/fetcher"
	"storefront/internal/metrics"
	"storefront/internal/signer"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultCatalogObject is the object name of the catalog document in the products container
const DefaultCatalogObject = "product.json"

var (
	errMissingField = errors.New("required field is missing")
	errInvalidPrice = errors.New("must be a string or a number")
	errNotAnArray   = errors.New("catalog document must be a JSON array")
	recordValidator = newRecordValidator()
)

// CatalogService resolves the current product catalog
type CatalogService interface {
	// ListProducts fetches the catalog, signs every image reference and keeps the products
	// whose name or category contains filter (case-insensitive). An empty filter keeps all.
	ListProducts(ctx context.Context, filter string) ([]domain.Product, error)
}

// CatalogConfig locates the catalog document and the image objects
type CatalogConfig struct {
	ProductsContainer string
	ImagesContainer   string
	CatalogObject     string
	// CatalogURL, when set, is fetched as-is instead of signing the catalog object
	CatalogURL  string
	DocumentTTL time.Duration
	ImageTTL    time.Duration
}

type catalogService struct {
	issuer  signer.Issuer
	fetcher fetcher.Fetcher
	cfg     CatalogConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	issuer signer.Issuer,
	fetcher fetcher.Fetcher,
	cfg CatalogConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) CatalogService {
	if cfg.CatalogObject == "" {
		cfg.CatalogObject = DefaultCatalogObject
	}
	if cfg.DocumentTTL <= 0 {
		cfg.DocumentTTL = signer.DefaultDocumentTTL
	}
	if cfg.ImageTTL <= 0 {
		cfg.ImageTTL = signer.DefaultImageTTL
	}

	return &catalogService{
		issuer:  issuer,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.Named("catalog"),
		metrics: m,
	}
}

func (s *catalogService) ListProducts(ctx context.Context, filter string) ([]domain.Product, error) {
	catalogURL, err := s.catalogURL(ctx)
	if err != nil {
		s.metrics.RecordCatalogFetch("fetch_error")
		return nil, err
	}

	body, err := s.fetcher.Fetch(ctx, catalogURL)
	if err != nil {
		s.metrics.RecordCatalogFetch("fetch_error")
		return nil, err
	}

	products, err := ParseCatalog(body)
	if err != nil {
		s.metrics.RecordCatalogFetch("parse_error")
		return nil, err
	}

	resolved := make([]domain.Product, 0, len(products))
	for _, p := range products {
		imageURL := s.issuer.Issue(ctx, s.cfg.ImagesContainer, ImageObjectName(p.ImageReference), s.cfg.ImageTTL)
		resolved = append(resolved, p.WithResolvedImage(imageURL))
	}

	matches := make([]domain.Product, 0, len(resolved))
	for _, p := range resolved {
		if p.Matches(filter) {
			matches = append(matches, p)
		}
	}

	s.metrics.RecordCatalogFetch("ok")
	s.logger.Debug("Catalog resolved",
		zap.Int("products", len(resolved)),
		zap.Int("matches", len(matches)),
		zap.String("filter", filter),
	)

	return matches, nil
}

// catalogURL prefers a pre-known URL; otherwise it signs the catalog object
func (s *catalogService) catalogURL(ctx context.Context) (string, error) {
	if s.cfg.CatalogURL != "" {
		return s.cfg.CatalogURL, nil
	}

	issued := s.issuer.Issue(ctx, s.cfg.ProductsContainer, s.cfg.CatalogObject, s.cfg.DocumentTTL)
	if issued == "" {
		return "", &domain.FetchError{
			URL: s.cfg.ProductsContainer + "/" + s.cfg.CatalogObject,
			Err: domain.ErrResourceUnavailable,
		}
	}
	return issued, nil
}

type catalogRecord struct {
	ID       int             `json:"id" validate:"required,gt=0"`
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category"`
	Price    json.RawMessage `json:"price"`
	ImageURL string          `json:"image_url"`
	Image    string          `json:"image"`
}

// ParseCatalog turns the raw document into products, failing on the first invalid record
func ParseCatalog(body []byte) ([]domain.Product, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &domain.CatalogParseError{Index: -1, Err: errNotAnArray}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &domain.CatalogParseError{Index: -1, Err: err}
	}

	products := make([]domain.Product, 0, len(raw))
	for i, element := range raw {
		product, err := parseRecord(i, element)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return products, nil
}

func parseRecord(index int, element json.RawMessage) (domain.Product, error) {
	var rec catalogRecord
	if err := json.Unmarshal(element, &rec); err != nil {
		field := ""
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			field = typeErr.Field
		}
		return domain.Product{}, &domain.CatalogParseError{Index: index, Field: field, Err: err}
	}

	if err := recordValidator.Struct(rec); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			cause := errMissingField
			if fe.Tag() != "required" {
				cause = fmt.Errorf("failed %q validation", fe.Tag())
			}
			return domain.Product{}, &domain.CatalogParseError{Index: index, Field: fe.Field(), Err: cause}
		}
		return domain.Product{}, &domain.CatalogParseError{Index: index, Err: err}
	}

	price, err := rawPrice(rec.Price)
	if err != nil {
		return domain.Product{}, &domain.CatalogParseError{Index: index, Field: "price", Err: err}
	}

	imageRef := rec.ImageURL
	if imageRef == "" {
		imageRef = rec.Image
	}

	return domain.Product{
		ID:             rec.ID,
		Name:           rec.Name,
		Category:       rec.Category,
		Price:          price,
		ImageReference: imageRef,
	}, nil
}

// rawPrice keeps the price text as written: strings verbatim, numbers in their JSON form
func rawPrice(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", errMissingField
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch price := v.(type) {
	case string:
		return price, nil
	case json.Number:
		return price.String(), nil
	default:
		return "", errInvalidPrice
	}
}

// ImageObjectName returns the final path segment of an image reference.
// Full URLs are accepted and lose their query and fragment; bare names are taken as written.
func ImageObjectName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		ref = u.Path
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	ref = strings.TrimRight(ref, "/")
	if ref == "" {
		return ""
	}

	return path.Base(ref)
}

func newRecordValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
