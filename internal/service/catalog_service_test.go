package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/clock"
	"storefront/internal/domain"
	"storefront/internal/fetcher"
	"storefront/internal/signer"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleCatalog = `[
	{"id": 1, "name": "Adidas Pants", "category": "Clothing", "price": "₹2499", "image_url": "https://acct.blob.core.windows.net/images/pants.jpg"},
	{"id": 2, "name": "Running Shoes", "category": "Footwear", "price": "1,799", "image": "shoes.png"},
	{"id": 3, "name": "Adidas T-Shirt", "category": "Clothing", "price": "₹1299", "image_url": "tshirt.jpg"}
]`

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

// urlSigner signs objects as plain URLs under base, failing for the listed object names
type urlSigner struct {
	base string
	fail map[string]bool
}

func (s *urlSigner) Backend() string { return "test" }

func (s *urlSigner) Sign(ctx context.Context, container, objectName string, issuedAt time.Time, ttl time.Duration) (domain.SignedAccessGrant, error) {
	if s.fail[objectName] {
		return domain.SignedAccessGrant{}, errors.New("key revoked")
	}
	expiresAt := issuedAt.Add(ttl)
	return domain.SignedAccessGrant{
		Container:  container,
		ObjectName: objectName,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
		Permission: domain.PermissionRead,
		URL: fmt.Sprintf("%s/%s/%s?se=%s&sp=r&sig=test",
			s.base, container, url.PathEscape(objectName), url.QueryEscape(expiresAt.Format(time.RFC3339))),
	}, nil
}

// catalogServer serves the catalog document at /products/product.json
type catalogServer struct {
	*httptest.Server
	body   string
	status int
	hits   atomic.Int32
}

func newCatalogServer(t *testing.T, body string, status int) *catalogServer {
	t.Helper()
	cs := &catalogServer{body: body, status: status}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		if r.URL.Path != "/products/product.json" || r.URL.Query().Get("sig") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(cs.status)
		_, _ = w.Write([]byte(cs.body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func newTestCatalogService(base string, failing map[string]bool, cfg CatalogConfig) CatalogService {
	issuer := signer.NewIssuer(&urlSigner{base: base, fail: failing}, clock.NewFixed(testNow), zap.NewNop(), nil)
	f := fetcher.New(fetcher.Config{Timeout: 2 * time.Second}, zap.NewNop())
	if cfg.ProductsContainer == "" {
		cfg.ProductsContainer = "products"
	}
	if cfg.ImagesContainer == "" {
		cfg.ImagesContainer = "images"
	}
	return NewCatalogService(issuer, f, cfg, zap.NewNop(), nil)
}

func productIDs(products []domain.Product) []int {
	ids := make([]int, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestListProductsResolvesEveryImageInOrder(t *testing.T) {
	srv := newCatalogServer(t, sampleCatalog, http.StatusOK)
	svc := newTestCatalogService(srv.URL, nil, CatalogConfig{})

	products, err := svc.ListProducts(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, productIDs(products))
	for _, p := range products {
		require.True(t, p.IsResolved(), "product %d has no resolved image", p.ID)
		assert.NotEmpty(t, *p.ResolvedImageURL)
	}
	assert.Contains(t, *products[0].ResolvedImageURL, "/images/pants.jpg?")
	assert.Contains(t, *products[1].ResolvedImageURL, "/images/shoes.png?")
	assert.Contains(t, *products[2].ResolvedImageURL, "/images/tshirt.jpg?")
	assert.Contains(t, *products[2].ResolvedImageURL, url.QueryEscape(testNow.Add(signer.DefaultImageTTL).Format(time.RFC3339)))
	assert.Equal(t, "₹1299", products[2].Price)
}

func TestListProductsFiltersAfterResolution(t *testing.T) {
	srv := newCatalogServer(t, sampleCatalog, http.StatusOK)
	svc := newTestCatalogService(srv.URL, nil, CatalogConfig{})

	tests := []struct {
		filter string
		want   []int
	}{
		{"shirt", []int{3}},
		{"SHIRT", []int{3}},
		{"clothing", []int{1, 3}},
		{"adidas", []int{1, 3}},
		{"  shoes ", []int{2}},
		{"hat", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			products, err := svc.ListProducts(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, productIDs(products))
			for _, p := range products {
				assert.True(t, p.IsResolved())
			}
		})
	}
}

func TestListProductsFetchFailure(t *testing.T) {
	srv := newCatalogServer(t, `{"error":"missing"}`, http.StatusNotFound)
	svc := newTestCatalogService(srv.URL, nil, CatalogConfig{})

	products, err := svc.ListProducts(context.Background(), "")

	assert.Nil(t, products)
	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.NotContains(t, err.Error(), "sig=")
}

func TestListProductsCatalogSigningFailure(t *testing.T) {
	srv := newCatalogServer(t, sampleCatalog, http.StatusOK)
	svc := newTestCatalogService(srv.URL, map[string]bool{DefaultCatalogObject: true}, CatalogConfig{})

	_, err := svc.ListProducts(context.Background(), "")

	var fetchErr *domain.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, domain.ErrResourceUnavailable)
	assert.Equal(t, "products/product.json", fetchErr.URL)
	assert.Zero(t, srv.hits.Load(), "an unsigned catalog must not be fetched")
}

func TestListProductsKeepsProductWhenImageSigningFails(t *testing.T) {
	srv := newCatalogServer(t, sampleCatalog, http.StatusOK)
	svc := newTestCatalogService(srv.URL, map[string]bool{"shoes.png": true}, CatalogConfig{})

	products, err := svc.ListProducts(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, products, 3)
	require.True(t, products[1].IsResolved())
	assert.Empty(t, *products[1].ResolvedImageURL)
	assert.NotEmpty(t, *products[0].ResolvedImageURL)
}

func TestListProductsUsesConfiguredCatalogURL(t *testing.T) {
	var publicHits atomic.Int32
	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		publicHits.Add(1)
		_, _ = w.Write([]byte(sampleCatalog))
	}))
	defer public.Close()

	// Catalog signing would fail; the public URL must be used instead.
	svc := newTestCatalogService("https://storage.invalid", map[string]bool{DefaultCatalogObject: true}, CatalogConfig{
		CatalogURL: public.URL + "/catalog.json",
	})

	products, err := svc.ListProducts(context.Background(), "shirt")

	require.NoError(t, err)
	assert.Equal(t, []int{3}, productIDs(products))
	assert.Equal(t, int32(1), publicHits.Load())
	assert.True(t, strings.HasPrefix(*products[0].ResolvedImageURL, "https://storage.invalid/images/tshirt.jpg"))
}

func TestListProductsRejectsInvalidDocument(t *testing.T) {
	srv := newCatalogServer(t, `[{"id": 1, "name": "Adidas Pants", "price": "₹2499"}, {"id": 2, "price": "10"}]`, http.StatusOK)
	svc := newTestCatalogService(srv.URL, nil, CatalogConfig{})

	products, err := svc.ListProducts(context.Background(), "")

	assert.Nil(t, products)
	var parseErr *domain.CatalogParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Index)
	assert.Equal(t, "name", parseErr.Field)
}

func TestParseCatalog(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantIndex int
		wantField string
	}{
		{name: "object instead of array", body: `{"id": 1}`, wantIndex: -1},
		{name: "empty body", body: ``, wantIndex: -1},
		{name: "truncated array", body: `[{"id": 1,`, wantIndex: -1},
		{name: "missing id", body: `[{"name": "Cap", "price": "10"}]`, wantIndex: 0, wantField: "id"},
		{name: "negative id", body: `[{"id": -4, "name": "Cap", "price": "10"}]`, wantIndex: 0, wantField: "id"},
		{name: "id as text", body: `[{"id": "4", "name": "Cap", "price": "10"}]`, wantIndex: 0, wantField: "id"},
		{name: "missing name", body: `[{"id": 4, "price": "10"}]`, wantIndex: 0, wantField: "name"},
		{name: "missing price", body: `[{"id": 4, "name": "Cap"}, {"id": 5, "name": "Hat"}]`, wantIndex: 0, wantField: "price"},
		{name: "null price", body: `[{"id": 4, "name": "Cap", "price": "1"}, {"id": 5, "name": "Hat", "price": null}]`, wantIndex: 1, wantField: "price"},
		{name: "price as object", body: `[{"id": 4, "name": "Cap", "price": {"amount": 10}}]`, wantIndex: 0, wantField: "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := ParseCatalog([]byte(tt.body))

			assert.Nil(t, products)
			var parseErr *domain.CatalogParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tt.wantIndex, parseErr.Index)
			assert.Equal(t, tt.wantField, parseErr.Field)
		})
	}
}

func TestParseCatalogKeepsPriceText(t *testing.T) {
	products, err := ParseCatalog([]byte(`[
		{"id": 1, "name": "A", "price": 1299},
		{"id": 2, "name": "B", "price": 12.50},
		{"id": 3, "name": "C", "price": ""},
		{"id": 4, "name": "D", "price": "₹1,999", "image": "d.png"}
	]`))

	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.Equal(t, "1299", products[0].Price)
	assert.Equal(t, "12.50", products[1].Price)
	assert.Equal(t, "", products[2].Price)
	assert.Equal(t, "₹1,999", products[3].Price)
	assert.Equal(t, "d.png", products[3].ImageReference)
	assert.False(t, products[3].IsResolved())
}

func TestImageObjectName(t *testing.T) {
	tests := map[string]string{
		"tshirt.jpg": "tshirt.jpg",
		"https://acct.blob.core.windows.net/images/pants.jpg":            "pants.jpg",
		"https://acct.blob.core.windows.net/images/pants.jpg?sv=1&sig=x": "pants.jpg",
		"/images/nested/shoes.png":                                       "shoes.png",
		"images\\hat.webp":                                               "hat.webp",
		"images/dir/":                                                    "dir",
		"images/shirt#2.png":                                             "shirt#2.png",
		"what?.jpg":                                                      "what?.jpg",
		"https://acct.blob.core.windows.net/images/shirt%232.png#top": "shirt#2.png",
		"   ": "",
		"":    "",
	}

	for ref, want := range tests {
		assert.Equal(t, want, ImageObjectName(ref), "ref %q", ref)
	}
}

// Feature: storefront, Property 5: Unfiltered listing preserves catalog order and resolves every image
func TestProperty_UnfilteredListingPreservesOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	svc := newTestCatalogService(srv.URL, nil, CatalogConfig{CatalogURL: srv.URL + "/catalog.json"})

	properties := gopter.NewProperties(nil)

	properties.Property("listing returns every record in document order", prop.ForAll(
		func(ids []int) bool {
			records := make([]map[string]any, 0, len(ids))
			for i, id := range ids {
				records = append(records, map[string]any{
					"id":        id,
					"name":      fmt.Sprintf("Product %d", i),
					"price":     fmt.Sprintf("₹%d", id*10),
					"image_url": fmt.Sprintf("img-%d.jpg", i),
				})
			}
			encoded, err := json.Marshal(records)
			if err != nil {
				return false
			}
			mu.Lock()
			body = encoded
			mu.Unlock()

			products, err := svc.ListProducts(context.Background(), "")
			if err != nil {
				t.Logf("FAIL: list: %v", err)
				return false
			}
			if len(products) != len(ids) {
				return false
			}
			for i, p := range products {
				if p.ID != ids[i] || !p.IsResolved() {
					return false
				}
				if !strings.Contains(*p.ResolvedImageURL, fmt.Sprintf("/images/img-%d.jpg?", i)) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 100000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
