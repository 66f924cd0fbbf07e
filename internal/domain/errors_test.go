package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchErrorRedactsSignature(t *testing.T) {
	err := &FetchError{
		URL:        "https://acct.blob.core.windows.net/products/product.json?sv=2021&sig=secret",
		StatusCode: 404,
	}

	assert.NotContains(t, err.Error(), "secret")
	assert.Contains(t, err.Error(), "product.json")
	assert.Contains(t, err.Error(), "404")
}

func TestProductNotFoundMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("place order: %w", &ProductNotFoundError{ProductID: 999})

	assert.True(t, errors.Is(err, ErrProductNotFound))

	var notFound *ProductNotFoundError
	if assert.True(t, errors.As(err, &notFound)) {
		assert.Equal(t, 999, notFound.ProductID)
	}
}

func TestSigningErrorMatchesSentinel(t *testing.T) {
	err := &SigningError{Container: "images", ObjectName: "a.png", Err: errors.New("bad key")}

	assert.True(t, errors.Is(err, ErrSigningFailed))
	assert.True(t, strings.HasPrefix(err.Error(), "sign images/a.png"))
}

func TestQueueSubmissionErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &QueueSubmissionError{Backend: "redis", Err: cause}

	assert.ErrorIs(t, err, cause)
}

func TestProductWithResolvedImageLeavesOriginalUntouched(t *testing.T) {
	p := Product{ID: 1, Name: "Adidas T-Shirt", ImageReference: "images/shirt.png"}

	resolved := p.WithResolvedImage("")

	assert.False(t, p.IsResolved())
	assert.True(t, resolved.IsResolved())
	assert.Equal(t, "", *resolved.ResolvedImageURL)
}

func TestProductMatches(t *testing.T) {
	p := Product{Name: "Adidas T-Shirt", Category: "Apparel"}

	assert.True(t, p.Matches(""))
	assert.True(t, p.Matches("SHIRT"))
	assert.True(t, p.Matches("apparel"))
	assert.False(t, p.Matches("pants"))
}
