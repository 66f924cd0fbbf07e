package domain

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrSigningFailed       = errors.New("signing failed")
)

// FetchError reports a transport or status failure while reading a remote document
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", RedactURL(e.URL), e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", RedactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CatalogParseError reports a catalog document that could not be turned into products.
// Index is -1 when the document itself is malformed.
type CatalogParseError struct {
	Index int
	Field string
	Err   error
}

func (e *CatalogParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parse catalog: %v", e.Err)
	}
	return fmt.Sprintf("parse catalog record %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *CatalogParseError) Unwrap() error { return e.Err }

// ProductNotFoundError reports a purchase for an id absent from the catalog
type ProductNotFoundError struct {
	ProductID int
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

// SigningError reports why a signed URL could not be issued
type SigningError struct {
	Container  string
	ObjectName string
	Err        error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign %s/%s: %v", e.Container, e.ObjectName, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool {
	return target == ErrSigningFailed
}

// QueueSubmissionError reports a transport failure while enqueueing an order
type QueueSubmissionError struct {
	Backend string
	Err     error
}

func (e *QueueSubmissionError) Error() string {
	return fmt.Sprintf("submit order to %s queue: %v", e.Backend, e.Err)
}

func (e *QueueSubmissionError) Unwrap() error { return e.Err }

// RedactURL drops the query and fragment so signatures never end up in logs or error bodies
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
