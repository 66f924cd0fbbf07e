package domain

import (
	"strings"
	"time"
)

// Product represents a sellable item from the remote catalog
type Product struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Price          string `json:"price"`
	ImageReference string `json:"image_reference"`

	// ResolvedImageURL is nil until the catalog resolver has signed the image reference.
	// After resolution it is always set, and empty when signing failed.
	ResolvedImageURL *string `json:"resolved_image_url,omitempty"`
}

// WithResolvedImage returns a copy of the product carrying the given image URL
func (p Product) WithResolvedImage(url string) Product {
	p.ResolvedImageURL = &url
	return p
}

// IsResolved reports whether the image reference has been through signing
func (p Product) IsResolved() bool {
	return p.ResolvedImageURL != nil
}

// Matches reports whether name or category contains filter, ignoring case.
// An empty filter matches everything.
func (p Product) Matches(filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), filter) ||
		strings.Contains(strings.ToLower(p.Category), filter)
}

// PermissionRead is the only permission ever granted on stored objects
const PermissionRead = "r"

// SignedAccessGrant is a time-bounded read capability for one stored object
type SignedAccessGrant struct {
	Container  string
	ObjectName string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Permission string
	URL        string
}
