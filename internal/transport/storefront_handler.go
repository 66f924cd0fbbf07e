package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ListProductsRequest represents the catalog listing query
type ListProductsRequest struct {
	Query string `json:"q" validate:"max=200"`
}

// ListProductsResponse represents the catalog listing
type ListProductsResponse struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

// BuyRequest represents a purchase of one product
type BuyRequest struct {
	ProductID int `json:"id" validate:"required,gt=0"`
}

// StorefrontHandler handles HTTP requests for browsing and buying products
type StorefrontHandler struct {
	catalog service.CatalogService
	orders  service.OrderService
	logger  *zap.Logger
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(catalog service.CatalogService, orders service.OrderService, logger *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		catalog: catalog,
		orders:  orders,
		logger:  logger,
	}
}

// RegisterRoutes registers the storefront routes; buyMiddleware wraps the purchase route only
func (h *StorefrontHandler) RegisterRoutes(r chi.Router, buyMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.With(buyMiddleware...).Post("/{id}/buy", h.Buy)
	})
}

// ListProducts handles the catalog listing with an optional name or category filter
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	req := ListProductsRequest{Query: r.URL.Query().Get("q")}
	if err := middleware.ValidateRequest(&req); err != nil {
		h.logger.Debug("List validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	products, err := h.catalog.ListProducts(r.Context(), req.Query)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ListProductsResponse{
		Products: products,
		Count:    len(products),
	})
}

// Buy handles a purchase; the order is accepted once the queue has it
func (h *StorefrontHandler) Buy(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "id", Message: "Value must be a number"},
		})
		return
	}

	req := BuyRequest{ProductID: id}
	if err := middleware.ValidateRequest(&req); err != nil {
		h.logger.Debug("Buy validation failed", zap.Error(err))
		middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
		return
	}

	confirmation, err := h.orders.PlaceOrder(r.Context(), req.ProductID)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusAccepted, confirmation)
}
