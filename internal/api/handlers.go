package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/maltedev/dampfi-automation/internal/catalog"
	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/jobs"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/maltedev/dampfi-automation/internal/validate"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// Products is implemented by *catalog.ProductService.
type Products interface {
	Create(ctx context.Context, in catalog.CreateProductInput) (*models.Product, error)
	Get(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context) ([]*models.Product, error)
	Update(ctx context.Context, id int64, in catalog.UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, id int64) error
	Refresh(ctx context.Context, id int64) (*catalog.RefreshResult, error)
}

// Checkouts is implemented by *catalog.CheckoutService.
type Checkouts interface {
	Checkout(ctx context.Context, userID int, items []models.LineItem) (*catalog.CheckoutResult, error)
	SaveCredentials(ctx context.Context, userID int, email, password string) error
	Orders(ctx context.Context, userID int) ([]*models.Order, error)
	Users(ctx context.Context) ([]models.User, error)
}

// OutboxStats is implemented by *database.Relay.
type OutboxStats interface {
	Stats(ctx context.Context) (database.RelayStats, error)
}

// RefreshStatus is implemented by *jobs.Refresher.
type RefreshStatus interface {
	Status() jobs.Status
}

type Handlers struct {
	products  Products
	checkouts Checkouts
	validator *validate.Validator
	outbox    OutboxStats
	refresher RefreshStatus
	logger    *slog.Logger
}

func NewHandlers(products Products, checkouts Checkouts, validator *validate.Validator, logger *slog.Logger) *Handlers {
	return &Handlers{
		products:  products,
		checkouts: checkouts,
		validator: validator,
		logger:    logger.With("component", "api"),
	}
}

// WithHealthSources adds the outbox and refresher state to the health report.
func (h *Handlers) WithHealthSources(outbox OutboxStats, refresher RefreshStatus) *Handlers {
	h.outbox = outbox
	h.refresher = refresher
	return h
}

type ProductRequest struct {
	ProductURL  *string             `json:"product_url"`
	Name        *string             `json:"name"`
	Price       *decimal.Decimal    `json:"price"`
	StockStatus *models.StockStatus `json:"stock_status"`
	Options     *[]models.Variant   `json:"options"`
}

type CredentialsRequest struct {
	Email    string `json:"dampfi_email"`
	Password string `json:"dampfi_password"`
}

type CheckoutRequest struct {
	UserID int               `json:"user_id"`
	Items  []models.LineItem `json:"items"`
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ProductURL == nil || *req.ProductURL == "" {
		h.respondError(w, http.StatusBadRequest, "product URL is required")
		return
	}

	in := catalog.CreateProductInput{
		URL:         *req.ProductURL,
		Name:        req.Name,
		Price:       req.Price,
		StockStatus: req.StockStatus,
	}
	if req.Options != nil {
		in.Variants = *req.Options
	}

	product, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req ProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.products.Update(r.Context(), id, catalog.UpdateProductInput{
		URL:         req.ProductURL,
		Name:        req.Name,
		Price:       req.Price,
		StockStatus: req.StockStatus,
		Variants:    req.Options,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

// ScrapeProduct re-extracts the product page and stores the result.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	result, err := h.products.Refresh(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.checkouts.Users(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	type userView struct {
		models.User
		CredentialsConfigured bool `json:"credentials_configured"`
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{User: u, CredentialsConfigured: u.Credentials.IsComplete()})
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handlers) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.checkouts.SaveCredentials(r.Context(), userID, req.Email, req.Password); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Credentials saved successfully"})
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	orders, err := h.checkouts.Orders(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Checkout runs the browser checkout synchronously. A run that ends in failure answers 500
// with the full outcome so the operator can see which items were added.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}
	for i, item := range req.Items {
		if err := item.Validate(); err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %v", i, err))
			return
		}
	}

	result, err := h.checkouts.Checkout(r.Context(), req.UserID, req.Items)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.Outcome.Succeeded {
		status = http.StatusInternalServerError
	}
	h.respondJSON(w, status, result)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		stats, err := h.outbox.Stats(r.Context())
		switch {
		case err != nil:
			h.logger.Warn("failed to read outbox stats", "error", err)
			health["status"] = "degraded"
			health["message"] = "outbox stats unavailable"
		case stats.DeadLetter > 100:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case stats.Pending > 1000:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		health["outbox"] = stats
	}
	if h.refresher != nil {
		health["refresher"] = h.refresher.Status()
	}

	h.respondJSON(w, status, health)
}

func (h *Handlers) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.respondError(w, http.StatusBadRequest, "invalid product ID")
		return 0, false
	}
	return id, true
}

func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := h.validator.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid user ID")
		return 0, false
	}
	return id, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
	}
	h.respondError(w, status, messageFor(err))
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
