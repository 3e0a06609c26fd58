package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartService interface {
	AddItem(ctx context.Context, book domain.Book) error
	RemoveItem(ctx context.Context, id string) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	Clear(ctx context.Context) error
	Items() []domain.CartItem
	TotalItemCount() int
	TotalPrice() float64
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(cart CartService, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
		logger:  logger,
	}
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"totalItems"`
	TotalPrice float64           `json:"totalPrice"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var book domain.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if strings.TrimSpace(book.ID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_book_id", "id is required")
		return
	}
	if err := book.ValidatePrices(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_price", err.Error())
		return
	}

	if err := h.cart.AddItem(ctx, book); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.snapshot())
}

// PUT /api/v1/cart/items/{book_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID := chi.URLParam(r, "book_id")
	if bookID == "" {
		respondError(w, http.StatusBadRequest, "invalid_book_id", "book_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// quantities below 1 are ignored by the cart and the unchanged cart is returned
	if err := h.cart.UpdateQuantity(ctx, bookID, req.Quantity); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, h.snapshot())
}

// DELETE /api/v1/cart/items/{book_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID := chi.URLParam(r, "book_id")
	if bookID == "" {
		respondError(w, http.StatusBadRequest, "invalid_book_id", "book_id is required")
		return
	}

	if err := h.cart.RemoveItem(ctx, bookID); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, h.snapshot())
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) snapshot() CartResponseDTO {
	items := h.cart.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponseDTO{
		Items:      items,
		TotalItems: h.cart.TotalItemCount(),
		TotalPrice: roundPrice(h.cart.TotalPrice()),
	}
}

func (h *CartHandler) handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("cart operation failed",
		zap.String("request_id", getRequestID(r.Context())), zap.Error(err))

	if errors.Is(err, cart.ErrPersist) {
		respondError(w, http.StatusInternalServerError, "persist_failed", "the cart could not be saved")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func roundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
