package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Library interface {
	Search(ctx context.Context, term string) ([]domain.Purchase, error)
	HasPurchased(ctx context.Context, bookID string) (bool, error)
	Purchase(ctx context.Context, purchaseID string) (*domain.Purchase, error)
}

type LibraryHandler struct {
	library Library
	timeout time.Duration
}

func NewLibraryHandler(library Library, timeout time.Duration) *LibraryHandler {
	return &LibraryHandler{
		library: library,
		timeout: timeout,
	}
}

type LibraryResponseDTO struct {
	Purchases []domain.Purchase `json:"purchases"`
	Count     int               `json:"count"`
}

type OwnedResponseDTO struct {
	BookID       string `json:"bookId"`
	HasPurchased bool   `json:"hasPurchased"`
}

// GET /api/v1/library?q=
func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	purchases, err := h.library.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		handleUpstreamError(w, err)
		return
	}
	if purchases == nil {
		purchases = []domain.Purchase{}
	}

	respondJSON(w, http.StatusOK, LibraryResponseDTO{Purchases: purchases, Count: len(purchases)})
}

// GET /api/v1/library/{book_id}/owned
func (h *LibraryHandler) Owned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	bookID := chi.URLParam(r, "book_id")
	if bookID == "" {
		respondError(w, http.StatusBadRequest, "invalid_book_id", "book_id is required")
		return
	}

	owned, err := h.library.HasPurchased(ctx, bookID)
	if err != nil {
		handleUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OwnedResponseDTO{BookID: bookID, HasPurchased: owned})
}

// GET /api/v1/library/purchases/{purchase_id}
func (h *LibraryHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	purchaseID := chi.URLParam(r, "purchase_id")
	if purchaseID == "" {
		respondError(w, http.StatusBadRequest, "invalid_purchase_id", "purchase_id is required")
		return
	}

	p, err := h.library.Purchase(ctx, purchaseID)
	if err != nil {
		handleUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, p)
}
