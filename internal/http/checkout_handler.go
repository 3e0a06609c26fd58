package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"go.uber.org/zap"
)

type Checkouter interface {
	Checkout(ctx context.Context, payment domain.Payment) (*domain.CheckoutOutcome, error)
	Processing() bool
}

type RunLister interface {
	ListRuns(ctx context.Context, session string, limit int) ([]ledger.RunSummary, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	session  string
	runs     RunLister
	logger   *zap.Logger
}

// NewCheckoutHandler takes no timeout: a run is never cut short once started.
// runs may be nil when the ledger is disabled.
func NewCheckoutHandler(c Checkouter, session string, runs RunLister, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		session:  session,
		runs:     runs,
		logger:   logger,
	}
}

type FailureDTO struct {
	BookID string `json:"bookId"`
	Title  string `json:"title"`
	Error  string `json:"error"`
}

type CheckoutResponseDTO struct {
	RunID     string       `json:"runId"`
	Kind      string       `json:"kind"`
	Message   string       `json:"message"`
	CloseView bool         `json:"closeView"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Failures  []FailureDTO `json:"failures"`
}

type CheckoutStatusDTO struct {
	Processing bool `json:"processing"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payment domain.Payment
	if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	outcome, err := h.checkout.Checkout(r.Context(), payment)
	if err != nil {
		h.handleCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toCheckoutResponse(outcome))
}

// GET /api/v1/checkout/status
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CheckoutStatusDTO{Processing: h.checkout.Processing()})
}

// GET /api/v1/checkout/history?limit=
func (h *CheckoutHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, http.StatusNotFound, "ledger_disabled", "checkout history is not recorded")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), h.session, limit)
	if err != nil {
		h.logger.Error("failed to list checkout runs",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if runs == nil {
		runs = []ledger.RunSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var unexpected *checkout.UnexpectedError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "your cart is empty")
	case errors.Is(err, domain.ErrInvalidPayment):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_payment", "invalid payment details", err.Error())
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.As(err, &unexpected):
		h.logger.Error("checkout failed",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(unexpected.Cause))
		respondError(w, http.StatusInternalServerError, "unexpected_error", unexpected.Error())
	default:
		h.logger.Error("checkout failed",
			zap.String("request_id", getRequestID(r.Context())), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func toCheckoutResponse(o *domain.CheckoutOutcome) CheckoutResponseDTO {
	failures := make([]FailureDTO, 0, len(o.Failed))
	for _, f := range o.Failed {
		failures = append(failures, FailureDTO{
			BookID: f.Item.ID,
			Title:  f.Item.Title,
			Error:  f.ErrorMessage,
		})
	}
	return CheckoutResponseDTO{
		RunID:     o.RunID,
		Kind:      o.Kind.String(),
		Message:   o.Message(),
		CloseView: o.CloseView(),
		Succeeded: len(o.Succeeded),
		Failed:    len(o.Failed),
		Failures:  failures,
	}
}
