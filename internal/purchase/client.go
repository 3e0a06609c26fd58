package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrUnavailable = errors.New("purchase service unavailable")

// APIError is a non-2xx answer from the purchase API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

type Options struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}

	threshold := opts.FailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "purchase-api",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// declined payments and other 4xx answers are not outages
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

func (c *Client) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/purchases", toPurchaseBody(req), &env); err != nil {
		return domain.PurchaseResult{}, err
	}
	return domain.PurchaseResult{Success: env.Success, Message: env.Message}, nil
}

func (c *Client) UserPurchases(ctx context.Context) ([]domain.Purchase, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/purchases", nil, &env); err != nil {
		return nil, err
	}

	var data struct {
		Purchases []wirePurchase `json:"purchases"`
	}
	if err := decodeData(env, &data); err != nil {
		return nil, err
	}

	out := make([]domain.Purchase, 0, len(data.Purchases))
	for _, p := range data.Purchases {
		out = append(out, p.toDomain())
	}
	return out, nil
}

func (c *Client) HasPurchased(ctx context.Context, bookID string) (bool, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/purchases/check/"+url.PathEscape(bookID), nil, &env); err != nil {
		return false, err
	}

	var data struct {
		HasPurchased bool `json:"hasPurchased"`
	}
	if err := decodeData(env, &data); err != nil {
		return false, err
	}
	return data.HasPurchased, nil
}

func (c *Client) GetPurchase(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/purchases/"+url.PathEscape(purchaseID), nil, &env); err != nil {
		return nil, err
	}

	var data struct {
		Purchase wirePurchase `json:"purchase"`
	}
	if err := decodeData(env, &data); err != nil {
		return nil, err
	}
	p := data.Purchase.toDomain()
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s response failed: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request failed: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenFor(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response failed: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
		}
		c.logger.Debug("Purchase API returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) tokenFor(ctx context.Context) string {
	if token := TokenFromContext(ctx); token != "" {
		return token
	}
	return c.token
}

func decodeData(env envelope, out any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data failed: %w", err)
	}
	return nil
}
