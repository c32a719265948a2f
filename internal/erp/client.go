package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout              = 10 * time.Second
	reservationsPath            = "/reservations"
	responseBodyReadLimit int64 = 1024

	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeInvalidResponse = "INVALID_RESPONSE"
)

var (
	errBaseURLRequired  = errors.New("erp base url is required")
	errAPITokenRequired = errors.New("erp api token is required")
)

// Client talks to the ERP reservation endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds every ERP call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds an ERP client for the given base URL and bearer token.
func NewClient(baseURL, apiToken string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedToken := strings.TrimSpace(apiToken)
	if trimmedToken == "" {
		return nil, errAPITokenRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		apiToken:   trimmedToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Request is the ERP wire payload for a reservation.
type Request struct {
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	Location       string `json:"location"`
	IdempotencyKey string `json:"idempotency_key"`
	TTLMinutes     int    `json:"ttl_minutes"`
}

// Result is the normalized outcome of an ERP call. Remote failures are
// reported through ErrorCode rather than a Go error.
type Result struct {
	OK                bool
	ReservationID     string
	AvailableQuantity int
	ErrorCode         string
	ErrorMessage      string
}

// Reserve posts a reservation to the ERP. The idempotency key travels both in
// the body and the Idempotency-Key header.
func (c *Client) Reserve(ctx context.Context, req Request) Result {
	payload, err := json.Marshal(req)
	if err != nil {
		return failure(CodeInvalidResponse, fmt.Sprintf("marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+reservationsPath, bytes.NewReader(payload))
	if err != nil {
		return failure(CodeNetworkError, fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return failure(CodeTimeout, err.Error())
		}
		return failure(CodeNetworkError, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		if isTimeout(err) {
			return failure(CodeTimeout, err.Error())
		}
		return failure(CodeNetworkError, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		}
		_ = json.Unmarshal(body, &apiErr)
		code := strings.TrimSpace(apiErr.ErrorCode)
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		message := strings.TrimSpace(apiErr.Message)
		if message == "" {
			message = strings.TrimSpace(string(body))
		}
		return failure(code, message)
	}

	var apiResp struct {
		ReservationID     string `json:"reservation_id"`
		AvailableQuantity int    `json:"available_quantity"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return failure(CodeInvalidResponse, fmt.Sprintf("decode response: %v", err))
	}
	if strings.TrimSpace(apiResp.ReservationID) == "" {
		return failure(CodeInvalidResponse, "response missing reservation_id")
	}
	return Result{
		OK:                true,
		ReservationID:     apiResp.ReservationID,
		AvailableQuantity: apiResp.AvailableQuantity,
	}
}

func failure(code, message string) Result {
	return Result{ErrorCode: code, ErrorMessage: message}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
