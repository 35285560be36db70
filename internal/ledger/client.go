// Package ledger is the HTTP client for the external ledger service, which owns
// persistence, authentication and export generation.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dafibh/fortuna/fortuna-client/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeaderRequestID is attached to every outbound request
const HeaderRequestID = "X-Request-ID"

// TokenSource supplies the bearer token for each request. An empty token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource returning a fixed token
type StaticToken string

// Token implements TokenSource
func (s StaticToken) Token() string { return string(s) }

// ClientConfig represents the configuration for the ledger client
type ClientConfig struct {
	BaseURL    string
	Tokens     TokenSource
	Timeout    time.Duration // Default: 30 seconds
	HTTPClient *http.Client  // Optional; overrides Timeout
	Logger     *zerolog.Logger
}

// Client is the ledger service client
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	logger     zerolog.Logger
}

// NewClient creates a new ledger client
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	tokens := config.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}

	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		tokens:     tokens,
		logger:     logger.With().Str("component", "ledger_client").Logger(),
	}
}

// ListCategories handles GET /categories
func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.doJSON(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// ListCategoriesByType handles GET /categories/{type}
func (c *Client) ListCategoriesByType(ctx context.Context, t domain.CategoryType) ([]domain.Category, error) {
	var out []domain.Category
	if err := c.doJSON(ctx, http.MethodGet, "/categories/"+string(t), nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateCategory handles POST /categories. The returned category is nil when the service sends no body.
func (c *Client) CreateCategory(ctx context.Context, p domain.CategoryPayload) (*domain.Category, error) {
	var out *domain.Category
	if err := c.doJSON(ctx, http.MethodPost, "/categories", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCategory handles PUT /categories/{id}
func (c *Client) UpdateCategory(ctx context.Context, id int64, p domain.CategoryPayload) (*domain.Category, error) {
	var out *domain.Category
	if err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/categories/%d", id), p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTransactions handles GET /incomes and GET /expenses
func (c *Client) ListTransactions(ctx context.Context, kind domain.Kind) ([]domain.Transaction, error) {
	var out []domain.Transaction
	if err := c.doJSON(ctx, http.MethodGet, "/"+kind.Plural(), nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CreateTransaction handles POST /incomes and POST /expenses
func (c *Client) CreateTransaction(ctx context.Context, kind domain.Kind, p domain.TransactionPayload) (*domain.Transaction, error) {
	var out *domain.Transaction
	if err := c.doJSON(ctx, http.MethodPost, "/"+kind.Plural(), p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransaction handles DELETE /incomes/{id} and DELETE /expenses/{id}
func (c *Client) DeleteTransaction(ctx context.Context, kind domain.Kind, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/%s/%d", kind.Plural(), id), nil, nil)
}

// FilterTransactions handles POST /filter
func (c *Client) FilterTransactions(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	if err := c.doJSON(ctx, http.MethodPost, "/filter", f, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// Dashboard handles GET /dashboard
func (c *Client) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	var out domain.DashboardSummary
	if err := c.doJSON(ctx, http.MethodGet, "/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile handles GET /profile. A 401 or 403 is reported as *domain.AuthError.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var out domain.User
	if err := c.doJSON(ctx, http.MethodGet, "/profile", nil, &out); err != nil {
		var tErr *domain.TransportError
		if errors.As(err, &tErr) && domain.IsAuthStatus(tErr.Status) {
			return nil, &domain.AuthError{Status: tErr.Status}
		}
		return nil, err
	}
	return &out, nil
}

// Login handles POST /login
func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	var out domain.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &domain.TransportError{Status: http.StatusOK, Message: "login response carried no token"}
	}
	return &out, nil
}

// Export is a downloaded export file. The client does not interpret its contents.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// DownloadExport handles GET /excel/download/{kind}
func (c *Client) DownloadExport(ctx context.Context, kind domain.Kind) (*Export, error) {
	resp, err := c.send(ctx, http.MethodGet, "/excel/download/"+string(kind), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read export: %w", err)}
	}

	return &Export{
		Filename:    filenameFrom(resp.Header.Get("Content-Disposition"), kind),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// EmailExport handles GET /excel/email/{kind}
func (c *Client) EmailExport(ctx context.Context, kind domain.Kind) error {
	resp, err := c.send(ctx, http.MethodGet, "/excel/email/"+string(kind), nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// doJSON sends a request with an optional JSON body and decodes a non-empty 2xx response into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	resp, err := c.send(ctx, method, path, reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.TransportError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// send performs the request and returns the response only for 2xx statuses.
// The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", requestID).Msg("Ledger request failed")
		return nil, &domain.TransportError{Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", requestID).
		Msg("ledger request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}
	return resp, nil
}

// errorBody is the ledger's error envelope
type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// parseError builds a TransportError, keeping the server message when one is present
func parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		msg := body.Message
		if msg == "" {
			msg = body.Detail
		}
		return &domain.TransportError{Status: resp.StatusCode, Message: msg}
	}

	return &domain.TransportError{Status: resp.StatusCode}
}

// filenameFrom extracts filename= from a Content-Disposition header
func filenameFrom(disposition string, kind domain.Kind) string {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "filename="); ok {
			name = strings.Trim(name, `"`)
			if name != "" {
				return name
			}
		}
	}
	return string(kind) + "_details.xlsx"
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
