package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ticketchat/models"
)

// TenantHeader carries the tenant id on every request
const TenantHeader = "X-Company-Id"

// HTTPError is a non-2xx answer from the messages endpoint
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("history request failed: %s", http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("history request failed: %d %s", e.StatusCode, e.Message)
}

// HistoryClient fetches ticket history pages
type HistoryClient struct {
	baseURL  string
	tenantID string
	http     *http.Client
}

// HistoryOption customises a HistoryClient
type HistoryOption func(*HistoryClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) HistoryOption {
	return func(h *HistoryClient) { h.http = c }
}

// NewHistoryClient creates a client for the API rooted at baseURL
func NewHistoryClient(baseURL, tenantID string, opts ...HistoryOption) *HistoryClient {
	h := &HistoryClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenantID: tenantID,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FetchPage requests GET /messages/{ticketID}?pageNumber=page
func (h *HistoryClient) FetchPage(ctx context.Context, ticketID string, page int) (models.Page, error) {
	endpoint := fmt.Sprintf("%s/messages/%s?pageNumber=%s",
		h.baseURL, url.PathEscape(ticketID), strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Page{}, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.tenantID != "" {
		req.Header.Set(TenantHeader, h.tenantID)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return models.Page{}, fmt.Errorf("history request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Page{}, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	var out models.Page
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Page{}, fmt.Errorf("decode history page: %w", err)
	}
	if out.Messages == nil {
		out.Messages = []models.Message{}
	}
	return out, nil
}

func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
