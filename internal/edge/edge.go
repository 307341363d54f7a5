// Package edge replicates license state to a Cloudflare Workers KV namespace
// so EA downloads and validations close to the customer can read it without a
// round trip to the origin.
package edge

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

	"github.com/fxforge/platform/internal/license"
)

var ErrNotConfigured = errors.New("edge cache is not configured")

// Client writes license records to Cloudflare KV over the REST API.
type Client struct {
	baseURL     string
	accountID   string
	namespaceID string
	apiToken    string
	http        *http.Client
}

// New creates the KV client. Returns ErrNotConfigured when credentials are
// absent so callers can skip edge syncing entirely.
func New(baseURL, accountID, namespaceID, apiToken string) (*Client, error) {
	if accountID == "" || namespaceID == "" || apiToken == "" {
		return nil, ErrNotConfigured
	}
	if baseURL == "" {
		baseURL = "https://api.cloudflare.com/client/v4"
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accountID:   accountID,
		namespaceID: namespaceID,
		apiToken:    apiToken,
		http:        &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// record is the KV value stored per license key.
type record struct {
	Status                license.Status `json:"status"`
	ExpiresAt             time.Time      `json:"expires_at"`
	ProductCode           string         `json:"product_code"`
	MaxConcurrentSessions int            `json:"max_concurrent_sessions"`
}

// SyncLicense upserts the license's edge record.
func (c *Client) SyncLicense(ctx context.Context, l *license.License) error {
	body, err := json.Marshal(record{
		Status:                l.Status,
		ExpiresAt:             l.ExpiresAt,
		ProductCode:           l.ProductCode,
		MaxConcurrentSessions: l.MaxConcurrentSessions,
	})
	if err != nil {
		return fmt.Errorf("encode edge record: %w", err)
	}
	return c.do(ctx, http.MethodPut, l.Key, bytes.NewReader(body))
}

// RemoveLicense deletes the license's edge record.
func (c *Client) RemoveLicense(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, key, nil)
}

func (c *Client) do(ctx context.Context, method, licenseKey string, body io.Reader) error {
	url := fmt.Sprintf("%s/accounts/%s/storage/kv/namespaces/%s/values/license:%s",
		c.baseURL, c.accountID, c.namespaceID, licenseKey)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build edge request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("edge request: %w", err)
	}
	defer resp.Body.Close()

	// A delete for a key that was never synced is fine.
	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		return nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("edge %s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
