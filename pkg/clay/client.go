// Package clay submits enrichment lookups to a Clay table webhook and
// decodes the signed callbacks Clay posts back when a row is enriched.
package clay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/resilience"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SignatureHeader carries the hex HMAC-SHA256 of a callback body.
const SignatureHeader = "X-Clay-Signature"

// Client defines the Clay operations.
type Client interface {
	// Submit posts a lookup row to the table webhook. Clay enriches the row
	// asynchronously and calls back later.
	Submit(ctx context.Context, req LookupRequest) error
}

// LookupRequest is the row posted to the Clay table.
type LookupRequest struct {
	RequestID   string `json:"request_id"`
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Domain      string `json:"domain,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// Callback is the enriched row Clay posts back.
type Callback struct {
	RequestID     string   `json:"request_id"`
	CompanyID     string   `json:"company_id" validate:"required"`
	OwnerName     string   `json:"owner_name,omitempty"`
	OwnerEmail    string   `json:"owner_email,omitempty"`
	OwnerPhone    string   `json:"owner_phone,omitempty"`
	EmployeeCount *int     `json:"employee_count,omitempty" validate:"omitempty,gte=0"`
	Revenue       *float64 `json:"revenue,omitempty" validate:"omitempty,gte=0"`
}

// Fields returns the non-empty enrichment fields of the callback.
func (cb Callback) Fields() map[string]any {
	out := make(map[string]any)
	if s := strings.TrimSpace(cb.OwnerName); s != "" {
		out["owner_name"] = s
	}
	if s := strings.TrimSpace(cb.OwnerEmail); s != "" {
		out["owner_email"] = s
	}
	if s := strings.TrimSpace(cb.OwnerPhone); s != "" {
		out["owner_phone"] = s
	}
	if cb.EmployeeCount != nil && *cb.EmployeeCount > 0 {
		out["employee_count"] = float64(*cb.EmployeeCount)
	}
	if cb.Revenue != nil && *cb.Revenue > 0 {
		out["revenue"] = *cb.Revenue
	}
	return out
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a callback signature in constant time. A "sha256=" prefix
// on the header value is accepted.
func Verify(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

// ParseCallback decodes a callback body.
func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, eris.Wrap(err, "clay: decode callback")
	}
	if err := validate.Struct(cb); err != nil {
		return nil, eris.Wrap(err, "clay: invalid callback")
	}
	return &cb, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

type httpClient struct {
	apiKey     string
	webhookURL string
	http       *http.Client
}

// NewClient creates a Clay client posting to the given table webhook URL.
func NewClient(apiKey, webhookURL string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Submit(ctx context.Context, in LookupRequest) error {
	if c.webhookURL == "" {
		return eris.New("clay: webhook url is not configured")
	}
	b, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "clay: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(b))
	if err != nil {
		return eris.Wrap(err, "clay: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-clay-webhook-auth", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "clay: send request")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.StatusError("clay", resp.StatusCode, body)
	}
	return nil
}
