// Package hunter provides a client for the Hunter.io domain search API.
package hunter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/resilience"
)

const defaultBaseURL = "https://api.hunter.io/v2"

// Client defines the Hunter.io operations used for owner lookup.
type Client interface {
	// DomainSearch returns the email addresses Hunter knows for a domain.
	DomainSearch(ctx context.Context, domain string) (*DomainSearchResponse, error)
}

// DomainSearchResponse is the body of GET /domain-search.
type DomainSearchResponse struct {
	Data DomainData `json:"data"`
}

// DomainData holds the organization and its known emails.
type DomainData struct {
	Domain       string  `json:"domain"`
	Organization string  `json:"organization"`
	Headcount    string  `json:"headcount"`
	Emails       []Email `json:"emails"`
}

// Email is one address found for the domain.
type Email struct {
	Value       string `json:"value"`
	Type        string `json:"type"`
	Confidence  int    `json:"confidence"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Position    string `json:"position"`
	Seniority   string `json:"seniority"`
	PhoneNumber string `json:"phone_number"`
}

// FullName joins the first and last name.
func (e Email) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

var ownerTitles = []string{"owner", "founder", "president", "ceo", "chief executive", "principal", "proprietor"}

// IsOwner reports whether the contact looks like the business owner.
func (e Email) IsOwner() bool {
	pos := strings.ToLower(e.Position)
	for _, t := range ownerTitles {
		if strings.Contains(pos, t) {
			return true
		}
	}
	return false
}

// BestContact picks the most likely owner among personal emails: an owner
// title wins, then executive seniority, then the highest confidence.
func (d DomainData) BestContact() (Email, bool) {
	var best Email
	bestScore := -1
	for _, e := range d.Emails {
		if e.Value == "" || e.Type == "generic" {
			continue
		}
		score := e.Confidence
		if e.IsOwner() {
			score += 1000
		} else if e.Seniority == "executive" {
			score += 500
		}
		if score > bestScore {
			best, bestScore = e, score
		}
	}
	return best, bestScore >= 0
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Hunter.io client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainSearch(ctx context.Context, domain string) (*DomainSearchResponse, error) {
	if domain == "" {
		return nil, eris.New("hunter: domain is required")
	}

	q := url.Values{}
	q.Set("domain", domain)
	q.Set("limit", "10")
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain-search?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "hunter: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("hunter", resp.StatusCode, body)
	}

	var out DomainSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "hunter: unmarshal response")
	}
	return &out, nil
}
