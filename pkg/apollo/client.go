// Package apollo provides a client for the Apollo.io organization and
// people APIs.
package apollo

import (
	"bytes"
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

const defaultBaseURL = "https://api.apollo.io/api/v1"

// Client defines the Apollo.io operations used for firmographics and owner lookup.
type Client interface {
	// EnrichOrganization returns firmographics for a domain.
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
	// SearchPeople finds senior people at a domain.
	SearchPeople(ctx context.Context, req PeopleSearchRequest) ([]Person, error)
}

// Organization is the subset of Apollo's organization record we use.
type Organization struct {
	ID                    string  `json:"id"`
	Name                  string  `json:"name"`
	WebsiteURL            string  `json:"website_url"`
	EstimatedNumEmployees int     `json:"estimated_num_employees"`
	AnnualRevenue         float64 `json:"annual_revenue"`
	Phone                 string  `json:"phone"`
	PrimaryPhone          struct {
		Number          string `json:"number"`
		SanitizedNumber string `json:"sanitized_number"`
	} `json:"primary_phone"`
}

type organizationResponse struct {
	Organization *Organization `json:"organization"`
}

// PeopleSearchRequest is the body of POST /mixed_people/search.
type PeopleSearchRequest struct {
	Domains     string   `json:"q_organization_domains"`
	Seniorities []string `json:"person_seniorities,omitempty"`
	Page        int      `json:"page,omitempty"`
	PerPage     int      `json:"per_page,omitempty"`
}

// Person is one result of a people search.
type Person struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Email        string        `json:"email"`
	EmailStatus  string        `json:"email_status"`
	Seniority    string        `json:"seniority"`
	PhoneNumbers []PhoneNumber `json:"phone_numbers"`
}

// PhoneNumber is a phone attached to a person.
type PhoneNumber struct {
	RawNumber       string `json:"raw_number"`
	SanitizedNumber string `json:"sanitized_number"`
}

// DisplayName returns Name, or first and last joined.
func (p Person) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Phone returns the first known phone number.
func (p Person) Phone() string {
	for _, n := range p.PhoneNumbers {
		if n.SanitizedNumber != "" {
			return n.SanitizedNumber
		}
		if n.RawNumber != "" {
			return n.RawNumber
		}
	}
	return ""
}

// Apollo masks emails it has not unlocked with this placeholder.
const lockedEmail = "email_not_unlocked@domain.com"

// HasEmail reports whether the person carries a usable email.
func (p Person) HasEmail() bool {
	return p.Email != "" && p.Email != lockedEmail
}

type peopleResponse struct {
	People []Person `json:"people"`
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

// NewClient creates an Apollo.io client.
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

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	if domain == "" {
		return nil, eris.New("apollo: domain is required")
	}
	q := url.Values{}
	q.Set("domain", domain)

	var out organizationResponse
	if err := c.do(ctx, http.MethodGet, "/organizations/enrich?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Organization, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, req PeopleSearchRequest) ([]Person, error) {
	if req.Domains == "" {
		return nil, eris.New("apollo: domain is required")
	}
	if req.PerPage == 0 {
		req.PerPage = 5
	}
	var out peopleResponse
	if err := c.do(ctx, http.MethodPost, "/mixed_people/search", req, &out); err != nil {
		return nil, err
	}
	return out.People, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "apollo: marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "apollo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("apollo", resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "apollo: unmarshal response")
	}
	return nil
}
