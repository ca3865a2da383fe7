// Package zoominfo provides a client for the ZoomInfo enrich API.
package zoominfo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/resilience"
)

const defaultBaseURL = "https://api.zoominfo.com"

// Client defines the ZoomInfo operations used for firmographics and contacts.
type Client interface {
	// Authenticate exchanges a username and password for a JWT.
	Authenticate(ctx context.Context, username, password string) (string, error)
	// EnrichCompany matches a company by name and website.
	EnrichCompany(ctx context.Context, token string, in CompanyMatch) (*Company, error)
	// SearchContacts finds C-level contacts at a company.
	SearchContacts(ctx context.Context, token string, in ContactSearch) ([]Contact, error)
}

// CompanyMatch identifies the company to enrich.
type CompanyMatch struct {
	CompanyName    string `json:"companyName,omitempty"`
	CompanyWebsite string `json:"companyWebsite,omitempty"`
}

// Company is the subset of ZoomInfo's company record we use. Revenue is
// reported in thousands of USD.
type Company struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Website       string  `json:"website"`
	Phone         string  `json:"phone"`
	EmployeeCount int     `json:"employeeCount"`
	Revenue       float64 `json:"revenue"`
}

// RevenueUSD returns revenue in whole dollars.
func (c Company) RevenueUSD() float64 {
	return c.Revenue * 1000
}

// ContactSearch filters contacts at one company.
type ContactSearch struct {
	CompanyName     string `json:"companyName,omitempty"`
	CompanyWebsite  string `json:"companyWebsite,omitempty"`
	ManagementLevel string `json:"managementLevel,omitempty"`
	RPP             int    `json:"rpp,omitempty"`
}

// Contact is one person returned by a contact search.
type Contact struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	JobTitle  string `json:"jobTitle"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName joins the first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type enrichRequest struct {
	MatchCompanyInput []CompanyMatch `json:"matchCompanyInput"`
	OutputFields      []string       `json:"outputFields"`
}

type enrichResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Result []struct {
			Data []Company `json:"data"`
		} `json:"result"`
	} `json:"data"`
}

type searchResponse struct {
	Data []Contact `json:"data"`
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
	baseURL string
	http    *http.Client
}

// NewClient creates a ZoomInfo client. Tokens are passed per call because
// they are short-lived.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Authenticate(ctx context.Context, username, password string) (string, error) {
	var out struct {
		JWT string `json:"jwt"`
	}
	in := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, "", "/authenticate", in, &out); err != nil {
		return "", err
	}
	if out.JWT == "" {
		return "", eris.New("zoominfo: empty jwt in authenticate response")
	}
	return out.JWT, nil
}

func (c *httpClient) EnrichCompany(ctx context.Context, token string, in CompanyMatch) (*Company, error) {
	req := enrichRequest{
		MatchCompanyInput: []CompanyMatch{in},
		OutputFields:      []string{"id", "name", "website", "phone", "employeeCount", "revenue"},
	}
	var out enrichResponse
	if err := c.do(ctx, token, "/enrich/company", req, &out); err != nil {
		return nil, err
	}
	for _, r := range out.Data.Result {
		if len(r.Data) > 0 {
			company := r.Data[0]
			return &company, nil
		}
	}
	return nil, nil
}

func (c *httpClient) SearchContacts(ctx context.Context, token string, in ContactSearch) ([]Contact, error) {
	if in.ManagementLevel == "" {
		in.ManagementLevel = "C-Level"
	}
	if in.RPP == 0 {
		in.RPP = 5
	}
	var out searchResponse
	if err := c.do(ctx, token, "/search/contact", in, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *httpClient) do(ctx context.Context, token, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return eris.Wrap(err, "zoominfo: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return eris.Wrap(err, "zoominfo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "zoominfo: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "zoominfo: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("zoominfo", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "zoominfo: unmarshal response")
	}
	return nil
}
