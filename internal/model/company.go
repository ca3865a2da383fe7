package model

import (
	"net/url"
	"strings"
	"time"
)

// Search is a saved discovery query. One search yields many companies and is
// owned by the user who ran it.
type Search struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Location renders "City, ST" from whatever parts are present.
func (s Search) Location() string {
	switch {
	case s.City != "" && s.State != "":
		return s.City + ", " + s.State
	case s.City != "":
		return s.City
	default:
		return s.State
	}
}

// Company is a business candidate discovered by a search.
type Company struct {
	ID             string            `json:"id"`
	SearchID       string            `json:"search_id"`
	Name           string            `json:"name"`
	Website        string            `json:"website,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Address        string            `json:"address,omitempty"`
	Rating         *float64          `json:"rating,omitempty"`
	ReviewCount    *int              `json:"review_count,omitempty"`
	PlaceID        string            `json:"place_id,omitempty"`
	IsEnriched     bool              `json:"is_enriched"`
	EnrichmentData *EnrichmentResult `json:"enrichment_data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Domain returns the bare host of the company website ("acme.com"), or ""
// when the website is missing or unparseable.
func (c Company) Domain() string {
	raw := strings.TrimSpace(c.Website)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
