package model

import (
	"fmt"
	"time"
)

// Enrichment field keys. The order of AllFields is the canonical order used
// anywhere fields are listed (provenance, data sources, rendering).
const (
	FieldOwnerName     = "owner_name"
	FieldOwnerEmail    = "owner_email"
	FieldOwnerPhone    = "owner_phone"
	FieldEmployeeCount = "employee_count"
	FieldRevenue       = "revenue"
)

// AllFields lists every field an enrichment vendor can contribute.
var AllFields = []string{
	FieldOwnerName,
	FieldOwnerEmail,
	FieldOwnerPhone,
	FieldEmployeeCount,
	FieldRevenue,
}

// IsEnrichmentField reports whether key is one of AllFields.
func IsEnrichmentField(key string) bool {
	for _, f := range AllFields {
		if f == key {
			return true
		}
	}
	return false
}

// Priority is the configured rank of an enrichment source.
type Priority string

const (
	PriorityFirst    Priority = "FIRST"
	PrioritySecond   Priority = "SECOND"
	PriorityThird    Priority = "THIRD"
	PriorityDoNotUse Priority = "DO_NOT_USE"
)

// Rank returns 1..3 for active priorities and 0 for DO_NOT_USE or unknown values.
func (p Priority) Rank() int {
	switch p {
	case PriorityFirst:
		return 1
	case PrioritySecond:
		return 2
	case PriorityThird:
		return 3
	default:
		return 0
	}
}

// Valid reports whether p is a known priority value.
func (p Priority) Valid() bool {
	return p.Rank() > 0 || p == PriorityDoNotUse
}

// EnrichmentSource is the admin-managed configuration row for one vendor.
type EnrichmentSource struct {
	SourceName  string   `json:"source_name"`
	DisplayName string   `json:"display_name"`
	Priority    Priority `json:"priority"`
	IsEnabled   bool     `json:"is_enabled"`
}

// PendingLookup marks an asynchronous vendor request whose data will arrive
// later through a callback.
type PendingLookup struct {
	Vendor      string    `json:"vendor"`
	RequestID   string    `json:"request_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// VendorAttempt records what happened when a vendor was consulted.
type VendorAttempt struct {
	Vendor string       `json:"vendor"`
	Status AttemptState `json:"status"`
	Fields []string     `json:"fields,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// AttemptState is the outcome of a single vendor call.
type AttemptState string

const (
	AttemptOK      AttemptState = "ok"
	AttemptEmpty   AttemptState = "empty"
	AttemptFailed  AttemptState = "failed"
	AttemptPending AttemptState = "pending"
	AttemptSkipped AttemptState = "skipped"
)

// LowConfidence is the confidence of a result where vendors were consulted
// but no field was populated.
const LowConfidence = 0.1

// EnrichmentResult is the merged output of all vendors for one company. It is
// stored verbatim as companies.enrichment_data.
type EnrichmentResult struct {
	Values     map[string]any     `json:"values"`
	Sources    map[string]string  `json:"sources"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	Confidence float64            `json:"confidence"`
	Pending    []PendingLookup    `json:"pending,omitempty"`
	Attempts   []VendorAttempt    `json:"attempts,omitempty"`
	EnrichedAt time.Time          `json:"enriched_at"`
}

// NewEnrichmentResult returns an empty result with initialised maps.
func NewEnrichmentResult() *EnrichmentResult {
	return &EnrichmentResult{
		Values:  make(map[string]any),
		Sources: make(map[string]string),
		Weights: make(map[string]float64),
	}
}

// Has reports whether field holds a non-empty value.
func (r *EnrichmentResult) Has(field string) bool {
	if r == nil {
		return false
	}
	v, ok := r.Values[field]
	return ok && !IsEmptyValue(v)
}

// String returns the field value formatted as text, or "" when absent.
func (r *EnrichmentResult) String(field string) string {
	if !r.Has(field) {
		return ""
	}
	switch v := r.Values[field].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Number returns the field value as a float64 when it is numeric.
func (r *EnrichmentResult) Number(field string) (float64, bool) {
	if !r.Has(field) {
		return 0, false
	}
	switch v := r.Values[field].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	default:
		return 0, false
	}
}

// Source returns the vendor that supplied field, or "".
func (r *EnrichmentResult) Source(field string) string {
	if r == nil {
		return ""
	}
	return r.Sources[field]
}

// IsPending reports whether vendor still owes an asynchronous response.
func (r *EnrichmentResult) IsPending(vendor string) bool {
	if r == nil {
		return false
	}
	return r.PendingFor(vendor) != nil
}

// PendingFor returns the outstanding lookup of vendor, or nil.
func (r *EnrichmentResult) PendingFor(vendor string) *PendingLookup {
	if r == nil {
		return nil
	}
	for i := range r.Pending {
		if r.Pending[i].Vendor == vendor {
			return &r.Pending[i]
		}
	}
	return nil
}

// FieldNames lists the populated fields in canonical order.
func (r *EnrichmentResult) FieldNames() []string {
	var out []string
	for _, f := range AllFields {
		if r.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Complete reports whether every enrichment field is populated.
func (r *EnrichmentResult) Complete() bool {
	for _, f := range AllFields {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

// IsEmptyValue treats nil, blank strings and zero numbers as "no data".
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return len(t) == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	default:
		return false
	}
}

// EnrichmentRecord is one persisted enrichment run for a company.
type EnrichmentRecord struct {
	ID         string           `json:"id"`
	CompanyID  string           `json:"company_id"`
	Data       EnrichmentResult `json:"data"`
	Confidence float64          `json:"confidence"`
	CreatedAt  time.Time        `json:"created_at"`
}
