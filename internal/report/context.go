// Package report turns a company and its enrichment into a validated,
// rendered acquisition report. Every required section is guaranteed to be
// filled, by the LLM when it cooperates and by deterministic fallback prose
// when it does not.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/exitschool/offmarket/internal/model"
)

// Context defaults substituted for unset values.
const (
	DefaultCompanyName = "This business"
	DefaultIndustry    = "local services"
	DefaultLocation    = "its local market"
	DefaultOwnerName   = "Contact not identified"
	NotDisclosed       = "Not disclosed"
	NotAvailable       = "Not available"
)

// Input is everything the generator knows about a company.
type Input struct {
	Company    model.Company
	Search     *model.Search
	Enrichment *model.EnrichmentResult
}

// Vars is the flat variable context substituted into prompts and fallback
// prose. Every key is always present.
type Vars map[string]string

// title capitalises the first letter of each word and leaves the rest as
// entered, so "HVAC" and "McAllen" survive. A Caser holds state, so one is
// made per call.
func title(s string) string {
	return cases.Title(language.English, cases.NoLower).String(s)
}

// BuildContext flattens in into Vars, substituting readable defaults for
// every unset value.
func BuildContext(in Input, now time.Time) Vars {
	c := in.Company
	e := in.Enrichment
	if e == nil {
		e = c.EnrichmentData
	}

	v := Vars{
		"company_name":   orDefault(c.Name, DefaultCompanyName),
		"website":        orDefault(c.Website, NotAvailable),
		"phone":          orDefault(c.Phone, NotAvailable),
		"address":        orDefault(c.Address, NotAvailable),
		"industry":       DefaultIndustry,
		"city":           NotDisclosed,
		"state":          NotDisclosed,
		"location":       DefaultLocation,
		"rating":         "Not rated",
		"review_count":   "None",
		"owner_name":     DefaultOwnerName,
		"owner_email":    NotAvailable,
		"owner_phone":    NotAvailable,
		"employee_count": NotDisclosed,
		"revenue":        NotDisclosed,
		"confidence":     NotDisclosed,
		"date":           now.Format("January 2, 2006"),
	}

	if s := in.Search; s != nil {
		if ind := strings.TrimSpace(s.Industry); ind != "" {
			v["industry"] = title(ind)
		}
		city := title(strings.TrimSpace(s.City))
		state := strings.ToUpper(strings.TrimSpace(s.State))
		if city != "" {
			v["city"] = city
		}
		if state != "" {
			v["state"] = state
		}
		if loc := (model.Search{City: city, State: state}).Location(); loc != "" {
			v["location"] = loc
		}
	}

	if c.Rating != nil && *c.Rating > 0 {
		v["rating"] = fmt.Sprintf("%.1f/5", *c.Rating)
	}
	if c.ReviewCount != nil && *c.ReviewCount > 0 {
		v["review_count"] = humanize.Comma(int64(*c.ReviewCount))
	}

	if e != nil {
		setString(v, "owner_name", e, model.FieldOwnerName)
		setString(v, "owner_email", e, model.FieldOwnerEmail)
		setString(v, "owner_phone", e, model.FieldOwnerPhone)
		if n, ok := e.Number(model.FieldEmployeeCount); ok && n > 0 {
			v["employee_count"] = humanize.Comma(int64(math.Round(n)))
		} else {
			setString(v, "employee_count", e, model.FieldEmployeeCount)
		}
		if n, ok := e.Number(model.FieldRevenue); ok && n > 0 {
			v["revenue"] = FormatRevenue(n)
		} else {
			setString(v, "revenue", e, model.FieldRevenue)
		}
		if len(e.Values) > 0 {
			v["confidence"] = fmt.Sprintf("%.0f%%", e.Confidence*100)
		}
	}
	return v
}

// FormatRevenue renders dollars as "$2.5M", "$850K" or "$900".
func FormatRevenue(usd float64) string {
	switch {
	case usd >= 1e9:
		return "$" + humanize.FtoaWithDigits(usd/1e9, 1) + "B"
	case usd >= 1e6:
		return "$" + humanize.FtoaWithDigits(usd/1e6, 1) + "M"
	case usd >= 1e3:
		return "$" + humanize.FtoaWithDigits(usd/1e3, 0) + "K"
	default:
		return "$" + humanize.Comma(int64(math.Round(usd)))
	}
}

func setString(v Vars, key string, e *model.EnrichmentResult, field string) {
	if s := strings.TrimSpace(e.String(field)); s != "" {
		v[key] = s
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
