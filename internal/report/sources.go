package report

import (
	"strings"

	"github.com/exitschool/offmarket/internal/model"
)

// BaseDataSources are cited by every report.
var BaseDataSources = []string{"Company website", "Public business records"}

var vendorDisplayNames = map[string]string{
	"hunter":   "Hunter.io",
	"apollo":   "Apollo.io",
	"zoominfo": "ZoomInfo",
	"clay":     "Clay",
}

// VendorDisplayName returns the citation name of a vendor.
func VendorDisplayName(vendor string) string {
	if d, ok := vendorDisplayNames[strings.ToLower(vendor)]; ok {
		return d
	}
	return title(vendor)
}

// DataSources lists the base sources followed by every vendor that supplied
// a field present in the enrichment, in canonical field order, deduplicated.
func DataSources(e *model.EnrichmentResult) []string {
	out := append([]string(nil), BaseDataSources...)
	seen := make(map[string]bool, len(out))
	for _, s := range out {
		seen[s] = true
	}
	if e == nil {
		return out
	}
	for _, f := range model.AllFields {
		vendor := strings.TrimSpace(e.Source(f))
		if vendor == "" || !e.Has(f) {
			continue
		}
		name := VendorDisplayName(vendor)
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
