package enrichment

import (
	"strings"

	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/enrichment/vendor"
	"github.com/exitschool/offmarket/internal/model"
)

// ApplyLate merges fields delivered asynchronously by vendorName into a copy
// of current using the same first-wins rule, clears the vendor's pending
// marker, and rescores. current may be nil. It returns the merged result and
// the fields written.
func (a *Aggregator) ApplyLate(current *model.EnrichmentResult, vendorName string, fields map[string]any) (*model.EnrichmentResult, []string) {
	vendorName = strings.ToLower(strings.TrimSpace(vendorName))
	result := clone(current)

	in := make(map[string]any, len(fields))
	for k, v := range fields {
		in[k] = v
	}
	if raw, ok := in[model.FieldOwnerPhone].(string); ok {
		in[model.FieldOwnerPhone] = vendor.NormalizePhone(raw, a.opts.PhoneRegion)
	}

	wasPending := result.IsPending(vendorName)
	if !wasPending {
		zap.L().Warn("enrichment: late data without a pending lookup",
			zap.String("vendor", vendorName),
			zap.Int("fields", len(in)),
		)
	}
	written := Merge(result, vendorName, in, a.opts.Weights)

	pending := result.Pending[:0]
	for _, p := range result.Pending {
		if !strings.EqualFold(p.Vendor, vendorName) {
			pending = append(pending, p)
		}
	}
	result.Pending = pending

	status := model.AttemptEmpty
	if len(written) > 0 {
		status = model.AttemptOK
	}
	replaced := false
	for i := range result.Attempts {
		at := &result.Attempts[i]
		if at.Vendor == vendorName && at.Status == model.AttemptPending {
			at.Status = status
			at.Fields = written
			replaced = true
			break
		}
	}
	if !replaced {
		result.Attempts = append(result.Attempts, model.VendorAttempt{Vendor: vendorName, Status: status, Fields: written})
	}

	result.Confidence = Score(result)
	result.EnrichedAt = a.now().UTC()

	zap.L().Info("enrichment: late merge",
		zap.String("vendor", vendorName),
		zap.Bool("was_pending", wasPending),
		zap.Strings("written", written),
		zap.Float64("confidence", result.Confidence),
	)
	return result, written
}

func clone(r *model.EnrichmentResult) *model.EnrichmentResult {
	out := model.NewEnrichmentResult()
	if r == nil {
		return out
	}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	for k, v := range r.Sources {
		out.Sources[k] = v
	}
	for k, v := range r.Weights {
		out.Weights[k] = v
	}
	out.Confidence = r.Confidence
	out.EnrichedAt = r.EnrichedAt
	out.Pending = append([]model.PendingLookup(nil), r.Pending...)
	out.Attempts = make([]model.VendorAttempt, len(r.Attempts))
	for i, at := range r.Attempts {
		at.Fields = append([]string(nil), at.Fields...)
		out.Attempts[i] = at
	}
	return out
}
