package enrichment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/exitschool/offmarket/internal/credential"
	"github.com/exitschool/offmarket/internal/enrichment/vendor"
	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/resilience"
)

// unknownWeight scores a field whose weight was not recorded.
const unknownWeight = 0.5

// Options configures an Aggregator.
type Options struct {
	Weights Weights
	// Parallel calls every vendor concurrently and merges in priority order.
	Parallel bool
	// VendorTimeout bounds a single vendor call. Zero means no extra bound.
	VendorTimeout time.Duration
	// Breakers skips vendors that keep failing. Nil disables breaking.
	Breakers *resilience.Breakers
	// PhoneRegion parses national owner phones in late payloads.
	PhoneRegion string
}

// Aggregator drives vendor adapters and merges their results first-wins.
type Aggregator struct {
	registry *vendor.Registry
	opts     Options
	now      func() time.Time
}

// NewAggregator creates an aggregator over the registry.
func NewAggregator(registry *vendor.Registry, opts Options) *Aggregator {
	if opts.Weights.Default == 0 && len(opts.Weights.Vendors) == 0 {
		opts.Weights = DefaultWeights()
	}
	return &Aggregator{registry: registry, opts: opts, now: time.Now}
}

// outcome is what happened when one provider was consulted.
type outcome struct {
	vendor  string
	res     vendor.Result
	err     error
	skipped string
}

// Enrich consults providers in order and returns the merged result. Vendor
// failures are recorded as attempts and never abort the run. The result is
// not persisted here.
func (a *Aggregator) Enrich(ctx context.Context, company model.Company, providers []string) *model.EnrichmentResult {
	providers = normalizeNames(providers)
	result := model.NewEnrichmentResult()

	if a.opts.Parallel {
		a.enrichParallel(ctx, company, providers, result)
	} else {
		a.enrichSequential(ctx, company, providers, result)
	}

	result.Confidence = Score(result)
	result.EnrichedAt = a.now().UTC()

	zap.L().Info("enrichment: merged",
		zap.String("company_id", company.ID),
		zap.Strings("providers", providers),
		zap.Int("fields", len(result.Values)),
		zap.Int("pending", len(result.Pending)),
		zap.Float64("confidence", result.Confidence),
	)
	return result
}

func (a *Aggregator) enrichSequential(ctx context.Context, company model.Company, providers []string, result *model.EnrichmentResult) {
	for i, name := range providers {
		if result.Complete() {
			for _, rest := range providers[i:] {
				a.merge(result, outcome{vendor: rest, skipped: "all fields populated"})
			}
			return
		}
		a.merge(result, a.fetch(ctx, name, company))
	}
}

func (a *Aggregator) enrichParallel(ctx context.Context, company model.Company, providers []string, result *model.EnrichmentResult) {
	outcomes := make([]outcome, len(providers))
	var g errgroup.Group
	for i, name := range providers {
		g.Go(func() error {
			outcomes[i] = a.fetch(ctx, name, company)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		a.merge(result, o)
	}
}

// fetch resolves and calls one adapter, absorbing every failure.
func (a *Aggregator) fetch(ctx context.Context, name string, company model.Company) outcome {
	adapter := a.registry.Get(name)
	if adapter == nil {
		zap.L().Warn("enrichment: unknown vendor skipped", zap.String("vendor", name))
		return outcome{vendor: name, skipped: "unknown vendor"}
	}

	var br *resilience.Breaker
	if a.opts.Breakers != nil {
		br = a.opts.Breakers.For(name)
		if err := br.Allow(); err != nil {
			return outcome{vendor: name, skipped: err.Error()}
		}
	}

	res, err := a.call(ctx, adapter, company)
	if br != nil {
		if isSkip(err) {
			br.Record(nil)
		} else {
			br.Record(err)
		}
	}
	return outcome{vendor: name, res: res, err: err}
}

func (a *Aggregator) call(ctx context.Context, adapter vendor.Adapter, company model.Company) (res vendor.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("enrichment: vendor %s panicked: %v", adapter.Name(), r)
		}
	}()
	if a.opts.VendorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.VendorTimeout)
		defer cancel()
	}
	return adapter.Fetch(ctx, company)
}

// merge folds one outcome into result and records the attempt.
func (a *Aggregator) merge(result *model.EnrichmentResult, o outcome) {
	attempt := model.VendorAttempt{Vendor: o.vendor}

	switch {
	case o.skipped != "":
		attempt.Status = model.AttemptSkipped
		attempt.Error = o.skipped
	case isSkip(o.err):
		attempt.Status = model.AttemptSkipped
		attempt.Error = o.err.Error()
		zap.L().Debug("enrichment: vendor not applicable",
			zap.String("vendor", o.vendor), zap.Error(o.err))
	case o.err != nil:
		attempt.Status = model.AttemptFailed
		attempt.Error = o.err.Error()
		zap.L().Warn("enrichment: vendor failed, treated as no data",
			zap.String("vendor", o.vendor), zap.Error(o.err))
	default:
		attempt.Fields = Merge(result, o.vendor, o.res.Fields, a.opts.Weights)
		switch {
		case o.res.Pending != nil:
			attempt.Status = model.AttemptPending
			setPending(result, *o.res.Pending)
		case len(attempt.Fields) > 0:
			attempt.Status = model.AttemptOK
		default:
			attempt.Status = model.AttemptEmpty
		}
	}
	result.Attempts = append(result.Attempts, attempt)
}

// Merge writes each non-empty field not already present, in canonical field
// order, and returns the fields written. Earlier writers always win.
func Merge(result *model.EnrichmentResult, vendorName string, fields map[string]any, w Weights) []string {
	ensureMaps(result)
	var written []string
	for _, f := range model.AllFields {
		v, ok := fields[f]
		if !ok || model.IsEmptyValue(v) || result.Has(f) {
			continue
		}
		result.Values[f] = v
		result.Sources[f] = vendorName
		result.Weights[f] = w.For(vendorName, f)
		written = append(written, f)
	}
	for k := range fields {
		if !model.IsEnrichmentField(k) {
			zap.L().Debug("enrichment: unknown field ignored",
				zap.String("vendor", vendorName), zap.String("field", k))
		}
	}
	return written
}

// Score is the mean weight of the populated fields clamped to [0,1], or
// model.LowConfidence when nothing was populated.
func Score(result *model.EnrichmentResult) float64 {
	var sum float64
	var n int
	for _, f := range model.AllFields {
		if !result.Has(f) {
			continue
		}
		w, ok := result.Weights[f]
		if !ok {
			w = unknownWeight
		}
		sum += w
		n++
	}
	if n == 0 {
		return model.LowConfidence
	}
	return clamp(sum / float64(n))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func ensureMaps(r *model.EnrichmentResult) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if r.Sources == nil {
		r.Sources = make(map[string]string)
	}
	if r.Weights == nil {
		r.Weights = make(map[string]float64)
	}
}

func setPending(r *model.EnrichmentResult, p model.PendingLookup) {
	for i := range r.Pending {
		if strings.EqualFold(r.Pending[i].Vendor, p.Vendor) {
			r.Pending[i] = p
			return
		}
	}
	r.Pending = append(r.Pending, p)
}

// isSkip reports errors that mean "not consulted" rather than "failed".
func isSkip(err error) bool {
	return errors.Is(err, vendor.ErrNotApplicable) || errors.Is(err, credential.ErrMissing)
}
