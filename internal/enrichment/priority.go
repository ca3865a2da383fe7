// Package enrichment resolves which vendors to consult for a company, drives
// them in priority order, and merges their partial results into one
// confidence-scored record.
package enrichment

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
)

// DefaultProviders is used when no enabled source is configured.
var DefaultProviders = []string{"hunter", "apollo"}

// ResolveActiveProviders returns the enabled, ranked source names ordered
// FIRST, SECOND, THIRD. DO_NOT_USE and disabled rows are excluded. When two
// rows share a rank, the one whose name sorts first is kept.
func ResolveActiveProviders(sources []model.EnrichmentSource) []string {
	active := make([]model.EnrichmentSource, 0, len(sources))
	for _, s := range sources {
		if s.IsEnabled && s.Priority.Rank() > 0 && strings.TrimSpace(s.SourceName) != "" {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		ri, rj := active[i].Priority.Rank(), active[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return active[i].SourceName < active[j].SourceName
	})

	out := make([]string, 0, len(active))
	seenRank := make(map[int]string)
	seenName := make(map[string]bool)
	for _, s := range active {
		name := strings.ToLower(strings.TrimSpace(s.SourceName))
		rank := s.Priority.Rank()
		if kept, dup := seenRank[rank]; dup {
			zap.L().Warn("enrichment: duplicate priority, source ignored",
				zap.String("priority", string(s.Priority)),
				zap.String("kept", kept),
				zap.String("ignored", name),
			)
			continue
		}
		if seenName[name] {
			continue
		}
		seenRank[rank] = name
		seenName[name] = true
		out = append(out, name)
	}
	return out
}

// SourceReader reads the enrichment source configuration.
type SourceReader interface {
	ListEnrichmentSources(ctx context.Context) ([]model.EnrichmentSource, error)
}

// Resolver produces the provider order for one enrichment run.
type Resolver struct {
	reader   SourceReader
	fallback []string
}

// NewResolver creates a resolver. An empty fallback uses DefaultProviders.
func NewResolver(reader SourceReader, fallback []string) *Resolver {
	if len(fallback) == 0 {
		fallback = DefaultProviders
	}
	return &Resolver{reader: reader, fallback: normalizeNames(fallback)}
}

// Resolve returns the configured provider order, or the fallback list when
// the configuration cannot be read or yields nothing. It never fails.
func (r *Resolver) Resolve(ctx context.Context) []string {
	sources, err := r.reader.ListEnrichmentSources(ctx)
	if err != nil {
		zap.L().Warn("enrichment: read sources failed, using default providers",
			zap.Strings("providers", r.fallback), zap.Error(err))
		return append([]string(nil), r.fallback...)
	}
	out := ResolveActiveProviders(sources)
	if len(out) == 0 {
		zap.L().Info("enrichment: no active sources, using default providers",
			zap.Strings("providers", r.fallback))
		return append([]string(nil), r.fallback...)
	}
	return out
}

// normalizeNames lowercases, trims, and dedupes names keeping first occurrence.
func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
