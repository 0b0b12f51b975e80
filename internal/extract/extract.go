// Package extract orchestrates the extraction pipeline: chunk the indexed
// document text, query the model backend for typed candidates, resolve each
// candidate to document locations, and assemble the deduplicated result.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/docpin/docpin/internal/pdfindex"
	"github.com/docpin/docpin/internal/providers"
	"github.com/docpin/docpin/internal/querytypes"
	"github.com/docpin/docpin/internal/resolve"
)

// Request describes one extraction run over an indexed document.
type Request struct {
	Index      *pdfindex.DocumentIndex
	QueryTypes []string
	Config     providers.Config

	// Provider overrides the backend built from Config when non-nil.
	Provider providers.Provider

	// Registry overrides the built-in query type registry when non-nil.
	Registry *querytypes.Registry

	// ContextRunes sets the context window size per side for resolved items.
	// Zero selects the resolver default.
	ContextRunes int

	Logger *slog.Logger
}

// Response is the outcome of an extraction run. FailedChunks and Dropped are
// diagnostic counts; a non-zero FailedChunks with a nil error means the run
// succeeded partially.
type Response struct {
	Items        []resolve.Item `json:"items"`
	Dropped      int            `json:"dropped"`
	FailedChunks int            `json:"failed_chunks"`
}

// Run executes the pipeline for one request. The index is read-only
// throughout, so a failed run leaves it reusable for a retry.
func Run(ctx context.Context, req Request) (*Response, error) {
	logger := req.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := req.Registry
	if registry == nil {
		var err error
		registry, err = querytypes.Default()
		if err != nil {
			return nil, err
		}
	}

	types, err := registry.Resolve(req.QueryTypes)
	if err != nil {
		return nil, err
	}

	if req.Index == nil || req.Index.Empty() {
		return &Response{Items: []resolve.Item{}}, nil
	}

	var candidates []resolve.Candidate
	var failed int
	if req.Provider == nil && req.Config.ProviderID == providers.RulesName {
		candidates = extractRules(req.Index.Text(), types)
	} else {
		candidates, failed, err = runProvider(ctx, req, types, logger)
		if err != nil {
			return nil, err
		}
	}

	// Discard candidate types the caller did not ask for.
	requested := make(map[string]bool, len(types))
	for _, qt := range types {
		requested[qt.Name] = true
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if requested[c.Type] {
			kept = append(kept, c)
		}
	}

	resolver := resolve.NewResolver(req.Index, req.ContextRunes)
	resolved := resolver.Resolve(kept)
	if resolved.Dropped > 0 {
		logger.Info("dropped unlocatable candidates",
			"dropped", resolved.Dropped, "resolved", len(resolved.Items))
	}

	return &Response{
		Items:        aggregate(resolved.Items),
		Dropped:      resolved.Dropped,
		FailedChunks: failed,
	}, nil
}

// runProvider fans the chunks out to the backend with bounded concurrency and
// pools the candidates of every chunk that succeeded. A chunk failure does
// not abort its siblings; the request fails only when no chunk succeeds.
func runProvider(ctx context.Context, req Request, types []querytypes.QueryType, logger *slog.Logger) ([]resolve.Candidate, int, error) {
	provider := req.Provider
	if provider == nil {
		var err error
		provider, err = providers.New(req.Config)
		if err != nil {
			return nil, 0, err
		}
	}

	parts := chunks(req.Index, req.Config.ContextBudget)

	concurrency := req.Config.MaxConcurrency
	if concurrency <= 0 {
		concurrency = providers.DefaultMaxConcurrency
	}

	results := make([][]resolve.Candidate, len(parts))
	errs := make([]error, len(parts))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, part := range parts {
		g.Go(func() error {
			raw, err := provider.Complete(ctx, buildPrompt(part, types))
			if err == nil {
				results[i], err = parseCandidates(raw)
				if err == nil {
					return nil
				}
			}
			errs[i] = err
			logger.Warn("extraction chunk failed",
				"chunk", i, "chunks", len(parts), "error", err)
			return nil
		})
	}
	_ = g.Wait()

	var pooled []resolve.Candidate
	var failed int
	var firstErr error
	for i := range parts {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		pooled = append(pooled, results[i]...)
	}

	if failed == len(parts) {
		return nil, failed, fmt.Errorf("all %d extraction chunks failed: %w", len(parts), firstErr)
	}
	return pooled, failed, nil
}

// aggregate removes exact duplicates and orders items by page, then reading
// order, then type and value. The ordering is stable across runs for the
// same input.
func aggregate(items []resolve.Item) []resolve.Item {
	type key struct {
		Type  string
		Value string
		Page  int
		BBox  pdfindex.BBox
	}

	seen := make(map[key]bool, len(items))
	out := make([]resolve.Item, 0, len(items))
	for _, item := range items {
		k := key{Type: item.Type, Value: item.Value, Page: item.Page, BBox: item.BBox}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.SegmentOrder != b.SegmentOrder {
			return a.SegmentOrder < b.SegmentOrder
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Value < b.Value
	})
	return out
}
