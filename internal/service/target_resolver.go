package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/graphguard/policycore/internal/domain/policy"
)

// TargetResolver implements policy.TargetResolver (§4.3). Literal IRIs
// pass through the database's IRI codec; query expressions run as
// subqueries with bounded concurrency, and the resolver selects the
// query's bound variable, preferring ?$this over the legacy ?$target
// (§6, §9 Open questions).
type TargetResolver struct {
	storage     policy.Storage
	concurrency int
	logger      *slog.Logger
}

// NewTargetResolver creates a resolver bounded to concurrency
// simultaneous subqueries (§5 "bounded concurrency ≥ 2"). concurrency < 2
// is clamped up to 2.
func NewTargetResolver(storage policy.Storage, concurrency int, logger *slog.Logger) *TargetResolver {
	if concurrency < 2 {
		concurrency = 2
	}
	return &TargetResolver{storage: storage, concurrency: concurrency, logger: logger}
}

// Resolve implements policy.TargetResolver. Errors from any single
// subquery are surfaced through an error channel that short-circuits the
// whole call (§4.3) — the first error cancels the remaining in-flight
// subqueries and is returned.
func (r *TargetResolver) Resolve(ctx context.Context, targets []policy.TargetExpr, values policy.PolicyValues) (map[policy.SID]struct{}, error) {
	result := make(map[policy.SID]struct{})
	if len(targets) == 0 {
		return result, nil
	}

	var staticIdx, queryIdx []int
	for i, t := range targets {
		if t.IsQuery() {
			queryIdx = append(queryIdx, i)
		} else {
			staticIdx = append(staticIdx, i)
		}
	}

	var mu sync.Mutex
	for _, i := range staticIdx {
		sid, err := r.storage.IriToSID(targets[i].Iri)
		if err != nil {
			return nil, fmt.Errorf("target resolver: encode IRI %q: %w", targets[i].Iri, err)
		}
		mu.Lock()
		result[sid] = struct{}{}
		mu.Unlock()
	}

	if len(queryIdx) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Two rules targeting the identical subquery body resolve it once:
	// group query indices by a content hash before spawning goroutines,
	// so a query repeated across several policies costs one subquery
	// round-trip instead of N.
	groups := groupByQueryHash(targets, queryIdx)

	sem := make(chan struct{}, r.concurrency)
	errCh := make(chan error, len(groups))
	var wg sync.WaitGroup

	for _, group := range groups {
		group := group
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			rows, err := r.runSubquery(ctx, targets[group[0]], values)
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				cancel()
				return
			}
			mu.Lock()
			for sid := range rows {
				result[sid] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, err
	}
	return result, nil
}

// groupByQueryHash partitions queryIdx by the xxhash of each query's
// canonical JSON encoding, so identical subquery bodies run once. A hash
// collision only costs an extra comparison, never an incorrect result:
// bodies sharing a hash are compared with reflect.DeepEqual, and only
// equal bodies share a group, each group running the body of its first
// index.
func groupByQueryHash(targets []policy.TargetExpr, queryIdx []int) [][]int {
	buckets := make(map[uint64][]int, len(queryIdx)) // hash -> positions in out
	out := make([][]int, 0, len(queryIdx))
	for _, i := range queryIdx {
		h := hashQuery(targets[i].Query)
		placed := false
		for _, g := range buckets[h] {
			if reflect.DeepEqual(targets[out[g][0]].Query, targets[i].Query) {
				out[g] = append(out[g], i)
				placed = true
				break
			}
		}
		if !placed {
			buckets[h] = append(buckets[h], len(out))
			out = append(out, []int{i})
		}
	}
	return out
}

// hashQuery computes a deterministic xxhash of a query map. Map key
// order is not stable across encodings, so keys are sorted before
// hashing; values unsupported by json.Marshal (which this core never
// produces, since query bodies are always decoded from JSON-LD) fall
// back to a fmt-based encoding rather than failing resolution.
func hashQuery(q map[string]any) uint64 {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("=")
		if b, err := json.Marshal(q[k]); err == nil {
			h.Write(b)
		} else {
			fmt.Fprintf(h, "%v", q[k])
		}
		h.WriteString(";")
	}
	return h.Sum64()
}

// runSubquery executes one target subquery, returning the SIDs bound to
// its target variable (?$this preferred, ?$target accepted legacy).
func (r *TargetResolver) runSubquery(ctx context.Context, target policy.TargetExpr, values policy.PolicyValues) (map[policy.SID]struct{}, error) {
	q := policy.ParsedQuery{Raw: withValues(target.Query, values)}

	rows, err := r.storage.Query(ctx, q, values)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("target resolver subquery failed", "error", err)
		}
		return nil, fmt.Errorf("target resolver: subquery failed: %w", err)
	}

	out := make(map[policy.SID]struct{}, len(rows))
	for _, row := range rows {
		val, ok := row[policy.ThisVar]
		if !ok {
			val, ok = row[policy.LegacyTargetVar]
		}
		if !ok {
			continue
		}
		sid, err := coerceToSID(r.storage, val)
		if err != nil {
			return nil, fmt.Errorf("target resolver: %w", err)
		}
		out[sid] = struct{}{}
	}
	return out, nil
}

// coerceToSID extracts a SID from a query result cell, which may already
// be a SID (from an in-memory test double) or an IRI string needing
// encoding.
func coerceToSID(storage policy.Storage, val any) (policy.SID, error) {
	switch v := val.(type) {
	case policy.SID:
		return v, nil
	case string:
		return storage.IriToSID(v)
	default:
		return policy.SID{}, fmt.Errorf("unexpected query result cell type %T", val)
	}
}

// withValues returns a copy of q with the caller's policy values injected
// as a `values` pattern, the way §4.3 describes: "the resolver injects
// the caller's values block into each [subquery]".
func withValues(q map[string]any, values policy.PolicyValues) map[string]any {
	out := make(map[string]any, len(q)+1)
	for k, v := range q {
		out[k] = v
	}
	out["values"] = values
	return out
}

var _ policy.TargetResolver = (*TargetResolver)(nil)
