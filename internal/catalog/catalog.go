package catalog

import (
	"context"
	"sort"
)

// Catalog is the ordered set of models a run may test: the configured
// baseline models first, then extra hot models discovered on the fabric.
// Pure data; ordering is stable so the cycle pointer stays meaningful
// across invocations.
type Catalog struct {
	Models []Model
}

func (c *Catalog) Len() int { return len(c.Models) }

func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.Models))
	for i, m := range c.Models {
		keys[i] = m.Key
	}
	return keys
}

// Options controls catalog assembly.
type Options struct {
	Baseline        []string // always-tested model keys, in order
	IncludeExtraHot bool
	MaxExtraPerArch int
}

// Build assembles the catalog from the fabric's deployment list. Baseline
// models keep their configured order even when the fabric does not
// currently report them (they are probed anyway and surface as
// unavailable). Extra hot models are capped per architecture, smallest
// first, and appended in key order.
func Build(deployments []Model, opts Options) *Catalog {
	byKey := make(map[string]Model, len(deployments))
	for _, m := range deployments {
		byKey[m.Key] = m
	}

	cat := &Catalog{}
	seen := make(map[string]bool, len(opts.Baseline))
	for _, key := range opts.Baseline {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if m, ok := byKey[key]; ok {
			cat.Models = append(cat.Models, m)
		} else {
			cat.Models = append(cat.Models, Model{
				Key:          key,
				Architecture: DetectArchitecture(key),
			})
		}
	}

	if opts.IncludeExtraHot {
		var extra []Model
		for _, m := range deployments {
			if !seen[m.Key] && m.Available() {
				extra = append(extra, m)
			}
		}
		for _, m := range selectPerArchitecture(extra, opts.MaxExtraPerArch) {
			seen[m.Key] = true
			cat.Models = append(cat.Models, m)
		}
	}

	return cat
}

// BuildFromSource fetches deployments and assembles the catalog. A fetch
// failure degrades to the baseline-only catalog; the error is returned so
// callers can log the warning, but the catalog is always usable.
func BuildFromSource(ctx context.Context, src StatusSource, opts Options) (*Catalog, error) {
	deployments, err := src.Deployments(ctx)
	if err != nil {
		return Build(nil, Options{Baseline: opts.Baseline}), err
	}
	return Build(deployments, opts), nil
}

// selectPerArchitecture keeps at most max models per architecture,
// preferring smaller models (faster probes). Result is ordered by key for
// stability.
func selectPerArchitecture(models []Model, max int) []Model {
	if max <= 0 {
		return nil
	}
	byArch := make(map[Architecture][]Model)
	for _, m := range models {
		byArch[m.Architecture] = append(byArch[m.Architecture], m)
	}

	var selected []Model
	for _, group := range byArch {
		sort.Slice(group, func(i, j int) bool {
			pi, pj := group[i].NumParams, group[j].NumParams
			if pi == pj {
				return group[i].Key < group[j].Key
			}
			if pi == 0 {
				return false
			}
			if pj == 0 {
				return true
			}
			return pi < pj
		})
		if len(group) > max {
			group = group[:max]
		}
		selected = append(selected, group...)
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i].Key < selected[j].Key })
	return selected
}
