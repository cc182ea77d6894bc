package protocol

import (
	"fmt"
	"sort"

	"mapshock/internal/logging"
)

// Reason strings recorded in SelectionResult.ActivationReasons.
const (
	ReasonTriggered     = "triggered"
	ReasonMandatoryTier = "mandatory-tier"
)

// ReasonDependencyOf formats the reason for a protocol included only as a
// dependency of another.
func ReasonDependencyOf(id string) string {
	return "dependency-of:" + id
}

// SelectionResult is the engine's per-request output. It is never persisted
// by the engine and is safe to hand to concurrent consumers.
type SelectionResult struct {
	// Tier is the resolved threat tier.
	Tier int `json:"tier"`

	// SelectedProtocols is the ordered, deduplicated, dependency-closed id
	// sequence: mandatory first (ascending id), then triggered (descending
	// match strength), then dependency-only inclusions.
	SelectedProtocols []string `json:"selected_protocols"`

	// ActivationReasons maps every selected id to why it was included.
	ActivationReasons map[string]string `json:"activation_reasons"`

	// Anomalies lists non-fatal irregularities observed during selection.
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// TierCap bounds the protocol count for tiers up to and including MaxTier.
type TierCap struct {
	MaxTier int `yaml:"max_tier" json:"max_tier"`
	Cap     int `yaml:"cap" json:"cap"`
}

// DefaultTierCaps returns the default count ceilings per tier band. The
// source documents disagree on exact values, so these are a policy default;
// deployments may override them in configuration.
func DefaultTierCaps() []TierCap {
	return []TierCap{
		{MaxTier: 5, Cap: 10},
		{MaxTier: 10, Cap: 15},
		{MaxTier: 20, Cap: 20},
		{MaxTier: 25, Cap: 30},
		{MaxTier: 33, Cap: 65},
	}
}

// capFor returns the ceiling for a tier; tiers above the last band use the
// last band's cap.
func capFor(caps []TierCap, tier int) int {
	for _, tc := range caps {
		if tier <= tc.MaxTier {
			return tc.Cap
		}
	}
	if len(caps) > 0 {
		return caps[len(caps)-1].Cap
	}
	return 65
}

// SelectionFinalizer applies mandatory-protocol rules, ordering, and
// tier-derived count bounds to a dependency-closed candidate set.
type SelectionFinalizer struct {
	catalog  *Catalog
	resolver *DependencyResolver
	caps     []TierCap
}

// NewSelectionFinalizer builds a finalizer. Nil caps selects the defaults.
func NewSelectionFinalizer(catalog *Catalog, caps []TierCap) *SelectionFinalizer {
	if len(caps) == 0 {
		caps = DefaultTierCaps()
	}
	sorted := make([]TierCap, len(caps))
	copy(sorted, caps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MaxTier < sorted[j].MaxTier })
	return &SelectionFinalizer{
		catalog:  catalog,
		resolver: NewDependencyResolver(catalog),
		caps:     sorted,
	}
}

// entry is a selected protocol with the bookkeeping needed for ordering and
// cap-driven drops.
type entry struct {
	id       string
	reason   string
	strength int // trigger match strength; 0 for non-triggered
	group    int // 0 mandatory, 1 triggered, 2 dependency-only
}

// Finalize augments the closed candidate set with mandatory protocols,
// re-runs dependency closure over the result, orders it, and enforces the
// tier-derived count ceiling. Mandatory protocols and protocols depended on
// by retained protocols are never dropped.
func (f *SelectionFinalizer) Finalize(candidates []Candidate, closure *Resolution, tier int) *SelectionResult {
	log := logging.Get(logging.CategorySelection)

	reasons := make(map[string]string)
	strengths := make(map[string]int)
	var anomalies []Anomaly
	anomalies = append(anomalies, closure.Anomalies...)

	for _, c := range candidates {
		reasons[c.Record.ID] = ReasonTriggered
		strengths[c.Record.ID] = c.Strength
	}
	for _, id := range closure.Closed {
		if _, ok := reasons[id]; !ok {
			via := closure.DependencyOf[id]
			reasons[id] = ReasonDependencyOf(via)
		}
	}

	// Mandatory protocols join even when untriggered; the mandatory reason
	// wins over any earlier one since it alone protects from cap drops.
	seeds := append([]string(nil), closure.Closed...)
	for _, rec := range f.catalog.All() {
		if rec.MandatoryAt(tier) {
			if _, ok := reasons[rec.ID]; !ok {
				seeds = append(seeds, rec.ID)
			}
			reasons[rec.ID] = ReasonMandatoryTier
		}
	}

	// Re-run closure over the augmented set so mandatory dependencies are
	// pulled in too.
	full := f.resolver.Resolve(seeds)
	anomalies = append(anomalies, full.Anomalies...)
	for _, id := range full.Closed {
		if _, ok := reasons[id]; !ok {
			reasons[id] = ReasonDependencyOf(full.DependencyOf[id])
		}
	}

	entries := make([]entry, 0, len(full.Closed))
	for _, id := range full.Closed {
		e := entry{id: id, reason: reasons[id], strength: strengths[id]}
		switch {
		case e.reason == ReasonMandatoryTier:
			e.group = 0
		case e.reason == ReasonTriggered:
			e.group = 1
		default:
			e.group = 2
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].group != entries[j].group {
			return entries[i].group < entries[j].group
		}
		switch entries[i].group {
		case 1: // triggered: strongest match first, id as tie-break
			if entries[i].strength != entries[j].strength {
				return entries[i].strength > entries[j].strength
			}
		}
		return entries[i].id < entries[j].id
	})

	limit := capFor(f.caps, tier)
	entries, dropped := f.enforceCap(entries, limit)
	if dropped > 0 {
		log.Debugf("tier %d cap %d: dropped %d protocols", tier, limit, dropped)
	}

	result := &SelectionResult{
		Tier:              tier,
		SelectedProtocols: make([]string, 0, len(entries)),
		ActivationReasons: make(map[string]string, len(entries)),
		Anomalies:         anomalies,
	}
	for _, e := range entries {
		result.SelectedProtocols = append(result.SelectedProtocols, e.id)
		result.ActivationReasons[e.id] = e.reason
	}
	return result
}

// enforceCap drops lowest-priority entries until the set fits the ceiling.
// An entry is droppable only if it is non-mandatory and no retained entry
// depends on it (directly or transitively through retained entries). If
// nothing is droppable the cap is exceeded rather than violating closure.
func (f *SelectionFinalizer) enforceCap(entries []entry, limit int) ([]entry, int) {
	if limit <= 0 || len(entries) <= limit {
		return entries, 0
	}

	retained := make(map[string]bool, len(entries))
	for _, e := range entries {
		retained[e.id] = true
	}

	// dependedOn reports whether id is required by any retained entry.
	dependedOn := func(id string) bool {
		for other := range retained {
			if other == id {
				continue
			}
			rec, ok := f.catalog.Get(other)
			if !ok {
				continue
			}
			for _, dep := range rec.Dependencies {
				if dep == id {
					return true
				}
			}
		}
		return false
	}

	// Candidate drop order: walk from the tail of the ordered list, which
	// places dependency-only entries last, then weakest triggered matches.
	// Protocol priority breaks remaining ties.
	order := make([]int, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		if ea.group != eb.group {
			return ea.group > eb.group
		}
		pa, pb := f.priorityOf(ea.id), f.priorityOf(eb.id)
		if pa != pb {
			return pa < pb
		}
		return false // preserve tail-first order
	})

	dropped := 0
	for len(retained) > limit {
		droppedThisPass := false
		for _, idx := range order {
			e := entries[idx]
			if !retained[e.id] || e.group == 0 {
				continue
			}
			if dependedOn(e.id) {
				continue
			}
			delete(retained, e.id)
			dropped++
			droppedThisPass = true
			if len(retained) <= limit {
				break
			}
		}
		if !droppedThisPass {
			break // only mandatory or depended-upon entries remain
		}
	}

	if dropped == 0 {
		return entries, 0
	}
	kept := make([]entry, 0, len(retained))
	for _, e := range entries {
		if retained[e.id] {
			kept = append(kept, e)
		}
	}
	return kept, dropped
}

func (f *SelectionFinalizer) priorityOf(id string) int {
	if rec, ok := f.catalog.Get(id); ok {
		return rec.Priority
	}
	return 0
}

// String implements fmt.Stringer for quick logging of a result.
func (r *SelectionResult) String() string {
	return fmt.Sprintf("tier=%d protocols=%d anomalies=%d",
		r.Tier, len(r.SelectedProtocols), len(r.Anomalies))
}
