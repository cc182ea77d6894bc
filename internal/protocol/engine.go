package protocol

import (
	"mapshock/internal/logging"
)

// SelectionConfig tunes the engine without changing its semantics. The zero
// value selects all defaults.
type SelectionConfig struct {
	// TierCaps override the default per-band count ceilings.
	TierCaps []TierCap `yaml:"tier_caps" json:"tier_caps,omitempty"`

	// HighSignalIncrement is the tier bump per matched escalation category.
	// Zero or negative selects the default of 2.
	HighSignalIncrement int `yaml:"high_signal_increment" json:"high_signal_increment,omitempty"`

	// HighSignalCategories override the built-in escalation keyword table.
	HighSignalCategories map[string][]string `yaml:"high_signal_categories" json:"high_signal_categories,omitempty"`
}

// Engine runs the four-stage protocol selection pipeline: tier assessment,
// trigger matching, dependency resolution, and finalization. An Engine is
// immutable after construction and safe for concurrent use; Select performs
// no I/O and holds no per-request state.
type Engine struct {
	catalog   *Catalog
	assessor  *TierAssessor
	matcher   *TriggerMatcher
	resolver  *DependencyResolver
	finalizer *SelectionFinalizer
}

// NewEngine builds an engine over an immutable catalog. A nil config selects
// all defaults.
func NewEngine(catalog *Catalog, cfg *SelectionConfig) *Engine {
	if cfg == nil {
		cfg = &SelectionConfig{}
	}
	return &Engine{
		catalog:   catalog,
		assessor:  NewTierAssessor(cfg.HighSignalCategories, cfg.HighSignalIncrement),
		matcher:   NewTriggerMatcher(catalog),
		resolver:  NewDependencyResolver(catalog),
		finalizer: NewSelectionFinalizer(catalog, cfg.TierCaps),
	}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Select runs the pipeline for one request. It never returns an error:
// missing or malformed context falls back to safe defaults and the
// substitutions are reported as anomalies on the result. Identical inputs
// always produce identical results.
func (e *Engine) Select(cx *AnalysisContext) *SelectionResult {
	norm, contextAnomalies := cx.normalized()

	tier := e.assessor.Assess(norm)
	candidates := e.matcher.Match(norm, tier)

	seeds := make([]string, 0, len(candidates))
	for _, c := range candidates {
		seeds = append(seeds, c.Record.ID)
	}
	closure := e.resolver.Resolve(seeds)

	result := e.finalizer.Finalize(candidates, closure, tier)
	result.Anomalies = append(contextAnomalies, result.Anomalies...)

	logging.Get(logging.CategorySelection).Infow("selection complete",
		"tier", result.Tier,
		"protocols", len(result.SelectedProtocols),
		"anomalies", len(result.Anomalies),
	)
	return result
}
