// Package protocol implements the protocol selection and dependency
// resolution engine. Given an immutable catalog of analysis protocols and a
// per-request context, it deterministically produces a dependency-closed,
// tier-bounded protocol selection.
//
// The engine is a fixed four-stage pipeline:
//  1. Tier assessment - urgency and high-signal keywords produce a threat tier
//  2. Trigger matching - keywords and purpose tags produce a candidate set
//  3. Dependency resolution - candidates are expanded to a closed set
//  4. Finalization - mandatory rules, ordering, and tier caps are applied
//
// Every stage is pure with respect to the catalog, which is read-only after
// load, so concurrent requests need no coordination.
package protocol

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"mapshock/internal/logging"
)

// ProtocolRecord is a single analysis directive in the catalog. Records are
// immutable after load.
type ProtocolRecord struct {
	// ID is the unique identifier, e.g. "33.41" or "DVF_v1.0".
	ID string `yaml:"id" json:"id"`

	// Name is the human-readable protocol name.
	Name string `yaml:"name" json:"name"`

	// PurposeTag is the semantic category (verification, security, threat,
	// narrative, institutional, economic, competitive, ...). A protocol whose
	// purpose tag equals the request's analysis type is triggered even
	// without a keyword hit.
	PurposeTag string `yaml:"purpose" json:"purpose"`

	// Dependencies lists ids of protocols that must accompany this one.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// MinTier and MaxTier bound the tiers at which this protocol is eligible
	// (inclusive).
	MinTier int `yaml:"min_tier" json:"min_tier"`
	MaxTier int `yaml:"max_tier" json:"max_tier"`

	// MandatoryFromTier, when > 0, forces inclusion at or above that tier
	// regardless of trigger matching.
	MandatoryFromTier int `yaml:"mandatory_from_tier,omitempty" json:"mandatory_from_tier,omitempty"`

	// TriggerKeywords are lowercase phrases that activate this protocol when
	// present in the request context.
	TriggerKeywords []string `yaml:"triggers,omitempty" json:"triggers,omitempty"`

	// Priority orders protocols when the tier cap forces drops; lower
	// priority drops first.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// Validate checks the record for structural errors that warrant quarantine.
func (r *ProtocolRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("protocol id is required")
	}
	if r.MinTier <= 0 || r.MaxTier <= 0 {
		return fmt.Errorf("protocol %q is missing a tier range", r.ID)
	}
	if r.MinTier > r.MaxTier {
		return fmt.Errorf("protocol %q has inverted tier range [%d,%d]", r.ID, r.MinTier, r.MaxTier)
	}
	for _, dep := range r.Dependencies {
		if dep == r.ID {
			return fmt.Errorf("protocol %q depends on itself", r.ID)
		}
	}
	return nil
}

// EligibleAt reports whether tier falls inside the record's tier range.
func (r *ProtocolRecord) EligibleAt(tier int) bool {
	return tier >= r.MinTier && tier <= r.MaxTier
}

// MandatoryAt reports whether the record's mandatory threshold applies.
func (r *ProtocolRecord) MandatoryAt(tier int) bool {
	return r.MandatoryFromTier > 0 && tier >= r.MandatoryFromTier
}

// QuarantinedRecord describes a catalog entry rejected at load time.
type QuarantinedRecord struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Catalog is the immutable set of protocol records. It is built once at
// startup; requests only read it.
type Catalog struct {
	records     map[string]*ProtocolRecord
	ordered     []string // ids in ascending order, for deterministic iteration
	quarantined []QuarantinedRecord
	cycleEdges  map[[2]string]bool // back-edges found at load time
	anomalies   []Anomaly          // load-time anomalies (dangling deps, cycles)
}

type catalogFile struct {
	Protocols []*ProtocolRecord `yaml:"protocols"`
}

// ParseCatalog builds a catalog from YAML bytes. Malformed records are
// quarantined, not fatal: losing one protocol must not take down the
// service. Only an unparseable document is an error.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return NewCatalog(file.Protocols), nil
}

// LoadCatalog reads a catalog from an io.Reader.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// LoadCatalogFile reads a catalog from a YAML file on disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// NewCatalog builds a catalog from records, quarantining malformed entries
// and validating the dependency graph once so cycles are known before the
// first request.
func NewCatalog(records []*ProtocolRecord) *Catalog {
	log := logging.Get(logging.CategoryCatalog)

	c := &Catalog{
		records:    make(map[string]*ProtocolRecord, len(records)),
		cycleEdges: make(map[[2]string]bool),
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			c.quarantine(rec.ID, err.Error())
			continue
		}
		if _, dup := c.records[rec.ID]; dup {
			c.quarantine(rec.ID, "duplicate protocol id")
			continue
		}
		c.records[rec.ID] = rec
		c.ordered = append(c.ordered, rec.ID)
	}
	sort.Strings(c.ordered)

	c.validateGraph()

	if n := len(c.quarantined); n > 0 {
		log.Warnf("catalog loaded with %d quarantined of %d records", n, len(records))
	} else {
		log.Infof("catalog loaded: %d protocols", len(c.records))
	}

	return c
}

func (c *Catalog) quarantine(id, reason string) {
	if id == "" {
		id = "(no id)"
	}
	c.quarantined = append(c.quarantined, QuarantinedRecord{ID: id, Reason: reason})
	c.anomalies = append(c.anomalies, Anomaly{Kind: AnomalyQuarantined, ProtocolID: id, Detail: reason})
	logging.Get(logging.CategoryCatalog).Warnf("quarantined protocol %s: %s", id, reason)
}

// validateGraph walks the dependency graph once, recording dangling edges
// and back-edges. Detection happens here so per-request resolution only has
// to consult precomputed results.
func (c *Catalog) validateGraph() {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(c.records))

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		for _, dep := range c.records[id].Dependencies {
			if _, ok := c.records[dep]; !ok {
				c.anomalies = append(c.anomalies, Anomaly{
					Kind:       AnomalyUnresolvedDependency,
					ProtocolID: id,
					Detail:     fmt.Sprintf("dependency %q not in catalog", dep),
				})
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case inStack:
				c.cycleEdges[[2]string{id, dep}] = true
				c.anomalies = append(c.anomalies, Anomaly{
					Kind:       AnomalyCycleDetected,
					ProtocolID: id,
					Detail:     fmt.Sprintf("dependency cycle via %q", dep),
				})
			}
		}
		state[id] = done
	}

	for _, id := range c.ordered {
		if state[id] == unvisited {
			visit(id)
		}
	}
}

// Get retrieves a record by id.
func (c *Catalog) Get(id string) (*ProtocolRecord, bool) {
	rec, ok := c.records[id]
	return rec, ok
}

// All returns records in ascending id order. Callers must not mutate them.
func (c *Catalog) All() []*ProtocolRecord {
	out := make([]*ProtocolRecord, 0, len(c.ordered))
	for _, id := range c.ordered {
		out = append(out, c.records[id])
	}
	return out
}

// Len returns the number of active (non-quarantined) records.
func (c *Catalog) Len() int { return len(c.records) }

// Quarantined returns the records rejected at load time.
func (c *Catalog) Quarantined() []QuarantinedRecord { return c.quarantined }

// LoadAnomalies returns the anomalies found during catalog validation.
func (c *Catalog) LoadAnomalies() []Anomaly { return c.anomalies }

// isCycleEdge reports whether from->to was identified as a back-edge during
// load-time graph validation.
func (c *Catalog) isCycleEdge(from, to string) bool {
	return c.cycleEdges[[2]string{from, to}]
}
