package protocol

import "fmt"

// AnomalyKind classifies non-fatal irregularities observed while loading the
// catalog or selecting protocols. Anomalies degrade a result, they never
// fail a request.
type AnomalyKind string

const (
	// AnomalyUnresolvedDependency marks a dependency edge pointing at an id
	// absent from the catalog. The edge is skipped.
	AnomalyUnresolvedDependency AnomalyKind = "unresolved_dependency"

	// AnomalyCycleDetected marks a dependency back-edge. The edge is skipped
	// so traversal terminates.
	AnomalyCycleDetected AnomalyKind = "cycle_detected"

	// AnomalyContextFallback marks a request context that was missing fields
	// and had safe defaults substituted.
	AnomalyContextFallback AnomalyKind = "context_fallback"

	// AnomalyQuarantined marks a catalog record rejected at load time.
	AnomalyQuarantined AnomalyKind = "quarantined"
)

// Anomaly records a single irregularity for observability and auditing.
type Anomaly struct {
	Kind       AnomalyKind `json:"kind"`
	ProtocolID string      `json:"protocol_id,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

func (a Anomaly) String() string {
	if a.ProtocolID == "" {
		return fmt.Sprintf("%s: %s", a.Kind, a.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", a.Kind, a.ProtocolID, a.Detail)
}
