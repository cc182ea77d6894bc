package protocol

import (
	"fmt"

	"mapshock/internal/logging"
)

// DependencyResolver expands a candidate set to its transitive dependency
// closure. An explicit visited set guarantees termination even on catalog
// data with cycles; a dangling dependency fails only its own edge.
type DependencyResolver struct {
	catalog *Catalog
}

// NewDependencyResolver builds a resolver over an immutable catalog.
func NewDependencyResolver(catalog *Catalog) *DependencyResolver {
	return &DependencyResolver{catalog: catalog}
}

// Resolution is the outcome of a closure pass.
type Resolution struct {
	// Closed holds every id in the closure, in the order first reached
	// (seeds first, then dependencies breadth-first).
	Closed []string

	// DependencyOf maps each id added purely as a dependency to the id that
	// first required it. Seed ids are absent from the map.
	DependencyOf map[string]string

	// Anomalies records skipped edges (unresolved ids, cycle back-edges).
	Anomalies []Anomaly
}

// Has reports whether id is in the closed set.
func (r *Resolution) Has(id string) bool {
	for _, got := range r.Closed {
		if got == id {
			return true
		}
	}
	return false
}

// Resolve computes the dependency closure of seeds, breadth-first. The
// result set is identical regardless of traversal order; only the recorded
// order is breadth-first, for stable output.
func (d *DependencyResolver) Resolve(seeds []string) *Resolution {
	res := &Resolution{DependencyOf: make(map[string]string)}

	visited := make(map[string]bool, len(seeds))
	queue := make([]string, 0, len(seeds))

	for _, id := range seeds {
		if visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, id)
		res.Closed = append(res.Closed, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		rec, ok := d.catalog.Get(id)
		if !ok {
			// Seed not in catalog: nothing to expand. The matcher only emits
			// catalog records, so this covers callers seeding raw ids.
			res.Anomalies = append(res.Anomalies, Anomaly{
				Kind:       AnomalyUnresolvedDependency,
				ProtocolID: id,
				Detail:     "id not in catalog",
			})
			continue
		}

		for _, dep := range rec.Dependencies {
			if _, ok := d.catalog.Get(dep); !ok {
				res.Anomalies = append(res.Anomalies, Anomaly{
					Kind:       AnomalyUnresolvedDependency,
					ProtocolID: id,
					Detail:     fmt.Sprintf("dependency %q not in catalog, edge skipped", dep),
				})
				continue
			}
			if visited[dep] {
				// Either direction: the load-time walk records a cycle once,
				// from whichever side it entered the loop.
				if d.catalog.isCycleEdge(id, dep) || d.catalog.isCycleEdge(dep, id) {
					res.Anomalies = append(res.Anomalies, Anomaly{
						Kind:       AnomalyCycleDetected,
						ProtocolID: id,
						Detail:     fmt.Sprintf("cycle back-edge to %q skipped", dep),
					})
				}
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
			res.Closed = append(res.Closed, dep)
			res.DependencyOf[dep] = id
		}
	}

	if len(res.Anomalies) > 0 {
		logging.Get(logging.CategorySelection).Debugf(
			"dependency resolution: %d ids closed, %d anomalies",
			len(res.Closed), len(res.Anomalies))
	}
	return res
}
