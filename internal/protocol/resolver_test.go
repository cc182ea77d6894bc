package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExpandsTransitively(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33, Dependencies: []string{"b"}},
		{ID: "b", MinTier: 1, MaxTier: 33, Dependencies: []string{"c"}},
		{ID: "c", MinTier: 1, MaxTier: 33},
		{ID: "d", MinTier: 1, MaxTier: 33},
	})
	r := NewDependencyResolver(cat)

	res := r.Resolve([]string{"a"})

	assert.Equal(t, []string{"a", "b", "c"}, res.Closed)
	assert.Equal(t, "a", res.DependencyOf["b"])
	assert.Equal(t, "b", res.DependencyOf["c"])
	assert.NotContains(t, res.DependencyOf, "a", "seeds carry no dependency-of")
	assert.Empty(t, res.Anomalies)
}

func TestResolveDeduplicatesSharedDependencies(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33, Dependencies: []string{"shared"}},
		{ID: "b", MinTier: 1, MaxTier: 33, Dependencies: []string{"shared"}},
		{ID: "shared", MinTier: 1, MaxTier: 33},
	})
	r := NewDependencyResolver(cat)

	res := r.Resolve([]string{"a", "b"})

	require.Len(t, res.Closed, 3)
	assert.Equal(t, "a", res.DependencyOf["shared"], "first requirer wins")
}

func TestResolveDanglingDependencySkipsEdge(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33, Dependencies: []string{"ghost", "b"}},
		{ID: "b", MinTier: 1, MaxTier: 33},
	})
	r := NewDependencyResolver(cat)

	res := r.Resolve([]string{"a"})

	assert.Equal(t, []string{"a", "b"}, res.Closed, "valid edge survives the dangling one")
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyUnresolvedDependency, res.Anomalies[0].Kind)
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33, Dependencies: []string{"b"}},
		{ID: "b", MinTier: 1, MaxTier: 33, Dependencies: []string{"a"}},
	})
	r := NewDependencyResolver(cat)

	res := r.Resolve([]string{"a"})

	assert.ElementsMatch(t, []string{"a", "b"}, res.Closed,
		"a cycle yields both members exactly once")

	var cycles int
	for _, anom := range res.Anomalies {
		if anom.Kind == AnomalyCycleDetected {
			cycles++
		}
	}
	assert.Equal(t, 1, cycles)
}

func TestResolveCycleFromEitherSide(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33, Dependencies: []string{"b"}},
		{ID: "b", MinTier: 1, MaxTier: 33, Dependencies: []string{"a"}},
	})
	r := NewDependencyResolver(cat)

	// Seeding from b reaches the back-edge in the opposite direction to the
	// load-time walk; the anomaly must still be reported.
	res := r.Resolve([]string{"b"})
	assert.ElementsMatch(t, []string{"a", "b"}, res.Closed)

	var cycles int
	for _, anom := range res.Anomalies {
		if anom.Kind == AnomalyCycleDetected {
			cycles++
		}
	}
	assert.Equal(t, 1, cycles)
}

func TestResolveUnknownSeed(t *testing.T) {
	cat := NewCatalog([]*ProtocolRecord{
		{ID: "a", MinTier: 1, MaxTier: 33},
	})
	r := NewDependencyResolver(cat)

	res := r.Resolve([]string{"nope"})

	assert.Equal(t, []string{"nope"}, res.Closed)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, AnomalyUnresolvedDependency, res.Anomalies[0].Kind)
}
