package roadnet

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
)

func gridGraph() *Graph {
	g := NewGraph()
	g.AddNode(1, 26.2400, 73.0250)
	g.AddNode(2, 26.2389, 73.0243)
	g.AddNode(3, 26.2380, 73.0230)
	g.AddNode(9, 26.2500, 73.0400) // no edges
	g.AddEdge(1, 2, 420)
	g.AddEdge(2, 1, 420)
	g.AddEdge(2, 3, 300)
	g.AddEdge(3, 2, 300)
	return g
}

// TestNearestNode_PicksClosestIntersection tests nearest-node resolution
func TestNearestNode_PicksClosestIntersection(t *testing.T) {
	g := gridGraph()

	id, ok := g.NearestNode(geo.Position{Latitude: 26.2390, Longitude: 73.0244})

	require.True(t, ok)
	assert.Equal(t, int64(2), id)
}

// TestNearestNode_TieResolvesToLowestID tests deterministic tie-breaking
func TestNearestNode_TieResolvesToLowestID(t *testing.T) {
	g := NewGraph()
	g.AddNode(7, 26.2400, 73.0250)
	g.AddNode(4, 26.2400, 73.0250)

	id, ok := g.NearestNode(geo.Position{Latitude: 26.2400, Longitude: 73.0250})

	require.True(t, ok)
	assert.Equal(t, int64(4), id)
}

// TestNearestNode_EmptyGraph tests the empty graph edge case
func TestNearestNode_EmptyGraph(t *testing.T) {
	g := NewGraph()

	_, ok := g.NearestNode(geo.Position{Latitude: 26.2400, Longitude: 73.0250})

	assert.False(t, ok)
}

// TestShortestPathDistance_SumsSegmentLengths tests multi-hop routing
func TestShortestPathDistance_SumsSegmentLengths(t *testing.T) {
	g := gridGraph()

	d := g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250}, // node 1
		geo.Position{Latitude: 26.2380, Longitude: 73.0230}, // node 3
	)

	assert.Equal(t, 720.0, d)
}

// TestShortestPathDistance_SameNodeIsZero tests endpoints snapping to one intersection
func TestShortestPathDistance_SameNodeIsZero(t *testing.T) {
	g := gridGraph()

	d := g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250},
		geo.Position{Latitude: 26.2401, Longitude: 73.0251},
	)

	assert.Equal(t, 0.0, d)
}

// TestShortestPathDistance_UnreachableIsInfinite tests the unroutable outcome
func TestShortestPathDistance_UnreachableIsInfinite(t *testing.T) {
	g := gridGraph()

	d := g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250}, // node 1
		geo.Position{Latitude: 26.2500, Longitude: 73.0400}, // node 9, no edges
	)

	assert.True(t, math.IsInf(d, 1))
}

// TestShortestPathDistance_EmptyGraphIsInfinite tests routing over no network
func TestShortestPathDistance_EmptyGraphIsInfinite(t *testing.T) {
	g := NewGraph()

	d := g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250},
		geo.Position{Latitude: 26.2389, Longitude: 73.0243},
	)

	assert.True(t, math.IsInf(d, 1))
}

// TestAddEdge_DropsMalformedSegments tests construction-time edge validation
func TestAddEdge_DropsMalformedSegments(t *testing.T) {
	g := NewGraph()
	g.AddNode(1, 26.2400, 73.0250)
	g.AddNode(2, 26.2389, 73.0243)

	g.AddEdge(1, 1, 100)  // self-loop
	g.AddEdge(1, 5, 100)  // unknown endpoint
	g.AddEdge(1, 2, -100) // negative length

	d := g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250},
		geo.Position{Latitude: 26.2389, Longitude: 73.0243},
	)

	assert.True(t, math.IsInf(d, 1), "no valid edge should have been added")
}

// TestLoadGraphFile_BuildsGraphFromArtifact tests the artifact loader
func TestLoadGraphFile_BuildsGraphFromArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	artifact := `{
		"nodes": [
			{"id": 1, "lat": 26.2400, "lon": 73.0250},
			{"id": 2, "lat": 26.2389, "lon": 73.0243}
		],
		"edges": [
			{"from": 1, "to": 2, "length_m": 420},
			{"from": 2, "to": 1, "length_m": 420}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))

	g, err := LoadGraphFile(path)

	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 420.0, g.ShortestPathDistance(
		geo.Position{Latitude: 26.2400, Longitude: 73.0250},
		geo.Position{Latitude: 26.2389, Longitude: 73.0243},
	))
}

// TestLoadGraphFile_MissingFile tests the read failure path
func TestLoadGraphFile_MissingFile(t *testing.T) {
	_, err := LoadGraphFile(filepath.Join(t.TempDir(), "absent.json"))

	assert.Error(t, err)
}

// TestLoadGraphFile_MalformedJSON tests the parse failure path
func TestLoadGraphFile_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadGraphFile(path)

	assert.Error(t, err)
}
