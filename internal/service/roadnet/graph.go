package roadnet

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/fleetcab/cab-dispatch/internal/domain/geo"
)

// Node is a road intersection in the weighted directed graph.
type Node struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Edge is a directed road segment; weight is segment length in meters.
type Edge struct {
	From    int64   `json:"from"`
	To      int64   `json:"to"`
	LengthM float64 `json:"length_m"`
}

// Graph is an in-memory road network supporting nearest-node resolution and
// shortest-path distance queries. Graphs are immutable once handed to
// callers; all mutation happens during construction.
type Graph struct {
	nodes []Node
	byID  map[int64]Node
	wg    *simple.WeightedDirectedGraph
}

// NewGraph creates an empty road network graph.
func NewGraph() *Graph {
	return &Graph{
		byID: make(map[int64]Node),
		wg:   simple.NewWeightedDirectedGraph(0, math.Inf(1)),
	}
}

// AddNode registers an intersection. Duplicate IDs are ignored.
func (g *Graph) AddNode(id int64, lat, lon float64) {
	if _, ok := g.byID[id]; ok {
		return
	}
	n := Node{ID: id, Lat: lat, Lon: lon}
	g.byID[id] = n
	g.nodes = append(g.nodes, n)
	g.wg.AddNode(simple.Node(id))
}

// AddEdge registers a directed road segment between two known nodes.
// Self-loops and edges referencing unknown nodes are dropped.
func (g *Graph) AddEdge(from, to int64, lengthM float64) {
	if from == to || lengthM < 0 {
		return
	}
	if _, ok := g.byID[from]; !ok {
		return
	}
	if _, ok := g.byID[to]; !ok {
		return
	}
	g.wg.SetWeightedEdge(simple.WeightedEdge{
		F: simple.Node(from),
		T: simple.Node(to),
		W: lengthM,
	})
}

// NodeCount returns the number of intersections in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// NearestNode returns the graph node nearest to pos by equirectangular
// projected distance. Deterministic: ties resolve to the lowest node ID.
// ok is false only for an empty graph.
func (g *Graph) NearestNode(pos geo.Position) (int64, bool) {
	if len(g.nodes) == 0 {
		return 0, false
	}

	bestID := int64(0)
	bestDist := math.Inf(1)
	for _, n := range g.nodes {
		d := projectedDistSq(pos.Latitude, pos.Longitude, n.Lat, n.Lon)
		if d < bestDist || (d == bestDist && n.ID < bestID) {
			bestDist = d
			bestID = n.ID
		}
	}
	return bestID, true
}

// ShortestPathDistance resolves the nearest nodes to both endpoints and
// returns the minimum-weight path length in meters. Returns +Inf when the
// graph is empty, an endpoint cannot be resolved, or no path exists. Never
// returns an error: callers treat +Inf as "unroutable".
func (g *Graph) ShortestPathDistance(from, to geo.Position) float64 {
	start, ok := g.NearestNode(from)
	if !ok {
		return math.Inf(1)
	}
	end, ok := g.NearestNode(to)
	if !ok {
		return math.Inf(1)
	}
	if start == end {
		return 0
	}

	shortest := path.DijkstraFrom(g.wg.Node(start), g.wg)
	return shortest.WeightTo(end)
}

// projectedDistSq is a squared equirectangular projection distance, cheap
// and monotonic in true distance at city scale.
func projectedDistSq(lat1, lon1, lat2, lon2 float64) float64 {
	meanLat := (lat1 + lat2) / 2 * math.Pi / 180
	dx := (lon2 - lon1) * math.Cos(meanLat)
	dy := lat2 - lat1
	return dx*dx + dy*dy
}

// graphFile is the offline-produced weighted graph artifact, keyed by a
// metropolitan area and generated from OpenStreetMap extracts.
type graphFile struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// LoadGraphFile reads and builds a road network graph from a JSON artifact.
func LoadGraphFile(filePath string) (*Graph, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var gf graphFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	g := NewGraph()
	for _, n := range gf.Nodes {
		g.AddNode(n.ID, n.Lat, n.Lon)
	}
	for _, e := range gf.Edges {
		g.AddEdge(e.From, e.To, e.LengthM)
	}
	return g, nil
}
