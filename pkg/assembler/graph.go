// Package assembler partitions the weighted interaction graph of one
// condition into complex candidates. Proteins are interned to integer
// indices up front so partitioning works on a compact arena instead of
// string-keyed maps.
package assembler

import (
	"sort"

	"github.com/complexome/prophet/pkg/models"
)

// Graph is an undirected weighted interaction graph. Node indices are
// assigned in insertion order; edges are deduplicated keeping the maximum
// weight, and self-loops are dropped.
type Graph struct {
	ids     []string
	index   map[string]int
	adj     []map[int]float64
	edgeCnt int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// FromScores builds a graph from interaction scores, keeping only pairs at
// or above their decision threshold.
func FromScores(scores []*models.InteractionScore) *Graph {
	g := NewGraph()
	for _, s := range scores {
		if !s.Interacting() {
			continue
		}
		g.AddEdge(s.Pair.A, s.Pair.B, s.Probability)
	}
	return g
}

func (g *Graph) intern(id string) int {
	if idx, ok := g.index[id]; ok {
		return idx
	}
	idx := len(g.ids)
	g.index[id] = idx
	g.ids = append(g.ids, id)
	g.adj = append(g.adj, make(map[int]float64))
	return idx
}

// AddEdge inserts an undirected edge. Self-loops are ignored; a repeated
// edge keeps the larger weight.
func (g *Graph) AddEdge(a, b string, weight float64) {
	if a == b {
		return
	}
	ia := g.intern(a)
	ib := g.intern(b)
	if prev, ok := g.adj[ia][ib]; ok {
		if weight <= prev {
			return
		}
	} else {
		g.edgeCnt++
	}
	g.adj[ia][ib] = weight
	g.adj[ib][ia] = weight
}

// NumNodes returns the number of interned proteins.
func (g *Graph) NumNodes() int { return len(g.ids) }

// NumEdges returns the number of distinct undirected edges.
func (g *Graph) NumEdges() int { return g.edgeCnt }

// Weight returns the edge weight between two proteins, or 0 when absent.
func (g *Graph) Weight(a, b string) float64 {
	ia, ok := g.index[a]
	if !ok {
		return 0
	}
	ib, ok := g.index[b]
	if !ok {
		return 0
	}
	return g.adj[ia][ib]
}

// neighbors returns the neighbor indices of node i in ascending order.
func (g *Graph) neighbors(i int) []int {
	out := make([]int, 0, len(g.adj[i]))
	for j := range g.adj[i] {
		out = append(out, j)
	}
	sort.Ints(out)
	return out
}

// totalWeight is the sum of all edge weights, each edge counted once.
func (g *Graph) totalWeight() float64 {
	sum := 0.0
	for i := range g.adj {
		for j, w := range g.adj[i] {
			if i < j {
				sum += w
			}
		}
	}
	return sum
}

// weightedDegree is the sum of weights incident to node i.
func (g *Graph) weightedDegree(i int) float64 {
	sum := 0.0
	for _, w := range g.adj[i] {
		sum += w
	}
	return sum
}

// components returns the connected components as sorted index slices, in
// order of their smallest member.
func (g *Graph) components() [][]int {
	seen := make([]bool, len(g.ids))
	var comps [][]int
	for start := range g.ids {
		if seen[start] {
			continue
		}
		var comp []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, node)
			for _, nb := range g.neighbors(node) {
				if !seen[nb] {
					seen[nb] = true
					stack = append(stack, nb)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}
