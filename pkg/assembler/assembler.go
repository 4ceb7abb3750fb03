package assembler

import (
	"sort"

	"github.com/complexome/prophet/pkg/models"
)

// Method selects the partitioning policy.
type Method string

const (
	// MethodModularity greedily merges communities by weighted modularity
	// gain. Deterministic: ties break on higher average internal weight,
	// then on smaller community index.
	MethodModularity Method = "modularity"
	// MethodComponents treats each connected component as one candidate.
	MethodComponents Method = "components"
)

// Config holds assembler parameters.
type Config struct {
	Method      Method  `json:"method" yaml:"method"`
	MinCohesion float64 `json:"min_cohesion" yaml:"min_cohesion"`
}

// DefaultConfig returns the assembler defaults.
func DefaultConfig() Config {
	return Config{Method: MethodModularity, MinCohesion: 0.3}
}

// Assembler partitions interaction graphs into complex candidates.
type Assembler struct {
	cfg Config
}

// New validates the configuration and returns an assembler.
func New(cfg Config) (*Assembler, error) {
	if cfg.MinCohesion < 0 || cfg.MinCohesion > 1 {
		return nil, models.NewConfigurationError("min_cohesion", "must be in [0, 1], got %v", cfg.MinCohesion)
	}
	switch cfg.Method {
	case MethodModularity, MethodComponents:
	case "":
		cfg.Method = MethodModularity
	default:
		return nil, models.NewConfigurationError("method", "unknown partitioning method %q", cfg.Method)
	}
	return &Assembler{cfg: cfg}, nil
}

// Assemble partitions the graph built from scores and returns candidates
// sorted by ID. Singleton groups and groups below the cohesion floor are
// dropped. An empty graph yields an empty result, not an error.
func (a *Assembler) Assemble(condition string, scores []*models.InteractionScore) ([]*models.ComplexCandidate, error) {
	g := FromScores(scores)
	if g.NumNodes() == 0 {
		return nil, nil
	}

	var groups [][]int
	switch a.cfg.Method {
	case MethodComponents:
		groups = g.components()
	default:
		groups = g.modularityPartition()
	}

	var candidates []*models.ComplexCandidate
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		cohesion := g.meanInternalWeight(group)
		if cohesion < a.cfg.MinCohesion {
			continue
		}
		members := make([]string, len(group))
		for i, idx := range group {
			members[i] = g.ids[idx]
		}
		candidates = append(candidates, models.NewComplexCandidate(condition, members, cohesion))
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// meanInternalWeight averages the weights of edges with both endpoints in
// the group.
func (g *Graph) meanInternalWeight(group []int) float64 {
	inGroup := make(map[int]bool, len(group))
	for _, idx := range group {
		inGroup[idx] = true
	}

	sum := 0.0
	count := 0
	for _, i := range group {
		for j, w := range g.adj[i] {
			if i < j && inGroup[j] {
				sum += w
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// modularityPartition runs greedy agglomerative community detection on
// each connected component.
func (g *Graph) modularityPartition() [][]int {
	m := g.totalWeight()
	if m == 0 {
		return g.components()
	}

	// Every node starts in its own community.
	community := make([]int, g.NumNodes())
	for i := range community {
		community[i] = i
	}
	members := make(map[int][]int, g.NumNodes())
	strength := make(map[int]float64, g.NumNodes())
	for i := 0; i < g.NumNodes(); i++ {
		members[i] = []int{i}
		strength[i] = g.weightedDegree(i)
	}

	for {
		bestGain := 0.0
		bestAvg := -1.0
		bestA, bestB := -1, -1

		// Candidate merges are pairs of communities joined by an edge.
		linked := g.communityLinks(community)
		for _, link := range linked {
			ca, cb := link.a, link.b
			gain := link.weight/m - strength[ca]*strength[cb]/(2*m*m)
			if gain <= 0 {
				continue
			}
			merged := append(append([]int(nil), members[ca]...), members[cb]...)
			avg := g.meanInternalWeight(merged)
			if gain > bestGain ||
				(gain == bestGain && avg > bestAvg) ||
				(gain == bestGain && avg == bestAvg && ca < bestA) {
				bestGain = gain
				bestAvg = avg
				bestA, bestB = ca, cb
			}
		}
		if bestA < 0 {
			break
		}

		// Merge bestB into bestA.
		for _, node := range members[bestB] {
			community[node] = bestA
		}
		members[bestA] = append(members[bestA], members[bestB]...)
		strength[bestA] += strength[bestB]
		delete(members, bestB)
		delete(strength, bestB)
	}

	comms := make([]int, 0, len(members))
	for c := range members {
		comms = append(comms, c)
	}
	sort.Ints(comms)

	groups := make([][]int, 0, len(comms))
	for _, c := range comms {
		group := append([]int(nil), members[c]...)
		sort.Ints(group)
		groups = append(groups, group)
	}
	return groups
}

type communityLink struct {
	a, b   int
	weight float64
}

// communityLinks aggregates inter-community edge weight, ordered by (a, b)
// so merge scanning is deterministic.
func (g *Graph) communityLinks(community []int) []communityLink {
	agg := make(map[[2]int]float64)
	for i := range g.adj {
		for j, w := range g.adj[i] {
			if i >= j {
				continue
			}
			ca, cb := community[i], community[j]
			if ca == cb {
				continue
			}
			if ca > cb {
				ca, cb = cb, ca
			}
			agg[[2]int{ca, cb}] += w
		}
	}

	links := make([]communityLink, 0, len(agg))
	for key, w := range agg {
		links = append(links, communityLink{a: key[0], b: key[1], weight: w})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].a != links[j].a {
			return links[i].a < links[j].a
		}
		return links[i].b < links[j].b
	})
	return links
}
