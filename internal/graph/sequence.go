package graph

import (
	"sort"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// extraPasses bounds the extraction loop beyond one pass per node.
const extraPasses = 2

// Sequence is the load order computed from a DependencyGraph.
type Sequence struct {
	Order   []string   `json:"order"`
	Batches [][]string `json:"batches"`
	// Cyclic holds the entity types flushed together because their
	// dependencies could not be satisfied (empty for acyclic input).
	Cyclic []string `json:"cyclic,omitempty"`
	Passes int      `json:"passes"`
	// Deferred lists references whose target is not placed before the
	// referrer. Records are created with those fields left unset.
	Deferred []Edge `json:"deferred,omitempty"`
}

// Position returns the index of name in the load order, or -1.
func (s Sequence) Position(name string) int {
	for i, n := range s.Order {
		if n == name {
			return i
		}
	}
	return -1
}

// Sort converts the graph into a load order by repeated batch extraction.
// Each pass places every unplaced node whose selected dependencies are all
// placed. A pass that places nothing flushes the remainder in declared order.
// configs may be nil; when present, declared order is stably re-sorted by
// LoadPriority (ascending).
func Sort(g *DependencyGraph, configs map[string]types.GenerationConfig) Sequence {
	declared := g.Nodes()
	if len(configs) > 0 {
		sort.SliceStable(declared, func(i, j int) bool {
			return configs[declared[i]].LoadPriority < configs[declared[j]].LoadPriority
		})
	}

	var seq Sequence
	placed := make(map[string]bool, len(declared))
	maxPasses := len(declared) + extraPasses

	for seq.Passes < maxPasses && len(seq.Order) < len(declared) {
		seq.Passes++

		var batch []string
		for _, name := range declared {
			if placed[name] {
				continue
			}
			ready := true
			for _, dep := range g.deps[name] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				batch = append(batch, name)
			}
		}

		if len(batch) == 0 {
			for _, name := range declared {
				if !placed[name] {
					batch = append(batch, name)
				}
			}
			seq.Cyclic = append([]string(nil), batch...)
		}

		// Mark after the scan so a batch never depends on a member of itself.
		for _, name := range batch {
			placed[name] = true
		}
		seq.Batches = append(seq.Batches, batch)
		seq.Order = append(seq.Order, batch...)

		if len(seq.Cyclic) > 0 {
			break
		}
	}

	// Degenerate input that exhausted the pass cap still places everything.
	if len(seq.Order) < len(declared) {
		var rest []string
		for _, name := range declared {
			if !placed[name] {
				rest = append(rest, name)
				placed[name] = true
			}
		}
		seq.Batches = append(seq.Batches, rest)
		seq.Order = append(seq.Order, rest...)
		seq.Cyclic = append(seq.Cyclic, rest...)
	}

	pos := make(map[string]int, len(seq.Order))
	for i, name := range seq.Order {
		pos[name] = i
	}
	for _, e := range g.edges {
		if pos[e.To] > pos[e.From] {
			seq.Deferred = append(seq.Deferred, e)
		}
	}
	seq.Deferred = append(seq.Deferred, g.selfRefs...)

	return seq
}

// BuildSequence is the one-shot form: graph construction followed by Sort.
func BuildSequence(selected []string, schemas map[string]*types.SchemaDescriptor, configs map[string]types.GenerationConfig) Sequence {
	return Sort(Build(selected, schemas), configs)
}
