package graph

import (
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Edge is a reference from one selected entity type to another.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Field string `json:"field"`
}

// DependencyGraph holds the reference edges between the selected entity
// types. It is built once per run and never mutated afterwards.
type DependencyGraph struct {
	nodes    []string
	selected map[string]bool
	deps     map[string][]string
	edges    []Edge
	selfRefs []Edge
}

// Build derives the reference graph restricted to the selected entity types.
// Edge A→B exists when A has a reference field targeting B and B is selected.
// Self references are kept aside; they never block A's placement.
func Build(selected []string, schemas map[string]*types.SchemaDescriptor) *DependencyGraph {
	g := &DependencyGraph{
		selected: make(map[string]bool, len(selected)),
		deps:     make(map[string][]string, len(selected)),
	}

	for _, name := range selected {
		if g.selected[name] {
			continue
		}
		g.selected[name] = true
		g.nodes = append(g.nodes, name)
	}

	for _, name := range g.nodes {
		schema := schemas[name]
		if schema == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, field := range schema.Fields {
			if field.Type != types.FieldReference {
				continue
			}
			for _, target := range field.ReferenceTargets {
				if !g.selected[target] {
					continue
				}
				edge := Edge{From: name, To: target, Field: field.Name}
				if target == name {
					g.selfRefs = append(g.selfRefs, edge)
					continue
				}
				g.edges = append(g.edges, edge)
				if !seen[target] {
					seen[target] = true
					g.deps[name] = append(g.deps[name], target)
				}
			}
		}
	}

	return g
}

// Nodes returns the selected entity types in declared order.
func (g *DependencyGraph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// DependsOn returns the selected entity types that name references.
func (g *DependencyGraph) DependsOn(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Edges returns the references between distinct selected entity types.
func (g *DependencyGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// SelfReferences returns the fields that point back at their own entity type.
func (g *DependencyGraph) SelfReferences() []Edge {
	return append([]Edge(nil), g.selfRefs...)
}

// Contains reports whether name is one of the selected entity types.
func (g *DependencyGraph) Contains(name string) bool {
	return g.selected[name]
}
