package registry

import "sync"

// Graph tracks dependency links between publishes in both directions. The
// store only records forward links (DependencyIDs); the graph answers the
// reverse question of which publishes consume a given one.
type Graph struct {
	mu         sync.RWMutex
	deps       map[string][]string // publish ID -> dependency IDs
	dependents map[string][]string // publish ID -> dependent IDs
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// AddPublish records a publish and its dependency edges. Re-adding the same
// publish replaces its edges.
func (g *Graph) AddPublish(pf *PublishedFile) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Drop stale reverse edges if the publish was added before.
	for _, old := range g.deps[pf.ID] {
		g.dependents[old] = removeID(g.dependents[old], pf.ID)
	}

	g.deps[pf.ID] = append([]string(nil), pf.DependencyIDs...)
	for _, dep := range pf.DependencyIDs {
		g.dependents[dep] = append(g.dependents[dep], pf.ID)
	}
}

// Dependencies returns the direct dependency IDs of a publish.
func (g *Graph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.deps[id]...)
}

// Dependents returns the IDs of publishes that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[id]...)
}

// TransitiveDependencies returns all dependency IDs reachable from id,
// depth-first, without duplicates.
func (g *Graph) TransitiveDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	var result []string

	var traverse func(string)
	traverse = func(current string) {
		for _, dep := range g.deps[current] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			result = append(result, dep)
			traverse(dep)
		}
	}

	traverse(id)
	return result
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
