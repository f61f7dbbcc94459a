package plugin

import (
	"fmt"
)

// DependencyGraph tracks plugin relationships for validation and activation
// ordering. Nodes remember the order they were first added in; that order
// breaks every tie.
type DependencyGraph struct {
	nodes    map[string]int
	order    []string
	incoming map[string]map[string]struct{}
	outgoing map[string]map[string]struct{}
}

// NewDependencyGraph creates an empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]int),
		incoming: make(map[string]map[string]struct{}),
		outgoing: make(map[string]map[string]struct{}),
	}
}

// AddNode ensures the plugin exists within the graph.
func (g *DependencyGraph) AddNode(name string) {
	if _, exists := g.nodes[name]; exists {
		return
	}

	g.nodes[name] = len(g.order)
	g.order = append(g.order, name)
	g.incoming[name] = make(map[string]struct{})
	g.outgoing[name] = make(map[string]struct{})
}

// AddEdge records that dependent needs dependency.
func (g *DependencyGraph) AddEdge(dependent, dependency string) {
	g.AddNode(dependent)
	g.AddNode(dependency)

	g.outgoing[dependent][dependency] = struct{}{}
	g.incoming[dependency][dependent] = struct{}{}
}

// DetectCycles returns one cycle if present or nil when the graph is acyclic.
func (g *DependencyGraph) DetectCycles() []string {
	visited := make(map[string]bool)
	stack := make(map[string]bool)
	path := []string{}

	var cycle []string
	var dfs func(node string) bool

	dfs = func(node string) bool {
		visited[node] = true
		stack[node] = true
		path = append(path, node)

		for _, dependency := range g.GetDependencies(node) {
			if !visited[dependency] {
				if dfs(dependency) {
					return true
				}
			} else if stack[dependency] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != dependency {
					idx--
				}
				if idx >= 0 {
					cycle = append([]string{}, path[idx:]...)
					return true
				}
			}
		}

		stack[node] = false
		path = path[:len(path)-1]
		return false
	}

	for _, node := range g.order {
		if !visited[node] {
			if dfs(node) {
				break
			}
		}
	}

	return cycle
}

// TopologicalSort returns nodes with dependencies first. Among nodes that
// are ready at the same time, the one added first wins, so an edge-free graph
// keeps insertion order.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	remaining := make(map[string]int, len(g.nodes))
	for node := range g.nodes {
		remaining[node] = len(g.outgoing[node])
	}

	result := make([]string, 0, len(g.nodes))
	emitted := make(map[string]bool, len(g.nodes))
	for len(result) < len(g.order) {
		next := ""
		for _, node := range g.order {
			if !emitted[node] && remaining[node] == 0 {
				next = node
				break
			}
		}
		if next == "" {
			break
		}

		emitted[next] = true
		result = append(result, next)
		for dependent := range g.incoming[next] {
			remaining[dependent]--
		}
	}

	if len(result) != len(g.nodes) {
		if cycle := g.DetectCycles(); len(cycle) > 0 {
			return nil, ErrCircularDependency{Cycle: cycle}
		}
		return nil, fmt.Errorf("dependency graph contains unresolved nodes")
	}

	return result, nil
}

// GetDependencies returns the dependencies of node in insertion order.
func (g *DependencyGraph) GetDependencies(node string) []string {
	return g.ordered(g.outgoing[node])
}

// GetDependents returns all nodes that rely on node, in insertion order.
func (g *DependencyGraph) GetDependents(node string) []string {
	return g.ordered(g.incoming[node])
}

// HasNode reports if the node exists in the graph.
func (g *DependencyGraph) HasNode(node string) bool {
	if g == nil {
		return false
	}
	_, ok := g.nodes[node]
	return ok
}

func (g *DependencyGraph) ordered(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, node := range g.order {
		if _, ok := set[node]; ok {
			out = append(out, node)
		}
	}
	return out
}
