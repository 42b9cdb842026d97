package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/emberdb/internal/schema"
)

// CycleWarning reports object types that require each other through
// non-optional object links.
//
// No object on such a cycle can be created: the first one would need an
// existing object of the next type, and nested literals never terminate.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeLinks finds cycles of required object links.
//
// The algorithm:
//  1. Build a type → type graph from object properties that are not optional
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops
//
// Optional links and lists never block creation and are ignored. A schema
// without such cycles returns an empty list.
func AnalyzeLinks(sch *schema.Schema) []CycleWarning {
	graph := buildLinkGraph(sch)

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// linkGraph maps type names to the types they require, in schema order.
type linkGraph struct {
	nodes []string
	edges map[string][]string
}

func buildLinkGraph(sch *schema.Schema) linkGraph {
	g := linkGraph{edges: make(map[string][]string)}
	for _, os := range sch.Types() {
		g.nodes = append(g.nodes, os.Name)
		g.edges[os.Name] = []string{}
		for _, p := range os.Properties {
			if p.Type == schema.TypeObject && !p.Optional && !slices.Contains(g.edges[os.Name], p.ObjectType) {
				g.edges[os.Name] = append(g.edges[os.Name], p.ObjectType)
			}
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g linkGraph) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Components come out in reverse topological order; nodes are visited in
// schema order so the result is deterministic.
func tarjanSCC(g linkGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, g linkGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("type requires a link to itself: %s → %s", name, name),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, g)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("required links form a cycle: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member in
// schema order until it returns to the start.
func reconstructCyclePath(scc []string, g linkGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}
	start := scc[0]
	for _, node := range g.nodes {
		if members[node] {
			start = node
			break
		}
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
