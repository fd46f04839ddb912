package viewspec

import (
	"fmt"
	"slices"
	"strings"
)

// CycleWarning reports views that reach themselves through relations.
//
// Cycles are legal: parent/children hierarchies are the common case. The
// schema reflector bounds their expansion, so a warning only tells the
// author where that bound applies.
type CycleWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Level   string   `json:"level"` // "info" for self relations, "warning" otherwise
}

// relationGraph maps a view name to the views its relations point at, in
// field order.
type relationGraph map[string][]string

// AnalyzeCycles finds strongly connected groups of views. A self relation
// is reported at info level; a cycle through several views as a warning.
// Views without cycles yield an empty slice.
func AnalyzeCycles(views []View) []CycleWarning {
	graph := make(relationGraph, len(views))
	order := make([]string, 0, len(views))
	for _, v := range views {
		order = append(order, v.Name)
		graph[v.Name] = []string{}
		for _, f := range v.Fields {
			if f.IsRelation() && !slices.Contains(graph[v.Name], f.Type) {
				graph[v.Name] = append(graph[v.Name], f.Type)
			}
		}
	}

	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph, order) {
		switch {
		case len(scc) > 1:
			path := cyclePath(scc, graph)
			warnings = append(warnings, CycleWarning{
				Path:    path,
				Message: fmt.Sprintf("relation cycle: %s", strings.Join(path, " -> ")),
				Level:   "warning",
			})
		case slices.Contains(graph[scc[0]], scc[0]):
			warnings = append(warnings, CycleWarning{
				Path:    []string{scc[0], scc[0]},
				Message: fmt.Sprintf("self relation: %s -> %s", scc[0], scc[0]),
				Level:   "info",
			})
		}
	}
	return warnings
}

// tarjanSCC returns the strongly connected components of graph, visiting
// roots in order so output is deterministic.
func tarjanSCC(graph relationGraph, order []string) [][]string {
	var (
		index   int
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

		for _, w := range graph[v] {
			if _, known := graph[w]; !known {
				continue // unknown targets are reported by Validate
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks relations inside scc from the component's root back to
// itself.
func cyclePath(scc []string, graph relationGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	start := scc[len(scc)-1] // Tarjan pops the root last
	path := []string{start}
	visited := map[string]bool{start: true}
	for current := start; ; {
		next := ""
		for _, w := range graph[current] {
			if members[w] && (w == start || !visited[w]) {
				next = w
				if w != start {
					break
				}
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		visited[next] = true
		current = next
	}
}
