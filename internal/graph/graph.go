// Package graph provides the dependency graph used to schedule crews.
package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found between units.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleError reports the units forming a cycle, first unit repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Cycle, " -> "))
}

// Unwrap lets callers match both ErrCycleDetected and crewerr.ErrGraph.
func (e *CycleError) Unwrap() []error {
	return []error{ErrCycleDetected, crewerr.ErrGraph}
}

// DependencyGraph is a directed graph of units. An edge d -> u means d must
// run before u.
type DependencyGraph struct {
	// order holds node names by insertion index; ties in the topological
	// order are broken by this index.
	order []string
	index map[string]int
	// dependents maps a node to the nodes that depend on it.
	dependents map[string][]string
	// inDegree counts unmet dependencies per node.
	inDegree map[string]int
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		index:      make(map[string]int),
		dependents: make(map[string][]string),
		inDegree:   make(map[string]int),
		debugLog:   func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// AddNode registers a node. Adding an existing node is a no-op.
func (g *DependencyGraph) AddNode(name string) {
	if _, exists := g.index[name]; exists {
		return
	}
	g.index[name] = len(g.order)
	g.order = append(g.order, name)
	g.inDegree[name] = 0
}

// AddEdge adds from -> to, registering either node if needed.
// Duplicate edges are counted once.
func (g *DependencyGraph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, existing := range g.dependents[from] {
		if existing == to {
			return
		}
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.inDegree[to]++
}

// Build constructs the graph for an execution plan: one node per declared
// unit, then an edge for every depends_on entry. Dependencies on undeclared
// units become implicit nodes. Fails with *CycleError when the result is
// not acyclic.
func Build(cfg *models.ExecutionConfig) (*DependencyGraph, error) {
	g := New()
	return g, g.Load(cfg)
}

// Load adds the units of cfg to g. See Build.
func (g *DependencyGraph) Load(cfg *models.ExecutionConfig) error {
	names := cfg.Crews.Keys()
	g.debugLog("[graph.Load] building graph from %d units", len(names))

	// First pass: register all declared units as nodes.
	for _, name := range names {
		g.AddNode(name)
	}

	// Second pass: dependency edges.
	for _, name := range names {
		for _, dep := range cfg.Unit(name).DependsOn {
			g.debugLog("[graph.Load] edge %s -> %s", dep, name)
			g.AddEdge(dep, name)
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		return &CycleError{Cycle: cycle}
	}

	g.debugLog("[graph.Load] graph built successfully with %d nodes", len(g.order))
	return nil
}

// FindCycle returns the nodes of one cycle (first node repeated at the end),
// or nil if the graph is acyclic. Uses depth-first search with colouring.
func (g *DependencyGraph) FindCycle() []string {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = 1
		stack = append(stack, name)

		for _, next := range g.dependents[name] {
			switch colors[next] {
			case 1:
				// Back edge: the cycle is the stack suffix starting at next.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						break
					}
				}
				return true
			case 0:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[name] = 2
		return false
	}

	for _, name := range g.order {
		if colors[name] == 0 && visit(name) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns node names such that every node follows all of
// its dependencies. It uses Kahn's algorithm; among nodes that are ready at
// the same time the one inserted first wins.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	inDegree := make(map[string]int, len(g.inDegree))
	for name, d := range g.inDegree {
		inDegree[name] = d
	}

	var ready []string
	for _, name := range g.order {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	result := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		// Pick the ready node with the lowest insertion index.
		best := 0
		for i := 1; i < len(ready); i++ {
			if g.index[ready[i]] < g.index[ready[best]] {
				best = i
			}
		}
		name := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		result = append(result, name)

		for _, dependent := range g.dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(result) != len(g.order) {
		// Unreachable after FindCycle; kept as a guard on the invariant.
		return nil, &CycleError{}
	}

	g.debugLog("[graph.TopologicalSort] order: %v", result)
	return result, nil
}

// ExecutionOrder builds the graph for cfg and returns its topological order.
func ExecutionOrder(cfg *models.ExecutionConfig) ([]string, error) {
	g, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return g.TopologicalSort()
}
