package andersen

import (
	"github.com/BarrensZeppelin/andersen/ir"
	"github.com/yourbasic/graph"
)

// Edge is a resolved call: the call site Site may invoke Callee.
type Edge struct {
	Kind   ir.CallKind
	Site   *ir.Invoke
	Callee *ir.Method
}

// Caller returns the method containing the call site.
func (e Edge) Caller() *ir.Method { return e.Site.Method() }

type edgeKey struct {
	site   *ir.Invoke
	callee *ir.Method
}

// CallGraph is the call graph discovered on the fly by the solver: the
// reachable methods and at most one edge per (call site, callee) pair.
//
// CallGraph implements graph.Iterator from github.com/yourbasic/graph, with
// reachable methods numbered in discovery order.
type CallGraph struct {
	entry *ir.Method

	reachable []*ir.Method
	index     map[*ir.Method]int

	edges   []Edge
	edgeSet map[edgeKey]bool
	callees map[*ir.Invoke][]*ir.Method
	out     map[*ir.Method][]Edge
	in      map[*ir.Method][]Edge
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		index:   make(map[*ir.Method]int),
		edgeSet: make(map[edgeKey]bool),
		callees: make(map[*ir.Invoke][]*ir.Method),
		out:     make(map[*ir.Method][]Edge),
		in:      make(map[*ir.Method][]Edge),
	}
}

// Entry returns the entry method of the analysis.
func (cg *CallGraph) Entry() *ir.Method { return cg.entry }

// addReachable marks m reachable and reports whether it was unreached before.
func (cg *CallGraph) addReachable(m *ir.Method) bool {
	if _, found := cg.index[m]; found {
		return false
	}
	cg.index[m] = len(cg.reachable)
	cg.reachable = append(cg.reachable, m)
	return true
}

func (cg *CallGraph) IsReachable(m *ir.Method) bool {
	_, found := cg.index[m]
	return found
}

// Reachable returns the reachable methods in discovery order.
func (cg *CallGraph) Reachable() []*ir.Method { return cg.reachable }

// addEdge inserts e and reports whether it is new.
func (cg *CallGraph) addEdge(e Edge) bool {
	key := edgeKey{e.Site, e.Callee}
	if cg.edgeSet[key] {
		return false
	}

	cg.edgeSet[key] = true
	cg.edges = append(cg.edges, e)
	cg.callees[e.Site] = append(cg.callees[e.Site], e.Callee)
	cg.out[e.Caller()] = append(cg.out[e.Caller()], e)
	cg.in[e.Callee] = append(cg.in[e.Callee], e)
	return true
}

func (cg *CallGraph) HasEdge(site *ir.Invoke, callee *ir.Method) bool {
	return cg.edgeSet[edgeKey{site, callee}]
}

// CalleesOf returns the methods the call site may invoke.
func (cg *CallGraph) CalleesOf(site *ir.Invoke) []*ir.Method { return cg.callees[site] }

// EdgesOutOf returns the edges from call sites in m.
func (cg *CallGraph) EdgesOutOf(m *ir.Method) []Edge { return cg.out[m] }

// EdgesInto returns the edges targeting m.
func (cg *CallGraph) EdgesInto(m *ir.Method) []Edge { return cg.in[m] }

// Edges returns every edge in discovery order.
func (cg *CallGraph) Edges() []Edge { return cg.edges }

func (cg *CallGraph) NumEdges() int { return len(cg.edges) }

// Order implements graph.Iterator.
func (cg *CallGraph) Order() int { return len(cg.reachable) }

// Visit implements graph.Iterator. Several call sites between the same pair of
// methods are visited once per call site.
func (cg *CallGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, e := range cg.out[cg.reachable[v]] {
		if do(cg.index[e.Callee], 1) {
			return true
		}
	}
	return false
}

// RecursiveGroups returns the groups of mutually recursive methods: strongly
// connected components with more than one method, or a single method calling
// itself.
func (cg *CallGraph) RecursiveGroups() [][]*ir.Method {
	var res [][]*ir.Method
	for _, comp := range graph.StrongComponents(cg) {
		if len(comp) == 1 && !cg.callsItself(cg.reachable[comp[0]]) {
			continue
		}

		group := make([]*ir.Method, len(comp))
		for i, v := range comp {
			group[i] = cg.reachable[v]
		}
		res = append(res, group)
	}
	return res
}

func (cg *CallGraph) callsItself(m *ir.Method) bool {
	for _, e := range cg.out[m] {
		if e.Callee == m {
			return true
		}
	}
	return false
}
