package andersen

import (
	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/ir"
)

// Result holds the fixpoint of an analysis run: the call graph and the pointer
// flow graph with the points-to set of every pointer.
type Result struct {
	CallGraph *CallGraph
	PFG       *PointerFlowGraph
	Heap      heap.Model
	Stats     Stats
}

// Stats summarizes the work done by an analysis run.
type Stats struct {
	Pointers         int
	PFGEdges         int
	EntriesPolled    int
	ReachableMethods int
	CallEdges        int
	Objects          int
}

func (s *solver) result() *Result {
	return &Result{
		CallGraph: s.cg,
		PFG:       s.pfg,
		Heap:      s.heap,
		Stats: Stats{
			Pointers:         len(s.pfg.Pointers()),
			PFGEdges:         s.pfg.NumEdges(),
			EntriesPolled:    s.wl.polled,
			ReachableMethods: len(s.cg.Reachable()),
			CallEdges:        s.cg.NumEdges(),
			Objects:          len(s.heap.Objects()),
		},
	}
}

func (r *Result) pointsTo(p Pointer) *PointsToSet {
	if p == nil {
		return newPointsToSet(r.Heap)
	}
	return p.PointsTo()
}

// PointsTo returns the points-to set of v. Variables the analysis never
// touched, e.g. those of unreachable methods, have an empty set.
func (r *Result) PointsTo(v *ir.Var) *PointsToSet {
	return r.pointsTo(r.PFG.lookupVar(v))
}

// FieldPointsTo returns the points-to set of field f of object o.
func (r *Result) FieldPointsTo(o *heap.Obj, f *ir.Field) *PointsToSet {
	return r.pointsTo(r.PFG.lookupField(o, f))
}

func (r *Result) StaticPointsTo(f *ir.Field) *PointsToSet {
	return r.pointsTo(r.PFG.lookupStatic(f))
}

// ArrayPointsTo returns the objects stored in any element of array object o.
func (r *Result) ArrayPointsTo(o *heap.Obj) *PointsToSet {
	return r.pointsTo(r.PFG.lookupArray(o))
}

// MayAlias reports whether a and b may point to the same object.
func (r *Result) MayAlias(a, b *ir.Var) bool {
	return r.PointsTo(a).Intersects(r.PointsTo(b))
}

// Pointers returns every pointer of the pointer flow graph, ordered by ID.
func (r *Result) Pointers() []Pointer { return r.PFG.Pointers() }
