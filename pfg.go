package andersen

import (
	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/ir"
	"golang.org/x/tools/container/intsets"
)

type fieldKey struct {
	base  *heap.Obj
	field *ir.Field
}

// PointerFlowGraph holds the pointers of an analysis run in an arena indexed
// by pointer ID. An edge src -> tgt means that every object in pt(src) must
// also be in pt(tgt). Edges are never removed.
type PointerFlowGraph struct {
	heap heap.Model

	nodes []Pointer
	succs []*intsets.Sparse // indexed by source ID
	edges int

	vars    map[*ir.Var]*VarPtr
	ifields map[fieldKey]*InstanceField
	sfields map[*ir.Field]*StaticField
	arrays  map[*heap.Obj]*ArrayIndex
}

func newPointerFlowGraph(h heap.Model) *PointerFlowGraph {
	return &PointerFlowGraph{
		heap:    h,
		vars:    make(map[*ir.Var]*VarPtr),
		ifields: make(map[fieldKey]*InstanceField),
		sfields: make(map[*ir.Field]*StaticField),
		arrays:  make(map[*heap.Obj]*ArrayIndex),
	}
}

func (g *PointerFlowGraph) mkNode() node {
	return node{id: len(g.nodes), pts: newPointsToSet(g.heap)}
}

func (g *PointerFlowGraph) register(p Pointer) {
	g.nodes = append(g.nodes, p)
	g.succs = append(g.succs, new(intsets.Sparse))
}

// VarPointer returns the pointer of v, creating it if absent.
func (g *PointerFlowGraph) VarPointer(v *ir.Var) *VarPtr {
	if p, found := g.vars[v]; found {
		return p
	}

	p := &VarPtr{node: g.mkNode(), Var: v}
	g.register(p)
	g.vars[v] = p
	return p
}

// InstanceFieldPointer returns the pointer of o.f, creating it if absent.
func (g *PointerFlowGraph) InstanceFieldPointer(o *heap.Obj, f *ir.Field) *InstanceField {
	key := fieldKey{o, f}
	if p, found := g.ifields[key]; found {
		return p
	}

	p := &InstanceField{node: g.mkNode(), Base: o, Field: f}
	g.register(p)
	g.ifields[key] = p
	return p
}

// StaticFieldPointer returns the pointer of the static field f, creating it if
// absent.
func (g *PointerFlowGraph) StaticFieldPointer(f *ir.Field) *StaticField {
	if p, found := g.sfields[f]; found {
		return p
	}

	p := &StaticField{node: g.mkNode(), Field: f}
	g.register(p)
	g.sfields[f] = p
	return p
}

// ArrayPointer returns the pointer merging all elements of array object o,
// creating it if absent.
func (g *PointerFlowGraph) ArrayPointer(o *heap.Obj) *ArrayIndex {
	if p, found := g.arrays[o]; found {
		return p
	}

	p := &ArrayIndex{node: g.mkNode(), Array: o}
	g.register(p)
	g.arrays[o] = p
	return p
}

// AddEdge inserts src -> tgt and reports whether the edge is new.
func (g *PointerFlowGraph) AddEdge(src, tgt Pointer) bool {
	if g.succs[src.ID()].Insert(tgt.ID()) {
		g.edges++
		return true
	}
	return false
}

func (g *PointerFlowGraph) HasEdge(src, tgt Pointer) bool {
	return g.succs[src.ID()].Has(tgt.ID())
}

// Succs returns a snapshot of the successors of p. Edges added while the
// caller iterates over the snapshot are not included.
func (g *PointerFlowGraph) Succs(p Pointer) []Pointer {
	ids := g.succs[p.ID()].AppendTo(nil)
	res := make([]Pointer, len(ids))
	for i, id := range ids {
		res[i] = g.nodes[id]
	}
	return res
}

// Pointer returns the pointer with the given ID.
func (g *PointerFlowGraph) Pointer(id int) Pointer { return g.nodes[id] }

// Pointers returns every pointer ordered by ID.
func (g *PointerFlowGraph) Pointers() []Pointer { return g.nodes }

func (g *PointerFlowGraph) NumEdges() int { return g.edges }

func (g *PointerFlowGraph) lookupVar(v *ir.Var) Pointer {
	if p, found := g.vars[v]; found {
		return p
	}
	return nil
}

func (g *PointerFlowGraph) lookupField(o *heap.Obj, f *ir.Field) Pointer {
	if p, found := g.ifields[fieldKey{o, f}]; found {
		return p
	}
	return nil
}

func (g *PointerFlowGraph) lookupStatic(f *ir.Field) Pointer {
	if p, found := g.sfields[f]; found {
		return p
	}
	return nil
}

func (g *PointerFlowGraph) lookupArray(o *heap.Obj) Pointer {
	if p, found := g.arrays[o]; found {
		return p
	}
	return nil
}
