package andersen

import (
	"fmt"

	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/ir"
)

// Pointer is a node of the pointer flow graph. Every pointer owns exactly one
// points-to set. Pointers are canonical: the PointerFlowGraph hands out one
// node per logical pointer.
type Pointer interface {
	// ID is the dense index of the pointer in its graph.
	ID() int
	PointsTo() *PointsToSet
	fmt.Stringer
}

type node struct {
	id  int
	pts *PointsToSet
}

func (n *node) ID() int                { return n.id }
func (n *node) PointsTo() *PointsToSet { return n.pts }

// VarPtr is the pointer of a local variable.
type VarPtr struct {
	node
	Var *ir.Var
}

func (p *VarPtr) String() string { return p.Var.String() }

// InstanceField is the pointer of field Field of abstract object Base.
type InstanceField struct {
	node
	Base  *heap.Obj
	Field *ir.Field
}

func (p *InstanceField) String() string { return fmt.Sprintf("%v.%v", p.Base, p.Field) }

// StaticField is the pointer of a static field.
type StaticField struct {
	node
	Field *ir.Field
}

func (p *StaticField) String() string { return p.Field.String() }

// ArrayIndex is the pointer standing for every element of array object Array.
type ArrayIndex struct {
	node
	Array *heap.Obj
}

func (p *ArrayIndex) String() string { return fmt.Sprintf("%v[*]", p.Array) }
