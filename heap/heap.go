// Package heap defines the abstract objects of the pointer analysis and the
// policies mapping allocation statements to them.
package heap

import (
	"fmt"

	"github.com/BarrensZeppelin/andersen/ir"
)

// Obj is an abstract object: a compile-time stand-in for every runtime object
// the heap model maps to it. Objects are immutable and identified by a dense
// ID assigned in creation order.
type Obj struct {
	id   int
	site *ir.New
	typ  ir.Type
}

func (o *Obj) ID() int { return o.id }

// Site returns the allocation statement that first produced the object.
func (o *Obj) Site() *ir.New { return o.site }

// Type returns the static type of the allocated object.
func (o *Obj) Type() ir.Type { return o.typ }

func (o *Obj) String() string {
	return fmt.Sprintf("o%d:%v@%s", o.id, o.typ, o.site.Position())
}

// Model maps allocation statements to abstract objects. Implementations must
// be deterministic: the same statement always yields the same object.
type Model interface {
	Obj(site *ir.New) *Obj
	// ByID returns the object with the given ID.
	ByID(id int) *Obj
	// Objects returns every object created so far, ordered by ID.
	Objects() []*Obj
}

// table assigns IDs and resolves them.
type table struct {
	objs []*Obj
}

func (t *table) create(site *ir.New) *Obj {
	o := &Obj{id: len(t.objs), site: site, typ: site.Type}
	t.objs = append(t.objs, o)
	return o
}

func (t *table) ByID(id int) *Obj {
	if id < 0 || id >= len(t.objs) {
		panic(fmt.Errorf("no abstract object with ID %d", id))
	}
	return t.objs[id]
}

func (t *table) Objects() []*Obj { return t.objs }

// AllocationSiteModel creates one abstract object per allocation statement.
type AllocationSiteModel struct {
	table
	bySite map[*ir.New]*Obj
}

func NewAllocationSiteModel() *AllocationSiteModel {
	return &AllocationSiteModel{bySite: make(map[*ir.New]*Obj)}
}

func (m *AllocationSiteModel) Obj(site *ir.New) *Obj {
	if o, found := m.bySite[site]; found {
		return o
	}
	o := m.create(site)
	m.bySite[site] = o
	return o
}

// TypeModel merges all allocations of the same type into one abstract object.
// It is coarser but produces far fewer objects than AllocationSiteModel.
type TypeModel struct {
	table
	byType map[ir.Type]*Obj
}

func NewTypeModel() *TypeModel {
	return &TypeModel{byType: make(map[ir.Type]*Obj)}
}

func (m *TypeModel) Obj(site *ir.New) *Obj {
	if o, found := m.byType[site.Type]; found {
		return o
	}
	o := m.create(site)
	m.byType[site.Type] = o
	return o
}
