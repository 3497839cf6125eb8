package andersen

import (
	"strings"

	"github.com/BarrensZeppelin/andersen/heap"
	"golang.org/x/tools/container/intsets"
)

// PointsToSet is a set of abstract objects, stored as a sparse bit set of
// object IDs. Sets attached to pointers only ever grow.
type PointsToSet struct {
	heap heap.Model
	set  intsets.Sparse
}

func newPointsToSet(h heap.Model) *PointsToSet {
	return &PointsToSet{heap: h}
}

func (p *PointsToSet) Has(o *heap.Obj) bool { return p.set.Has(o.ID()) }
func (p *PointsToSet) Len() int             { return p.set.Len() }
func (p *PointsToSet) IsEmpty() bool        { return p.set.IsEmpty() }

// Objects returns the members of the set ordered by ID.
func (p *PointsToSet) Objects() []*heap.Obj {
	ids := p.set.AppendTo(nil)
	res := make([]*heap.Obj, len(ids))
	for i, id := range ids {
		res[i] = p.heap.ByID(id)
	}
	return res
}

// Intersects reports whether the two sets share an object.
func (p *PointsToSet) Intersects(q *PointsToSet) bool {
	return p.set.Intersects(&q.set)
}

func (p *PointsToSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, o := range p.Objects() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(o.String())
	}
	b.WriteByte('}')
	return b.String()
}
