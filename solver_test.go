package andersen

import (
	"io"
	"testing"

	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/hierarchy"
	"github.com/BarrensZeppelin/andersen/ir"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/container/intsets"
)

// loopProgram builds a program with a cyclic copy chain, a field cycle and a
// recursive virtual call, so the solver has to revisit pointers.
func loopProgram() *ir.Program {
	prog := ir.NewProgram()
	node := prog.NewClass("Node", nil)
	next := node.AddField("next", false)

	walk := node.NewMethod("walk", "n")
	walk.LoadField("m", "this", next)
	walk.StoreField("n", next, "this")
	walk.InvokeVirtual("r", "m", ir.MethodRef{Class: node, Sub: "walk(Object)"}, "this")
	walk.Return("r")
	walk.Return("m")

	main := node.NewStaticMethod("main")
	main.New("a", node)
	main.New("b", node)
	main.StoreField("a", next, "b")
	main.StoreField("b", next, "a")
	main.Copy("c", "a")
	main.Copy("a", "c")
	main.InvokeVirtual("d", "c", ir.MethodRef{Class: node, Sub: "walk(Object)"}, "b")
	prog.AddEntry(main)
	return prog
}

func newTestSolver(prog *ir.Program, order WorklistOrder) *solver {
	l := log.New()
	l.SetOutput(io.Discard)
	return newSolver(AnalysisConfig{
		Program:   prog,
		Hierarchy: hierarchy.New(prog),
		Heap:      heap.NewAllocationSiteModel(),
		Order:     order,
	}, l)
}

func snapshot(g *PointerFlowGraph) []*intsets.Sparse {
	res := make([]*intsets.Sparse, len(g.Pointers()))
	for i, p := range g.Pointers() {
		res[i] = new(intsets.Sparse)
		res[i].Copy(&p.PointsTo().set)
	}
	return res
}

func TestSolverMonotonicity(t *testing.T) {
	for _, order := range []WorklistOrder{FIFO, LIFO} {
		t.Run(order.String(), func(t *testing.T) {
			prog := loopProgram()
			entry, err := prog.EntryMethod()
			require.NoError(t, err)

			s := newTestSolver(prog, order)
			require.NoError(t, s.init(entry))

			prev := snapshot(s.pfg)
			prevEdges := s.pfg.NumEdges()
			prevReachable := len(s.cg.Reachable())

			steps := 0
			for more := true; more; {
				more, err = s.step()
				require.NoError(t, err)
				steps++
				require.Less(t, steps, 10_000, "solver does not terminate")

				cur := snapshot(s.pfg)
				for i, set := range prev {
					assert.True(t, set.SubsetOf(cur[i]),
						"points-to set of %v shrank", s.pfg.Pointer(i))
				}
				assert.GreaterOrEqual(t, s.pfg.NumEdges(), prevEdges)
				assert.GreaterOrEqual(t, len(s.cg.Reachable()), prevReachable)

				prev, prevEdges, prevReachable = cur, s.pfg.NumEdges(), len(s.cg.Reachable())
			}

			assert.True(t, s.wl.isEmpty())
		})
	}
}

// At the fixpoint every edge of the pointer flow graph is satisfied.
func TestSolverFixpoint(t *testing.T) {
	prog := loopProgram()
	entry, _ := prog.EntryMethod()

	s := newTestSolver(prog, FIFO)
	require.NoError(t, s.solve(entry))

	for _, src := range s.pfg.Pointers() {
		for _, tgt := range s.pfg.Succs(src) {
			assert.True(t, src.PointsTo().set.SubsetOf(&tgt.PointsTo().set),
				"%v -> %v is violated", src, tgt)
		}
	}

	walk := prog.Class("Node").DeclaredMethod("walk(Object)")
	require.NotNil(t, walk)
	assert.True(t, s.cg.IsReachable(walk))
	assert.Equal(t, 2, s.pfg.VarPointer(walk.This).PointsTo().Len())
	assert.Equal(t, 2, s.pfg.VarPointer(walk.Var("m")).PointsTo().Len())

	// Two sites invoke walk: main and the recursive call.
	assert.Len(t, s.cg.EdgesInto(walk), 2)
	groups := s.cg.RecursiveGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, []*ir.Method{walk}, groups[0])
}

func TestAddEdgeSchedulesExistingObjects(t *testing.T) {
	prog := ir.NewProgram()
	a := prog.NewClass("A", nil)
	main := a.NewStaticMethod("main")
	site := main.New("x", a)
	main.Copy("y", "x")
	prog.AddEntry(main)

	s := newTestSolver(prog, FIFO)
	x := s.pfg.VarPointer(main.Var("x"))
	z := s.pfg.VarPointer(main.Var("z"))

	o := s.heap.Obj(site)
	var delta intsets.Sparse
	delta.Insert(o.ID())
	s.propagate(x, &delta)
	assert.True(t, x.PointsTo().Has(o))

	s.addEdge(x, z)
	require.False(t, s.wl.isEmpty())
	e := s.wl.pollEntry()
	assert.Equal(t, Pointer(z), e.pointer)
	assert.True(t, e.objs.Has(o.ID()))

	// A repeated edge schedules nothing.
	s.addEdge(x, z)
	assert.True(t, s.wl.isEmpty())
}
