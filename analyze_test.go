package andersen_test

import (
	"errors"
	"io"
	"testing"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/ir"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func analyze(t *testing.T, prog *ir.Program) *andersen.Result {
	t.Helper()
	res, err := andersen.Analyze(andersen.AnalysisConfig{
		Program: prog,
		Log:     quietLogger(),
	})
	require.NoError(t, err)
	return res
}

// sites returns the allocation sites of the objects in pts.
func sites(pts *andersen.PointsToSet) []*ir.New {
	var res []*ir.New
	for _, o := range pts.Objects() {
		res = append(res, o.Site())
	}
	return res
}

func objOf(t *testing.T, res *andersen.Result, site *ir.New) *heap.Obj {
	t.Helper()
	for _, o := range res.Heap.Objects() {
		if o.Site() == site {
			return o
		}
	}
	t.Fatalf("no object allocated at %v", site)
	return nil
}

// dispatchProgram declares Base.foo, Derived.foo overriding it, and a main
// method calling foo on a Derived object through a Base-typed reference.
func dispatchProgram() (prog *ir.Program, main, baseFoo, derivedFoo *ir.Method, site *ir.Invoke) {
	prog = ir.NewProgram()
	base := prog.NewClass("Base", nil)
	derived := prog.NewClass("Derived", base)

	baseFoo = base.NewMethod("foo")
	baseFoo.New("r", base)
	baseFoo.Return("r")

	derivedFoo = derived.NewMethod("foo")
	derivedFoo.Copy("r", "this")
	derivedFoo.Return("r")

	main = base.NewStaticMethod("main")
	main.New("x", derived)
	site = main.InvokeVirtual("y", "x", ir.MethodRef{Class: base, Sub: "foo()"})
	prog.AddEntry(main)
	return
}

func TestAnalyze(t *testing.T) {
	t.Run("CopyPropagation", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		main := a.NewStaticMethod("main")
		s := main.New("x", a)
		main.Copy("y", "x")
		main.Copy("z", "y")
		prog.AddEntry(main)

		res := analyze(t, prog)
		for _, name := range []string{"x", "y", "z"} {
			assert.Equal(t, []*ir.New{s}, sites(res.PointsTo(main.Var(name))), name)
		}
		assert.True(t, res.MayAlias(main.Var("x"), main.Var("z")))
	})

	t.Run("FieldFlow", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		b := prog.NewClass("B", nil)
		f := a.AddField("f", false)
		main := a.NewStaticMethod("main")
		sa := main.New("a", a)
		sb := main.New("b", b)
		main.StoreField("a", f, "b")
		main.LoadField("c", "a", f)
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{sb}, sites(res.PointsTo(main.Var("c"))))
		assert.Equal(t, []*ir.New{sb}, sites(res.FieldPointsTo(objOf(t, res, sa), f)))
		assert.False(t, res.MayAlias(main.Var("a"), main.Var("c")))
	})

	t.Run("FieldFlowBeforeAllocation", func(t *testing.T) {
		// The load precedes the store and the base receives its object late,
		// through a copy chain.
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		f := a.AddField("f", false)
		main := a.NewStaticMethod("main")
		main.LoadField("c", "p", f)
		main.StoreField("q", f, "v")
		main.Copy("p", "q")
		main.Copy("q", "a")
		main.New("a", a)
		sv := main.New("v", a)
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{sv}, sites(res.PointsTo(main.Var("c"))))
	})

	t.Run("StaticFields", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		g := a.AddField("g", true)
		main := a.NewStaticMethod("main")
		s := main.New("x", a)
		main.StoreStatic(g, "x")
		main.LoadStatic("y", g)
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{s}, sites(res.PointsTo(main.Var("y"))))
		assert.Equal(t, []*ir.New{s}, sites(res.StaticPointsTo(g)))
	})

	t.Run("Arrays", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		main := a.NewStaticMethod("main")
		sarr := main.New("arr", prog.ArrayOf(a))
		s1 := main.New("x", a)
		s2 := main.New("y", a)
		main.StoreArray("arr", "x")
		main.StoreArray("arr", "y")
		main.LoadArray("z", "arr")
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{s1, s2}, sites(res.PointsTo(main.Var("z"))))
		assert.Equal(t, []*ir.New{s1, s2}, sites(res.ArrayPointsTo(objOf(t, res, sarr))))
	})

	t.Run("VirtualDispatch", func(t *testing.T) {
		prog, main, baseFoo, derivedFoo, site := dispatchProgram()
		res := analyze(t, prog)
		cg := res.CallGraph

		assert.Equal(t, []*ir.Method{derivedFoo}, cg.CalleesOf(site))
		assert.True(t, cg.IsReachable(derivedFoo))
		assert.False(t, cg.IsReachable(baseFoo))

		x := sites(res.PointsTo(main.Var("x")))
		assert.Equal(t, x, sites(res.PointsTo(derivedFoo.This)), "receiver binds this")
		assert.Equal(t, x, sites(res.PointsTo(main.Var("y"))), "return flows to result")

		require.Len(t, cg.Edges(), 1)
		e := cg.Edges()[0]
		assert.Equal(t, ir.Virtual, e.Kind)
		assert.Same(t, main, e.Caller())
	})

	t.Run("SpecialCall", func(t *testing.T) {
		prog := ir.NewProgram()
		base := prog.NewClass("Base", nil)
		derived := prog.NewClass("Derived", base)
		init := base.NewMethod("init", "p")
		f := base.AddField("f", false)
		init.StoreField("this", f, "p")
		derived.NewMethod("init", "p")

		main := base.NewStaticMethod("main")
		main.New("x", derived)
		sp := main.New("p", base)
		site := main.InvokeSpecial("", "x", ir.MethodRef{Class: base, Sub: "init(Object)"}, "p")
		main.LoadField("q", "x", f)
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.Method{init}, res.CallGraph.CalleesOf(site),
			"special calls ignore the receiver's class")
		assert.Equal(t, []*ir.New{sp}, sites(res.PointsTo(main.Var("q"))))
	})

	t.Run("InterfaceCall", func(t *testing.T) {
		prog := ir.NewProgram()
		shape := prog.NewInterface("Shape")
		shape.NewAbstractMethod("self")
		circle := prog.NewClass("Circle", nil, shape)
		self := circle.NewMethod("self")
		self.Return("this")

		main := circle.NewStaticMethod("main")
		sc := main.New("s", circle)
		site := main.InvokeInterface("r", "s", ir.MethodRef{Class: shape, Sub: "self()"})
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.Method{self}, res.CallGraph.CalleesOf(site))
		assert.Equal(t, []*ir.New{sc}, sites(res.PointsTo(main.Var("r"))))
	})

	t.Run("InterfaceCallOnNonImplementor", func(t *testing.T) {
		// Objects of A and B merge in the result of id, so B reaches a
		// call site that names I although B does not implement it.
		prog := ir.NewProgram()
		itf := prog.NewInterface("I")
		itf.NewAbstractMethod("foo")
		a := prog.NewClass("A", nil, itf)
		aFoo := a.NewMethod("foo")
		b := prog.NewClass("B", nil)
		bFoo := b.NewMethod("foo")

		id := a.NewStaticMethod("id", "p")
		id.Return("p")

		main := a.NewStaticMethod("main")
		sa := main.New("x", a)
		sb := main.New("y", b)
		main.InvokeStatic("r", ir.RefOf(id), "x")
		main.InvokeStatic("s", ir.RefOf(id), "y")
		site := main.InvokeInterface("", "r", ir.MethodRef{Class: itf, Sub: "foo()"})
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.ElementsMatch(t, []*ir.Method{aFoo, bFoo}, res.CallGraph.CalleesOf(site))
		assert.Equal(t, []*ir.New{sa}, sites(res.PointsTo(aFoo.This)))
		assert.Equal(t, []*ir.New{sb}, sites(res.PointsTo(bFoo.This)))
	})

	t.Run("ArrayReceiver", func(t *testing.T) {
		prog := ir.NewProgram()
		object := prog.NewClass(ir.ObjectClass, nil)
		self := object.NewMethod("self")
		self.Return("this")

		main := object.NewStaticMethod("main")
		arr := main.New("a", prog.ArrayOf(object))
		site := main.InvokeVirtual("r", "a", ir.MethodRef{Class: object, Sub: "self()"})
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.Method{self}, res.CallGraph.CalleesOf(site))
		assert.Equal(t, []*ir.New{arr}, sites(res.PointsTo(main.Var("r"))))
	})

	t.Run("ReachabilityGating", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		f := a.AddField("f", false)

		dead := a.NewStaticMethod("dead", "p")
		dead.New("v", a)
		dead.StoreField("p", f, "v")
		dead.InvokeVirtual("", "p", ir.MethodRef{Class: a, Sub: "missing()"})

		main := a.NewStaticMethod("main")
		main.New("x", a)
		main.LoadField("y", "x", f)
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.False(t, res.CallGraph.IsReachable(dead))
		assert.True(t, res.PointsTo(main.Var("y")).IsEmpty())
		assert.True(t, res.PointsTo(dead.Var("v")).IsEmpty())
		assert.Len(t, res.CallGraph.Reachable(), 1)
	})

	t.Run("StaticCallWiring", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		id := a.NewStaticMethod("id", "p")
		id.Return("p")

		main := a.NewStaticMethod("main")
		s1 := main.New("x", a)
		s2 := main.New("y", a)
		c1 := main.InvokeStatic("r1", ir.RefOf(id), "x")
		c2 := main.InvokeStatic("r2", ir.RefOf(id), "y")
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{s1, s2}, sites(res.PointsTo(id.Params[0])))
		// Context-insensitive: both results see both arguments.
		assert.Equal(t, []*ir.New{s1, s2}, sites(res.PointsTo(main.Var("r1"))))
		assert.Equal(t, []*ir.New{s1, s2}, sites(res.PointsTo(main.Var("r2"))))

		cg := res.CallGraph
		assert.Equal(t, []*ir.Method{id}, cg.CalleesOf(c1))
		assert.Equal(t, []*ir.Method{id}, cg.CalleesOf(c2))
		assert.Len(t, cg.EdgesInto(id), 2)
		for _, e := range cg.Edges() {
			assert.Equal(t, ir.Static, e.Kind)
		}
	})

	t.Run("EdgeIdempotence", func(t *testing.T) {
		// Two receiver objects of the same class dispatch to the same callee
		// through one call site.
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		get := a.NewMethod("get", "p")
		get.Return("p")

		main := a.NewStaticMethod("main")
		main.New("x", a)
		main.New("y", a)
		main.Copy("x", "y")
		s := main.New("arg", a)
		site := main.InvokeVirtual("r", "x", ir.MethodRef{Class: a, Sub: "get(Object)"}, "arg")
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.Method{get}, res.CallGraph.CalleesOf(site))
		assert.Len(t, res.CallGraph.Edges(), 1)
		assert.Len(t, res.PointsTo(get.This).Objects(), 2, "this sees every receiver")
		assert.Equal(t, []*ir.New{s}, sites(res.PointsTo(main.Var("r"))))
	})

	t.Run("NilTargetsSkipped", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		f := a.AddField("f", false)
		callee := a.NewStaticMethod("callee", "p", "q")
		callee.Return("")

		main := a.NewStaticMethod("main")
		main.New("", a)
		main.New("x", a)
		main.Copy("", "x")
		main.StoreField("x", f, "")
		main.LoadField("", "x", f)
		main.InvokeStatic("r", ir.RefOf(callee), "x")
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.True(t, res.PointsTo(main.Var("r")).IsEmpty())
		assert.Len(t, res.PointsTo(callee.Params[0]).Objects(), 1)
		assert.True(t, res.PointsTo(callee.Params[1]).IsEmpty())
	})

	t.Run("Recursion", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		even := a.NewStaticMethod("even", "p")
		odd := a.NewStaticMethod("odd", "p")
		even.InvokeStatic("r", ir.RefOf(odd), "p")
		even.Return("r")
		even.Return("p")
		odd.InvokeStatic("r", ir.RefOf(even), "p")
		odd.Return("r")

		main := a.NewStaticMethod("main")
		s := main.New("x", a)
		main.InvokeStatic("y", ir.RefOf(even), "x")
		prog.AddEntry(main)

		res := analyze(t, prog)
		assert.Equal(t, []*ir.New{s}, sites(res.PointsTo(main.Var("y"))))
		groups := res.CallGraph.RecursiveGroups()
		require.Len(t, groups, 1)
		assert.ElementsMatch(t, []*ir.Method{even, odd}, groups[0])
	})
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("NoEntry", func(t *testing.T) {
		_, err := andersen.Analyze(andersen.AnalysisConfig{Program: ir.NewProgram()})
		assert.ErrorIs(t, err, ir.ErrNoEntry)
	})

	t.Run("MultipleEntries", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		prog.AddEntry(a.NewStaticMethod("main"))
		prog.AddEntry(a.NewStaticMethod("main2"))
		_, err := andersen.Analyze(andersen.AnalysisConfig{Program: prog})
		assert.ErrorIs(t, err, ir.ErrMultipleEntries)
	})

	t.Run("UnresolvedStatic", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		main := a.NewStaticMethod("main")
		site := main.InvokeStatic("", ir.MethodRef{Class: a, Sub: "nope()"})
		prog.AddEntry(main)

		res, err := andersen.Analyze(andersen.AnalysisConfig{Program: prog, Log: quietLogger()})
		assert.Nil(t, res, "no partial result")
		var rerr *andersen.ResolutionError
		require.True(t, errors.As(err, &rerr))
		assert.Same(t, site, rerr.Site)
		assert.Nil(t, rerr.Recv)
	})

	t.Run("UnresolvedDispatch", func(t *testing.T) {
		prog := ir.NewProgram()
		a := prog.NewClass("A", nil)
		main := a.NewStaticMethod("main")
		s := main.New("x", a)
		site := main.InvokeVirtual("", "x", ir.MethodRef{Class: a, Sub: "nope()"})
		prog.AddEntry(main)

		_, err := andersen.Analyze(andersen.AnalysisConfig{Program: prog, Log: quietLogger()})
		var rerr *andersen.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Same(t, site, rerr.Site)
		assert.Same(t, s, rerr.Recv.Site())
		assert.Contains(t, err.Error(), "A.main()#1")
	})
}

func TestWorklistOrder(t *testing.T) {
	var results []map[string][]string
	for _, order := range []andersen.WorklistOrder{andersen.FIFO, andersen.LIFO} {
		prog, _, _, _, _ := dispatchProgram()
		res, err := andersen.Analyze(andersen.AnalysisConfig{
			Program: prog,
			Order:   order,
			Log:     quietLogger(),
		})
		require.NoError(t, err, order)

		pts := map[string][]string{}
		for _, m := range res.CallGraph.Reachable() {
			for _, v := range m.Vars() {
				for _, o := range res.PointsTo(v).Objects() {
					pts[v.String()] = append(pts[v.String()], o.Site().Position())
				}
			}
		}
		results = append(results, pts)
	}

	assert.Equal(t, results[0], results[1])
}

func TestTypeHeapModel(t *testing.T) {
	prog := ir.NewProgram()
	a := prog.NewClass("A", nil)
	main := a.NewStaticMethod("main")
	main.New("x", a)
	main.New("y", a)
	prog.AddEntry(main)

	res, err := andersen.Analyze(andersen.AnalysisConfig{
		Program: prog,
		Heap:    heap.NewTypeModel(),
		Log:     quietLogger(),
	})
	require.NoError(t, err)
	assert.True(t, res.MayAlias(main.Var("x"), main.Var("y")))
	assert.Equal(t, 1, res.Stats.Objects)
}
