package report

import (
	"bytes"
	"io"
	"testing"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/ir"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeExample(t *testing.T) *andersen.Result {
	prog := ir.NewProgram()
	base := prog.NewClass("Base", nil)
	derived := prog.NewClass("Derived", base)

	foo := derived.NewMethod("foo")
	foo.Return("this")
	base.NewMethod("foo")

	loop := base.NewStaticMethod("loop", "p")
	loop.InvokeStatic("r", ir.RefOf(loop), "p")
	loop.Return("p")

	main := base.NewStaticMethod("main")
	main.New("x", derived)
	main.InvokeVirtual("y", "x", ir.MethodRef{Class: base, Sub: "foo()"})
	main.InvokeStatic("z", ir.RefOf(loop), "y")
	prog.AddEntry(main)

	l := log.New()
	l.SetOutput(io.Discard)
	res, err := andersen.Analyze(andersen.AnalysisConfig{Program: prog, Log: l})
	require.NoError(t, err)
	return res
}

func TestWrite(t *testing.T) {
	res := analyzeExample(t)
	opts := Options{Title: "example", DumpPointsTo: true, DumpCallGraph: true}

	render := func(t *testing.T, f Format) string {
		var buf bytes.Buffer
		opts := opts
		opts.Format = f
		require.NoError(t, Write(&buf, res, opts))
		return buf.String()
	}

	t.Run("Text", func(t *testing.T) {
		out := render(t, Text)
		assert.Contains(t, out, "Entry: Base.main()\n")
		assert.Contains(t, out, "Reachable methods (3):\n  Base.loop(Object)\n  Base.main()\n  Derived.foo()\n")
		assert.Contains(t, out, "Base.main()#1 [virtual] -> Derived.foo()")
		assert.Contains(t, out, "Base.main()#2 [static] -> Base.loop(Object)")
		assert.Contains(t, out, "Recursive groups (1):\n  {Base.loop(Object)}\n")
		assert.Contains(t, out, "Base.main()/y -> {o0:Derived@Base.main()#0}")
		assert.NotContains(t, out, "Base.foo()")
		assert.Equal(t, out, render(t, Text), "output is deterministic")
	})

	t.Run("Markdown", func(t *testing.T) {
		out := render(t, Markdown)
		assert.Contains(t, out, "# Pointer analysis report: example")
		assert.Contains(t, out, "| Reachable methods | 3 |")
		assert.Contains(t, out, "| `Base.main()#1` | virtual | `Derived.foo()` |")
	})

	t.Run("HTML", func(t *testing.T) {
		out := render(t, HTML)
		assert.Contains(t, out, "<h1>Pointer analysis report: example</h1>")
		assert.Contains(t, out, "<table>")
		assert.Contains(t, out, "<code>Derived.foo()</code>")
	})

	t.Run("Dot", func(t *testing.T) {
		out := render(t, Dot)
		assert.Contains(t, out, "digraph")
		assert.Contains(t, out, "Derived.foo()")
		assert.Contains(t, out, "virtual")
		assert.Contains(t, out, "bold", "self-recursive methods are highlighted")
	})

	t.Run("Unknown", func(t *testing.T) {
		assert.Error(t, Write(io.Discard, res, Options{Format: "pdf"}))
	})

	t.Run("Minimal", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, res, Options{}))
		assert.NotContains(t, buf.String(), "Call sites")
		assert.NotContains(t, buf.String(), "Points-to")
	})
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".md", Markdown.Extension())
	assert.Equal(t, ".dot", Dot.Extension())
	assert.Equal(t, ".txt", Text.Extension())
}
