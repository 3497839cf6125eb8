// Package report renders analysis results for humans and graph tools.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/ir"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	HTML     Format = "html"
	Dot      Format = "dot"
)

// Extension returns the file extension of reports in format f.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case HTML:
		return ".html"
	case Dot:
		return ".dot"
	default:
		return ".txt"
	}
}

type Options struct {
	Format Format
	// Title names the analysed program.
	Title         string
	DumpPointsTo  bool
	DumpCallGraph bool
}

// Write renders res to w.
func Write(w io.Writer, res *andersen.Result, opts Options) error {
	s := summarize(res, opts)
	switch opts.Format {
	case Text, "":
		return writeText(w, s, opts)
	case Markdown:
		return writeMarkdown(w, s, opts)
	case HTML:
		var md bytes.Buffer
		if err := writeMarkdown(&md, s, opts); err != nil {
			return err
		}
		conv := goldmark.New(goldmark.WithExtensions(extension.Table))
		return conv.Convert(md.Bytes(), w)
	case Dot:
		return writeDot(w, res, opts)
	default:
		return fmt.Errorf("unknown report format %q", opts.Format)
	}
}

// errWriter remembers the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, args...)
	}
}

func writeText(w io.Writer, s *summary, opts Options) error {
	ew := &errWriter{w: w}
	if opts.Title != "" {
		ew.printf("Program: %s\n", opts.Title)
	}
	ew.printf("Entry: %v\n", s.entry)

	ew.printf("Reachable methods (%d):\n", len(s.reachable))
	for _, m := range s.reachable {
		ew.printf("  %v\n", m)
	}

	if opts.DumpCallGraph {
		ew.printf("Call sites (%d):\n", len(s.sites))
		for _, sc := range s.sites {
			ew.printf("  %s [%v] -> %s\n", sc.site.Position(), sc.site.Kind, methodList(sc.callees))
		}
	}

	if len(s.recursive) > 0 {
		ew.printf("Recursive groups (%d):\n", len(s.recursive))
		for _, g := range s.recursive {
			ew.printf("  {%s}\n", methodList(g))
		}
	}

	if opts.DumpPointsTo {
		ew.printf("Points-to sets:\n")
		for _, vp := range s.pointsTo {
			ew.printf("  %v -> %v\n", vp.v, vp.pts)
		}
	}

	st := s.stats
	ew.printf("Statistics: %d reachable methods, %d call edges, %d objects, %d pointers, %d PFG edges, %d worklist entries\n",
		st.ReachableMethods, st.CallEdges, st.Objects, st.Pointers, st.PFGEdges, st.EntriesPolled)
	return ew.err
}

func code(s any) string { return "`" + fmt.Sprint(s) + "`" }

func writeMarkdown(w io.Writer, s *summary, opts Options) error {
	ew := &errWriter{w: w}
	title := "Pointer analysis report"
	if opts.Title != "" {
		title += ": " + opts.Title
	}
	ew.printf("# %s\n\nEntry method: %s\n\n", title, code(s.entry))

	st := s.stats
	ew.printf("| Metric | Value |\n|---|---|\n")
	for _, row := range []struct {
		name string
		val  int
	}{
		{"Reachable methods", st.ReachableMethods},
		{"Call edges", st.CallEdges},
		{"Abstract objects", st.Objects},
		{"Pointers", st.Pointers},
		{"PFG edges", st.PFGEdges},
		{"Worklist entries", st.EntriesPolled},
	} {
		ew.printf("| %s | %d |\n", row.name, row.val)
	}

	ew.printf("\n## Reachable methods\n\n")
	for _, m := range s.reachable {
		ew.printf("- %s\n", code(m))
	}

	if opts.DumpCallGraph {
		ew.printf("\n## Call sites\n\n| Site | Kind | Callees |\n|---|---|---|\n")
		for _, sc := range s.sites {
			ew.printf("| %s | %v | %s |\n", code(sc.site.Position()), sc.site.Kind, code(methodList(sc.callees)))
		}
	}

	if len(s.recursive) > 0 {
		ew.printf("\n## Recursive groups\n\n")
		for _, g := range s.recursive {
			ew.printf("- %s\n", code(methodList(g)))
		}
	}

	if opts.DumpPointsTo {
		ew.printf("\n## Points-to sets\n\n| Variable | Objects |\n|---|---|\n")
		for _, vp := range s.pointsTo {
			ew.printf("| %s | %s |\n", code(vp.v), code(vp.pts))
		}
	}
	return ew.err
}

type methodNode struct {
	id        int64
	m         *ir.Method
	recursive bool
}

func (n methodNode) ID() int64     { return n.id }
func (n methodNode) DOTID() string { return "m" + strconv.FormatInt(n.id, 10) }
func (n methodNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: strconv.Quote(n.m.String())}}
	if n.recursive {
		attrs = append(attrs, encoding.Attribute{Key: "style", Value: "bold"})
	}
	return attrs
}

// callEdge merges the call sites between two methods.
type callEdge struct {
	from, to methodNode
	kinds    []ir.CallKind
}

func (e callEdge) From() graph.Node         { return e.from }
func (e callEdge) To() graph.Node           { return e.to }
func (e callEdge) ReversedEdge() graph.Edge { return callEdge{e.to, e.from, e.kinds} }
func (e callEdge) Attributes() []encoding.Attribute {
	kinds := make([]string, len(e.kinds))
	for i, k := range e.kinds {
		kinds[i] = k.String()
	}
	return []encoding.Attribute{{Key: "label", Value: strconv.Quote(strings.Join(kinds, ","))}}
}

// writeDot renders the call graph. Methods calling themselves are drawn bold
// instead of with a loop.
func writeDot(w io.Writer, res *andersen.Result, opts Options) error {
	cg := res.CallGraph

	type pair struct{ from, to *ir.Method }
	var order []pair
	kinds := map[pair][]ir.CallKind{}
	recursive := map[*ir.Method]bool{}
	for _, e := range cg.Edges() {
		if e.Caller() == e.Callee {
			recursive[e.Callee] = true
			continue
		}

		p := pair{e.Caller(), e.Callee}
		ks, found := kinds[p]
		if !found {
			order = append(order, p)
		}
		if !slices.Contains(ks, e.Kind) {
			kinds[p] = append(ks, e.Kind)
		}
	}

	g := simple.NewDirectedGraph()
	nodes := make(map[*ir.Method]methodNode)
	for i, m := range cg.Reachable() {
		n := methodNode{id: int64(i), m: m, recursive: recursive[m]}
		nodes[m] = n
		g.AddNode(n)
	}
	for _, p := range order {
		g.SetEdge(callEdge{from: nodes[p.from], to: nodes[p.to], kinds: kinds[p]})
	}

	name := opts.Title
	if name == "" {
		name = "callgraph"
	}
	b, err := dot.Marshal(g, strconv.Quote(name), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
