package report

import (
	"strings"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/ir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// summary is the content shared by every report format, in a deterministic
// order.
type summary struct {
	entry     *ir.Method
	reachable []*ir.Method
	sites     []siteCallees
	recursive [][]*ir.Method
	pointsTo  []varPointsTo
	stats     andersen.Stats
}

type siteCallees struct {
	site    *ir.Invoke
	callees []*ir.Method
}

type varPointsTo struct {
	v   *ir.Var
	pts *andersen.PointsToSet
}

func methodLess(a, b *ir.Method) bool { return a.String() < b.String() }

func summarize(res *andersen.Result, opts Options) *summary {
	cg := res.CallGraph
	s := &summary{
		entry:     cg.Entry(),
		reachable: slices.Clone(cg.Reachable()),
		stats:     res.Stats,
	}
	slices.SortFunc(s.reachable, methodLess)

	if opts.DumpCallGraph {
		bySite := map[*ir.Invoke]bool{}
		for _, e := range cg.Edges() {
			bySite[e.Site] = true
		}
		sites := maps.Keys(bySite)
		slices.SortFunc(sites, func(a, b *ir.Invoke) bool {
			if a.Method() != b.Method() {
				return methodLess(a.Method(), b.Method())
			}
			return a.Index() < b.Index()
		})
		for _, site := range sites {
			callees := slices.Clone(cg.CalleesOf(site))
			slices.SortFunc(callees, methodLess)
			s.sites = append(s.sites, siteCallees{site, callees})
		}
	}

	for _, group := range cg.RecursiveGroups() {
		group = slices.Clone(group)
		slices.SortFunc(group, methodLess)
		s.recursive = append(s.recursive, group)
	}
	slices.SortFunc(s.recursive, func(a, b []*ir.Method) bool {
		return methodLess(a[0], b[0])
	})

	if opts.DumpPointsTo {
		for _, m := range s.reachable {
			vars := slices.Clone(m.Vars())
			slices.SortFunc(vars, func(a, b *ir.Var) bool { return a.Name < b.Name })
			for _, v := range vars {
				if pts := res.PointsTo(v); !pts.IsEmpty() {
					s.pointsTo = append(s.pointsTo, varPointsTo{v, pts})
				}
			}
		}
	}

	return s
}

func methodList(ms []*ir.Method) string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.String()
	}
	return strings.Join(names, ", ")
}
