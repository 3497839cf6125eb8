package andersen

import (
	"fmt"

	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/ir"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"
)

// solver owns the mutable state of one analysis run.
type solver struct {
	hier ClassHierarchy
	heap heap.Model
	log  *log.Entry

	pfg *PointerFlowGraph
	wl  *worklist
	cg  *CallGraph
}

func newSolver(config AnalysisConfig, logger *log.Logger) *solver {
	return &solver{
		hier: config.Hierarchy,
		heap: config.Heap,
		log:  logger.WithField("phase", "solve"),
		pfg:  newPointerFlowGraph(config.Heap),
		wl:   newWorklist(config.Order),
		cg:   newCallGraph(),
	}
}

// init seeds the analysis from the entry method.
func (s *solver) init(entry *ir.Method) error {
	s.cg.entry = entry
	return s.addReachable(entry)
}

func (s *solver) solve(entry *ir.Method) error {
	if err := s.init(entry); err != nil {
		return err
	}

	for {
		more, err := s.step()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

// addReachable marks m reachable and seeds the pointer flow graph and the
// worklist from its statements. Instance calls are left to processCall.
func (s *solver) addReachable(m *ir.Method) error {
	if !s.cg.addReachable(m) {
		return nil
	}

	s.log.Debugf("Reachable: %v", m)

	for _, stmt := range m.Stmts() {
		switch st := stmt.(type) {
		case *ir.New:
			if st.LHS != nil {
				s.wl.addObj(s.pfg.VarPointer(st.LHS), s.heap.Obj(st))
			}

		case *ir.Copy:
			if st.LHS != nil && st.RHS != nil {
				s.addEdge(s.pfg.VarPointer(st.RHS), s.pfg.VarPointer(st.LHS))
			}

		case *ir.StoreField:
			switch {
			case st.RHS == nil:
			case st.IsStatic():
				s.addEdge(s.pfg.VarPointer(st.RHS), s.pfg.StaticFieldPointer(st.Field))
			default:
				for _, o := range s.pfg.VarPointer(st.Base).PointsTo().Objects() {
					s.storeField(st, o)
				}
			}

		case *ir.LoadField:
			switch {
			case st.LHS == nil:
			case st.IsStatic():
				s.addEdge(s.pfg.StaticFieldPointer(st.Field), s.pfg.VarPointer(st.LHS))
			default:
				for _, o := range s.pfg.VarPointer(st.Base).PointsTo().Objects() {
					s.loadField(st, o)
				}
			}

		case *ir.LoadArray:
			for _, o := range s.pfg.VarPointer(st.Base).PointsTo().Objects() {
				s.loadArray(st, o)
			}

		case *ir.StoreArray:
			for _, o := range s.pfg.VarPointer(st.Base).PointsTo().Objects() {
				s.storeArray(st, o)
			}

		case *ir.Invoke:
			if st.Kind == ir.Static {
				if err := s.processStaticCall(st); err != nil {
					return err
				}
			}

		case *ir.Return:
			// Return values are wired per call edge through Method.ReturnVars.

		default:
			panic(fmt.Errorf("unhandled statement %T: %v", st, st))
		}
	}

	return nil
}

func (s *solver) storeField(st *ir.StoreField, o *heap.Obj) {
	if st.RHS != nil {
		s.addEdge(s.pfg.VarPointer(st.RHS), s.pfg.InstanceFieldPointer(o, st.Field))
	}
}

func (s *solver) loadField(st *ir.LoadField, o *heap.Obj) {
	if st.LHS != nil {
		s.addEdge(s.pfg.InstanceFieldPointer(o, st.Field), s.pfg.VarPointer(st.LHS))
	}
}

func (s *solver) storeArray(st *ir.StoreArray, o *heap.Obj) {
	if st.RHS != nil {
		s.addEdge(s.pfg.VarPointer(st.RHS), s.pfg.ArrayPointer(o))
	}
}

func (s *solver) loadArray(st *ir.LoadArray, o *heap.Obj) {
	if st.LHS != nil {
		s.addEdge(s.pfg.ArrayPointer(o), s.pfg.VarPointer(st.LHS))
	}
}

// addEdge inserts src -> tgt. Objects already in pt(src) are scheduled for tgt
// when the edge is new, since propagation through src has already happened.
func (s *solver) addEdge(src, tgt Pointer) {
	if s.pfg.AddEdge(src, tgt) {
		if pts := src.PointsTo(); !pts.IsEmpty() {
			s.wl.addEntry(tgt, &pts.set)
		}
	}
}

// step processes one worklist entry and reports whether entries remain.
func (s *solver) step() (bool, error) {
	if s.wl.isEmpty() {
		return false, nil
	}

	e := s.wl.pollEntry()
	n := e.pointer

	var delta intsets.Sparse
	delta.Difference(e.objs, &n.PointsTo().set)
	if delta.IsEmpty() {
		return !s.wl.isEmpty(), nil
	}

	if s.log.Logger.IsLevelEnabled(log.TraceLevel) {
		s.log.Tracef("Propagate %v into %v", &delta, n)
	}

	s.propagate(n, &delta)

	if v, ok := n.(*VarPtr); ok && s.cg.IsReachable(v.Var.Method()) {
		for _, id := range delta.AppendTo(nil) {
			o := s.heap.ByID(id)

			for _, st := range v.Var.StoreFields() {
				s.storeField(st, o)
			}
			for _, st := range v.Var.LoadFields() {
				s.loadField(st, o)
			}
			for _, st := range v.Var.StoreArrays() {
				s.storeArray(st, o)
			}
			for _, st := range v.Var.LoadArrays() {
				s.loadArray(st, o)
			}

			if err := s.processCall(v.Var, o); err != nil {
				return false, err
			}
		}
	}

	return !s.wl.isEmpty(), nil
}

// propagate adds delta, which must be disjoint from pt(p), to pt(p) and
// schedules it for every successor of p.
func (s *solver) propagate(p Pointer, delta *intsets.Sparse) {
	if delta.IsEmpty() {
		return
	}

	p.PointsTo().set.UnionWith(delta)
	for _, succ := range s.pfg.Succs(p) {
		s.wl.addEntry(succ, delta)
	}
}

// processCall resolves the instance calls on v for the new receiver object
// recv. The receiver binding happens for every object; arguments and return
// values are wired once per (call site, callee) pair.
func (s *solver) processCall(v *ir.Var, recv *heap.Obj) error {
	for _, site := range v.Invokes() {
		callee, err := s.resolveCallee(recv, site)
		if err != nil {
			return err
		}

		if callee.This != nil {
			s.wl.addObj(s.pfg.VarPointer(callee.This), recv)
		}

		if err := s.addCallEdge(Edge{Kind: site.Kind, Site: site, Callee: callee}); err != nil {
			return err
		}
	}

	return nil
}

func (s *solver) processStaticCall(site *ir.Invoke) error {
	callee, err := s.resolveCallee(nil, site)
	if err != nil {
		return err
	}

	return s.addCallEdge(Edge{Kind: ir.Static, Site: site, Callee: callee})
}

func (s *solver) addCallEdge(e Edge) error {
	if !s.cg.addEdge(e) {
		return nil
	}

	s.log.Debugf("Call edge: %s -> %v", e.Site.Position(), e.Callee)

	if err := s.addReachable(e.Callee); err != nil {
		return err
	}

	site, callee := e.Site, e.Callee
	for i, arg := range site.Args {
		if arg != nil && i < len(callee.Params) {
			s.addEdge(s.pfg.VarPointer(arg), s.pfg.VarPointer(callee.Params[i]))
		}
	}

	if site.Result != nil {
		for _, ret := range callee.ReturnVars() {
			s.addEdge(s.pfg.VarPointer(ret), s.pfg.VarPointer(site.Result))
		}
	}

	return nil
}

// resolveCallee selects the target of site. recv is the receiver object for
// instance calls and ignored for static calls.
func (s *solver) resolveCallee(recv *heap.Obj, site *ir.Invoke) (*ir.Method, error) {
	var callee *ir.Method
	switch site.Kind {
	case ir.Static:
		callee = s.hier.ResolveStatic(site.Ref)
	case ir.Special:
		callee = s.hier.ResolveSpecial(site.Ref)
	case ir.Virtual:
		callee = s.hier.ResolveVirtual(recv.Type(), site.Ref)
	case ir.Interface:
		callee = s.hier.ResolveInterface(recv.Type(), site.Ref)
	default:
		panic(fmt.Errorf("unknown call kind %v", site.Kind))
	}

	if callee == nil {
		return nil, &ResolutionError{Site: site, Recv: recv}
	}
	return callee, nil
}
