// Package andersen implements a context-insensitive, inclusion-based
// (Andersen-style) pointer analysis that builds the call graph on the fly.
//
// The analysis operates on programs in the object-oriented IR of package ir.
// Starting from the unique entry method it discovers reachable methods while
// propagating abstract objects along a pointer flow graph, resolving virtual
// and interface calls with the receiver objects found so far.
package andersen

import (
	"fmt"

	"github.com/BarrensZeppelin/andersen/heap"
	"github.com/BarrensZeppelin/andersen/hierarchy"
	"github.com/BarrensZeppelin/andersen/ir"
	log "github.com/sirupsen/logrus"
)

// ClassHierarchy resolves call sites to methods. Each method returns nil when
// no target exists.
type ClassHierarchy interface {
	ResolveStatic(ref ir.MethodRef) *ir.Method
	ResolveSpecial(ref ir.MethodRef) *ir.Method
	ResolveVirtual(runtime ir.Type, ref ir.MethodRef) *ir.Method
	ResolveInterface(runtime ir.Type, ref ir.MethodRef) *ir.Method
}

// AnalysisConfig describes the program to analyse and the policies to use.
type AnalysisConfig struct {
	Program *ir.Program

	// Hierarchy defaults to hierarchy.New(Program).
	Hierarchy ClassHierarchy
	// Heap defaults to an allocation-site model.
	Heap heap.Model

	// Order of the worklist. It only affects the amount of work, never the
	// result.
	Order WorklistOrder

	// Log defaults to logrus.StandardLogger().
	Log *log.Logger
}

// ResolutionError is returned when a call site has no target: a static or
// special call naming a missing method, or a dynamic dispatch that finds no
// implementation for the receiver object. The analysis is aborted.
type ResolutionError struct {
	Site *ir.Invoke
	// Recv is the receiver object, nil for static calls.
	Recv *heap.Obj
}

func (e *ResolutionError) Error() string {
	if e.Recv == nil {
		return fmt.Sprintf("%s: cannot resolve %s call to %v", e.Site.Position(), e.Site.Kind, e.Site.Ref)
	}
	return fmt.Sprintf("%s: cannot resolve %s call to %v on receiver %v",
		e.Site.Position(), e.Site.Kind, e.Site.Ref, e.Recv)
}

// Analyze runs the analysis to a fixpoint. Programs without exactly one entry
// method are rejected before the analysis starts.
func Analyze(config AnalysisConfig) (*Result, error) {
	if config.Program == nil {
		return nil, fmt.Errorf("no program to analyze")
	}

	entry, err := config.Program.EntryMethod()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Hierarchy == nil {
		config.Hierarchy = hierarchy.New(config.Program)
	}
	if config.Heap == nil {
		config.Heap = heap.NewAllocationSiteModel()
	}
	logger := config.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	s := newSolver(config, logger)
	if err := s.solve(entry); err != nil {
		return nil, err
	}

	res := s.result()
	logger.WithFields(log.Fields{
		"entry":     entry,
		"reachable": res.Stats.ReachableMethods,
		"calls":     res.Stats.CallEdges,
		"pointers":  res.Stats.Pointers,
		"edges":     res.Stats.PFGEdges,
		"polled":    res.Stats.EntriesPolled,
	}).Info("Analysis finished")

	return res, nil
}
