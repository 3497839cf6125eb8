// Package hierarchy answers subtype and method dispatch queries over the
// classes of an ir.Program.
package hierarchy

import (
	"github.com/BarrensZeppelin/andersen/ir"
)

type Hierarchy struct {
	prog *ir.Program

	subclasses    map[*ir.Class][]*ir.Class
	implementors  map[*ir.Class][]*ir.Class
	subinterfaces map[*ir.Class][]*ir.Class

	// Memoized dispatch results, including negative ones.
	dispatched map[dispatchKey]*ir.Method
}

type dispatchKey struct {
	class *ir.Class
	sub   ir.Subsignature
}

// New indexes the class declarations of prog. Classes added to prog after the
// call are not visible to the returned hierarchy.
func New(prog *ir.Program) *Hierarchy {
	h := &Hierarchy{
		prog:          prog,
		subclasses:    make(map[*ir.Class][]*ir.Class),
		implementors:  make(map[*ir.Class][]*ir.Class),
		subinterfaces: make(map[*ir.Class][]*ir.Class),
		dispatched:    make(map[dispatchKey]*ir.Method),
	}

	for _, c := range prog.Classes() {
		if c.Super != nil {
			h.subclasses[c.Super] = append(h.subclasses[c.Super], c)
		}
		for _, itf := range c.Interfaces {
			if c.Interface {
				h.subinterfaces[itf] = append(h.subinterfaces[itf], c)
			} else {
				h.implementors[itf] = append(h.implementors[itf], c)
			}
		}
	}

	return h
}

func (h *Hierarchy) DirectSubclassesOf(c *ir.Class) []*ir.Class    { return h.subclasses[c] }
func (h *Hierarchy) DirectImplementorsOf(c *ir.Class) []*ir.Class  { return h.implementors[c] }
func (h *Hierarchy) DirectSubinterfacesOf(c *ir.Class) []*ir.Class { return h.subinterfaces[c] }

// IsSubtype reports whether sub is sup, or extends or implements sup
// (transitively).
func (h *Hierarchy) IsSubtype(sub, sup *ir.Class) bool {
	seen := map[*ir.Class]bool{}
	var visit func(c *ir.Class) bool
	visit = func(c *ir.Class) bool {
		if c == nil || seen[c] {
			return false
		}
		seen[c] = true

		if c == sup {
			return true
		}
		for _, itf := range c.Interfaces {
			if visit(itf) {
				return true
			}
		}
		return visit(c.Super)
	}

	return visit(sub)
}

// Dispatch looks up the non-abstract method with the given subsignature,
// starting at c and climbing the superclass chain. Returns nil if no such
// method exists.
func (h *Hierarchy) Dispatch(c *ir.Class, sub ir.Subsignature) *ir.Method {
	key := dispatchKey{c, sub}
	if m, found := h.dispatched[key]; found {
		return m
	}

	var res *ir.Method
	for cur := c; cur != nil; cur = cur.Super {
		if m := cur.DeclaredMethod(sub); m != nil && !m.Abstract {
			res = m
			break
		}
	}

	h.dispatched[key] = res
	return res
}

// ResolveStatic resolves the target of a static call: the static method with
// the referenced subsignature declared on the referenced class or inherited
// from a superclass.
func (h *Hierarchy) ResolveStatic(ref ir.MethodRef) *ir.Method {
	for cur := ref.Class; cur != nil; cur = cur.Super {
		if m := cur.DeclaredMethod(ref.Sub); m != nil {
			if m.Static {
				return m
			}
			return nil
		}
	}
	return nil
}

// ResolveSpecial resolves a non-virtual instance call: the method declared on
// the referenced class, or the nearest superclass declaring it.
func (h *Hierarchy) ResolveSpecial(ref ir.MethodRef) *ir.Method {
	if m := h.Dispatch(ref.Class, ref.Sub); m != nil && !m.Static {
		return m
	}
	return nil
}

// ResolveVirtual dispatches a virtual call on a receiver object of the given
// runtime type. Array objects dispatch through the root class ir.ObjectClass
// when the program declares it, and have no methods otherwise.
func (h *Hierarchy) ResolveVirtual(runtime ir.Type, ref ir.MethodRef) *ir.Method {
	var c *ir.Class
	switch t := runtime.(type) {
	case *ir.Class:
		c = t
	case *ir.ArrayType:
		c = h.prog.Class(ir.ObjectClass)
	}
	if c == nil || c.Interface {
		return nil
	}

	if m := h.Dispatch(c, ref.Sub); m != nil && !m.Static {
		return m
	}
	return nil
}

// ResolveInterface dispatches an interface call from the runtime type of the
// receiver, like ResolveVirtual. The runtime class need not implement the
// referenced interface: casts are not modelled, so receivers of unrelated
// classes may reach the call site, and they dispatch to their own method.
func (h *Hierarchy) ResolveInterface(runtime ir.Type, ref ir.MethodRef) *ir.Method {
	return h.ResolveVirtual(runtime, ref)
}
