// Package gofront lowers Go programs in SSA form into the ir representation
// so they can be analysed by package andersen.
//
// Named types become classes whose instance methods are the entries of the
// pointer method set, interfaces become interface classes, and package
// functions become static methods of a class per package. Struct fields map
// to instance fields, slices, arrays, maps and channels to array objects, and
// package-level variables to static fields. Loads and stores through plain
// pointers use the pseudo-field "*" of the class <mem>.
//
// A synthetic class <root> declares the single entry method main, which calls
// the init and main functions of every main package.
//
// Dynamic calls of function values and reflection are not modelled.
package gofront

import (
	"fmt"
	"go/types"
	"strconv"

	"github.com/BarrensZeppelin/andersen/ir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
	"golang.org/x/tools/go/types/typeutil"
)

const (
	rootClass      = "<root>"
	memClass       = "<mem>"
	closureClass   = "<closures>"
	syntheticClass = "<synthetic>"
	derefField     = "*"
)

// Program is the result of lowering an SSA program.
type Program struct {
	IR *ir.Program
	// Root is the synthetic entry method.
	Root *ir.Method

	Methods map[*ssa.Function]*ir.Method
	Funcs   map[*ir.Method]*ssa.Function
	// Allocs maps allocation statements back to the SSA value they model.
	Allocs map[*ir.New]ssa.Value
	// Stubs are the empty methods declared for interface methods missing
	// from boxed classes.
	Stubs []*ir.Method

	vars map[ssa.Value]*ir.Var
}

// Var returns the variable modelling v, or nil when v is not pointer-like or
// belongs to a function that was not lowered.
func (p *Program) Var(v ssa.Value) *ir.Var { return p.vars[v] }

type lowering struct {
	ssa  *ssa.Program
	prog *Program
	ir   *ir.Program

	classes    typeutil.Map // types.Type -> *ir.Class
	concrete   []types.Type
	interfaces []*types.Interface
	ifaceClass []*ir.Class
	// Classes of objects converted to interface values, in conversion order.
	boxed   []*ir.Class
	isBoxed map[*ir.Class]bool

	pkgClasses map[*ssa.Package]*ir.Class
	globals    map[*ssa.Global]*ir.Field
	freeVars   map[*ssa.FreeVar]*ir.Field
	deref      *ir.Field

	// Declared functions whose bodies are still to be lowered.
	queue []*ssa.Function
	// Field and element addresses, resolved before bodies are lowered.
	addrs map[ssa.Value]address
}

// address describes the location a pointer-typed value refers to.
type address struct {
	base  ssa.Value
	field *ir.Field // nil for array elements
}

// Lower lowers every function of prog. The entry method calls the init and
// main functions of mains.
func Lower(prog *ssa.Program, mains []*ssa.Package) (*Program, error) {
	if len(mains) == 0 {
		return nil, fmt.Errorf("no main packages")
	}

	l := &lowering{
		ssa: prog,
		prog: &Program{
			IR:      ir.NewProgram(),
			Methods: make(map[*ssa.Function]*ir.Method),
			Funcs:   make(map[*ir.Method]*ssa.Function),
			Allocs:  make(map[*ir.New]ssa.Value),
			vars:    make(map[ssa.Value]*ir.Var),
		},
		pkgClasses: make(map[*ssa.Package]*ir.Class),
		globals:    make(map[*ssa.Global]*ir.Field),
		freeVars:   make(map[*ssa.FreeVar]*ir.Field),
		addrs:      make(map[ssa.Value]address),
		isBoxed:    make(map[*ir.Class]bool),
	}
	l.ir = l.prog.IR
	l.classes.SetHasher(typeutil.MakeHasher())
	l.deref = l.ir.NewClass(memClass, nil).AddField(derefField, false)

	funcs := maps.Keys(ssautil.AllFunctions(prog))
	slices.SortFunc(funcs, func(a, b *ssa.Function) bool { return a.String() < b.String() })
	for _, fn := range funcs {
		if fn.TypeParams().Len() > 0 && fn.TypeArgs() == nil {
			continue
		}
		l.method(fn)
	}

	root := l.ir.NewClass(rootClass, nil).NewStaticMethod("main")
	for _, pkg := range mains {
		for _, name := range [...]string{"init", "main"} {
			if fn := pkg.Func(name); fn != nil {
				root.InvokeStatic("", ir.RefOf(l.method(fn)))
			}
		}
	}
	l.ir.AddEntry(root)
	l.prog.Root = root

	for len(l.queue) > 0 {
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.lowerBody(fn)
	}

	l.linkInterfaces()
	return l.prog, nil
}

func itoa(i int) string { return strconv.Itoa(i) }

// newClass declares a class, disambiguating names of distinct types that
// print identically.
func (l *lowering) newClass(name string, super *ir.Class) *ir.Class {
	base := name
	for i := 1; l.ir.Class(name) != nil; i++ {
		name = base + "#" + itoa(i)
	}
	return l.ir.NewClass(name, super)
}

// classOf returns the class of objects of type t. Classes of named types
// declare the pointer method set of the type as instance methods.
func (l *lowering) classOf(t types.Type) *ir.Class {
	if c, _ := l.classes.At(t).(*ir.Class); c != nil {
		return c
	}

	if itf, ok := t.Underlying().(*types.Interface); ok {
		return l.interfaceClass(t, itf)
	}

	c := l.newClass(types.TypeString(t, nil), nil)
	l.classes.Set(t, c)
	l.concrete = append(l.concrete, t)

	if n, ok := t.(*types.Named); ok && !isGenericDecl(n) {
		mset := l.ssa.MethodSets.MethodSet(types.NewPointer(t))
		for i := 0; i < mset.Len(); i++ {
			fn := l.ssa.MethodValue(mset.At(i))
			if fn == nil || l.prog.Methods[fn] != nil {
				continue
			}
			l.declare(fn, c, mset.At(i).Obj().Id(), false)
		}
	}
	return c
}

func (l *lowering) interfaceClass(t types.Type, itf *types.Interface) *ir.Class {
	name := types.TypeString(t, nil)
	base := name
	for i := 1; l.ir.Class(name) != nil; i++ {
		name = base + "#" + itoa(i)
	}

	c := l.ir.NewInterface(name)
	l.classes.Set(t, c)
	for i := 0; i < itf.NumMethods(); i++ {
		m := itf.Method(i)
		arity := m.Type().(*types.Signature).Params().Len()
		c.NewAbstractMethod(m.Id(), placeholders(arity)...)
	}

	l.interfaces = append(l.interfaces, itf)
	l.ifaceClass = append(l.ifaceClass, c)
	return c
}

// typeOf returns the ir type of objects allocated with Go type t.
func (l *lowering) typeOf(t types.Type) ir.Type {
	switch u := t.Underlying().(type) {
	case *types.Slice:
		return l.ir.ArrayOf(l.classOf(u.Elem()))
	case *types.Array:
		return l.ir.ArrayOf(l.classOf(u.Elem()))
	case *types.Map:
		return l.ir.ArrayOf(l.classOf(u.Elem()))
	case *types.Chan:
		return l.ir.ArrayOf(l.classOf(u.Elem()))
	default:
		return l.classOf(t)
	}
}

func (l *lowering) pkgClass(pkg *ssa.Package) *ir.Class {
	if c, found := l.pkgClasses[pkg]; found {
		return c
	}
	name := syntheticClass
	if pkg != nil {
		name = pkg.Pkg.Path()
	}
	c := l.ir.Class(name)
	if c == nil {
		c = l.newClass(name, nil)
	}
	l.pkgClasses[pkg] = c
	return c
}

func placeholders(n int) []string {
	res := make([]string, n)
	for i := range res {
		res[i] = "p" + itoa(i)
	}
	return res
}

func sub(name string, arity int) ir.Subsignature {
	params := make([]string, arity)
	for i := range params {
		params[i] = ir.ObjectClass
	}
	return ir.MakeSubsignature(name, params...)
}

// method returns the ir method of fn, declaring it if necessary.
func (l *lowering) method(fn *ssa.Function) *ir.Method {
	if m := l.prog.Methods[fn]; m != nil {
		return m
	}

	if recv := fn.Signature.Recv(); recv != nil {
		c := l.classOf(deref(recv.Type()))
		if m := l.prog.Methods[fn]; m != nil {
			// Declared as part of the method set.
			return m
		}
		return l.declare(fn, c, fn.Name()+"$impl", false)
	}

	name := fn.Name()
	if fn.Pkg == nil {
		name = fn.String()
	}
	return l.declare(fn, l.pkgClass(fn.Pkg), name, true)
}

func (l *lowering) declare(fn *ssa.Function, c *ir.Class, name string, static bool) *ir.Method {
	arity := fn.Signature.Params().Len()
	base := name
	for i := 1; c.DeclaredMethod(sub(name, arity)) != nil; i++ {
		name = base + "#" + itoa(i)
	}

	var m *ir.Method
	if static {
		m = c.NewStaticMethod(name, placeholders(arity)...)
	} else {
		m = c.NewMethod(name, placeholders(arity)...)
	}

	l.prog.Methods[fn] = m
	l.prog.Funcs[m] = fn
	l.queue = append(l.queue, fn)
	return m
}

// box records that objects of class c may flow into interface values.
func (l *lowering) box(c *ir.Class) {
	if !l.isBoxed[c] {
		l.isBoxed[c] = true
		l.boxed = append(l.boxed, c)
	}
}

// linkInterfaces records which classes implement which interfaces.
//
// Type assertions are not modelled, so an interface value may hold objects of
// any boxed class. Interface methods a boxed class lacks are declared on it as
// empty stubs: a call that would panic at run time contributes no points-to
// facts.
func (l *lowering) linkInterfaces() {
	for _, t := range l.concrete {
		c := l.classes.At(t).(*ir.Class)
		ptr := types.NewPointer(t)
		for i, itf := range l.interfaces {
			if types.Implements(ptr, itf) {
				c.Interfaces = append(c.Interfaces, l.ifaceClass[i])
			}
		}
	}

	for _, c := range l.boxed {
		for _, itf := range l.ifaceClass {
			for _, am := range itf.Methods() {
				if c.DeclaredMethod(am.Subsignature()) == nil {
					m := c.NewMethod(am.Name, placeholders(len(am.Params))...)
					l.prog.Stubs = append(l.prog.Stubs, m)
				}
			}
		}
	}
}
