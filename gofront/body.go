package gofront

import (
	"go/token"
	"go/types"

	"github.com/BarrensZeppelin/andersen/ir"
	"golang.org/x/tools/go/ssa"
)

// fnLowering lowers the body of one function.
type fnLowering struct {
	*lowering
	fn    *ssa.Function
	m     *ir.Method
	names map[ssa.Value]string
	temps int
}

func (l *lowering) lowerBody(fn *ssa.Function) {
	f := &fnLowering{
		lowering: l,
		fn:       fn,
		m:        l.prog.Methods[fn],
		names:    make(map[ssa.Value]string),
	}

	params := fn.Params
	if !f.m.Static && len(params) > 0 {
		f.bind(params[0], f.m.This.Name)
		params = params[1:]
	}
	for i, p := range params {
		if i < len(f.m.Params) {
			f.bind(p, f.m.Params[i].Name)
		}
	}

	for _, fv := range fn.FreeVars {
		if PointerLike(fv.Type()) {
			name := "fv$" + fv.Name()
			f.bind(fv, name)
			f.m.LoadStatic(name, l.freeVarField(fv))
		}
	}

	// Addresses are resolved first: a block may use a value defined in a
	// block with a higher index.
	for _, b := range fn.Blocks {
		for _, insn := range b.Instrs {
			switch i := insn.(type) {
			case *ssa.FieldAddr:
				t := deref(i.X.Type())
				if st, ok := t.Underlying().(*types.Struct); ok {
					l.addrs[i] = address{base: i.X, field: l.field(t, st, i.Field)}
				}
			case *ssa.IndexAddr:
				l.addrs[i] = address{base: i.X}
			}
		}
	}

	for _, b := range fn.Blocks {
		for _, insn := range b.Instrs {
			f.instr(insn)
		}
	}
}

func (f *fnLowering) bind(v ssa.Value, name string) {
	if !PointerLike(v.Type()) {
		return
	}
	f.names[v] = name
	f.prog.vars[v] = f.m.Var(name)
}

// operand returns the name of the variable holding v, or "" when v holds no
// references or is not modelled.
func (f *fnLowering) operand(v ssa.Value) string {
	if v == nil || !PointerLike(v.Type()) {
		return ""
	}
	if name, found := f.names[v]; found {
		return name
	}

	switch v.(type) {
	case *ssa.Const, *ssa.Global, *ssa.Function, *ssa.Builtin,
		*ssa.Parameter, *ssa.FreeVar:
		return ""
	}

	f.bind(v, v.Name())
	return v.Name()
}

func (f *fnLowering) operands(vs []ssa.Value) []string {
	res := make([]string, len(vs))
	for i, v := range vs {
		res[i] = f.operand(v)
	}
	return res
}

func (f *fnLowering) temp() string {
	f.temps++
	return "$tmp" + itoa(f.temps)
}

func (f *fnLowering) copy(lhs, rhs string) {
	if lhs != "" && rhs != "" {
		f.m.Copy(lhs, rhs)
	}
}

func (f *fnLowering) alloc(lhs string, t ir.Type, v ssa.Value) {
	if lhs != "" {
		f.prog.Allocs[f.m.New(lhs, t)] = v
	}
}

func (f *fnLowering) instr(insn ssa.Instruction) {
	switch i := insn.(type) {
	case *ssa.Alloc:
		f.alloc(f.operand(i), f.typeOf(deref(i.Type())), i)

	case *ssa.MakeSlice:
		f.alloc(f.operand(i), f.typeOf(i.Type()), i)
	case *ssa.MakeMap:
		f.alloc(f.operand(i), f.typeOf(i.Type()), i)
	case *ssa.MakeChan:
		f.alloc(f.operand(i), f.typeOf(i.Type()), i)

	case *ssa.MakeInterface:
		switch t := i.X.Type().Underlying().(type) {
		case *types.Interface:
			f.copy(f.operand(i), f.operand(i.X))
		case *types.Pointer:
			if c, ok := f.typeOf(t.Elem()).(*ir.Class); ok && !c.Interface {
				f.box(c)
			}
			f.copy(f.operand(i), f.operand(i.X))
		default:
			// The value is boxed into a fresh object of its dynamic type.
			c := f.classOf(i.X.Type())
			f.box(c)
			f.alloc(f.operand(i), c, i)
		}

	case *ssa.Phi:
		lhs := f.operand(i)
		for _, e := range i.Edges {
			f.copy(lhs, f.operand(e))
		}

	case *ssa.ChangeType:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.ChangeInterface:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.Convert:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.SliceToArrayPointer:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.TypeAssert:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.Slice:
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.Extract:
		f.copy(f.operand(i), f.operand(i.Tuple))

	case *ssa.FieldAddr:
		// Escaping field addresses alias the enclosing object.
		f.copy(f.operand(i), f.operand(i.X))
	case *ssa.IndexAddr:
		f.copy(f.operand(i), f.operand(i.X))

	case *ssa.UnOp:
		switch i.Op {
		case token.MUL:
			f.load(f.operand(i), i.X)
		case token.ARROW:
			f.loadArray(f.operand(i), i.X)
		}

	case *ssa.Lookup:
		if _, ok := i.X.Type().Underlying().(*types.Map); ok {
			f.loadArray(f.operand(i), i.X)
		}

	case *ssa.Next:
		if rng, ok := i.Iter.(*ssa.Range); ok && !i.IsString {
			f.loadArray(f.operand(i), rng.X)
		}

	case *ssa.Select:
		lhs := f.operand(i)
		for _, st := range i.States {
			if st.Dir == types.RecvOnly {
				f.loadArray(lhs, st.Chan)
			} else {
				f.storeArray(st.Chan, f.operand(st.Send))
			}
		}

	case *ssa.Store:
		f.store(i.Addr, f.operand(i.Val))
	case *ssa.MapUpdate:
		f.storeArray(i.Map, f.operand(i.Value))
	case *ssa.Send:
		f.storeArray(i.Chan, f.operand(i.X))

	case *ssa.MakeClosure:
		fn := i.Fn.(*ssa.Function)
		f.method(fn)
		for idx, b := range i.Bindings {
			if v := f.operand(b); v != "" {
				f.m.StoreStatic(f.freeVarField(fn.FreeVars[idx]), v)
			}
		}

	case *ssa.Return:
		for _, r := range i.Results {
			if v := f.operand(r); v != "" {
				f.m.Return(v)
			}
		}

	case ssa.CallInstruction:
		f.call(i)
	}
}

func (f *fnLowering) load(lhs string, addr ssa.Value) {
	if lhs == "" {
		return
	}

	if g, ok := addr.(*ssa.Global); ok {
		f.m.LoadStatic(lhs, f.globalField(g))
		return
	}

	if a, found := f.addrs[addr]; found {
		base := f.operand(a.base)
		switch {
		case base == "":
		case a.field != nil:
			f.m.LoadField(lhs, base, a.field)
		default:
			f.m.LoadArray(lhs, base)
		}
		return
	}

	if base := f.operand(addr); base != "" {
		f.m.LoadField(lhs, base, f.deref)
	}
}

func (f *fnLowering) store(addr ssa.Value, val string) {
	if val == "" {
		return
	}

	if g, ok := addr.(*ssa.Global); ok {
		f.m.StoreStatic(f.globalField(g), val)
		return
	}

	if a, found := f.addrs[addr]; found {
		base := f.operand(a.base)
		switch {
		case base == "":
		case a.field != nil:
			f.m.StoreField(base, a.field, val)
		default:
			f.m.StoreArray(base, val)
		}
		return
	}

	if base := f.operand(addr); base != "" {
		f.m.StoreField(base, f.deref, val)
	}
}

func (f *fnLowering) loadArray(lhs string, arr ssa.Value) {
	if base := f.operand(arr); lhs != "" && base != "" {
		f.m.LoadArray(lhs, base)
	}
}

func (f *fnLowering) storeArray(arr ssa.Value, val string) {
	if base := f.operand(arr); val != "" && base != "" {
		f.m.StoreArray(base, val)
	}
}

func (f *fnLowering) call(call ssa.CallInstruction) {
	common := call.Common()

	res := ""
	if v := call.Value(); v != nil {
		res = f.operand(v)
	}

	if common.IsInvoke() {
		recv := f.operand(common.Value)
		if recv == "" {
			return
		}
		ref := ir.MethodRef{
			Class: f.classOf(common.Value.Type()),
			Sub:   sub(common.Method.Id(), len(common.Args)),
		}
		f.m.InvokeInterface(res, recv, ref, f.operands(common.Args)...)
		return
	}

	if b, ok := common.Value.(*ssa.Builtin); ok {
		f.builtin(res, call.Value(), b, common.Args)
		return
	}

	callee := common.StaticCallee()
	if callee == nil || (callee.TypeParams().Len() > 0 && callee.TypeArgs() == nil) {
		// Dynamic calls of function values are not modelled.
		return
	}

	m := f.method(callee)
	if m.Static {
		f.m.InvokeStatic(res, ir.RefOf(m), f.operands(common.Args)...)
		return
	}

	recv := f.operand(common.Args[0])
	if recv == "" {
		// Value receivers are copies; box them so the callee is bound.
		recv = f.temp()
		f.alloc(recv, f.classOf(deref(common.Args[0].Type())), common.Args[0])
	}
	f.m.InvokeSpecial(res, recv, ir.RefOf(m), f.operands(common.Args[1:])...)
}

func (f *fnLowering) builtin(res string, v ssa.Value, b *ssa.Builtin, args []ssa.Value) {
	switch b.Name() {
	case "append":
		if res == "" {
			return
		}
		// append may reallocate the backing array.
		f.alloc(res, f.typeOf(args[0].Type()), v)
		f.copy(res, f.operand(args[0]))
		if !PointerLike(elemType(args[0].Type())) {
			return
		}
		for _, src := range args {
			f.copyElements(res, src)
		}

	case "copy":
		if dst := f.operand(args[0]); dst != "" && PointerLike(elemType(args[0].Type())) {
			f.copyElements(dst, args[1])
		}

	case "ssa:wrapnilchk":
		f.copy(res, f.operand(args[0]))
	}
}

// copyElements stores the elements of src into dst.
func (f *fnLowering) copyElements(dst string, src ssa.Value) {
	s := f.operand(src)
	if s == "" {
		return
	}
	tmp := f.temp()
	f.m.LoadArray(tmp, s)
	f.m.StoreArray(dst, tmp)
}

func elemType(t types.Type) types.Type {
	if s, ok := t.Underlying().(*types.Slice); ok {
		return s.Elem()
	}
	return types.Typ[types.Invalid]
}

func (l *lowering) field(t types.Type, st *types.Struct, idx int) *ir.Field {
	c := l.classOf(t)
	name := fieldName(st, idx)
	if f := c.Field(name); f != nil {
		return f
	}
	return c.AddField(name, false)
}

func (l *lowering) globalField(g *ssa.Global) *ir.Field {
	if f, found := l.globals[g]; found {
		return f
	}
	f := l.pkgClass(g.Pkg).AddField(g.Name(), true)
	l.globals[g] = f
	return f
}

func (l *lowering) freeVarField(fv *ssa.FreeVar) *ir.Field {
	if f, found := l.freeVars[fv]; found {
		return f
	}

	c := l.ir.Class(closureClass)
	if c == nil {
		c = l.ir.NewClass(closureClass, nil)
	}
	name := fv.Parent().String() + "." + fv.Name()
	base := name
	for i := 1; c.Field(name) != nil; i++ {
		name = base + "#" + itoa(i)
	}

	f := c.AddField(name, true)
	l.freeVars[fv] = f
	return f
}
