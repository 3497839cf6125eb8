package ir

import (
	"fmt"
	"strings"
)

// Subsignature identifies a method within a class: its name and parameter
// types, e.g. "foo(A,B)". Overriding methods share a subsignature.
type Subsignature string

func MakeSubsignature(name string, paramTypes ...string) Subsignature {
	return Subsignature(name + "(" + strings.Join(paramTypes, ",") + ")")
}

// Name returns the method name part of the subsignature.
func (s Subsignature) Name() string {
	name, _, _ := strings.Cut(string(s), "(")
	return name
}

// Arity returns the number of parameters in the subsignature.
func (s Subsignature) Arity() int {
	_, params, _ := strings.Cut(string(s), "(")
	params = strings.TrimSuffix(params, ")")
	if params == "" {
		return 0
	}
	return strings.Count(params, ",") + 1
}

// MethodRef is an unresolved reference to a method as it appears at a call
// site: the class named by the call and the callee subsignature.
type MethodRef struct {
	Class *Class
	Sub   Subsignature
}

func (r MethodRef) String() string {
	return fmt.Sprintf("<%s.%s>", r.Class, r.Sub)
}

// RefOf returns a reference naming m exactly.
func RefOf(m *Method) MethodRef {
	return MethodRef{Class: m.Class, Sub: m.sub}
}

// Method is a method of the analysed program together with its body.
type Method struct {
	Class      *Class
	Name       string
	Static     bool
	Abstract   bool
	This       *Var
	Params     []*Var
	ParamTypes []string

	sub      Subsignature
	stmts    []Stmt
	returns  []*Var
	vars     map[string]*Var
	varOrder []*Var
}

func (m *Method) String() string { return m.Class.Name + "." + string(m.sub) }

func (m *Method) Subsignature() Subsignature { return m.sub }

// Stmts returns the body of m in insertion order.
func (m *Method) Stmts() []Stmt { return m.stmts }

// ReturnVars returns the variables returned by return statements of m, without
// duplicates.
func (m *Method) ReturnVars() []*Var { return m.returns }

// Vars returns every variable of m in creation order.
func (m *Method) Vars() []*Var { return m.varOrder }

// Var returns the variable of m with the given name, creating it if absent.
func (m *Method) Var(name string) *Var {
	if v, found := m.vars[name]; found {
		return v
	}

	v := &Var{Name: name, method: m}
	m.vars[name] = v
	m.varOrder = append(m.varOrder, v)
	return v
}

// LookupVar returns the variable with the given name, or nil.
func (m *Method) LookupVar(name string) *Var { return m.vars[name] }

// optVar is like Var, but maps the empty name to nil.
func (m *Method) optVar(name string) *Var {
	if name == "" {
		return nil
	}
	return m.Var(name)
}

func (m *Method) add(s Stmt) {
	if m.Abstract {
		panic(fmt.Errorf("cannot add statement %v to abstract method %v", s, m))
	}
	m.stmts = append(m.stmts, s)
}

func (m *Method) base() stmt {
	return stmt{method: m, index: len(m.stmts)}
}

// New appends "lhs = new t".
func (m *Method) New(lhs string, t Type) *New {
	s := &New{stmt: m.base(), LHS: m.optVar(lhs), Type: t}
	m.add(s)
	return s
}

// Copy appends "lhs = rhs".
func (m *Method) Copy(lhs, rhs string) *Copy {
	s := &Copy{stmt: m.base(), LHS: m.optVar(lhs), RHS: m.optVar(rhs)}
	m.add(s)
	return s
}

// LoadField appends "lhs = base.f" for an instance field f.
func (m *Method) LoadField(lhs, base string, f *Field) *LoadField {
	if f.Static {
		panic(fmt.Errorf("instance load of static field %v", f))
	}

	s := &LoadField{stmt: m.base(), LHS: m.optVar(lhs), Base: m.Var(base), Field: f}
	s.Base.loadFields = append(s.Base.loadFields, s)
	m.add(s)
	return s
}

// LoadStatic appends "lhs = T.f" for a static field f.
func (m *Method) LoadStatic(lhs string, f *Field) *LoadField {
	if !f.Static {
		panic(fmt.Errorf("static load of instance field %v", f))
	}

	s := &LoadField{stmt: m.base(), LHS: m.optVar(lhs), Field: f}
	m.add(s)
	return s
}

// StoreField appends "base.f = rhs" for an instance field f.
func (m *Method) StoreField(base string, f *Field, rhs string) *StoreField {
	if f.Static {
		panic(fmt.Errorf("instance store to static field %v", f))
	}

	s := &StoreField{stmt: m.base(), Base: m.Var(base), Field: f, RHS: m.optVar(rhs)}
	s.Base.storeFields = append(s.Base.storeFields, s)
	m.add(s)
	return s
}

// StoreStatic appends "T.f = rhs" for a static field f.
func (m *Method) StoreStatic(f *Field, rhs string) *StoreField {
	if !f.Static {
		panic(fmt.Errorf("static store to instance field %v", f))
	}

	s := &StoreField{stmt: m.base(), Field: f, RHS: m.optVar(rhs)}
	m.add(s)
	return s
}

// LoadArray appends "lhs = base[*]".
func (m *Method) LoadArray(lhs, base string) *LoadArray {
	s := &LoadArray{stmt: m.base(), LHS: m.optVar(lhs), Base: m.Var(base)}
	s.Base.loadArrays = append(s.Base.loadArrays, s)
	m.add(s)
	return s
}

// StoreArray appends "base[*] = rhs".
func (m *Method) StoreArray(base, rhs string) *StoreArray {
	s := &StoreArray{stmt: m.base(), Base: m.Var(base), RHS: m.optVar(rhs)}
	s.Base.storeArrays = append(s.Base.storeArrays, s)
	m.add(s)
	return s
}

// InvokeStatic appends "result = T.m(args)". An empty result or argument name
// denotes an absent value.
func (m *Method) InvokeStatic(result string, ref MethodRef, args ...string) *Invoke {
	return m.invoke(Static, result, "", ref, args)
}

// InvokeSpecial appends a non-virtual instance call (constructors, private
// and super calls) on recv.
func (m *Method) InvokeSpecial(result, recv string, ref MethodRef, args ...string) *Invoke {
	return m.invoke(Special, result, recv, ref, args)
}

// InvokeVirtual appends a dynamically dispatched call on recv.
func (m *Method) InvokeVirtual(result, recv string, ref MethodRef, args ...string) *Invoke {
	return m.invoke(Virtual, result, recv, ref, args)
}

// InvokeInterface appends an interface call on recv.
func (m *Method) InvokeInterface(result, recv string, ref MethodRef, args ...string) *Invoke {
	return m.invoke(Interface, result, recv, ref, args)
}

func (m *Method) invoke(kind CallKind, result, recv string, ref MethodRef, args []string) *Invoke {
	if (kind == Static) != (recv == "") {
		panic(fmt.Errorf("%s call to %v with receiver %q", kind, ref, recv))
	}

	s := &Invoke{
		stmt:   m.base(),
		Kind:   kind,
		Ref:    ref,
		Result: m.optVar(result),
	}
	for _, a := range args {
		s.Args = append(s.Args, m.optVar(a))
	}
	if recv != "" {
		s.Recv = m.Var(recv)
		s.Recv.invokes = append(s.Recv.invokes, s)
	}

	m.add(s)
	return s
}

// Return appends "return v"; an empty name denotes a return without value.
func (m *Method) Return(v string) *Return {
	s := &Return{stmt: m.base(), Value: m.optVar(v)}
	if s.Value != nil {
		found := false
		for _, r := range m.returns {
			found = found || r == s.Value
		}
		if !found {
			m.returns = append(m.returns, s.Value)
		}
	}
	m.add(s)
	return s
}

// Var is a method-local variable. Besides its name it records back-references
// to the statements that use it as the base of a field or array access or as
// the receiver of an instance call.
type Var struct {
	Name   string
	method *Method

	storeFields []*StoreField
	loadFields  []*LoadField
	storeArrays []*StoreArray
	loadArrays  []*LoadArray
	invokes     []*Invoke
}

func (v *Var) String() string { return fmt.Sprintf("%v/%s", v.method, v.Name) }

// Method returns the method declaring v.
func (v *Var) Method() *Method { return v.method }

// StoreFields returns the statements "v.f = y".
func (v *Var) StoreFields() []*StoreField { return v.storeFields }

// LoadFields returns the statements "y = v.f".
func (v *Var) LoadFields() []*LoadField { return v.loadFields }

// StoreArrays returns the statements "v[*] = y".
func (v *Var) StoreArrays() []*StoreArray { return v.storeArrays }

// LoadArrays returns the statements "y = v[*]".
func (v *Var) LoadArrays() []*LoadArray { return v.loadArrays }

// Invokes returns the instance calls with v as receiver.
func (v *Var) Invokes() []*Invoke { return v.invokes }

func splitParam(p string) (typ, name string) {
	p = strings.TrimSpace(p)
	if i := strings.LastIndexByte(p, ' '); i >= 0 {
		return strings.TrimSpace(p[:i]), p[i+1:]
	}
	return ObjectClass, p
}
