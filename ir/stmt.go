package ir

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/andersen/internal/slices"
)

// Stmt is a statement in a method body. Only the statement shapes relevant to
// pointer analysis are represented.
type Stmt interface {
	// Method returns the method containing the statement.
	Method() *Method
	// Index returns the position of the statement in its method body.
	Index() int
	// Position returns a printable location, "Class.m()#index".
	Position() string
	fmt.Stringer
	aStmt()
}

type stmt struct {
	method *Method
	index  int
}

func (s *stmt) Method() *Method  { return s.method }
func (s *stmt) Index() int       { return s.index }
func (s *stmt) Position() string { return fmt.Sprintf("%v#%d", s.method, s.index) }
func (*stmt) aStmt()             {}

// CallKind classifies a call site by its resolution rule.
type CallKind int

const (
	Static CallKind = iota
	Special
	Virtual
	Interface
)

func (k CallKind) String() string {
	switch k {
	case Static:
		return "static"
	case Special:
		return "special"
	case Virtual:
		return "virtual"
	case Interface:
		return "interface"
	default:
		return fmt.Sprintf("CallKind(%d)", int(k))
	}
}

// New is an allocation "LHS = new Type".
type New struct {
	stmt
	LHS  *Var
	Type Type
}

func (s *New) String() string { return fmt.Sprintf("%s = new %v", name(s.LHS), s.Type) }

// Copy is "LHS = RHS".
type Copy struct {
	stmt
	LHS, RHS *Var
}

func (s *Copy) String() string { return fmt.Sprintf("%s = %s", name(s.LHS), name(s.RHS)) }

// LoadField is "LHS = Base.Field", or "LHS = T.Field" when Base is nil.
type LoadField struct {
	stmt
	LHS   *Var
	Base  *Var
	Field *Field
}

func (s *LoadField) IsStatic() bool { return s.Base == nil }

func (s *LoadField) String() string {
	return fmt.Sprintf("%s = %s", name(s.LHS), access(s.Base, s.Field))
}

// StoreField is "Base.Field = RHS", or "T.Field = RHS" when Base is nil.
type StoreField struct {
	stmt
	Base  *Var
	Field *Field
	RHS   *Var
}

func (s *StoreField) IsStatic() bool { return s.Base == nil }

func (s *StoreField) String() string {
	return fmt.Sprintf("%s = %s", access(s.Base, s.Field), name(s.RHS))
}

// LoadArray is "LHS = Base[*]". Indices are not distinguished.
type LoadArray struct {
	stmt
	LHS, Base *Var
}

func (s *LoadArray) String() string { return fmt.Sprintf("%s = %s[*]", name(s.LHS), name(s.Base)) }

// StoreArray is "Base[*] = RHS".
type StoreArray struct {
	stmt
	Base, RHS *Var
}

func (s *StoreArray) String() string { return fmt.Sprintf("%s[*] = %s", name(s.Base), name(s.RHS)) }

// Invoke is a call site. Recv is nil exactly for static calls; Result is nil
// when the returned value is discarded.
type Invoke struct {
	stmt
	Kind   CallKind
	Ref    MethodRef
	Recv   *Var
	Args   []*Var
	Result *Var
}

func (s *Invoke) String() string {
	var b strings.Builder
	if s.Result != nil {
		b.WriteString(s.Result.Name + " = ")
	}
	b.WriteString("invoke" + s.Kind.String() + " ")
	if s.Recv != nil {
		b.WriteString(s.Recv.Name + ".")
	}
	fmt.Fprintf(&b, "%v(%s)", s.Ref, strings.Join(slices.Map(s.Args, name), ", "))
	return b.String()
}

// Return is "return Value"; Value is nil for void returns.
type Return struct {
	stmt
	Value *Var
}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.Name
}

func name(v *Var) string {
	if v == nil {
		return "_"
	}
	return v.Name
}

func access(base *Var, f *Field) string {
	if base == nil {
		return f.String()
	}
	return base.Name + "." + f.String()
}
