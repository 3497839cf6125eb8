package ir

import "fmt"

// Type is the static type of an abstract object. It is either a *Class or an
// *ArrayType. Types are canonical: two types are identical iff they are the
// same pointer.
type Type interface {
	fmt.Stringer
	aType()
}

// A Class is a class or interface declared by the analysed program.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Abstract   bool

	prog        *Program
	fields      map[string]*Field
	fieldOrder  []*Field
	methods     map[Subsignature]*Method
	methodOrder []*Method
}

func (c *Class) String() string { return c.Name }
func (*Class) aType()           {}

// Program returns the program declaring c.
func (c *Class) Program() *Program { return c.prog }

// AddField declares a field on c. Declaring the same field twice panics.
func (c *Class) AddField(name string, static bool) *Field {
	if _, found := c.fields[name]; found {
		panic(fmt.Errorf("field %s already declared on %s", name, c))
	}

	f := &Field{Class: c, Name: name, Static: static}
	c.fields[name] = f
	c.fieldOrder = append(c.fieldOrder, f)
	return f
}

// Field returns the field named name declared directly on c, or nil.
func (c *Class) Field(name string) *Field { return c.fields[name] }

// Fields returns the fields declared directly on c in declaration order.
func (c *Class) Fields() []*Field { return c.fieldOrder }

// DeclaredMethod returns the method with the given subsignature declared
// directly on c, or nil.
func (c *Class) DeclaredMethod(sub Subsignature) *Method { return c.methods[sub] }

// Methods returns the methods declared directly on c in declaration order.
func (c *Class) Methods() []*Method { return c.methodOrder }

// NewMethod declares an instance method on c. Each param is either a bare
// variable name or a "Type name" pair; untyped params have type Object.
func (c *Class) NewMethod(name string, params ...string) *Method {
	return c.newMethod(name, false, false, params)
}

// NewStaticMethod declares a static method on c.
func (c *Class) NewStaticMethod(name string, params ...string) *Method {
	return c.newMethod(name, true, false, params)
}

// NewAbstractMethod declares a method without a body. Abstract methods are
// never dispatch targets.
func (c *Class) NewAbstractMethod(name string, params ...string) *Method {
	return c.newMethod(name, false, true, params)
}

func (c *Class) newMethod(name string, static, abstract bool, params []string) *Method {
	m := &Method{
		Class:    c,
		Name:     name,
		Static:   static,
		Abstract: abstract,
		vars:     make(map[string]*Var),
	}

	types := make([]string, len(params))
	for i, p := range params {
		typ, pname := splitParam(p)
		types[i] = typ
		m.Params = append(m.Params, m.Var(pname))
	}
	m.ParamTypes = types
	m.sub = MakeSubsignature(name, types...)

	if !static {
		m.This = m.Var("this")
	}

	if _, found := c.methods[m.sub]; found {
		panic(fmt.Errorf("method %s already declared on %s", m.sub, c))
	}
	c.methods[m.sub] = m
	c.methodOrder = append(c.methodOrder, m)
	return m
}

// ObjectClass names the root class. Parameters declared without a type have
// type Object, and array objects inherit the methods of the class of this
// name when the program declares one.
const ObjectClass = "Object"

// ArrayType is the type of array objects with the given element type.
type ArrayType struct {
	Elem Type
}

func (a *ArrayType) String() string { return a.Elem.String() + "[]" }
func (*ArrayType) aType()           {}

// Field is a resolved field signature.
type Field struct {
	Class  *Class
	Name   string
	Static bool
}

func (f *Field) String() string {
	return fmt.Sprintf("<%s.%s>", f.Class, f.Name)
}
