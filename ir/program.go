// Package ir is the object-oriented intermediate representation consumed by
// the pointer analysis. A program is a set of classes whose methods hold flat,
// three-address statements over method-local variables.
//
// Programs are built with the constructors in this package, either directly
// (tests), from a description file (package irfile) or by lowering Go SSA
// (package gofront).
package ir

import (
	"errors"
	"fmt"
)

var (
	ErrNoEntry         = errors.New("program declares no entry method")
	ErrMultipleEntries = errors.New("program declares more than one entry method")
)

type Program struct {
	classes map[string]*Class
	order   []*Class
	arrays  map[Type]*ArrayType
	entries []*Method
}

func NewProgram() *Program {
	return &Program{
		classes: make(map[string]*Class),
		arrays:  make(map[Type]*ArrayType),
	}
}

// NewClass declares a class with an optional superclass and implemented
// interfaces. Declaring two classes with the same name panics.
func (p *Program) NewClass(name string, super *Class, ifaces ...*Class) *Class {
	if _, found := p.classes[name]; found {
		panic(fmt.Errorf("class %s already declared", name))
	}

	c := &Class{
		Name:       name,
		Super:      super,
		Interfaces: ifaces,
		prog:       p,
		fields:     make(map[string]*Field),
		methods:    make(map[Subsignature]*Method),
	}
	p.classes[name] = c
	p.order = append(p.order, c)
	return c
}

// NewInterface declares an interface extending the given interfaces.
func (p *Program) NewInterface(name string, supers ...*Class) *Class {
	c := p.NewClass(name, nil, supers...)
	c.Interface = true
	c.Abstract = true
	return c
}

// Class returns the class with the given name, or nil.
func (p *Program) Class(name string) *Class { return p.classes[name] }

// Classes returns all classes in declaration order.
func (p *Program) Classes() []*Class { return p.order }

// ArrayOf returns the canonical array type with element type elem.
func (p *Program) ArrayOf(elem Type) *ArrayType {
	if a, found := p.arrays[elem]; found {
		return a
	}
	a := &ArrayType{Elem: elem}
	p.arrays[elem] = a
	return a
}

// AddEntry declares m as an entry method of the program.
func (p *Program) AddEntry(m *Method) {
	p.entries = append(p.entries, m)
}

func (p *Program) Entries() []*Method { return p.entries }

// EntryMethod returns the unique entry method. Only single-entry programs can
// be analysed; any other number of entries is a configuration error.
func (p *Program) EntryMethod() (*Method, error) {
	switch len(p.entries) {
	case 0:
		return nil, ErrNoEntry
	case 1:
		return p.entries[0], nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrMultipleEntries, p.entries)
	}
}

// Methods returns every method of every class, in declaration order.
func (p *Program) Methods() []*Method {
	var res []*Method
	for _, c := range p.order {
		res = append(res, c.methodOrder...)
	}
	return res
}
