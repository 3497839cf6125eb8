// Package irfile reads ir programs from YAML description files.
//
// A description lists classes with their fields and methods. Method bodies
// are sequences of statements in a compact textual syntax:
//
//	x = new T          x = new T[]        x = y
//	x = y.f            x = y.<T.f>        y.f = x        y.<T.f> = x
//	x = <T.f>          <T.f> = x          x = a[*]       a[*] = x
//	return             return x
//	[x =] invokestatic <T.m>(args)
//	[x =] invokespecial r.<T.m>(args)
//	[x =] invokevirtual r.<T.m>(args)
//	[x =] invokeinterface r.<I.m>(args)
//
// The name null denotes an absent value.
package irfile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/BarrensZeppelin/andersen/ir"
	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/yaml.v3"
)

type fileSpec struct {
	Entries []string    `yaml:"entries"`
	Classes []classSpec `yaml:"classes"`
}

type classSpec struct {
	Name         string       `yaml:"name"`
	Super        string       `yaml:"super"`
	Interfaces   []string     `yaml:"interfaces"`
	Interface    bool         `yaml:"interface"`
	Abstract     bool         `yaml:"abstract"`
	Fields       []string     `yaml:"fields"`
	StaticFields []string     `yaml:"static-fields"`
	Methods      []methodSpec `yaml:"methods"`
}

type methodSpec struct {
	Name     string      `yaml:"name"`
	Params   []string    `yaml:"params"`
	Static   bool        `yaml:"static"`
	Abstract bool        `yaml:"abstract"`
	Body     []yaml.Node `yaml:"body"`
}

// Error reports a malformed description.
type Error struct {
	File string
	Line int
	// Context names the class, method or statement that is malformed.
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads and parses the description at path in fs.
func Load(fs billy.Filesystem, path string) (*ir.Program, error) {
	data, err := readFile(fs, path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

func readFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse builds a program from the description in data. The name is only used
// in error messages.
func Parse(name string, data []byte) (*ir.Program, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	b := &builder{
		file:  name,
		prog:  ir.NewProgram(),
		specs: make(map[string]*classSpec),
	}
	if err := b.build(&spec); err != nil {
		return nil, err
	}
	return b.prog, nil
}

type builder struct {
	file  string
	prog  *ir.Program
	specs map[string]*classSpec
	// Classes whose declaration is in progress, for cycle detection.
	declaring map[string]bool
}

func (b *builder) errorf(line int, context string, format string, args ...any) error {
	return &Error{File: b.file, Line: line, Context: context, Err: fmt.Errorf(format, args...)}
}

func (b *builder) build(spec *fileSpec) error {
	for i := range spec.Classes {
		cs := &spec.Classes[i]
		if cs.Name == "" {
			return b.errorf(0, fmt.Sprintf("class #%d", i), "missing name")
		}
		if _, found := b.specs[cs.Name]; found {
			return b.errorf(0, cs.Name, "class declared twice")
		}
		b.specs[cs.Name] = cs
	}

	b.declaring = make(map[string]bool)
	for i := range spec.Classes {
		if _, err := b.declare(spec.Classes[i].Name); err != nil {
			return err
		}
	}

	// Members are declared before any body is parsed, so bodies may refer to
	// methods and fields of classes declared later in the file.
	type pending struct {
		m    *ir.Method
		spec *methodSpec
	}
	var bodies []pending

	for i := range spec.Classes {
		cs := &spec.Classes[i]
		c := b.prog.Class(cs.Name)
		for _, f := range cs.Fields {
			if c.Field(f) != nil {
				return b.errorf(0, cs.Name, "field %s declared twice", f)
			}
			c.AddField(f, false)
		}
		for _, f := range cs.StaticFields {
			if c.Field(f) != nil {
				return b.errorf(0, cs.Name, "field %s declared twice", f)
			}
			c.AddField(f, true)
		}

		for j := range cs.Methods {
			ms := &cs.Methods[j]
			m, err := b.declareMethod(c, ms)
			if err != nil {
				return err
			}
			bodies = append(bodies, pending{m, ms})
		}
	}

	for _, p := range bodies {
		if err := b.parseBody(p.m, p.spec.Body); err != nil {
			return err
		}
	}

	for _, e := range spec.Entries {
		m, err := b.lookupEntry(e)
		if err != nil {
			return err
		}
		b.prog.AddEntry(m)
	}

	return nil
}

// declare declares the named class after its superclass and interfaces.
func (b *builder) declare(name string) (*ir.Class, error) {
	if c := b.prog.Class(name); c != nil {
		return c, nil
	}

	cs, found := b.specs[name]
	if !found {
		return nil, b.errorf(0, name, "undeclared class")
	}
	if b.declaring[name] {
		return nil, b.errorf(0, name, "cyclic inheritance")
	}
	b.declaring[name] = true
	defer delete(b.declaring, name)

	var super *ir.Class
	if cs.Super != "" {
		var err error
		if super, err = b.declare(cs.Super); err != nil {
			return nil, err
		}
		if super.Interface {
			return nil, b.errorf(0, name, "cannot extend interface %s", super)
		}
	}

	var ifaces []*ir.Class
	for _, in := range cs.Interfaces {
		itf, err := b.declare(in)
		if err != nil {
			return nil, err
		}
		if !itf.Interface {
			return nil, b.errorf(0, name, "%s is not an interface", itf)
		}
		ifaces = append(ifaces, itf)
	}

	var c *ir.Class
	if cs.Interface {
		if super != nil {
			return nil, b.errorf(0, name, "interfaces cannot have a superclass")
		}
		c = b.prog.NewInterface(name, ifaces...)
	} else {
		c = b.prog.NewClass(name, super, ifaces...)
		c.Abstract = cs.Abstract
	}
	return c, nil
}

func (b *builder) declareMethod(c *ir.Class, ms *methodSpec) (*ir.Method, error) {
	context := c.Name + "." + ms.Name
	switch {
	case ms.Name == "":
		return nil, b.errorf(0, c.Name, "method without name")
	case ms.Static && ms.Abstract:
		return nil, b.errorf(0, context, "static methods cannot be abstract")
	}

	var types []string
	for _, p := range ms.Params {
		switch f := strings.Fields(p); len(f) {
		case 1:
			types = append(types, ir.ObjectClass)
		case 2:
			types = append(types, f[0])
		default:
			return nil, b.errorf(0, context, "malformed parameter %q", p)
		}
	}
	if c.DeclaredMethod(ir.MakeSubsignature(ms.Name, types...)) != nil {
		return nil, b.errorf(0, context, "method declared twice")
	}

	abstract := ms.Abstract || c.Interface
	switch {
	case ms.Static:
		return c.NewStaticMethod(ms.Name, ms.Params...), nil
	case abstract:
		return c.NewAbstractMethod(ms.Name, ms.Params...), nil
	default:
		return c.NewMethod(ms.Name, ms.Params...), nil
	}
}

func (b *builder) parseBody(m *ir.Method, body []yaml.Node) error {
	if m.Abstract && len(body) > 0 {
		return b.errorf(body[0].Line, m.String(), "abstract method with body")
	}

	p := &stmtParser{b: b, m: m}
	for i := range body {
		n := &body[i]
		if n.Kind != yaml.ScalarNode {
			return b.errorf(n.Line, m.String(), "statement must be a string")
		}
		if err := p.parse(n.Value); err != nil {
			return b.errorf(n.Line, fmt.Sprintf("%v: %q", m, n.Value), "%w", err)
		}
	}
	return nil
}

// lookupEntry resolves "Class.method" to the unique static method of that
// name.
func (b *builder) lookupEntry(name string) (*ir.Method, error) {
	cname, mname, ok := cutLast(name, ".")
	if !ok {
		return nil, b.errorf(0, "entries", "malformed entry %q", name)
	}
	c := b.prog.Class(cname)
	if c == nil {
		return nil, b.errorf(0, "entries", "undeclared class %s", cname)
	}

	var res *ir.Method
	for _, m := range c.Methods() {
		if m.Name != mname {
			continue
		}
		if res != nil {
			return nil, b.errorf(0, "entries", "entry %s is ambiguous", name)
		}
		res = m
	}
	switch {
	case res == nil:
		return nil, b.errorf(0, "entries", "no method %s", name)
	case !res.Static:
		return nil, b.errorf(0, "entries", "entry %s is not static", name)
	}
	return res, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
