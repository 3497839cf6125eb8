package irfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BarrensZeppelin/andersen/ir"
)

const ident = `[A-Za-z_$][\w$]*`

func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile("^" + strings.ReplaceAll(pattern, "ID", ident) + "$")
}

var (
	reInvoke = re(`(?:(ID)\s*=\s*)?invoke(static|special|virtual|interface)\s+(?:(ID)\.)?<(ID)\.(<?ID>?)>\s*\((.*)\)`)
	reNew    = re(`(ID)\s*=\s*new\s+(ID)((?:\[\])*)`)
	reReturn = re(`return(?:\s+(ID))?`)

	reStoreArray  = re(`(ID)\[\*\]\s*=\s*(ID)`)
	reLoadArray   = re(`(ID)\s*=\s*(ID)\[\*\]`)
	reStoreStatic = re(`<(ID)\.(ID)>\s*=\s*(ID)`)
	reLoadStatic  = re(`(ID)\s*=\s*<(ID)\.(ID)>`)
	reStoreField  = re(`(ID)\.(?:<(ID)\.(ID)>|(ID))\s*=\s*(ID)`)
	reLoadField   = re(`(ID)\s*=\s*(ID)\.(?:<(ID)\.(ID)>|(ID))`)
	reCopy        = re(`(ID)\s*=\s*(ID)`)

	reIdent = re(`ID`)
)

var errSyntax = errors.New("syntax error")

// stmtParser appends the statements of one method body.
type stmtParser struct {
	b *builder
	m *ir.Method
}

// local maps the null literal to the absent variable.
func local(name string) string {
	if name == "null" {
		return ""
	}
	return name
}

func base(name string) (string, error) {
	if name == "null" {
		return "", errors.New("null base")
	}
	return name, nil
}

func (p *stmtParser) parse(src string) error {
	src = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(src), ";"))

	if g := reInvoke.FindStringSubmatch(src); g != nil {
		return p.invoke(local(g[1]), g[2], g[3], g[4], g[5], g[6])
	}
	if g := reNew.FindStringSubmatch(src); g != nil {
		t, err := p.typ(g[2], strings.Count(g[3], "[]"))
		if err != nil {
			return err
		}
		p.m.New(local(g[1]), t)
		return nil
	}
	if g := reReturn.FindStringSubmatch(src); g != nil {
		p.m.Return(local(g[1]))
		return nil
	}

	if g := reStoreArray.FindStringSubmatch(src); g != nil {
		arr, err := base(g[1])
		if err != nil {
			return err
		}
		p.m.StoreArray(arr, local(g[2]))
		return nil
	}
	if g := reLoadArray.FindStringSubmatch(src); g != nil {
		arr, err := base(g[2])
		if err != nil {
			return err
		}
		p.m.LoadArray(local(g[1]), arr)
		return nil
	}

	if g := reStoreStatic.FindStringSubmatch(src); g != nil {
		f, err := p.field(g[1], g[2], true)
		if err != nil {
			return err
		}
		p.m.StoreStatic(f, local(g[3]))
		return nil
	}
	if g := reLoadStatic.FindStringSubmatch(src); g != nil {
		f, err := p.field(g[2], g[3], true)
		if err != nil {
			return err
		}
		p.m.LoadStatic(local(g[1]), f)
		return nil
	}

	if g := reStoreField.FindStringSubmatch(src); g != nil {
		obj, err := base(g[1])
		if err != nil {
			return err
		}
		f, err := p.field(g[2], g[3]+g[4], false)
		if err != nil {
			return err
		}
		p.m.StoreField(obj, f, local(g[5]))
		return nil
	}
	if g := reLoadField.FindStringSubmatch(src); g != nil {
		obj, err := base(g[2])
		if err != nil {
			return err
		}
		f, err := p.field(g[3], g[4]+g[5], false)
		if err != nil {
			return err
		}
		p.m.LoadField(local(g[1]), obj, f)
		return nil
	}

	if g := reCopy.FindStringSubmatch(src); g != nil {
		p.m.Copy(local(g[1]), local(g[2]))
		return nil
	}

	return errSyntax
}

func (p *stmtParser) typ(name string, dims int) (ir.Type, error) {
	c := p.b.prog.Class(name)
	if c == nil {
		return nil, fmt.Errorf("undeclared class %s", name)
	}

	var t ir.Type = c
	for i := 0; i < dims; i++ {
		t = p.b.prog.ArrayOf(t)
	}
	if dims == 0 && c.Abstract {
		return nil, fmt.Errorf("cannot instantiate abstract class %s", c)
	}
	return t, nil
}

// field resolves a field access. With an empty class name the field must be
// declared by exactly one class of the program.
func (p *stmtParser) field(cname, fname string, static bool) (*ir.Field, error) {
	var f *ir.Field
	if cname == "" {
		for _, c := range p.b.prog.Classes() {
			if cf := c.Field(fname); cf != nil && !cf.Static {
				if f != nil {
					return nil, fmt.Errorf("ambiguous field %s: %v or %v", fname, f, cf)
				}
				f = cf
			}
		}
		if f == nil {
			return nil, fmt.Errorf("unknown field %s", fname)
		}
	} else {
		c := p.b.prog.Class(cname)
		if c == nil {
			return nil, fmt.Errorf("undeclared class %s", cname)
		}
		for cur := c; cur != nil && f == nil; cur = cur.Super {
			f = cur.Field(fname)
		}
		if f == nil {
			return nil, fmt.Errorf("unknown field <%s.%s>", cname, fname)
		}
	}

	if f.Static != static {
		if static {
			return nil, fmt.Errorf("%v is not static", f)
		}
		return nil, fmt.Errorf("%v is static", f)
	}
	return f, nil
}

// methodRef resolves <T.name> called with arity arguments to the subsignature
// of a method with that name and arity, visible from T. References without a
// matching method are kept so that the analysis reports them.
func (p *stmtParser) methodRef(cname, name string, arity int) (ir.MethodRef, error) {
	c := p.b.prog.Class(cname)
	if c == nil {
		return ir.MethodRef{}, fmt.Errorf("undeclared class %s", cname)
	}

	seen := map[*ir.Class]bool{}
	queue := []*ir.Class{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || seen[cur] {
			continue
		}
		seen[cur] = true

		for _, m := range cur.Methods() {
			if m.Name == name && len(m.Params) == arity {
				return ir.MethodRef{Class: c, Sub: m.Subsignature()}, nil
			}
		}
		queue = append(queue, cur.Super)
		queue = append(queue, cur.Interfaces...)
	}

	types := make([]string, arity)
	for i := range types {
		types[i] = ir.ObjectClass
	}
	return ir.MethodRef{Class: c, Sub: ir.MakeSubsignature(name, types...)}, nil
}

func (p *stmtParser) invoke(result, kind, recv, cname, name, args string) error {
	var argv []string
	if args = strings.TrimSpace(args); args != "" {
		for _, a := range strings.Split(args, ",") {
			a = strings.TrimSpace(a)
			if !reIdent.MatchString(a) {
				return fmt.Errorf("malformed argument %q", a)
			}
			argv = append(argv, local(a))
		}
	}

	ref, err := p.methodRef(cname, name, len(argv))
	if err != nil {
		return err
	}

	if kind == "static" {
		if recv != "" {
			return fmt.Errorf("invokestatic with receiver %s", recv)
		}
		p.m.InvokeStatic(result, ref, argv...)
		return nil
	}

	if recv == "" {
		return fmt.Errorf("invoke%s without receiver", kind)
	}
	r, err := base(recv)
	if err != nil {
		return err
	}
	switch kind {
	case "special":
		p.m.InvokeSpecial(result, r, ref, argv...)
	case "virtual":
		p.m.InvokeVirtual(result, r, ref, argv...)
	case "interface":
		p.m.InvokeInterface(result, r, ref, argv...)
	}
	return nil
}
