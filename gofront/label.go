package gofront

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/BarrensZeppelin/andersen/heap"
	"golang.org/x/tools/go/ssa"
)

// Label describes the Go allocation modelled by o: the kind of allocation
// followed by its source position, e.g. "alloc@main.go:12:7". Objects that
// do not originate from lowered Go code are described by their ir type.
func (p *Program) Label(o *heap.Obj) string {
	v := p.Allocs[o.Site()]
	if v == nil {
		return o.Type().String()
	}

	var str string
	switch v := v.(type) {
	case *ssa.Alloc:
		str = "alloc"
		if v.Comment != "" {
			str = v.Comment
		}
	case *ssa.Call:
		// Only append allocates through a call.
		str = "append"
	case *ssa.MakeInterface:
		str = "makeinterface:" + v.X.Type().String()
	case *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeSlice:
		str = strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", v), "*ssa."))
	default:
		// Boxed value receivers.
		str = "box:" + v.Type().String()
	}

	if pos := v.Pos(); pos != token.NoPos && v.Parent() != nil {
		posn := v.Parent().Prog.Fset.Position(pos)
		str = fmt.Sprintf("%s@%s:%d:%d", str, shortName(posn.Filename), posn.Line, posn.Column)
	}
	return str
}

func shortName(filename string) string {
	if i := strings.LastIndexByte(filename, '/'); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
