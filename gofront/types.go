package gofront

import (
	"go/types"
)

// PointerLike reports whether values of type t may hold references to
// abstract objects. Function values are not modelled.
func PointerLike(t types.Type) bool {
	switch t := t.(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface:
		return true
	case *types.Named:
		return PointerLike(t.Underlying())
	case *types.TypeParam:
		return PointerLike(t.Underlying())
	case *types.Tuple:
		for i := 0; i < t.Len(); i++ {
			if PointerLike(t.At(i).Type()) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func deref(t types.Type) types.Type {
	if p, ok := t.Underlying().(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// fieldName names field i of struct type t. Blank fields are numbered.
func fieldName(t *types.Struct, i int) string {
	if name := t.Field(i).Name(); name != "_" {
		return name
	}
	return "_#" + itoa(i)
}

// isGenericDecl reports whether n is a generic type that has not been
// instantiated.
func isGenericDecl(n *types.Named) bool {
	return n.TypeParams().Len() > 0 && n.TypeArgs().Len() == 0
}
