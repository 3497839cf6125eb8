package hierarchy

import (
	"testing"

	"github.com/BarrensZeppelin/andersen/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchy(t *testing.T) {
	prog := ir.NewProgram()
	shape := prog.NewInterface("Shape")
	shape.NewAbstractMethod("area")

	base := prog.NewClass("Base", nil)
	baseFoo := base.NewMethod("foo")
	baseBar := base.NewMethod("bar", "A x")
	util := base.NewStaticMethod("util")

	mid := prog.NewClass("Mid", base, shape)
	midArea := mid.NewMethod("area")
	mid.NewAbstractMethod("bar", "A x")
	mid.Abstract = true

	derived := prog.NewClass("Derived", mid)
	derivedFoo := derived.NewMethod("foo")

	other := prog.NewClass("Other", nil)

	// Declares area without implementing Shape.
	square := prog.NewClass("Square", nil)
	squareArea := square.NewMethod("area")

	h := New(prog)

	t.Run("Structure", func(t *testing.T) {
		assert.Equal(t, []*ir.Class{mid}, h.DirectSubclassesOf(base))
		assert.Equal(t, []*ir.Class{mid}, h.DirectImplementorsOf(shape))
		assert.Empty(t, h.DirectSubinterfacesOf(shape))

		assert.True(t, h.IsSubtype(derived, base))
		assert.True(t, h.IsSubtype(derived, shape))
		assert.True(t, h.IsSubtype(base, base))
		assert.False(t, h.IsSubtype(base, derived))
		assert.False(t, h.IsSubtype(other, shape))
	})

	t.Run("Dispatch", func(t *testing.T) {
		assert.Same(t, derivedFoo, h.Dispatch(derived, "foo()"))
		assert.Same(t, baseFoo, h.Dispatch(mid, "foo()"))
		// The abstract redeclaration in Mid is skipped.
		assert.Same(t, baseBar, h.Dispatch(derived, "bar(A)"))
		assert.Nil(t, h.Dispatch(other, "foo()"))
		// Negative results are memoized and stay negative.
		assert.Nil(t, h.Dispatch(other, "foo()"))
	})

	t.Run("Resolve", func(t *testing.T) {
		foo := ir.MethodRef{Class: base, Sub: "foo()"}
		assert.Same(t, baseFoo, h.ResolveSpecial(foo))
		assert.Same(t, derivedFoo, h.ResolveVirtual(derived, foo))
		assert.Same(t, baseFoo, h.ResolveVirtual(base, foo))
		assert.Nil(t, h.ResolveVirtual(prog.ArrayOf(base), foo),
			"arrays have no methods without a root class")

		area := ir.MethodRef{Class: shape, Sub: "area()"}
		assert.Same(t, midArea, h.ResolveInterface(derived, area))
		assert.Nil(t, h.ResolveInterface(base, area),
			"Base has no area method")
		assert.Same(t, squareArea, h.ResolveInterface(square, area),
			"non-implementors dispatch to their own method")
		assert.Nil(t, h.ResolveInterface(prog.ArrayOf(base), area))

		require.Same(t, util, h.ResolveStatic(ir.MethodRef{Class: derived, Sub: "util()"}))
		assert.Nil(t, h.ResolveStatic(foo), "foo is an instance method")
		assert.Nil(t, h.ResolveSpecial(ir.RefOf(util)), "util is static")
	})
}

func TestArrayDispatch(t *testing.T) {
	prog := ir.NewProgram()
	object := prog.NewClass(ir.ObjectClass, nil)
	hash := object.NewMethod("hashCode")
	a := prog.NewClass("A", object)
	aHash := a.NewMethod("hashCode")

	h := New(prog)
	ref := ir.MethodRef{Class: object, Sub: "hashCode()"}
	assert.Same(t, hash, h.ResolveVirtual(prog.ArrayOf(a), ref))
	assert.Same(t, hash, h.ResolveVirtual(prog.ArrayOf(prog.ArrayOf(a)), ref))
	assert.Same(t, aHash, h.ResolveVirtual(a, ref))
	assert.Nil(t, h.ResolveVirtual(prog.ArrayOf(a), ir.MethodRef{Class: a, Sub: "size()"}))
}
