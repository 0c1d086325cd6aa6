package metainfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type magi[T any] struct {
	v T
}

type madoka struct{ god bool }
type homura struct{ attempts int }
type mami struct{ guns int }

type callerName struct{}

func TestInsertGetRemove(t *testing.T) {
	mi := New()

	Insert[int8](mi, 123)
	v, ok := Get[int8](mi)
	require.True(t, ok)
	assert.Equal(t, int8(123), v)

	removed, ok := Remove[int8](mi)
	assert.True(t, ok)
	assert.Equal(t, int8(123), removed)
	_, ok = Get[int8](mi)
	assert.False(t, ok)
}

func TestRemoveOnlyAffectsCurrentScope(t *testing.T) {
	mi := New()
	Insert[int8](mi, 123)

	child := From(mi)
	_, ok := Remove[int8](child)
	assert.False(t, ok)

	v, ok := Get[int8](child)
	assert.True(t, ok)
	assert.Equal(t, int8(123), v)
}

func TestShadowing(t *testing.T) {
	mi := New()
	Insert[int8](mi, 2)

	m1, m2 := mi.Derive()
	v, _ := Get[int8](m2)
	assert.Equal(t, int8(2), v)

	Insert[int8](m2, 4)
	v, _ = Get[int8](m2)
	assert.Equal(t, int8(4), v)
	v, _ = Get[int8](m1)
	assert.Equal(t, int8(2), v)

	Remove[int8](m2)
	v, ok := Get[int8](m2)
	assert.True(t, ok)
	assert.Equal(t, int8(2), v)
}

func TestIntegersThroughParent(t *testing.T) {
	mi := New()
	Insert[int8](mi, 8)
	Insert[int16](mi, 16)
	Insert[int32](mi, 32)
	Insert[int64](mi, 64)
	Insert[uint8](mi, 8)
	Insert[uint16](mi, 16)
	Insert[uint32](mi, 32)
	Insert[uint64](mi, 64)

	child := From(mi)
	assert.True(t, Contains[int8](child))
	assert.True(t, Contains[int16](child))
	assert.True(t, Contains[int32](child))
	assert.True(t, Contains[int64](child))
	assert.True(t, Contains[uint8](child))
	assert.True(t, Contains[uint16](child))
	assert.True(t, Contains[uint32](child))
	assert.True(t, Contains[uint64](child))
	assert.False(t, Contains[int](child))
}

func TestComposition(t *testing.T) {
	mi := New()
	Insert(mi, magi[madoka]{v: madoka{god: false}})
	Insert(mi, magi[homura]{v: homura{attempts: 0}})
	Insert(mi, magi[mami]{v: mami{guns: 999}})

	m, _ := Get[magi[madoka]](mi)
	assert.False(t, m.v.god)
	h, _ := Get[magi[homura]](mi)
	assert.Equal(t, 0, h.v.attempts)
	g, _ := Get[magi[mami]](mi)
	assert.Equal(t, 999, g.v.guns)
}

func TestClear(t *testing.T) {
	mi := New()
	Insert[int8](mi, 8)
	Insert[int16](mi, 16)
	mi.InsertString("k", "v")
	InsertFastStr[callerName](mi, "svc")
	mi.SetPersistent("P", "1")
	mi.SetBackwardTransient("B", "2")

	mi.Clear()
	assert.False(t, Contains[int8](mi))
	assert.False(t, Contains[int16](mi))
	assert.False(t, mi.ContainsString("k"))
	assert.False(t, ContainsFastStr[callerName](mi))
	_, ok := mi.GetPersistent("P")
	assert.False(t, ok)
	_, ok = mi.GetBackwardTransient("B")
	assert.False(t, ok)

	Insert[int8](mi, 10)
	v, _ := Get[int8](mi)
	assert.Equal(t, int8(10), v)
}

func TestClearDropsParentOnly(t *testing.T) {
	root := New()
	Insert(root, "root")
	root.SetPersistent("P", "1")

	mi := From(root)
	mi.Clear()
	assert.Nil(t, mi.Parent())
	assert.False(t, Contains[string](mi))

	s, ok := Get[string](root)
	assert.True(t, ok)
	assert.Equal(t, "root", s)
	v, _ := root.GetPersistent("P")
	assert.Equal(t, "1", v)
}

func TestClearAfterDeriveKeepsSibling(t *testing.T) {
	mi := New()
	Insert(mi, 7)
	mi.SetPersistent("P", "1")

	a, b := mi.Derive()
	a.Clear()

	v, ok := Get[int](b)
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	p, ok := b.GetPersistent("P")
	assert.True(t, ok)
	assert.Equal(t, "1", p)
}

func TestDeriveWithoutLocalValuesKeepsTreeFlat(t *testing.T) {
	root := New()
	Insert(root, 1)

	mi := From(root)
	mi.SetPersistent("P", "1")

	a, b := mi.Derive()
	assert.Same(t, mi, a)
	assert.Same(t, root, a.Parent())
	assert.Same(t, root, b.Parent())

	// repeated derivation does not grow the parent chain
	for i := 0; i < 10; i++ {
		a, _ = a.Derive()
	}
	assert.Same(t, root, a.Parent())

	b.SetPersistent("P", "2")
	v, _ := a.GetPersistent("P")
	assert.Equal(t, "1", v)
}

func TestDeriveWithLocalValuesPromotes(t *testing.T) {
	root := New()
	mi := From(root)
	Insert(mi, 1)
	mi.InsertString("s", "v")
	mi.SetTransient("T", "t")

	a, b := mi.Derive()
	require.NotNil(t, a.Parent())
	assert.Same(t, a.Parent(), b.Parent())
	assert.Same(t, root, a.Parent().Parent())

	v, _ := Get[int](b)
	assert.Equal(t, 1, v)
	s, _ := a.GetString("s")
	assert.Equal(t, "v", s)

	tr, _ := a.GetTransient("T")
	assert.Equal(t, "t", tr)
	tr, _ = b.GetTransient("T")
	assert.Equal(t, "t", tr)

	a.SetTransient("T", "changed")
	tr, _ = b.GetTransient("T")
	assert.Equal(t, "t", tr)

	// the frozen parent is not written by its children
	Insert(a, 2)
	v, _ = Get[int](b)
	assert.Equal(t, 1, v)
}

func TestFromSnapshotsNodes(t *testing.T) {
	parent := New()
	parent.SetPersistent("P", "1")

	c1 := From(parent)
	c2 := From(parent)
	c1.SetPersistent("P", "c1")

	v, _ := c2.GetPersistent("P")
	assert.Equal(t, "1", v)
	v, _ = parent.GetPersistent("P")
	assert.Equal(t, "1", v)
}

func TestStringValues(t *testing.T) {
	root := New()
	root.InsertString("a", "root")

	mi := From(root)
	assert.True(t, mi.ContainsString("a"))
	mi.InsertString("a", "child")
	v, _ := mi.GetString("a")
	assert.Equal(t, "child", v)

	removed, ok := mi.RemoveString("a")
	assert.True(t, ok)
	assert.Equal(t, "child", removed)
	v, _ = mi.GetString("a")
	assert.Equal(t, "root", v)

	_, ok = mi.RemoveString("a")
	assert.False(t, ok)
}

func TestFastStrValues(t *testing.T) {
	root := New()
	InsertFastStr[callerName](root, "svc.a")

	mi := From(root)
	s, ok := GetFastStr[callerName](mi)
	assert.True(t, ok)
	assert.Equal(t, "svc.a", s)

	InsertFastStr[callerName](mi, "svc.b")
	s, _ = GetFastStr[callerName](mi)
	assert.Equal(t, "svc.b", s)

	RemoveFastStr[callerName](mi)
	s, _ = GetFastStr[callerName](mi)
	assert.Equal(t, "svc.a", s)
	assert.True(t, ContainsFastStr[callerName](mi))
}

func TestExtend(t *testing.T) {
	type myType struct{ v int }

	mi := New()
	Insert(mi, 5)
	Insert(mi, myType{v: 10})
	mi.SetPersistent("SHARED", "old")
	mi.SetPersistent("MINE", "1")

	other := New()
	Insert(other, 15)
	Insert[uint8](other, 20)
	other.InsertString("s", "v")
	other.SetPersistent("SHARED", "new")
	other.SetPersistent("THEIRS", "2")
	other.SetBackwardTransient("B", "b")

	mi.Extend(other)

	v, _ := Get[int](mi)
	assert.Equal(t, 15, v)
	removed, ok := Remove[int](mi)
	assert.True(t, ok)
	assert.Equal(t, 15, removed)
	assert.False(t, Contains[int](mi))
	_, ok = Get[bool](mi)
	assert.False(t, ok)
	m, _ := Get[myType](mi)
	assert.Equal(t, 10, m.v)
	u, _ := Get[uint8](mi)
	assert.Equal(t, uint8(20), u)
	s, _ := mi.GetString("s")
	assert.Equal(t, "v", s)

	assert.Equal(t, map[string]string{"SHARED": "new", "MINE": "1", "THEIRS": "2"}, mi.GetAllPersistents())
	b, _ := mi.GetBackwardTransient("B")
	assert.Equal(t, "b", b)
}

func TestExtendLeavesParent(t *testing.T) {
	root := New()
	mi := From(root)
	other := From(New())
	mi.Extend(other)
	assert.Same(t, root, mi.Parent())
}

func TestNilMetaInfoReads(t *testing.T) {
	var mi *MetaInfo
	_, ok := Get[int](mi)
	assert.False(t, ok)
	assert.False(t, Contains[int](mi))
	_, ok = mi.GetString("k")
	assert.False(t, ok)
	_, ok = mi.GetPersistent("k")
	assert.False(t, ok)
	assert.Nil(t, mi.GetAllPersistentsAndTransientsWithRPCPrefix())
	assert.Nil(t, mi.GetAllBackwardTransientsWithHTTPPrefix())
	assert.Nil(t, mi.Parent())
	assert.Equal(t, "MetaInfo(nil)", mi.String())

	a, b := mi.Derive()
	assert.NotNil(t, a)
	assert.NotNil(t, b)
}

func TestString(t *testing.T) {
	mi := From(New())
	Insert(mi, 1)
	mi.SetPersistent("P", "secret")
	assert.Equal(t, "MetaInfo{depth:1 types:1 strings:0 faststrs:0 forward:1/0/0 backward:0/0}", mi.String())
	assert.NotContains(t, mi.String(), "secret")
}
