package metainfo

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	mi := New()
	ctx := WithMetaInfo(context.Background(), mi)
	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, mi, got)

	ctx = WithMetaInfo(context.Background(), nil)
	_, ok = FromContext(ctx)
	assert.False(t, ok)
}

func TestGetOrNew(t *testing.T) {
	ctx, mi := GetOrNew(context.Background())
	assert.NotNil(t, mi)

	ctx2, mi2 := GetOrNew(ctx)
	assert.Same(t, mi, mi2)
	assert.Equal(t, ctx, ctx2)
}

func TestDeriveContext(t *testing.T) {
	mi := New()
	Insert(mi, "request")
	mi.SetPersistent("P", "1")

	callerCtx, calleeCtx := DeriveContext(WithMetaInfo(context.Background(), mi))
	caller, _ := FromContext(callerCtx)
	callee, _ := FromContext(calleeCtx)
	assert.NotSame(t, caller, callee)

	callee.SetPersistent("P", "2")
	Insert(callee, "nested")

	v, _ := caller.GetPersistent("P")
	assert.Equal(t, "1", v)
	s, _ := Get[string](caller)
	assert.Equal(t, "request", s)

	a, b := DeriveContext(context.Background())
	ma, _ := FromContext(a)
	mb, _ := FromContext(b)
	assert.NotNil(t, ma)
	assert.NotNil(t, mb)
}

func TestDeriveContextSharedByGoroutines(t *testing.T) {
	type tenant string

	mi := New()
	Insert(mi, 42)
	InsertFastStr[tenant](mi, "acme")
	mi.InsertString("route", "v1")
	mi.SetPersistent("P", "1")
	ctx := WithMetaInfo(context.Background(), mi)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			callerCtx, calleeCtx := DeriveContext(ctx)
			caller, _ := FromContext(callerCtx)
			callee, _ := FromContext(calleeCtx)

			n, ok := Get[int](callee)
			assert.True(t, ok)
			assert.Equal(t, 42, n)
			tn, _ := GetFastStr[tenant](callee)
			assert.Equal(t, "acme", tn)
			r, _ := callee.GetString("route")
			assert.Equal(t, "v1", r)

			Insert(callee, i)
			callee.SetPersistent("P", fmt.Sprint(i))
			n, _ = Get[int](caller)
			assert.Equal(t, 42, n)
			p, _ := caller.GetPersistent("P")
			assert.Equal(t, "1", p)
		}(i)
	}
	wg.Wait()

	assert.Nil(t, mi.Parent())
	n, _ := Get[int](mi)
	assert.Equal(t, 42, n)
	p, _ := mi.GetPersistent("P")
	assert.Equal(t, "1", p)
}

func TestForkCopiesLocalValues(t *testing.T) {
	mi := New()
	Insert(mi, []string{"a"})
	mi.InsertString("k", "v")

	a, b := mi.Fork()
	require.NotSame(t, mi, a)
	require.Same(t, a.Parent(), b.Parent())
	require.NotSame(t, mi, a.Parent())

	mi.InsertString("k", "changed")
	Insert(mi, []string{"b"})
	v, _ := a.GetString("k")
	assert.Equal(t, "v", v)
	s, _ := Get[[]string](b)
	assert.Equal(t, []string{"a"}, s)

	empty := New()
	empty.SetPersistent("P", "1")
	c, d := empty.Fork()
	assert.Nil(t, c.Parent())
	assert.Nil(t, d.Parent())
	p, _ := d.GetPersistent("P")
	assert.Equal(t, "1", p)
}
