package symtab_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/symtab"
)

func TestUpsertCreatesAndRebinds(t *testing.T) {
	st := symtab.NewStore()
	global := symtab.NewScope("mod", symtab.GlobalScope, "", nil)

	x := st.Upsert(global, "x", 1, clock.Tick{Exec: 1, Stmt: 1})
	assert.Equal(t, clock.Tick{Exec: 1, Stmt: 1}, x.DefinedAt)

	same := st.Upsert(global, "x", 1, clock.Tick{Exec: 1, Stmt: 2})
	assert.Same(t, x, same)
	assert.Equal(t, clock.Tick{Exec: 1, Stmt: 1}, same.DefinedAt, "same handle must not bump DefinedAt")

	rebound := st.Upsert(global, "x", 2, clock.Tick{Exec: 2, Stmt: 1})
	assert.Same(t, x, rebound)
	assert.Equal(t, clock.Tick{Exec: 2, Stmt: 1}, rebound.DefinedAt)
}

func TestLookupWalksParentChain(t *testing.T) {
	st := symtab.NewStore()
	global := symtab.NewScope("mod", symtab.GlobalScope, "", nil)
	fn := symtab.NewScope("mod.f", symtab.FunctionScope, "f", global)

	st.Upsert(global, "x", 1, clock.Tick{Exec: 1})
	found := st.Lookup(fn, "x")
	assert.NotNil(t, found)
	assert.Equal(t, "x", found.Name)

	assert.Nil(t, st.Lookup(fn, "zzz"))
}

func TestAliasPropagatesUpdateNotification(t *testing.T) {
	st := symtab.NewStore()
	global := symtab.NewScope("mod", symtab.GlobalScope, "", nil)

	a := st.Upsert(global, "a", 1, clock.Tick{Exec: 1})
	b := st.Upsert(global, "b", 1, clock.Tick{Exec: 2})
	st.Alias(a, b)

	st.Mutate(a, clock.Tick{Exec: 3})
	assert.True(t, b.Stale(st.Get))
	assert.False(t, a.Stale(st.Get), "the mutated symbol itself isn't stale relative to its own update")
}

func TestKillPreservesDanglingChildren(t *testing.T) {
	st := symtab.NewStore()
	global := symtab.NewScope("mod", symtab.GlobalScope, "", nil)

	p := st.Upsert(global, "p", 1, clock.Tick{Exec: 1})
	c := st.Upsert(global, "c", 2, clock.Tick{Exec: 1})
	st.AddParent(c, p, clock.Tick{Exec: 1}, symtab.Static)

	st.Kill(p)
	assert.Nil(t, global.Find("p"))
	assert.Len(t, c.Parents(), 1, "child still carries the edge to the deleted parent")
}

func TestStaleDetectsFresherParent(t *testing.T) {
	st := symtab.NewStore()
	global := symtab.NewScope("mod", symtab.GlobalScope, "", nil)

	x := st.Upsert(global, "x", 1, clock.Tick{Exec: 1})
	y := st.Upsert(global, "y", 2, clock.Tick{Exec: 2})
	st.AddParent(y, x, clock.Tick{Exec: 2}, symtab.Static)
	assert.False(t, y.Stale(st.Get))

	st.Mutate(x, clock.Tick{Exec: 3})
	assert.True(t, y.Stale(st.Get))
}
