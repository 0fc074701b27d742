package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/symtab"
	"github.com/viant/dflow/trace"
)

func newFixture() (*trace.Tracer, *symtab.Store, *clock.Clock, *symtab.Scope) {
	store := symtab.NewStore()
	clk := clock.New()
	tr := trace.New(store, clk, 1000)
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	return tr, store, clk, global
}

func TestNameStoreTiesParentsFromStatementLiveRefs(t *testing.T) {
	tr, store, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()

	x := tr.OnNameLoad(1, global, "x")
	require.Nil(t, x, "x has never been assigned yet")

	xSym := tr.OnNameStore(2, global, "x", 1)
	require.NotNil(t, xSym)

	tr.OnStatementEnter()
	read := tr.OnNameLoad(3, global, "x")
	require.NotNil(t, read)
	assert.Equal(t, xSym.ID, read.ID)

	y := tr.OnNameStore(4, global, "y", 2)
	require.Len(t, y.DynamicParents, 1)
	assert.Equal(t, xSym.ID, y.DynamicParents[0].From)
	_ = store
}

func TestTraceOnceSkipsRepeatedLocation(t *testing.T) {
	tr, _, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()

	tr.OnNameStore(1, global, "acc", 0)
	first := tr.OnNameLoad(2, global, "acc")
	second := tr.OnNameLoad(2, global, "acc")
	assert.Same(t, first, second, "same loc within a statement must return the cached symbol")
}

func TestAttrStoreMutatesOwnerChain(t *testing.T) {
	tr, store, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()
	obj := tr.OnNameStore(1, global, "obj", 100)
	definedAfterStore := obj.DefinedAt

	tr.OnStatementEnter()
	tr.OnAttrStore(2, obj, "value", 7)

	assert.True(t, obj.DefinedAt.After(definedAfterStore), "storing an attribute must mutate the owning object too")
	_ = store
}

func TestSubscriptLoadCreatesLazyItemSymbol(t *testing.T) {
	tr, _, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()
	d := tr.OnNameStore(1, global, "d", 5)

	tr.OnStatementEnter()
	key := symtab.StringKey("k")
	sym := tr.OnSubscriptLoad(2, d, key)
	require.NotNil(t, sym)

	again := tr.OnSubscriptLoad(3, d, key)
	assert.Equal(t, sym.ID, again.ID, "repeated access at a new location resolves to the same item symbol")
}

func TestCallReturnParentsOnCalleeAndReadActuals(t *testing.T) {
	tr, store, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()
	fn := tr.OnNameStore(1, global, "f", "fn-handle")
	arg := tr.OnNameStore(2, global, "n", 10)

	callScope := tr.OnCallEnter(global, fn, []string{"x"}, []*symtab.Symbol{arg})
	require.NotNil(t, callScope)

	bodyRead := tr.OnNameLoad(3, callScope, "x")
	require.NotNil(t, bodyRead)

	ret := tr.OnCallReturn("result-handle")
	require.NotNil(t, ret)

	parentIDs := map[symtab.SymbolID]bool{}
	for _, e := range ret.Parents() {
		parentIDs[e.From] = true
	}
	assert.True(t, parentIDs[fn.ID], "return value is parented on the callee")
	assert.True(t, parentIDs[arg.ID], "return value is parented on an actual argument the body read")
	_ = store
}

func TestReentrancyDisablesBeyondDepthCap(t *testing.T) {
	store := symtab.NewStore()
	clk := clock.New()
	tr := trace.New(store, clk, 1)
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	clk.NewCell()
	tr.OnStatementEnter()

	fn := tr.OnNameStore(1, global, "f", "h")
	tr.OnCallEnter(global, fn, nil, nil)
	assert.True(t, tr.Enabled(), "first call frame is within the depth cap")
	tr.OnCallEnter(global, fn, nil, nil)
	assert.False(t, tr.Enabled(), "second nested call frame exceeds the depth cap")

	tr.OnCallReturn(nil)
	assert.True(t, tr.Enabled(), "returning from the over-cap frame re-enables tracing")
}

func TestDisableSuppressesSideEffects(t *testing.T) {
	tr, _, clk, global := newFixture()
	clk.NewCell()
	tr.OnStatementEnter()
	x := tr.OnNameStore(1, global, "x", 1)
	definedAfterStore := x.DefinedAt

	tr.Disable()
	tr.OnStatementEnter()
	tr.OnMutation(x, "")
	assert.Equal(t, definedAfterStore, x.DefinedAt, "mutation while disabled must not bump DefinedAt")

	tr.Enable()
	tr.OnStatementEnter()
	tr.OnMutation(x, "")
	assert.True(t, x.DefinedAt.After(definedAfterStore), "mutation after re-enabling bumps DefinedAt")
}
