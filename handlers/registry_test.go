package handlers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/handlers"
	"github.com/viant/dflow/symtab"
)

func TestLoadYAMLAndLookupPrefersReceiverMatch(t *testing.T) {
	r := handlers.NewRegistry()
	err := r.LoadYAML([]byte(`
- module: builtins
  qualified: list.append
  receiverType: list
  effects:
    - kind: mutate
      params: [-1]
- module: builtins
  qualified: list.append
  effects:
    - kind: no-op
`))
	require.NoError(t, err)

	entry, ok := r.Lookup("builtins", "list", "list.append")
	require.True(t, ok)
	assert.Equal(t, handlers.Mutate, entry.Effects[0].Kind)

	fallback, ok := r.Lookup("builtins", "", "list.append")
	require.True(t, ok)
	assert.Equal(t, handlers.NoOp, fallback.Effects[0].Kind)
}

func TestApplyMutateEffectOnReturnOperand(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	s := store.Upsert(global, "ret", 1, clock.Tick{Exec: 1, Stmt: 1})
	before := s.DefinedAt

	entry := handlers.Entry{Effects: []handlers.Effect{{Kind: handlers.Mutate, Params: []int{handlers.ReturnOperand}}}}
	handlers.Apply(store, entry, nil, s, clock.Tick{Exec: 2, Stmt: 1})

	assert.True(t, s.DefinedAt.After(before))
}

func TestApplyAliasEffectLinksTwoArguments(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	a := store.Upsert(global, "a", 1, clock.Tick{Exec: 1, Stmt: 1})
	b := store.Upsert(global, "b", 2, clock.Tick{Exec: 1, Stmt: 1})

	entry := handlers.Entry{Effects: []handlers.Effect{{Kind: handlers.Alias, Params: []int{0, 1}}}}
	handlers.Apply(store, entry, []*symtab.Symbol{a, b}, nil, clock.Tick{Exec: 1, Stmt: 2})

	assert.Contains(t, a.Aliases(), b.ID)
}

func TestApplyUpsertUnderNamespaceAttachesAttribute(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	owner := store.Upsert(global, "owner", 1, clock.Tick{Exec: 1, Stmt: 1})
	added := store.Upsert(global, "field", 2, clock.Tick{Exec: 1, Stmt: 1})

	entry := handlers.Entry{Effects: []handlers.Effect{{Kind: handlers.UpsertUnderNamespace, Params: []int{0, 1}}}}
	handlers.Apply(store, entry, []*symtab.Symbol{owner, added}, nil, clock.Tick{Exec: 1, Stmt: 2})

	require.NotNil(t, owner.Namespace)
	assert.Same(t, added, owner.Namespace.Attr("field"))
}

func TestMutateAllPositionalIsTheDefaultRule(t *testing.T) {
	store := symtab.NewStore()
	global := symtab.NewScope("g", symtab.GlobalScope, "<module>", nil)
	a := store.Upsert(global, "a", 1, clock.Tick{Exec: 1, Stmt: 1})
	before := a.DefinedAt

	handlers.MutateAllPositional(store, []*symtab.Symbol{a}, clock.Tick{Exec: 2, Stmt: 1})
	assert.True(t, a.DefinedAt.After(before))
}
