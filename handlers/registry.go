// Package handlers implements the external-call handler registry of
// spec.md §4.8: a declarative table, keyed by module path and qualified
// name, mapping external callables to a small set of effects on the symbol
// store. It replaces a decorator-driven DSL with data, per DESIGN NOTES §9.
package handlers

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/viant/dflow/clock"
	"github.com/viant/dflow/symtab"
)

// ReturnOperand is the sentinel operand index referring to a call's return
// value rather than one of its positional arguments.
const ReturnOperand = -1

// EffectKind names one of the four effect shapes spec.md §4.8 allows.
type EffectKind string

const (
	NoOp                 EffectKind = "no-op"
	Mutate               EffectKind = "mutate"
	Alias                EffectKind = "alias"
	UpsertUnderNamespace EffectKind = "upsert-under-namespace"
)

// Effect is one operation a handler entry performs, referencing its
// operands by position: a non-negative index is a positional argument,
// ReturnOperand is the call's return value.
type Effect struct {
	Kind   EffectKind `yaml:"kind" json:"kind"`
	Params []int      `yaml:"params" json:"params"`
}

// Entry is one row of the declarative table: a callable match plus the
// effects that fire in its place instead of the default
// "mutates all positional arguments" rule.
type Entry struct {
	Module       string   `yaml:"module" json:"module"`
	Qualified    string   `yaml:"qualified" json:"qualified"`
	ReceiverType string   `yaml:"receiverType,omitempty" json:"receiverType,omitempty"`
	Effects      []Effect `yaml:"effects" json:"effects"`
}

// Registry is a compiled lookup table from (module, receiver type,
// qualified name) to Entry, built at startup from a YAML document.
type Registry struct {
	byKey map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Entry)}
}

// LoadYAML decodes a list of Entry values and adds them to the registry,
// the way the teacher's `linage.*` types are all driven by yaml struct tags
// rather than hand-written parsers.
func (r *Registry) LoadYAML(data []byte) error {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("handlers: decode table: %w", err)
	}
	for _, e := range entries {
		r.byKey[tableKey(e.Module, e.ReceiverType, e.Qualified)] = e
	}
	return nil
}

// Register adds or replaces a single entry directly, for tests and for
// handlers assembled in code rather than loaded from YAML.
func (r *Registry) Register(e Entry) {
	r.byKey[tableKey(e.Module, e.ReceiverType, e.Qualified)] = e
}

// Lookup resolves the handler for a call, preferring a receiver-type-scoped
// method match over a bare module-level function match, per spec.md §4.8:
// "Handlers may match the module that contains the callable... or the type
// of the receiver".
func (r *Registry) Lookup(module, receiverType, qualified string) (Entry, bool) {
	if receiverType != "" {
		if e, ok := r.byKey[tableKey(module, receiverType, qualified)]; ok {
			return e, true
		}
	}
	e, ok := r.byKey[tableKey(module, "", qualified)]
	return e, ok
}

func tableKey(module, receiverType, qualified string) string {
	if receiverType != "" {
		return module + "#" + receiverType + "." + qualified
	}
	return module + "." + qualified
}

// Apply executes entry's effects against a resolved call: args are the
// actual-argument symbols in call order, ret is the anonymous return-value
// symbol (nil for calls whose result is discarded).
func Apply(store *symtab.Store, entry Entry, args []*symtab.Symbol, ret *symtab.Symbol, ts clock.Tick) {
	operand := func(idx int) *symtab.Symbol {
		if idx == ReturnOperand {
			return ret
		}
		if idx < 0 || idx >= len(args) {
			return nil
		}
		return args[idx]
	}

	for _, eff := range entry.Effects {
		switch eff.Kind {
		case NoOp:
			// Declared explicitly so a known pure callable (e.g. a getter)
			// overrides the default mutate-all-arguments rule with nothing.
		case Mutate:
			if len(eff.Params) != 1 {
				continue
			}
			if s := operand(eff.Params[0]); s != nil {
				store.Mutate(s, ts)
			}
		case Alias:
			if len(eff.Params) != 2 {
				continue
			}
			a, b := operand(eff.Params[0]), operand(eff.Params[1])
			if a != nil && b != nil {
				store.Alias(a, b)
			}
		case UpsertUnderNamespace:
			if len(eff.Params) != 2 {
				continue
			}
			owner, added := operand(eff.Params[0]), operand(eff.Params[1])
			if owner == nil || added == nil {
				continue
			}
			if owner.Namespace == nil {
				owner.Namespace = symtab.NewNamespace(fmt.Sprintf("ns:%s#%d", owner.Name, owner.ID), owner, nil)
			}
			owner.Namespace.SetAttr(added.Name, added)
		}
	}
}

// MutateAllPositional is the default rule applied when no registry entry
// matches a call: spec.md §4.8 says this "mutates all positional arguments"
// unconditionally.
func MutateAllPositional(store *symtab.Store, args []*symtab.Symbol, ts clock.Tick) {
	for _, a := range args {
		if a != nil {
			store.Mutate(a, ts)
		}
	}
}
