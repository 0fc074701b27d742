package symtab

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"
)

// hashKey is the fixed key the teacher's inspector/graph/hash.go uses for
// highwayhash.New64; content hashing here has no security requirement, only
// a stable, cheap 64-bit fingerprint for subscript keys.
var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Key is a subscript key: a string, an integer, or a tuple of Keys. Keys
// are hashed to a single comparable form so they can index Namespace.Items
// regardless of the host value's concrete Go representation.
type Key struct {
	hash uint64
	repr string
}

// StringKey builds a subscript key from a string (the common case: dict
// string keys, object attribute-like string subscripts).
func StringKey(s string) Key {
	return Key{hash: hash64([]byte("s:" + s)), repr: s}
}

// IntKey builds a subscript key from an integer index.
func IntKey(i int64) Key {
	buf := make([]byte, 9)
	buf[0] = 'i'
	binary.LittleEndian.PutUint64(buf[1:], uint64(i))
	return Key{hash: hash64(buf), repr: fmt.Sprintf("%d", i)}
}

// TupleKey builds a subscript key from a tuple of component keys, e.g. for
// numpy-style `a[i, j]` or dict keys that are themselves tuples.
func TupleKey(parts ...Key) Key {
	buf := []byte{'t'}
	repr := "("
	for i, p := range parts {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], p.hash)
		buf = append(buf, b[:]...)
		if i > 0 {
			repr += ","
		}
		repr += p.repr
	}
	repr += ")"
	return Key{hash: hash64(buf), repr: repr}
}

func hash64(data []byte) uint64 {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// hashKey is a fixed 32-byte constant; New64 only errors on bad key
		// length, so this would be a programming bug, not a runtime fault.
		panic(err)
	}
	_, _ = h.Write(data)
	return h.Sum64()
}

func (k Key) String() string { return k.repr }

// Namespace is a Scope attached to a value: its attributes (string keys)
// and subscript entries (Key keys) share one lookup frame, keyed separately
// so an object's `.foo` attribute and a dict's `"foo"` item never collide.
type Namespace struct {
	*Scope
	Owner *Symbol

	Items map[Key]*Symbol
}

// NewNamespace creates a namespace scope owned by owner, chained under
// parent for attribute-name resolution fallbacks (class namespaces chain to
// their base class's namespace the same way a Scope chains to its lexical
// parent).
func NewNamespace(id string, owner *Symbol, parent *Scope) *Namespace {
	scope := NewScope(id, NamespaceScopeKind, owner.Name, parent)
	scope.ownerSymbol = owner
	return &Namespace{
		Scope: scope,
		Owner: owner,
		Items: make(map[Key]*Symbol),
	}
}

// Attr resolves an attribute by name within this namespace only (no parent
// walk for instance namespaces; class namespaces use Scope.Find for MRO-like
// fallback via their Parent chain).
func (n *Namespace) Attr(name string) *Symbol {
	return n.localFind(name)
}

// SetAttr installs sym as the attribute name on this namespace.
func (n *Namespace) SetAttr(name string, sym *Symbol) {
	n.Bind(name, sym)
}

// Item resolves a subscript entry by key.
func (n *Namespace) Item(key Key) *Symbol {
	return n.Items[key]
}

// SetItem installs sym as the subscript entry at key.
func (n *Namespace) SetItem(key Key, sym *Symbol) {
	n.Items[key] = sym
}
