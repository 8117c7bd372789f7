package host

import (
	"github.com/zclconf/go-cty/cty"
)

// Ref is an opaque reference to an object in an interpreter heap.
// Ref 0 is reserved and always invalid. The high byte carries a slot
// generation so references to finalized objects are never resolved to a
// newer object that reused the slot.
type Ref uint32

const (
	slotBits = 24
	slotMask = 1<<slotBits - 1

	// maxSlots leaves room for the +1 that keeps Ref 0 invalid.
	maxSlots = slotMask
	maxGen   = 1<<(32-slotBits) - 1
)

func makeRef(slot uint32, gen uint8) Ref {
	return Ref(uint32(gen)<<slotBits | (slot + 1))
}

func (r Ref) slot() (uint32, bool) {
	s := uint32(r) & slotMask
	if s == 0 {
		return 0, false
	}
	return s - 1, true
}

func (r Ref) gen() uint8 {
	return uint8(uint32(r) >> slotBits)
}

// Names of the special hooks recognized by the interpreter.
const (
	HookInit = "__init__"
	HookIter = "__iter__"
	HookNext = "__next__"
	HookStr  = "__str__"
	HookDel  = "__del__"
)

// Initializer is the construction trampoline of a class. It returns the
// payload stored in the new object.
type Initializer func(args []cty.Value, kwargs map[string]cty.Value) (any, error)

// Getter reads a named attribute from an object payload.
type Getter func(in *Interpreter, self Ref, payload any) (cty.Value, error)

// Setter writes a named attribute on an object payload.
type Setter func(in *Interpreter, self Ref, payload any, v cty.Value) error

// Attribute is a named, readable and optionally writable property.
type Attribute struct {
	Get Getter
	Set Setter // nil for read-only attributes
	Doc string
}

// Method is a callable attribute.
type Method func(in *Interpreter, self Ref, payload any, args []cty.Value) (cty.Value, error)

// Class describes the host-visible protocol of an object type.
type Class struct {
	Init     Initializer
	Attrs    map[string]Attribute
	Methods  map[string]Method
	Finalize func(payload any)

	// Const names the methods that may be called on read-only views.
	Const map[string]bool

	// Iter returns a new iterator object over self. The returned reference
	// is owned by the caller.
	Iter func(in *Interpreter, self Ref) (Ref, error)

	// Next advances an iterator object. ok is false once the iterator is
	// exhausted; exhaustion is not an error.
	Next func(in *Interpreter, self Ref) (v cty.Value, ok bool, err error)

	Str  func(payload any) string
	Name string
}

// NewClass creates a class with empty attribute and method tables.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		Attrs:   make(map[string]Attribute),
		Methods: make(map[string]Method),
		Const:   make(map[string]bool),
	}
}

// MarkConst allows the named methods on read-only views.
func (c *Class) MarkConst(names ...string) {
	if c.Const == nil {
		c.Const = make(map[string]bool, len(names))
	}
	for _, n := range names {
		c.Const[n] = true
	}
}

// Hooks returns the special hook names the class implements.
func (c *Class) Hooks() []string {
	var hooks []string
	if c.Init != nil {
		hooks = append(hooks, HookInit)
	}
	if c.Iter != nil {
		hooks = append(hooks, HookIter)
	}
	if c.Next != nil {
		hooks = append(hooks, HookNext)
	}
	if c.Str != nil {
		hooks = append(hooks, HookStr)
	}
	if c.Finalize != nil {
		hooks = append(hooks, HookDel)
	}
	return hooks
}

// Dropper is optionally implemented by payloads that need cleanup when
// their object is finalized. Drop runs after the class finalizer.
type Dropper interface {
	Drop()
}

// Valuer is implemented by payloads that wrap a native value. Attribute
// and method hooks receive Value() instead of the wrapper.
type Valuer interface {
	Value() any
}
