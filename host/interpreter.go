package host

import (
	"fmt"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
)

// Interpreter is a reference-counted object heap. One lock serializes
// every heap operation; class hooks run without the lock held so they may
// call back into the interpreter.
type Interpreter struct {
	entries  []entry
	freeList []uint32
	maxSlots int
	retired  int
	mu       sync.Mutex
}

type entry struct {
	class    *Class
	payload  any
	parents  []Ref
	refs     int32
	gen      uint8
	valid    bool
	readOnly bool
}

// NewInterpreter creates an empty heap.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
		maxSlots: maxSlots,
	}
}

// New stores payload as an object of class and returns a reference with
// count 1, owned by the caller. It returns the invalid Ref 0 when every
// slot is in use; callers that can surface an error should use Alloc.
func (in *Interpreter) New(class *Class, payload any) Ref {
	ref, _ := in.Alloc(class, payload)
	return ref
}

// Alloc is New with an error when the heap is exhausted. Slots whose
// generation counter is spent are retired rather than reused, so a stale
// reference never resolves to a newer object.
func (in *Interpreter) Alloc(class *Class, payload any) (Ref, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	e := entry{
		class:   class,
		payload: payload,
		refs:    1,
		valid:   true,
	}

	if n := len(in.freeList); n > 0 {
		slot := in.freeList[n-1]
		in.freeList = in.freeList[:n-1]
		e.gen = in.entries[slot].gen + 1
		in.entries[slot] = e
		return makeRef(slot, e.gen), nil
	}

	if len(in.entries) >= in.maxSlots {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			HostType(class.Name).
			Detail("object heap exhausted (%d slots)", in.maxSlots).
			Build()
	}
	in.entries = append(in.entries, e)
	return makeRef(uint32(len(in.entries)-1), 0), nil
}

// Construct runs the class construction trampoline and stores the result.
func (in *Interpreter) Construct(class *Class, args []cty.Value, kwargs map[string]cty.Value) (Ref, error) {
	if class.Init == nil {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			HostType(class.Name).
			Detail("no constructor defined").
			Build()
	}
	payload, err := class.Init(args, kwargs)
	if err != nil {
		return 0, err
	}
	ref, err := in.Alloc(class, payload)
	if err != nil {
		if d, ok := payload.(Dropper); ok {
			d.Drop()
		}
		return 0, err
	}
	return ref, nil
}

// lookup returns the live entry for ref. Caller must hold in.mu.
func (in *Interpreter) lookup(ref Ref) (*entry, bool) {
	slot, ok := ref.slot()
	if !ok || int(slot) >= len(in.entries) {
		return nil, false
	}
	e := &in.entries[slot]
	if !e.valid || e.gen != ref.gen() {
		return nil, false
	}
	return e, true
}

// IncRef adds one strong reference.
func (in *Interpreter) IncRef(ref Ref) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return errors.DeadObject(errors.PhaseHost, uint32(ref))
	}
	e.refs++
	return nil
}

type finalization struct {
	class   *Class
	payload any
	parents []Ref
	ref     Ref
}

// DecRef drops one strong reference. When the count reaches zero the
// object is finalized: the class finalizer runs, then Dropper payloads are
// dropped, then every keep-alive parent loses the reference held for it.
func (in *Interpreter) DecRef(ref Ref) error {
	pending := []Ref{ref}
	first := true

	for len(pending) > 0 {
		r := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		fin, err := in.release(r)
		if err != nil {
			if first {
				return err
			}
			Logger().Warn("release keep-alive parent",
				zap.Uint32("ref", uint32(r)),
				zap.Error(err))
			continue
		}
		first = false

		if fin == nil {
			continue
		}
		in.finalize(fin)
		pending = append(pending, fin.parents...)
	}
	return nil
}

func (in *Interpreter) release(ref Ref) (*finalization, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return nil, errors.DeadObject(errors.PhaseHost, uint32(ref))
	}

	e.refs--
	if e.refs > 0 {
		return nil, nil
	}

	slot, _ := ref.slot()
	fin := &finalization{
		ref:     ref,
		class:   e.class,
		payload: e.payload,
		parents: e.parents,
	}
	e.valid = false
	e.payload = nil
	e.parents = nil
	e.class = nil
	e.readOnly = false
	if e.gen < maxGen {
		in.freeList = append(in.freeList, slot)
	} else {
		in.retired++
	}
	return fin, nil
}

func (in *Interpreter) finalize(fin *finalization) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("finalizer panicked",
				zap.Uint32("ref", uint32(fin.ref)),
				zap.Any("panic", r))
		}
	}()

	if fin.class != nil && fin.class.Finalize != nil {
		fin.class.Finalize(fin.payload)
	}
	if d, ok := fin.payload.(Dropper); ok {
		d.Drop()
	}
}

// KeepAlive ties the lifetime of parent to child: parent gains one
// reference, released when child is finalized.
func (in *Interpreter) KeepAlive(child, parent Ref) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	c, ok := in.lookup(child)
	if !ok {
		return errors.DeadObject(errors.PhaseHost, uint32(child))
	}
	p, ok := in.lookup(parent)
	if !ok {
		return errors.DeadObject(errors.PhaseHost, uint32(parent))
	}
	p.refs++
	c.parents = append(c.parents, parent)
	return nil
}

// SetReadOnly marks the object as a read-only view. Attribute writes and
// calls to methods not listed in Class.Const fail.
func (in *Interpreter) SetReadOnly(ref Ref) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return errors.DeadObject(errors.PhaseHost, uint32(ref))
	}
	e.readOnly = true
	return nil
}

// ReadOnly reports whether the object is a read-only view.
func (in *Interpreter) ReadOnly(ref Ref) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	return ok && e.readOnly
}

// RefCount returns the current strong count, or 0 for dead references.
func (in *Interpreter) RefCount(ref Ref) int32 {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return 0
	}
	return e.refs
}

// Alive reports whether ref resolves to a live object.
func (in *Interpreter) Alive(ref Ref) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	_, ok := in.lookup(ref)
	return ok
}

// Payload returns the raw payload stored in the object.
func (in *Interpreter) Payload(ref Ref) (any, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return nil, false
	}
	return e.payload, true
}

// ClassOf returns the class of the object.
func (in *Interpreter) ClassOf(ref Ref) (*Class, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	e, ok := in.lookup(ref)
	if !ok {
		return nil, false
	}
	return e.class, true
}

// Live returns the number of live objects.
func (in *Interpreter) Live() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	return len(in.entries) - len(in.freeList) - in.retired
}

// snapshot returns the class, unwrapped value and read-only flag of ref.
func (in *Interpreter) snapshot(ref Ref) (*Class, any, bool, error) {
	in.mu.Lock()
	e, ok := in.lookup(ref)
	if !ok {
		in.mu.Unlock()
		return nil, nil, false, errors.DeadObject(errors.PhaseHost, uint32(ref))
	}
	class, payload, ro := e.class, e.payload, e.readOnly
	in.mu.Unlock()

	if v, ok := payload.(Valuer); ok {
		payload = v.Value()
		if payload == nil {
			return nil, nil, false, errors.New(errors.PhaseHost, errors.KindDeadObject).
				HostType(class.Name).
				Detail("object holds no value (moved-from)").
				Build()
		}
	}
	return class, payload, ro, nil
}

// GetAttr reads a named attribute.
func (in *Interpreter) GetAttr(ref Ref, name string) (cty.Value, error) {
	class, payload, _, err := in.snapshot(ref)
	if err != nil {
		return cty.NilVal, err
	}
	attr, ok := class.Attrs[name]
	if !ok || attr.Get == nil {
		return cty.NilVal, errors.AttributeMissing(class.Name, name)
	}
	return attr.Get(in, ref, payload)
}

// SetAttr writes a named attribute. Read-only views and attributes without
// a setter fail with a read_only error.
func (in *Interpreter) SetAttr(ref Ref, name string, v cty.Value) error {
	class, payload, ro, err := in.snapshot(ref)
	if err != nil {
		return err
	}
	attr, ok := class.Attrs[name]
	if !ok {
		return errors.AttributeMissing(class.Name, name)
	}
	if ro || attr.Set == nil {
		return errors.ReadOnly(class.Name, name)
	}
	return attr.Set(in, ref, payload, v)
}

// Call invokes a named method. On a read-only view only methods listed in
// Class.Const may run.
func (in *Interpreter) Call(ref Ref, name string, args ...cty.Value) (cty.Value, error) {
	class, payload, ro, err := in.snapshot(ref)
	if err != nil {
		return cty.NilVal, err
	}
	m, ok := class.Methods[name]
	if !ok {
		return cty.NilVal, errors.AttributeMissing(class.Name, name)
	}
	if ro && !class.Const[name] {
		return cty.NilVal, errors.ReadOnly(class.Name, name)
	}
	return m(in, ref, payload, args)
}

// Str converts the object to a string through its __str__ hook, falling
// back to "<Class object #ref>".
func (in *Interpreter) Str(ref Ref) (string, error) {
	class, payload, _, err := in.snapshot(ref)
	if err != nil {
		return "", err
	}
	if class.Str != nil {
		return class.Str(payload), nil
	}
	return fmt.Sprintf("<%s object #%d>", class.Name, uint32(ref)), nil
}

// Iter returns a new iterator object over ref, owned by the caller.
func (in *Interpreter) Iter(ref Ref) (Ref, error) {
	class, ok := in.ClassOf(ref)
	if !ok {
		return 0, errors.DeadObject(errors.PhaseIterate, uint32(ref))
	}
	if class.Iter == nil {
		return 0, errors.New(errors.PhaseIterate, errors.KindNotIterable).
			HostType(class.Name).
			Build()
	}
	return class.Iter(in, ref)
}

// Next advances an iterator object. ok is false once it is exhausted.
func (in *Interpreter) Next(it Ref) (v cty.Value, ok bool, err error) {
	class, alive := in.ClassOf(it)
	if !alive {
		return cty.NilVal, false, errors.DeadObject(errors.PhaseIterate, uint32(it))
	}
	if class.Next == nil {
		return cty.NilVal, false, errors.New(errors.PhaseIterate, errors.KindNotIterable).
			HostType(class.Name).
			Detail("object is not an iterator").
			Build()
	}
	return class.Next(in, it)
}
