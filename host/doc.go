// Package host provides the interpreter side of the interop layer: a
// reference-counted object heap and the object protocol every exposed type
// implements.
//
// # Objects
//
// Objects are created with a Class and a payload and are addressed by Ref:
//
//	in := host.NewInterpreter()
//	ref := in.New(class, payload) // count 1, owned by the caller
//
//	in.IncRef(ref)
//	in.DecRef(ref)
//	in.DecRef(ref) // count 0: finalized
//
// Finalization runs the class finalizer, then Drop on payloads that
// implement Dropper, then releases keep-alive parents.
//
// A heap holds at most 2^24-1 live slots. Each slot is reused up to 256
// times and then retired, so a reference to a finalized object never
// resolves again. Alloc reports exhaustion as an error; New returns Ref 0.
//
// # Read-only views
//
// SetReadOnly marks an object as a view that must not change the value.
// Attribute writes fail, and only methods listed in Class.Const may be
// called.
//
// # Keep-alive
//
// KeepAlive(child, parent) gives the parent one extra reference that is
// released only when the child is finalized. It is how reference-internal
// handles and iterators pin their source.
//
// # Object protocol
//
// A Class supplies a construction trampoline, named attributes, methods,
// a finalizer and optional hooks recognized by fixed names (__iter__,
// __next__, __str__). Hooks run without the interpreter lock held.
//
// # Values
//
// Values crossing the host boundary are cty.Value. Objects travel as
// capsule values:
//
//	v := host.ObjectVal(ref)  // borrows, no count change
//	ref, ok := host.AsObject(v)
//
// # Thread Safety
//
// One lock serializes heap operations, modelling an interpreter that holds
// a global execution lock. Behavior under true concurrent native access is
// not defined beyond memory safety.
package host
