// Package cast converts between host objects and typed native owners.
//
// Inbound casts (In, InShared, InUnique) turn a foreign handle into an
// Owner[T]. The target type must be registered and the handle's object must
// hold a T; otherwise the cast fails with an unknown-type or type-mismatch
// error. A scoped strong reference is held while the object is inspected and
// released on every path, so a failed cast leaves the reference count as it
// found it.
//
// Outbound casts (Out, OutConst) build a new host object from an owner under
// an explicit Policy:
//
//	h, err := cast.Out[Pair](c, cast.NewUnique(&p), cast.TakeOwnership, nil)
//	child, err := cast.Out[Elem](c, cast.NewUnique(&elem), cast.ReferenceInternal, h)
//
// OutConst marks the new object read-only. Inbound casts and Borrowed
// reject such objects with a read-only error; Copy reads them by value.
//
// Holder kinds follow the registry: a shared type hands out Shared owners
// backed by one control block, a unique type moves its value between the
// host object and a Unique owner.
package cast
