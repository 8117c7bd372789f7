// Package handle wraps host object references for use by a binding
// technology that did not create them.
//
// A Foreign handle is either strong (it owns one reference count on the
// object) or borrowed (it owns nothing). Release gives back a strong
// reference exactly once; further calls are no-ops. Scoped use goes
// through With, which releases on every exit path:
//
//	err := handle.With(in, ref, func(h *handle.Foreign) error {
//	    return inspect(h)
//	})
package handle

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/host"
)

// Foreign is a reference to a host object together with a flag telling
// whether this handle holds a strong reference.
type Foreign struct {
	interp   *host.Interpreter
	ref      host.Ref
	strong   bool
	released bool
}

// Borrow wraps ref without touching its reference count. The caller must
// ensure the object outlives the handle.
func Borrow(in *host.Interpreter, ref host.Ref) *Foreign {
	return &Foreign{interp: in, ref: ref}
}

// Acquire wraps ref and takes a new strong reference.
func Acquire(in *host.Interpreter, ref host.Ref) (*Foreign, error) {
	if err := in.IncRef(ref); err != nil {
		return nil, err
	}
	return &Foreign{interp: in, ref: ref, strong: true}, nil
}

// Steal wraps ref and adopts a strong reference the caller already owns.
func Steal(in *host.Interpreter, ref host.Ref) *Foreign {
	return &Foreign{interp: in, ref: ref, strong: true}
}

// FromValue borrows the object carried by a host value.
func FromValue(in *host.Interpreter, v cty.Value) (*Foreign, error) {
	ref, ok := host.AsObject(v)
	if !ok {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			HostType(v.Type().FriendlyName()).
			Detail("value is not an object").
			Build()
	}
	return Borrow(in, ref), nil
}

// With acquires ref for the duration of fn and releases it afterwards,
// including when fn returns an error or panics.
func With(in *host.Interpreter, ref host.Ref, fn func(*Foreign) error) error {
	h, err := Acquire(in, ref)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h)
}

// Release drops the strong reference held by the handle. It is safe to call
// more than once and on borrowed handles.
func (f *Foreign) Release() {
	if f == nil || !f.strong || f.released {
		return
	}
	f.released = true
	if err := f.interp.DecRef(f.ref); err != nil {
		Logger().Warn("release foreign handle", zapRef(f.ref), zapErr(err))
	}
}

// Detach hands the strong reference to the caller without changing the
// count. The handle becomes released.
func (f *Foreign) Detach() host.Ref {
	f.released = true
	return f.ref
}

// Clone returns a new strong handle to the same object.
func (f *Foreign) Clone() (*Foreign, error) {
	return Acquire(f.interp, f.ref)
}

// Ref returns the wrapped object reference.
func (f *Foreign) Ref() host.Ref { return f.ref }

// Interpreter returns the heap the object lives in.
func (f *Foreign) Interpreter() *host.Interpreter { return f.interp }

// Strong reports whether the handle currently owns a reference.
func (f *Foreign) Strong() bool { return f.strong && !f.released }

// Alive reports whether the object is still live.
func (f *Foreign) Alive() bool { return f.interp.Alive(f.ref) }

// Class returns the host class of the object.
func (f *Foreign) Class() (*host.Class, bool) { return f.interp.ClassOf(f.ref) }

// Value returns the object as a host value. The value borrows the handle.
func (f *Foreign) Value() cty.Value { return host.ObjectVal(f.ref) }
