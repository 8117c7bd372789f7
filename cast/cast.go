package cast

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/registry"
)

// Caster converts between host objects and typed native owners using one
// registry and one interpreter.
type Caster struct {
	reg    *registry.Registry
	interp *host.Interpreter
}

// New creates a caster. A nil registry selects the process registry.
func New(in *host.Interpreter, reg *registry.Registry) *Caster {
	if reg == nil {
		reg = registry.GetOrInit()
	}
	return &Caster{reg: reg, interp: in}
}

// Registry returns the registry used for lookups.
func (c *Caster) Registry() *registry.Registry { return c.reg }

// Interpreter returns the heap outbound objects are created in.
func (c *Caster) Interpreter() *host.Interpreter { return c.interp }

func (c *Caster) record(phase errors.Phase, t reflect.Type) (*registry.Record, error) {
	rec, ok := c.reg.Lookup(t)
	if !ok {
		return nil, errors.UnknownType(phase, t.String())
	}
	return rec, nil
}

// RecordOf returns the record of the value held by a host object created
// by this package.
func (c *Caster) RecordOf(ref host.Ref) (*registry.Record, bool) {
	payload, ok := c.interp.Payload(ref)
	if !ok {
		return nil, false
	}
	b, ok := payload.(boxed)
	if !ok {
		return nil, false
	}
	return c.reg.Lookup(b.elemType())
}

// In casts a host object to an owner of the requested holder kind.
func In[T any](c *Caster, h *handle.Foreign, holder registry.Holder) (Owner[T], error) {
	switch holder {
	case registry.HolderShared:
		s, err := InShared[T](c, h)
		if err != nil {
			return nil, err
		}
		return s, nil
	case registry.HolderUnique:
		u, err := InUnique[T](c, h)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, errors.InvalidInput(errors.PhaseCastIn, fmt.Sprintf("invalid holder kind %d", holder))
	}
}

// InShared returns a new shared owner of the value held by h. The host
// object remains an owner too.
func InShared[T any](c *Caster, h *handle.Foreign) (*Shared[T], error) {
	var out *Shared[T]
	err := inbound[T](c, h, registry.HolderShared, func(b *box[T], rec *registry.Record) error {
		s, err := b.share(rec)
		out = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InUnique moves the value held by h into a unique owner. The host object
// is left empty and later casts from it fail.
func InUnique[T any](c *Caster, h *handle.Foreign) (*Unique[T], error) {
	var out *Unique[T]
	err := inbound[T](c, h, registry.HolderUnique, func(b *box[T], rec *registry.Record) error {
		u, err := b.take(rec)
		out = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// inbound validates h against T and runs fn on its box while holding a
// scoped strong reference.
func inbound[T any](c *Caster, h *handle.Foreign, holder registry.Holder, fn func(*box[T], *registry.Record) error) error {
	if h == nil {
		return errors.InvalidInput(errors.PhaseCastIn, "nil handle")
	}
	rec, err := c.record(errors.PhaseCastIn, registry.TypeFor[T]())
	if err != nil {
		return err
	}
	if rec.Holder != holder {
		return errors.HolderMismatch(errors.PhaseCastIn, rec.Type.String(), rec.Holder.String(), holder.String())
	}

	err = handle.With(h.Interpreter(), h.Ref(), func(f *handle.Foreign) error {
		b, err := boxOf[T](f, rec)
		if err != nil {
			return err
		}
		if f.Interpreter().ReadOnly(f.Ref()) {
			return readOnlyView(rec)
		}
		return fn(b, rec)
	})
	if err != nil {
		Logger().Debug("cast in failed",
			zap.String("type", rec.Name),
			zap.Uint32("ref", uint32(h.Ref())),
			zap.Error(err))
	}
	return err
}

func boxOf[T any](f *handle.Foreign, rec *registry.Record) (*box[T], error) {
	payload, ok := f.Interpreter().Payload(f.Ref())
	if !ok {
		return nil, errors.DeadObject(errors.PhaseCastIn, uint32(f.Ref()))
	}
	b, ok := payload.(*box[T])
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseCastIn, rec.Type.String(), hostTypeName(f, payload))
	}
	return b, nil
}

func hostTypeName(f *handle.Foreign, payload any) string {
	if b, ok := payload.(boxed); ok {
		return b.elemType().String()
	}
	if class, ok := f.Class(); ok && class != nil {
		return class.Name
	}
	return fmt.Sprintf("%T", payload)
}

// Borrowed returns the value held by h without taking ownership. The
// pointer is valid for as long as the host object is. Read-only views are
// rejected; use Copy or Peek to read them.
func Borrowed[T any](c *Caster, h *handle.Foreign) (*T, error) {
	return borrowed[T](c, h, false)
}

// Peek is Borrowed for read access and also accepts read-only views. The
// caller must not modify the value.
func Peek[T any](c *Caster, h *handle.Foreign) (*T, error) {
	return borrowed[T](c, h, true)
}

func borrowed[T any](c *Caster, h *handle.Foreign, allowReadOnly bool) (*T, error) {
	if h == nil {
		return nil, errors.InvalidInput(errors.PhaseCastIn, "nil handle")
	}
	rec, err := c.record(errors.PhaseCastIn, registry.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	var out *T
	err = handle.With(h.Interpreter(), h.Ref(), func(f *handle.Foreign) error {
		b, err := boxOf[T](f, rec)
		if err != nil {
			return err
		}
		if !allowReadOnly && f.Interpreter().ReadOnly(f.Ref()) {
			return readOnlyView(rec)
		}
		v := b.Value()
		if v == nil {
			return movedFrom(rec)
		}
		out = v.(*T)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Copy returns a copy of the value held by h. It works on read-only views.
func Copy[T any](c *Caster, h *handle.Foreign) (T, error) {
	var out T
	if h == nil {
		return out, errors.InvalidInput(errors.PhaseCastIn, "nil handle")
	}
	rec, err := c.record(errors.PhaseCastIn, registry.TypeFor[T]())
	if err != nil {
		return out, err
	}
	err = handle.With(h.Interpreter(), h.Ref(), func(f *handle.Foreign) error {
		b, err := boxOf[T](f, rec)
		if err != nil {
			return err
		}
		out, err = b.copyValue(rec)
		return err
	})
	return out, err
}

// Validate checks that ref holds a value of rec's type that can be cast
// with the given holder kind. It is the type-erased form of In used by
// technologies that only know the record.
func (c *Caster) Validate(ref host.Ref, rec *registry.Record, holder registry.Holder) error {
	if rec.Holder != holder {
		return errors.HolderMismatch(errors.PhaseCastIn, rec.Type.String(), rec.Holder.String(), holder.String())
	}
	return handle.With(c.interp, ref, func(f *handle.Foreign) error {
		payload, _ := f.Interpreter().Payload(f.Ref())
		b, ok := payload.(boxed)
		if !ok || b.elemType() != rec.Type {
			return errors.TypeMismatch(errors.PhaseCastIn, rec.Type.String(), hostTypeName(f, payload))
		}
		if f.Interpreter().ReadOnly(f.Ref()) {
			return readOnlyView(rec)
		}
		return b.admits(rec, holder)
	})
}

// Wrap builds the payload for a freshly constructed value of T. The new
// host object owns the value according to T's holder kind.
func Wrap[T any](c *Caster, v *T) (any, error) {
	rec, err := c.record(errors.PhaseCastOut, registry.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.InvalidInput(errors.PhaseCastOut, "nil value")
	}
	if rec.Holder == registry.HolderShared {
		s := NewShared(v)
		s.ctl.adopt(rec.Layout.Destroy)
		return &box[T]{ptr: v, shared: s}, nil
	}
	return &box[T]{ptr: v, owned: true, destroy: rec.Layout.Destroy}, nil
}

// Out creates a host object for the value held by owner. parent is only
// used by ReferenceInternal and must be alive.
func Out[T any](c *Caster, owner Owner[T], policy Policy, parent *handle.Foreign) (*handle.Foreign, error) {
	return outbound(c, owner, policy, parent, false)
}

// OutConst is Out for values that must not be modified through the host.
// Attribute writes, non-const method calls and mutable cast-ins on the
// returned object fail with a read-only error.
func OutConst[T any](c *Caster, owner Owner[T], policy Policy, parent *handle.Foreign) (*handle.Foreign, error) {
	return outbound(c, owner, policy, parent, true)
}

func outbound[T any](c *Caster, owner Owner[T], policy Policy, parent *handle.Foreign, readOnly bool) (*handle.Foreign, error) {
	rec, err := c.record(errors.PhaseCastOut, registry.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.Get() == nil {
		return nil, errors.New(errors.PhaseCastOut, errors.KindInvalidInput).
			GoType(rec.Type.String()).
			Detail("owner is empty").
			Build()
	}

	b := &box[T]{}
	switch policy {
	case TakeOwnership:
		if owner.Holder() != rec.Holder {
			return nil, errors.HolderMismatch(errors.PhaseCastOut, rec.Type.String(),
				rec.Holder.String(), owner.Holder().String())
		}
		switch o := owner.(type) {
		case *Unique[T]:
			b.ptr = o.take()
			b.owned = true
			b.destroy = rec.Layout.Destroy
		case *Shared[T]:
			s := o.Clone()
			s.ctl.adopt(rec.Layout.Destroy)
			b.shared = s
			b.ptr = s.Get()
		default:
			return nil, errors.New(errors.PhaseCastOut, errors.KindInvalidInput).
				GoType(rec.Type.String()).
				Detail("unsupported owner %T", owner).
				Build()
		}
	case ReferenceInternal:
		if parent == nil || !parent.Alive() {
			return nil, errors.New(errors.PhaseCastOut, errors.KindInvalidInput).
				GoType(rec.Type.String()).
				Detail("reference_internal requires a live parent").
				Build()
		}
		if parent.Interpreter() != c.interp {
			return nil, errors.New(errors.PhaseCastOut, errors.KindInvalidInput).
				GoType(rec.Type.String()).
				Detail("parent belongs to another interpreter").
				Build()
		}
		b.ptr = owner.Get()
	case Borrow:
		b.ptr = owner.Get()
	default:
		return nil, errors.InvalidInput(errors.PhaseCastOut, fmt.Sprintf("invalid policy %d", policy))
	}

	ref, err := c.interp.Alloc(rec.Class, b)
	if err != nil {
		b.Drop()
		return nil, err
	}
	h := handle.Steal(c.interp, ref)

	if policy == ReferenceInternal {
		if err := c.interp.KeepAlive(ref, parent.Ref()); err != nil {
			h.Release()
			return nil, err
		}
	}
	if readOnly {
		if err := c.interp.SetReadOnly(ref); err != nil {
			h.Release()
			return nil, err
		}
	}

	Logger().Debug("cast out",
		zap.String("type", rec.Name),
		zap.Stringer("policy", policy),
		zap.Bool("read_only", readOnly),
		zap.Uint32("ref", uint32(ref)))

	return h, nil
}
