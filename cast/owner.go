package cast

import (
	"sync"
	"sync/atomic"

	"github.com/wippyai/bindbridge/registry"
)

// Owner is a typed owning reference to a native value.
type Owner[T any] interface {
	// Get returns the value, or nil once the owner is empty.
	Get() *T
	Holder() registry.Holder
	// Release gives up this owner's claim on the value.
	Release()
}

// Unique is the sole owner of a value.
type Unique[T any] struct {
	ptr     *T
	destroy func(any)
	mu      sync.Mutex
}

// NewUnique wraps v in a unique owner.
func NewUnique[T any](v *T) *Unique[T] {
	return &Unique[T]{ptr: v}
}

func (u *Unique[T]) Get() *T {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ptr
}

func (u *Unique[T]) Holder() registry.Holder { return registry.HolderUnique }

// Release empties the owner and runs the destructor, if one was attached
// when the value came out of a host object.
func (u *Unique[T]) Release() {
	if u == nil {
		return
	}
	p := u.take()
	if p != nil && u.destroy != nil {
		u.destroy(p)
	}
}

// take moves the value out, leaving the owner empty.
func (u *Unique[T]) take() *T {
	u.mu.Lock()
	defer u.mu.Unlock()
	p := u.ptr
	u.ptr = nil
	return p
}

// control is the block shared by every Shared owner of one value.
type control[T any] struct {
	ptr     *T
	destroy func(any)
	uses    atomic.Int32
	mu      sync.Mutex
}

// adopt attaches a destructor if none is set yet.
func (c *control[T]) adopt(destroy func(any)) {
	if destroy == nil {
		return
	}
	c.mu.Lock()
	if c.destroy == nil {
		c.destroy = destroy
	}
	c.mu.Unlock()
}

func (c *control[T]) release() {
	if c.uses.Add(-1) != 0 {
		return
	}
	c.mu.Lock()
	destroy := c.destroy
	c.mu.Unlock()
	if destroy != nil {
		destroy(c.ptr)
	}
}

// Shared is one owner of a reference-counted value. The value is destroyed
// when the last owner releases it.
type Shared[T any] struct {
	ctl      *control[T]
	released atomic.Bool
}

// NewShared wraps v in a new control block with one owner.
func NewShared[T any](v *T) *Shared[T] {
	ctl := &control[T]{ptr: v}
	ctl.uses.Store(1)
	return &Shared[T]{ctl: ctl}
}

func (s *Shared[T]) Get() *T {
	if s == nil || s.released.Load() {
		return nil
	}
	return s.ctl.ptr
}

func (s *Shared[T]) Holder() registry.Holder { return registry.HolderShared }

// Clone returns a new owner of the same value.
func (s *Shared[T]) Clone() *Shared[T] {
	s.ctl.uses.Add(1)
	return &Shared[T]{ctl: s.ctl}
}

// Release drops this owner. Repeated calls are no-ops.
func (s *Shared[T]) Release() {
	if s == nil || !s.released.CompareAndSwap(false, true) {
		return
	}
	s.ctl.release()
}

// UseCount returns the number of live owners, host objects included.
func (s *Shared[T]) UseCount() int32 {
	return s.ctl.uses.Load()
}

// Raw is a non-owning pointer for Borrow and ReferenceInternal casts. It
// carries no holder kind, so TakeOwnership rejects it.
type Raw[T any] struct {
	ptr *T
}

// NewRaw wraps v without taking ownership.
func NewRaw[T any](v *T) Raw[T] {
	return Raw[T]{ptr: v}
}

func (r Raw[T]) Get() *T { return r.ptr }

func (r Raw[T]) Holder() registry.Holder { return 0 }

func (r Raw[T]) Release() {}
