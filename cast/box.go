package cast

import (
	"reflect"
	"sync"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/registry"
)

// boxed is the type-erased view of a box used where T is not known.
type boxed interface {
	elemType() reflect.Type
	admits(rec *registry.Record, holder registry.Holder) error
}

// box is the payload stored in host objects built by this package.
// Exactly one of shared or owned describes who owns ptr; when neither is
// set the object only views a value owned elsewhere.
type box[T any] struct {
	ptr     *T
	shared  *Shared[T]
	destroy func(any)
	owned   bool
	mu      sync.Mutex
}

func (b *box[T]) Value() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ptr == nil {
		return nil
	}
	return b.ptr
}

// Drop releases whatever the host object owned.
func (b *box[T]) Drop() {
	b.mu.Lock()
	shared, ptr, owned, destroy := b.shared, b.ptr, b.owned, b.destroy
	b.shared, b.ptr = nil, nil
	b.mu.Unlock()

	switch {
	case shared != nil:
		shared.Release()
	case owned && ptr != nil && destroy != nil:
		destroy(ptr)
	}
}

func (b *box[T]) elemType() reflect.Type { return registry.TypeFor[T]() }

// admits reports whether a cast-in with holder would succeed on b.
func (b *box[T]) admits(rec *registry.Record, holder registry.Holder) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admitsLocked(rec, holder)
}

func (b *box[T]) admitsLocked(rec *registry.Record, holder registry.Holder) error {
	if b.ptr == nil {
		return movedFrom(rec)
	}
	switch {
	case holder == registry.HolderShared && b.shared == nil:
		return errors.New(errors.PhaseCastIn, errors.KindTypeMismatch).
			GoType(rec.Type.String()).
			HostType(rec.Name).
			Detail("object does not hold a shared reference").
			Build()
	case holder == registry.HolderUnique && !b.owned:
		return errors.New(errors.PhaseCastIn, errors.KindTypeMismatch).
			GoType(rec.Type.String()).
			HostType(rec.Name).
			Detail("object does not own its value").
			Build()
	}
	return nil
}

// share returns a new shared owner of the boxed value.
func (b *box[T]) share(rec *registry.Record) (*Shared[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.admitsLocked(rec, registry.HolderShared); err != nil {
		return nil, err
	}
	return b.shared.Clone(), nil
}

// take moves the value out of the host object.
func (b *box[T]) take(rec *registry.Record) (*Unique[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.admitsLocked(rec, registry.HolderUnique); err != nil {
		return nil, err
	}
	u := &Unique[T]{ptr: b.ptr, destroy: b.destroy}
	b.ptr = nil
	b.owned = false
	return u, nil
}

// copyValue returns a copy of the boxed value.
func (b *box[T]) copyValue(rec *registry.Record) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	if b.ptr == nil {
		return zero, movedFrom(rec)
	}
	return *b.ptr, nil
}

func movedFrom(rec *registry.Record) error {
	return errors.New(errors.PhaseCastIn, errors.KindTypeMismatch).
		GoType(rec.Type.String()).
		HostType(rec.Name).
		Detail("moved-from object").
		Build()
}

func readOnlyView(rec *registry.Record) error {
	return errors.New(errors.PhaseCastIn, errors.KindReadOnly).
		GoType(rec.Type.String()).
		HostType(rec.Name).
		Detail("object is a read-only view").
		Build()
}
