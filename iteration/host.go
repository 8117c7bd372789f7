package iteration

import (
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/host"
)

// WrapFunc converts one item into a host value. Items that become host
// objects should be returned as owned references wrapped with
// host.ObjectVal; the caller of Next takes ownership.
type WrapFunc[T any] func(T) (cty.Value, error)

type hostIter[T any] struct {
	it   *Iterator[T]
	wrap WrapFunc[T]
}

var iteratorClass = func() *host.Class {
	c := host.NewClass("iterator")
	c.Iter = func(in *host.Interpreter, self host.Ref) (host.Ref, error) {
		if err := in.IncRef(self); err != nil {
			return 0, err
		}
		return self, nil
	}
	c.Next = func(in *host.Interpreter, self host.Ref) (cty.Value, bool, error) {
		payload, ok := in.Payload(self)
		if !ok {
			return cty.NilVal, false, errors.DeadObject(errors.PhaseIterate, uint32(self))
		}
		n, ok := payload.(nexter)
		if !ok {
			return cty.NilVal, false, errors.New(errors.PhaseIterate, errors.KindInvalidData).
				HostType("iterator").
				Detail("unexpected payload %T", payload).
				Build()
		}
		return n.next()
	}
	return c
}()

type nexter interface {
	next() (cty.Value, bool, error)
}

func (h *hostIter[T]) next() (cty.Value, bool, error) {
	step := h.it.Next()
	if step.Done() {
		return cty.NilVal, false, nil
	}
	v, err := h.wrap(step.Value())
	if err != nil {
		return cty.NilVal, false, errors.Wrap(errors.PhaseIterate, errors.KindInvalidData, err, "wrap item")
	}
	return v, true, nil
}

// Open creates a host iterator object over src. The iterator keeps
// container alive through a back-reference; it does not own it. The
// returned reference is owned by the caller.
func Open[T any](in *host.Interpreter, container host.Ref, src Source[T], wrap WrapFunc[T]) (host.Ref, error) {
	if !in.Alive(container) {
		return 0, errors.DeadObject(errors.PhaseIterate, uint32(container))
	}

	ref, err := in.Alloc(iteratorClass, &hostIter[T]{it: New(src), wrap: wrap})
	if err != nil {
		return 0, err
	}
	if err := in.KeepAlive(ref, container); err != nil {
		_ = in.DecRef(ref)
		return 0, err
	}

	Logger().Debug("iterator opened",
		zap.Uint32("container", uint32(container)),
		zap.Uint32("iterator", uint32(ref)),
		zap.Int("len", src.Len()))
	return ref, nil
}

// Collect drains a host iterable into a slice of host values.
func Collect(in *host.Interpreter, iterable host.Ref) ([]cty.Value, error) {
	it, err := in.Iter(iterable)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.DecRef(it) }()

	var out []cty.Value
	for {
		v, ok, err := in.Next(it)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
