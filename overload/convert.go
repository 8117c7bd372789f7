package overload

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/registry"
)

// Converter turns a host value into the Go value a parameter expects.
// Convert fails when the value is not convertible; the failure rejects the
// candidate, it is not reported on its own.
type Converter interface {
	Name() string
	Convert(v cty.Value) (any, error)
}

type primitive struct {
	name string
	ty   cty.Type
	out  func(cty.Value) (any, error)
}

func (p primitive) Name() string { return p.name }

func (p primitive) Convert(v cty.Value) (any, error) {
	if !v.IsKnown() || v.IsNull() {
		return nil, fmt.Errorf("expected %s, got %s", p.name, describe(v))
	}
	if host.IsObject(v) {
		return nil, fmt.Errorf("expected %s, got object", p.name)
	}
	cv, err := convert.Convert(v, p.ty)
	if err != nil {
		return nil, fmt.Errorf("expected %s, got %s", p.name, describe(v))
	}
	return p.out(cv)
}

// String accepts strings and values with a safe conversion to string.
func String() Converter {
	return primitive{name: "string", ty: cty.String, out: func(v cty.Value) (any, error) {
		return v.AsString(), nil
	}}
}

// Int accepts whole numbers that fit in an int.
func Int() Converter {
	return primitive{name: "int", ty: cty.Number, out: func(v cty.Value) (any, error) {
		var n int
		if err := gocty.FromCtyValue(v, &n); err != nil {
			return nil, fmt.Errorf("expected int: %w", err)
		}
		return n, nil
	}}
}

// Float accepts any number.
func Float() Converter {
	return primitive{name: "float", ty: cty.Number, out: func(v cty.Value) (any, error) {
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("expected float: %w", err)
		}
		return f, nil
	}}
}

// Bool accepts booleans.
func Bool() Converter {
	return primitive{name: "bool", ty: cty.Bool, out: func(v cty.Value) (any, error) {
		return v.True(), nil
	}}
}

type passthrough struct{}

func (passthrough) Name() string { return "any" }

func (passthrough) Convert(v cty.Value) (any, error) { return v, nil }

// Value passes the host value through unchanged.
func Value() Converter { return passthrough{} }

// Implicit holds implicit conversions from host values to native types,
// tried when a value is not already an object of the wanted type.
type Implicit struct {
	rules map[reflect.Type][]rule
	mu    sync.RWMutex
}

type rule struct {
	from cty.Type
	fn   func(cty.Value) (any, error)
}

// NewImplicit creates an empty conversion table.
func NewImplicit() *Implicit {
	return &Implicit{rules: make(map[reflect.Type][]rule)}
}

// RegisterImplicit adds a conversion from values convertible to from into
// T. Rules for one type are tried in registration order.
func RegisterImplicit[T any](im *Implicit, from cty.Type, fn func(cty.Value) (*T, error)) {
	t := registry.TypeFor[T]()
	im.mu.Lock()
	defer im.mu.Unlock()
	im.rules[t] = append(im.rules[t], rule{
		from: from,
		fn: func(v cty.Value) (any, error) {
			return fn(v)
		},
	})
}

// apply runs the first rule for t whose source type accepts v.
func (im *Implicit) apply(t reflect.Type, v cty.Value) (any, bool, error) {
	if im == nil {
		return nil, false, nil
	}
	im.mu.RLock()
	rules := im.rules[t]
	im.mu.RUnlock()

	for _, r := range rules {
		conv := convert.GetConversion(v.Type(), r.from)
		if conv == nil {
			continue
		}
		cv, err := conv(v)
		if err != nil {
			continue
		}
		out, err := r.fn(cv)
		return out, true, err
	}
	return nil, false, nil
}

type object[T any] struct {
	caster   *cast.Caster
	implicit *Implicit
	name     string
}

// Object accepts host objects holding a T and values with an implicit
// conversion to T. The converted value is a *T borrowed from the object or
// freshly built by the conversion.
func Object[T any](c *cast.Caster, im *Implicit) Converter {
	name := registry.TypeFor[T]().Name()
	if rec, ok := registry.LookupFor[T](c.Registry()); ok {
		name = rec.Name
	}
	return object[T]{caster: c, implicit: im, name: name}
}

func (o object[T]) Name() string { return o.name }

func (o object[T]) Convert(v cty.Value) (any, error) {
	if ref, ok := host.AsObject(v); ok {
		h := handle.Borrow(o.caster.Interpreter(), ref)
		if o.caster.Interpreter().ReadOnly(ref) {
			// the callee gets a copy it may modify
			cp, err := cast.Copy[T](o.caster, h)
			if err != nil {
				return nil, err
			}
			return &cp, nil
		}
		p, err := cast.Borrowed[T](o.caster, h)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	if !v.IsKnown() || v.IsNull() {
		return nil, fmt.Errorf("expected %s, got %s", o.name, describe(v))
	}

	out, ok, err := o.implicit.apply(registry.TypeFor[T](), v)
	if !ok {
		return nil, fmt.Errorf("expected %s, got %s (no implicit conversion)", o.name, describe(v))
	}
	if err != nil {
		return nil, fmt.Errorf("implicit conversion to %s: %w", o.name, err)
	}
	return out, nil
}

func describe(v cty.Value) string {
	if v.Type() == cty.NilType {
		return "nothing"
	}
	if !v.IsKnown() {
		return "unknown"
	}
	if v.IsNull() {
		return "null"
	}
	return v.Type().FriendlyName()
}
