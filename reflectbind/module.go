package reflectbind

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/iteration"
	"github.com/wippyai/bindbridge/overload"
	"github.com/wippyai/bindbridge/registry"
)

// Module is a named group of classes exposed by reflection.
type Module struct {
	caster   *cast.Caster
	implicit *overload.Implicit
	name     string
	records  []*registry.Record
	mu       sync.Mutex
}

// NewModule creates a module that registers its classes in the caster's
// registry.
func NewModule(name string, c *cast.Caster) *Module {
	return &Module{
		name:     name,
		caster:   c,
		implicit: overload.NewImplicit(),
	}
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Technology returns the name recorded on records this module registers.
func (m *Module) Technology() string { return "reflect:" + m.name }

// Caster returns the caster used by the module's hooks.
func (m *Module) Caster() *cast.Caster { return m.caster }

// Implicit returns the module's implicit conversion table.
func (m *Module) Implicit() *overload.Implicit { return m.implicit }

// Records returns the records bound by this module in binding order.
func (m *Module) Records() []*registry.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*registry.Record, len(m.records))
	copy(out, m.records)
	return out
}

// Option configures a class at registration.
type Option func(*registry.Layout)

// WithShape attaches a WIT description of the object fields.
func WithShape(shape wit.Type) Option {
	return func(l *registry.Layout) { l.Shape = shape }
}

// WithDestroy sets the destructor run when the last owner goes away.
func WithDestroy[T any](fn func(*T)) Option {
	return func(l *registry.Layout) {
		l.Destroy = func(p any) { fn(p.(*T)) }
	}
}

// constructors maps a class to its constructor set. A type bound by several
// modules shares the class of the first, so later modules append to the
// same set.
var constructors sync.Map

// ClassBuilder adds constructors and hooks to a bound class.
type ClassBuilder[T any] struct {
	m    *Module
	rec  *registry.Record
	ctor *overload.Set
}

// Class registers T under name and derives its host protocol: exported
// fields become attributes, exported methods become callables with
// snake_case names and fmt.Stringer becomes __str__. When T is already
// registered with the same holder the existing class is reused.
func Class[T any](m *Module, name string, holder registry.Holder, opts ...Option) (*ClassBuilder[T], error) {
	var l registry.Layout
	for _, opt := range opts {
		opt(&l)
	}

	class := host.NewClass(name)
	ctor := overload.NewSet(name)
	l.Construct = func(args []cty.Value, kwargs map[string]cty.Value) (any, error) {
		return construct[T](m, ctor, args, kwargs)
	}
	class.Init = host.Initializer(l.Construct)

	rec, err := registry.Register[T](m.caster.Registry(), registry.Record{
		Name:       name,
		Holder:     holder,
		Technology: m.Technology(),
		Layout:     l,
		Class:      class,
	})
	if err != nil {
		Logger().Error("bind class",
			zap.String("module", m.name),
			zap.String("class", name),
			zap.Error(err))
		return nil, err
	}

	// The first module to bind a class derives its protocol. A class
	// created by a technology that registered T without binding it is
	// adopted the same way.
	target := rec.Class
	stored, loaded := constructors.LoadOrStore(target, ctor)
	if !loaded {
		if target.Init == nil {
			target.Init = class.Init
		}
		bindFields[T](target)
		bindMethods[T](target)
		if reflect.PointerTo(rec.Type).Implements(reflect.TypeFor[fmt.Stringer]()) {
			target.Str = func(p any) string { return p.(fmt.Stringer).String() }
		}
	}
	ctor = stored.(*overload.Set)

	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()

	Logger().Debug("class bound",
		zap.String("module", m.name),
		zap.String("class", rec.Name),
		zap.String("owner", rec.Technology),
		zap.Int("attrs", len(rec.Class.Attrs)),
		zap.Int("methods", len(rec.Class.Methods)))

	return &ClassBuilder[T]{m: m, rec: rec, ctor: ctor}, nil
}

func construct[T any](m *Module, ctor *overload.Set, args []cty.Value, kwargs map[string]cty.Value) (any, error) {
	if ctor.Len() == 0 {
		return nil, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			HostType(ctor.Name()).
			Detail("no constructor defined").
			Build()
	}
	out, _, err := ctor.Call(args, kwargs)
	if err != nil {
		return nil, err
	}
	p, ok := out.(*T)
	if !ok || p == nil {
		return nil, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			GoType(registry.TypeFor[T]().String()).
			Detail("constructor returned %T", out).
			Build()
	}
	return cast.Wrap(m.caster, p)
}

// Record returns the registry record of the class.
func (b *ClassBuilder[T]) Record() *registry.Record { return b.rec }

// Def appends a constructor overload. Declaration order is resolution
// order.
func (b *ClassBuilder[T]) Def(params []overload.Param, fn func(args []any) (*T, error)) *ClassBuilder[T] {
	b.ctor.Add(params, func(args []any) (any, error) {
		return fn(args)
	})
	return b
}

// Attr adds or replaces a named attribute.
func (b *ClassBuilder[T]) Attr(name string, attr host.Attribute) *ClassBuilder[T] {
	b.rec.Class.Attrs[name] = attr
	return b
}

// Method adds or replaces a named method. It cannot be called on
// read-only views.
func (b *ClassBuilder[T]) Method(name string, fn func(self *T, args []cty.Value) (cty.Value, error)) *ClassBuilder[T] {
	b.rec.Class.Methods[name] = func(_ *host.Interpreter, _ host.Ref, payload any, args []cty.Value) (cty.Value, error) {
		return fn(payload.(*T), args)
	}
	delete(b.rec.Class.Const, name)
	return b
}

// ConstMethod is Method for functions that do not modify self. They stay
// callable on read-only views.
func (b *ClassBuilder[T]) ConstMethod(name string, fn func(self *T, args []cty.Value) (cty.Value, error)) *ClassBuilder[T] {
	b.Method(name, fn)
	b.rec.Class.MarkConst(name)
	return b
}

// Implicit registers a conversion from values of type from into T, used
// when T is a constructor or method parameter.
func (b *ClassBuilder[T]) Implicit(from cty.Type, fn func(cty.Value) (*T, error)) *ClassBuilder[T] {
	overload.RegisterImplicit(b.m.implicit, from, fn)
	return b
}

// Param returns a converter accepting T objects and implicit conversions
// registered on the module.
func (b *ClassBuilder[T]) Param() overload.Converter {
	return overload.Object[T](b.m.caster, b.m.implicit)
}

// IterOver makes the class iterable. items returns the elements of one
// object; wrap turns each element into a host value owned by the caller.
// The iterator keeps the container alive.
func IterOver[T, E any](b *ClassBuilder[T], items func(*T) iteration.Source[E], wrap func(self *handle.Foreign, item E) (cty.Value, error)) *ClassBuilder[T] {
	c := b.m.caster
	b.rec.Class.Iter = func(in *host.Interpreter, self host.Ref) (host.Ref, error) {
		container := handle.Borrow(in, self)
		p, err := cast.Peek[T](c, container)
		if err != nil {
			return 0, err
		}
		return iteration.Open(in, self, items(p), func(e E) (cty.Value, error) {
			return wrap(container, e)
		})
	}
	return b
}

// Construct calls the class constructor of T and returns a strong handle
// to the new object.
func Construct[T any](m *Module, args []cty.Value, kwargs map[string]cty.Value) (*handle.Foreign, error) {
	rec, ok := registry.LookupFor[T](m.caster.Registry())
	if !ok {
		return nil, errors.UnknownType(errors.PhaseHost, registry.TypeFor[T]().String())
	}
	in := m.caster.Interpreter()
	ref, err := in.Construct(rec.Class, args, kwargs)
	if err != nil {
		return nil, err
	}
	return handle.Steal(in, ref), nil
}

func bindFields[T any](class *host.Class) {
	t := registry.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Anonymous {
			continue
		}
		ty, err := impliedType(f.Type)
		if err != nil {
			Logger().Debug("skip field",
				zap.String("type", t.String()),
				zap.String("field", f.Name),
				zap.Error(err))
			continue
		}

		idx := i
		name := toSnakeCase(f.Name)
		class.Attrs[name] = host.Attribute{
			Get: func(_ *host.Interpreter, _ host.Ref, payload any) (cty.Value, error) {
				fv := reflect.ValueOf(payload).Elem().Field(idx)
				return gocty.ToCtyValue(fv.Interface(), ty)
			},
			Set: func(_ *host.Interpreter, _ host.Ref, payload any, v cty.Value) error {
				cv, err := convert.Convert(v, ty)
				if err != nil {
					return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
						HostType(class.Name).
						Path(name).
						Cause(err).
						Build()
				}
				fv := reflect.ValueOf(payload).Elem().Field(idx)
				return gocty.FromCtyValue(cv, fv.Addr().Interface())
			},
		}
	}
}

var errorType = reflect.TypeFor[error]()

func bindMethods[T any](class *host.Class) {
	pt := reflect.PointerTo(registry.TypeFor[T]())

	for i := 0; i < pt.NumMethod(); i++ {
		method := pt.Method(i)
		if !method.IsExported() || method.Name == "String" {
			continue
		}

		ins, ok := paramTypes(method.Type)
		if !ok {
			continue
		}
		out, hasErr, ok := resultType(method.Type)
		if !ok {
			continue
		}

		fn := method.Func
		name := toSnakeCase(method.Name)
		// value receivers cannot modify the object
		if _, ok := registry.TypeFor[T]().MethodByName(method.Name); ok {
			class.MarkConst(name)
		}
		class.Methods[name] = func(_ *host.Interpreter, _ host.Ref, payload any, args []cty.Value) (cty.Value, error) {
			if len(args) != len(ins) {
				return cty.NilVal, errors.New(errors.PhaseHost, errors.KindInvalidInput).
					HostType(class.Name).
					Path(name).
					Detail("takes %d argument(s), %d given", len(ins), len(args)).
					Build()
			}

			call := make([]reflect.Value, 0, len(ins)+1)
			call = append(call, reflect.ValueOf(payload))
			for j, p := range ins {
				cv, err := convert.Convert(args[j], p.ty)
				if err != nil {
					return cty.NilVal, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
						HostType(class.Name).
						Path(name).
						Detail("argument %d", j).
						Cause(err).
						Build()
				}
				target := reflect.New(p.rt)
				if err := gocty.FromCtyValue(cv, target.Interface()); err != nil {
					return cty.NilVal, err
				}
				call = append(call, target.Elem())
			}

			results := fn.Call(call)
			if hasErr {
				if err, _ := results[len(results)-1].Interface().(error); err != nil {
					return cty.NilVal, err
				}
			}
			if out == nil {
				return host.None, nil
			}
			return gocty.ToCtyValue(results[0].Interface(), *out)
		}
	}
}

// impliedType returns the cty type of rt. Interface types have none.
func impliedType(rt reflect.Type) (cty.Type, error) {
	if rt.Kind() == reflect.Interface {
		return cty.NilType, fmt.Errorf("no cty.Type for interface %s", rt)
	}
	return gocty.ImpliedType(reflect.Zero(rt).Interface())
}

type param struct {
	rt reflect.Type
	ty cty.Type
}

// paramTypes returns the cty types of a method's parameters, skipping the
// receiver. ok is false when any parameter has no cty equivalent.
func paramTypes(mt reflect.Type) ([]param, bool) {
	var out []param
	for i := 1; i < mt.NumIn(); i++ {
		rt := mt.In(i)
		ty, err := impliedType(rt)
		if err != nil {
			return nil, false
		}
		out = append(out, param{rt: rt, ty: ty})
	}
	return out, true
}

// resultType accepts (), (v), (error) and (v, error) result lists.
func resultType(mt reflect.Type) (*cty.Type, bool, bool) {
	n := mt.NumOut()
	hasErr := n > 0 && mt.Out(n-1) == errorType
	if hasErr {
		n--
	}
	switch n {
	case 0:
		return nil, hasErr, true
	case 1:
		ty, err := impliedType(mt.Out(0))
		if err != nil {
			return nil, false, false
		}
		return &ty, hasErr, true
	default:
		return nil, false, false
	}
}
