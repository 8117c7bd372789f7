package challenge

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/iteration"
	"github.com/wippyai/bindbridge/loader"
	"github.com/wippyai/bindbridge/overload"
	"github.com/wippyai/bindbridge/reflectbind"
	"github.com/wippyai/bindbridge/registry"
)

// Pair holds two values of arbitrary types.
type Pair[A, B any] struct {
	First  A
	Second B
}

// StringIntPair and IntPair are the two instantiations the challenge binds.
type (
	StringIntPair = Pair[string, int]
	IntPair       = Pair[int, int]
)

// WhatsIt is a named value with two constructors.
type WhatsIt struct {
	Name  string
	Value int
}

func (w *WhatsIt) String() string {
	return fmt.Sprintf("WhatsIt(%s, %d)", w.Name, w.Value)
}

// Pairs is an ordered container of string/int pairs. It is not a host
// sequence; iterating it yields views into its elements.
type Pairs struct {
	items []*StringIntPair
}

// Append adds a pair and returns the new length.
func (p *Pairs) Append(first string, second int) int {
	p.items = append(p.items, &StringIntPair{First: first, Second: second})
	return len(p.items)
}

// Len returns the number of pairs.
func (p *Pairs) Len() int { return len(p.items) }

// At returns the i-th pair.
func (p *Pairs) At(i int) *StringIntPair { return p.items[i] }

// Catalog maps the manifest names of the challenge types to Go types.
func Catalog() loader.Catalog {
	c := loader.Catalog{}
	loader.Add[StringIntPair](c, "Pair")
	loader.Add[IntPair](c, "IntPair")
	loader.Add[WhatsIt](c, "WhatsIt")
	loader.Add[Pairs](c, "Pairs")
	return c
}

var whatsItTuple = cty.Tuple([]cty.Type{cty.String, cty.Number})

// Bind registers the challenge classes on m.
func Bind(m *reflectbind.Module) error {
	if err := bindPairs(m); err != nil {
		return err
	}
	return bindWhatsIt(m)
}

func bindPairs(m *reflectbind.Module) error {
	sp, err := reflectbind.Class[StringIntPair](m, "Pair", registry.HolderShared)
	if err != nil {
		return err
	}
	sp.Def([]overload.Param{
		overload.Arg("first", overload.String()),
		overload.Arg("second", overload.Int()),
	}, func(args []any) (*StringIntPair, error) {
		return &StringIntPair{First: args[0].(string), Second: args[1].(int)}, nil
	})

	ip, err := reflectbind.Class[IntPair](m, "IntPair", registry.HolderShared)
	if err != nil {
		return err
	}
	ip.Def([]overload.Param{
		overload.Arg("first", overload.Int()),
		overload.Arg("second", overload.Int()),
	}, func(args []any) (*IntPair, error) {
		return &IntPair{First: args[0].(int), Second: args[1].(int)}, nil
	})

	ps, err := reflectbind.Class[Pairs](m, "Pairs", registry.HolderUnique)
	if err != nil {
		return err
	}
	ps.Def(nil, func([]any) (*Pairs, error) { return &Pairs{}, nil })

	c := m.Caster()
	reflectbind.IterOver(ps, func(p *Pairs) iteration.Source[*StringIntPair] {
		return p
	}, func(self *handle.Foreign, item *StringIntPair) (cty.Value, error) {
		h, err := cast.Out[StringIntPair](c, cast.NewRaw(item), cast.ReferenceInternal, self)
		if err != nil {
			return cty.NilVal, err
		}
		return host.ObjectVal(h.Detach()), nil
	})
	return nil
}

// bindWhatsIt declares the constructors in resolution order: a name with
// an optional value first, then a copy from another WhatsIt. A (string,
// number) tuple converts to a WhatsIt implicitly.
func bindWhatsIt(m *reflectbind.Module) error {
	b, err := reflectbind.Class[WhatsIt](m, "WhatsIt", registry.HolderShared)
	if err != nil {
		return err
	}
	b.Implicit(whatsItTuple, func(v cty.Value) (*WhatsIt, error) {
		var n int
		if err := gocty.FromCtyValue(v.Index(cty.NumberIntVal(1)), &n); err != nil {
			return nil, err
		}
		return &WhatsIt{Name: v.Index(cty.NumberIntVal(0)).AsString(), Value: n}, nil
	})
	b.Def([]overload.Param{
		overload.Arg("name", overload.String()),
		overload.Opt("value", overload.Int(), cty.NumberIntVal(1)),
	}, func(args []any) (*WhatsIt, error) {
		return &WhatsIt{Name: args[0].(string), Value: args[1].(int)}, nil
	})
	b.Def([]overload.Param{
		overload.Arg("other", b.Param()),
	}, func(args []any) (*WhatsIt, error) {
		o := args[0].(*WhatsIt)
		return &WhatsIt{Name: o.Name, Value: o.Value}, nil
	})
	return nil
}
