package challenge

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/iteration"
	"github.com/wippyai/bindbridge/reflectbind"
)

// Step is one checked outcome of the demo.
type Step struct {
	Name   string
	Result string
}

// Demo runs the challenge scenarios against a module bound with Bind and
// returns what each one produced. Any unexpected outcome is an error.
func Demo(m *reflectbind.Module) ([]Step, error) {
	var steps []Step
	add := func(name, format string, args ...any) {
		steps = append(steps, Step{Name: name, Result: fmt.Sprintf(format, args...)})
	}

	c := m.Caster()
	in := c.Interpreter()

	h, err := cast.Out[StringIntPair](c, cast.NewShared(&StringIntPair{First: "bla", Second: 1}), cast.TakeOwnership, nil)
	if err != nil {
		return steps, err
	}
	defer h.Release()

	back, err := cast.InShared[StringIntPair](c, h)
	if err != nil {
		return steps, err
	}
	p := back.Get()
	add("pair round trip", "(%q, %d)", p.First, p.Second)
	back.Release()

	_, err = cast.InShared[IntPair](c, h)
	if !stderrors.Is(err, errors.ErrTypeMismatch) {
		return steps, fmt.Errorf("cast to IntPair: want type mismatch, got %v", err)
	}
	add("pair as IntPair", "rejected: %v", err)

	w, err := reflectbind.Construct[WhatsIt](m, []cty.Value{cty.StringVal("bla")}, nil)
	if err != nil {
		return steps, err
	}
	s, _ := in.Str(w.Ref())
	w.Release()
	add("WhatsIt(\"bla\")", "%s", s)

	tuple := cty.TupleVal([]cty.Value{cty.StringVal("pair"), cty.NumberIntVal(7)})
	w, err = reflectbind.Construct[WhatsIt](m, []cty.Value{tuple}, nil)
	if err != nil {
		return steps, err
	}
	s, _ = in.Str(w.Ref())
	w.Release()
	add("WhatsIt((\"pair\", 7))", "%s", s)

	_, err = reflectbind.Construct[WhatsIt](m, []cty.Value{cty.EmptyObjectVal}, nil)
	var oe *errors.OverloadError
	if !stderrors.As(err, &oe) {
		return steps, fmt.Errorf("WhatsIt({}): want no matching overload, got %v", err)
	}
	add("WhatsIt({})", "rejected after %d candidates", len(oe.Attempts))

	ps, err := reflectbind.Construct[Pairs](m, nil, nil)
	if err != nil {
		return steps, err
	}
	defer ps.Release()
	for i, name := range []string{"a", "b", "c"} {
		if _, err := in.Call(ps.Ref(), "append", cty.StringVal(name), cty.NumberIntVal(int64(i))); err != nil {
			return steps, err
		}
	}

	items, err := iteration.Collect(in, ps.Ref())
	if err != nil {
		return steps, err
	}
	names := make([]string, 0, len(items))
	for _, v := range items {
		ref, _ := host.AsObject(v)
		first, err := in.GetAttr(ref, "first")
		if err != nil {
			return steps, err
		}
		names = append(names, first.AsString())
		_ = in.DecRef(ref)
	}
	add("iterate Pairs", "%s", strings.Join(names, ", "))

	return steps, nil
}
