package overload

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/errors"
)

// Param is one named parameter of an overload.
type Param struct {
	Conv       Converter
	Default    cty.Value
	Name       string
	HasDefault bool
}

// Arg declares a required parameter.
func Arg(name string, conv Converter) Param {
	return Param{Name: name, Conv: conv}
}

// Opt declares a parameter with a default used when the caller omits it.
// The default goes through the converter like any other argument.
func Opt(name string, conv Converter, def cty.Value) Param {
	return Param{Name: name, Conv: conv, Default: def, HasDefault: true}
}

// Func is the native implementation of an overload. args holds one
// converted value per parameter, in declaration order.
type Func func(args []any) (any, error)

// Overload is one candidate signature.
type Overload struct {
	Fn     Func
	Params []Param
}

// Signature renders the overload as name(param: type, ...).
func (o Overload) Signature(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, p := range o.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Conv.Name())
		if p.HasDefault {
			b.WriteString(" = ")
			b.WriteString(render(p.Default))
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Set is an ordered list of overloads sharing one name. Candidates are
// tried in declaration order and the first whose arguments all convert is
// called; later candidates are never considered once one matches.
type Set struct {
	name      string
	overloads []Overload
	mu        sync.RWMutex
}

// NewSet creates an empty overload set.
func NewSet(name string) *Set {
	return &Set{name: name}
}

// Name returns the name the set is exposed under.
func (s *Set) Name() string { return s.name }

// Add appends a candidate. Order of Add calls is resolution order.
func (s *Set) Add(params []Param, fn Func) *Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overloads = append(s.overloads, Overload{Params: params, Fn: fn})
	return s
}

// Len returns the number of candidates.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overloads)
}

// Signatures returns the candidate signatures in resolution order.
func (s *Set) Signatures() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.overloads))
	for i, o := range s.overloads {
		out[i] = o.Signature(s.name)
	}
	return out
}

// Call resolves and invokes the first matching candidate. It returns the
// result and the index of the chosen candidate. When no candidate accepts
// the arguments the error lists every attempt.
func (s *Set) Call(args []cty.Value, kwargs map[string]cty.Value) (any, int, error) {
	s.mu.RLock()
	overloads := make([]Overload, len(s.overloads))
	copy(overloads, s.overloads)
	s.mu.RUnlock()

	attempts := make([]errors.Attempt, 0, len(overloads))
	for i, o := range overloads {
		bound, err := bind(o, args, kwargs)
		if err != nil {
			attempts = append(attempts, errors.Attempt{
				Signature: o.Signature(s.name),
				Reason:    err.Error(),
			})
			continue
		}

		Logger().Debug("overload selected",
			zap.String("name", s.name),
			zap.Int("index", i),
			zap.String("signature", o.Signature(s.name)))

		out, err := o.Fn(bound)
		return out, i, err
	}

	err := errors.NewOverloadError(s.name, describeArgs(args, kwargs), attempts)
	Logger().Debug("no matching overload", zap.String("name", s.name), zap.Error(err))
	return nil, -1, err
}

// bind maps positional args, then keyword args, then defaults onto the
// parameters of o and converts each one.
func bind(o Overload, args []cty.Value, kwargs map[string]cty.Value) ([]any, error) {
	if len(args) > len(o.Params) {
		return nil, fmt.Errorf("takes %d argument(s), %d given", len(o.Params), len(args))
	}

	known := make(map[string]struct{}, len(o.Params))
	for _, p := range o.Params {
		known[p.Name] = struct{}{}
	}
	for _, name := range sortedKeys(kwargs) {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unexpected keyword argument %q", name)
		}
	}

	out := make([]any, len(o.Params))
	for i, p := range o.Params {
		kv, hasKw := kwargs[p.Name]

		var v cty.Value
		switch {
		case i < len(args) && hasKw:
			return nil, fmt.Errorf("multiple values for argument %q", p.Name)
		case i < len(args):
			v = args[i]
		case hasKw:
			v = kv
		case p.HasDefault:
			v = p.Default
		default:
			return nil, fmt.Errorf("missing argument %q", p.Name)
		}

		cv, err := p.Conv.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		out[i] = cv
	}
	return out, nil
}

func describeArgs(args []cty.Value, kwargs map[string]cty.Value) []string {
	out := make([]string, 0, len(args)+len(kwargs))
	for _, a := range args {
		out = append(out, describe(a))
	}
	for _, name := range sortedKeys(kwargs) {
		out = append(out, name+"="+describe(kwargs[name]))
	}
	return out
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// render formats a default value for signatures.
func render(v cty.Value) string {
	if !v.IsKnown() || v.IsNull() {
		return "None"
	}
	switch v.Type() {
	case cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case cty.Bool:
		if v.True() {
			return "True"
		}
		return "False"
	}
	return v.Type().FriendlyName()
}
