package wasmbind

import (
	"context"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/registry"
)

// DefaultModuleName is the import module name guests link against.
const DefaultModuleName = "bindbridge"

// Options configures Install.
type Options struct {
	// Registry overrides the process registry. Tests use isolated ones.
	Registry   *registry.Registry
	ModuleName string
}

// Bridge is an installed host module exposing interpreter objects to
// WebAssembly guests as i32 handles.
type Bridge struct {
	module api.Module
	rt     wazero.Runtime
	caster *cast.Caster
	interp *host.Interpreter
	reg    *registry.Registry
	name   string
	guests atomic.Uint32
}

var (
	i32  = api.ValueTypeI32
	one  = []api.ValueType{i32}
	tri  = []api.ValueType{i32, i32, i32}
	none = []api.ValueType{}
)

// Install instantiates the bridge host module in rt. It registers no
// types; it sees whatever other technologies have registered.
func Install(ctx context.Context, rt wazero.Runtime, in *host.Interpreter, opts Options) (*Bridge, error) {
	if rt == nil || in == nil {
		return nil, errors.InvalidInput(errors.PhaseBridge, "runtime and interpreter are required")
	}

	reg := opts.Registry
	if reg == nil {
		reg = registry.GetOrInit()
	}
	name := opts.ModuleName
	if name == "" {
		name = DefaultModuleName
	}

	b := &Bridge{
		rt:     rt,
		caster: cast.New(in, reg),
		interp: in,
		reg:    reg,
		name:   name,
	}

	builder := rt.NewHostModuleBuilder(name)
	for _, f := range b.funcs() {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseBridge, errors.KindInvalidInput, err, "instantiate host module "+name)
	}
	b.module = mod

	Logger().Debug("bridge installed",
		zap.String("module", name),
		zap.Int("types", reg.Len()))
	return b, nil
}

type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func (b *Bridge) funcs() []hostFunc {
	return []hostFunc{
		{name: "incref", fn: b.incref, params: one, results: one},
		{name: "decref", fn: b.decref, params: one, results: one},
		{name: "refcount", fn: b.refcount, params: one, results: one},
		{name: "alive", fn: b.alive, params: one, results: one},
		{name: "type_index", fn: b.typeIndex, params: one, results: one},
		{name: "cast", fn: b.castCheck, params: tri, results: one},
		{name: "holder", fn: b.holderOf, params: one, results: one},
		{name: "type_count", fn: b.typeCount, params: none, results: one},
	}
}

// Module returns the instantiated host module. Its functions are meant to
// be imported by guests; wazero does not let Go call them directly, use
// the Bridge methods or a Guest instead.
func (b *Bridge) Module() api.Module { return b.module }

// Name returns the import module name.
func (b *Bridge) Name() string { return b.name }

// Caster returns the caster the bridge validates with.
func (b *Bridge) Caster() *cast.Caster { return b.caster }

// Close closes the host module.
func (b *Bridge) Close(ctx context.Context) error {
	return b.module.Close(ctx)
}

// Lend gives a guest its own strong reference to the object behind h. The
// guest releases it with decref.
func (b *Bridge) Lend(h *handle.Foreign) (uint32, error) {
	c, err := h.Clone()
	if err != nil {
		return 0, err
	}
	return uint32(c.Detach()), nil
}

// IncRef adds a strong reference on behalf of a guest.
func (b *Bridge) IncRef(ref uint32) Status {
	return StatusOf(b.interp.IncRef(host.Ref(ref)))
}

// DecRef drops a strong reference held by a guest.
func (b *Bridge) DecRef(ref uint32) Status {
	return StatusOf(b.interp.DecRef(host.Ref(ref)))
}

// RefCount returns the strong count of ref, 0 once it is dead.
func (b *Bridge) RefCount(ref uint32) int32 {
	return b.interp.RefCount(host.Ref(ref))
}

// Alive reports whether ref resolves to a live object.
func (b *Bridge) Alive(ref uint32) bool {
	return b.interp.Alive(host.Ref(ref))
}

// TypeIndex returns the registry index of the value behind ref, or -1 when
// ref is dead or not a registered object.
func (b *Bridge) TypeIndex(ref uint32) int32 {
	rec, ok := b.caster.RecordOf(host.Ref(ref))
	if !ok {
		return -1
	}
	return int32(rec.Index)
}

// Cast validates that ref can be cast to the indexed type with the given
// holder kind. Nothing changes hands.
func (b *Bridge) Cast(ref uint32, typeIndex int32, holder uint32) Status {
	idx := int(typeIndex)
	rec, ok := b.reg.ByIndex(idx)
	if !ok {
		return StatusOf(errors.UnknownType(errors.PhaseBridge, "#"+strconv.Itoa(idx)))
	}
	if holder > math.MaxUint8 || !registry.Holder(holder).Valid() {
		return StatusOf(errors.InvalidInput(errors.PhaseBridge, "invalid holder "+strconv.FormatUint(uint64(holder), 10)))
	}

	err := b.caster.Validate(host.Ref(ref), rec, registry.Holder(holder))
	if err != nil {
		Logger().Debug("guest cast rejected",
			zap.Uint32("ref", ref),
			zap.String("type", rec.Name),
			zap.Error(err))
	}
	return StatusOf(err)
}

// HolderOf returns the holder kind of the indexed type, 0 for an unknown
// index.
func (b *Bridge) HolderOf(typeIndex int32) int32 {
	rec, ok := b.reg.ByIndex(int(typeIndex))
	if !ok {
		return 0
	}
	return int32(rec.Holder)
}

// TypeCount returns the number of registered types.
func (b *Bridge) TypeCount() int32 {
	return int32(b.reg.Len())
}

func ref0(stack []uint64) uint32 { return api.DecodeU32(stack[0]) }

func boolI32(v bool) uint64 {
	if v {
		return api.EncodeI32(1)
	}
	return api.EncodeI32(0)
}

func (b *Bridge) incref(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(int32(b.IncRef(ref0(stack))))
}

func (b *Bridge) decref(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(int32(b.DecRef(ref0(stack))))
}

func (b *Bridge) refcount(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(b.RefCount(ref0(stack)))
}

func (b *Bridge) alive(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = boolI32(b.Alive(ref0(stack)))
}

func (b *Bridge) typeIndex(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(b.TypeIndex(ref0(stack)))
}

func (b *Bridge) castCheck(_ context.Context, _ api.Module, stack []uint64) {
	st := b.Cast(ref0(stack), api.DecodeI32(stack[1]), api.DecodeU32(stack[2]))
	stack[0] = api.EncodeI32(int32(st))
}

func (b *Bridge) holderOf(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(b.HolderOf(api.DecodeI32(stack[0])))
}

func (b *Bridge) typeCount(_ context.Context, _ api.Module, stack []uint64) {
	stack[0] = api.EncodeI32(b.TypeCount())
}
