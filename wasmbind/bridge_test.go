package wasmbind

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/bindbridge/cast"
	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/registry"
)

type point struct{ X, Y int }

type label struct{ Text string }

type env struct {
	ctx    context.Context
	in     *host.Interpreter
	reg    *registry.Registry
	bridge *Bridge
	guest  *Guest
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	reg := registry.New()
	_, err := registry.Register[point](reg, registry.Record{Name: "Point", Holder: registry.HolderShared})
	require.NoError(t, err)
	_, err = registry.Register[label](reg, registry.Record{Name: "Label", Holder: registry.HolderUnique})
	require.NoError(t, err)

	in := host.NewInterpreter()
	b, err := Install(ctx, rt, in, Options{Registry: reg})
	require.NoError(t, err)
	g, err := b.Guest(ctx)
	require.NoError(t, err)
	return &env{ctx: ctx, in: in, reg: reg, bridge: b, guest: g}
}

// call runs a bridge function from inside the guest.
func (e *env) call(t *testing.T, name string, params ...uint32) int32 {
	t.Helper()
	res, err := e.guest.Call(e.ctx, name, params...)
	require.NoError(t, err)
	return res
}

func TestInstall_Defaults(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, DefaultModuleName, e.bridge.Name())
	assert.Equal(t, int32(2), e.call(t, "type_count"))

	_, err := Install(e.ctx, nil, e.in, Options{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestInstall_ProcessRegistry(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	b, err := Install(ctx, rt, host.NewInterpreter(), Options{ModuleName: "bb"})
	require.NoError(t, err)
	assert.Same(t, registry.GetOrInit(), b.Caster().Registry())
	assert.NotNil(t, rt.Module("bb"))
}

func TestRefcounting(t *testing.T) {
	e := newEnv(t)
	h, err := cast.Out[point](e.bridge.Caster(), cast.NewShared(&point{1, 2}), cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()

	ref, err := e.bridge.Lend(h)
	require.NoError(t, err)
	assert.Equal(t, int32(2), e.call(t, "refcount", ref))

	assert.Equal(t, int32(StatusOK), e.call(t, "incref", ref))
	assert.Equal(t, int32(3), e.call(t, "refcount", ref))
	assert.Equal(t, int32(StatusOK), e.call(t, "decref", ref))
	assert.Equal(t, int32(StatusOK), e.call(t, "decref", ref))
	assert.Equal(t, int32(1), e.in.RefCount(h.Ref()))
}

func TestDeadHandle(t *testing.T) {
	e := newEnv(t)
	h, err := cast.Out[point](e.bridge.Caster(), cast.NewShared(&point{}), cast.TakeOwnership, nil)
	require.NoError(t, err)
	ref := uint32(h.Ref())
	h.Release()

	assert.Equal(t, int32(StatusDeadHandle), e.call(t, "incref", ref))
	assert.Equal(t, int32(StatusDeadHandle), e.call(t, "decref", ref))
	assert.Equal(t, int32(0), e.call(t, "refcount", ref))
	assert.Equal(t, int32(-1), e.call(t, "type_index", ref))
	assert.Equal(t, int32(StatusDeadHandle), e.call(t, "cast", ref, 0, uint32(registry.HolderShared)))
	assert.Equal(t, int32(0), e.call(t, "alive", ref))
	assert.False(t, e.bridge.Alive(ref))
}

func TestTypeIndexAndCast(t *testing.T) {
	e := newEnv(t)
	pointRec, _ := registry.LookupFor[point](e.reg)
	labelRec, _ := registry.LookupFor[label](e.reg)

	h, err := cast.Out[point](e.bridge.Caster(), cast.NewShared(&point{3, 4}), cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()
	ref := uint32(h.Ref())

	assert.Equal(t, int32(pointRec.Index), e.call(t, "type_index", ref))
	assert.Equal(t, int32(registry.HolderShared), e.call(t, "holder", uint32(pointRec.Index)))
	assert.Equal(t, int32(registry.HolderUnique), e.call(t, "holder", uint32(labelRec.Index)))
	assert.Equal(t, int32(0), e.call(t, "holder", 99))

	tests := []struct {
		name   string
		index  int
		holder uint32
		want   Status
	}{
		{"ok", pointRec.Index, uint32(registry.HolderShared), StatusOK},
		{"wrong type", labelRec.Index, uint32(registry.HolderUnique), StatusTypeMismatch},
		{"wrong holder", pointRec.Index, uint32(registry.HolderUnique), StatusHolderMismatch},
		{"unknown index", 42, uint32(registry.HolderShared), StatusUnknownType},
		{"bad holder", pointRec.Index, 7, StatusInvalid},
		{"holder wraps to shared", pointRec.Index, 256 + uint32(registry.HolderShared), StatusInvalid},
		{"holder wraps to unique", labelRec.Index, 256 + uint32(registry.HolderUnique), StatusInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.call(t, "cast", ref, uint32(tt.index), tt.holder)
			assert.Equal(t, int32(tt.want), got, tt.want.String())
			assert.Equal(t, tt.want, e.bridge.Cast(ref, int32(tt.index), tt.holder))
			assert.Equal(t, int32(1), e.in.RefCount(h.Ref()), "cast must not change the count")
		})
	}
}

func TestTypeIndex_ForeignObject(t *testing.T) {
	e := newEnv(t)
	ref := uint32(e.in.New(host.NewClass("Plain"), 1))
	assert.Equal(t, int32(-1), e.call(t, "type_index", ref))
	assert.Equal(t, int32(StatusTypeMismatch), e.call(t, "cast", ref, 0, uint32(registry.HolderShared)))
}

func TestCast_ViewsAgreeWithCastIn(t *testing.T) {
	e := newEnv(t)
	c := e.bridge.Caster()
	pointRec, _ := registry.LookupFor[point](e.reg)
	idx := uint32(pointRec.Index)
	shared := uint32(registry.HolderShared)

	owner := cast.NewShared(&point{1, 1})
	defer owner.Release()
	parent, err := cast.Out[point](c, owner, cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer parent.Release()

	view, err := cast.Out[point](c, cast.NewRaw(&point{2, 2}), cast.ReferenceInternal, parent)
	require.NoError(t, err)
	defer view.Release()
	_, err = cast.InShared[point](c, view)
	require.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Equal(t, int32(StatusTypeMismatch), e.call(t, "cast", uint32(view.Ref()), idx, shared))

	frozen, err := cast.OutConst[point](c, owner, cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer frozen.Release()
	_, err = cast.InShared[point](c, frozen)
	require.ErrorIs(t, err, errors.ErrReadOnly)
	assert.Equal(t, int32(StatusReadOnly), e.call(t, "cast", uint32(frozen.Ref()), idx, shared))

	assert.Equal(t, int32(StatusOK), e.call(t, "cast", uint32(parent.Ref()), idx, shared))
}

func TestGoAPIMatchesGuest(t *testing.T) {
	e := newEnv(t)
	h, err := cast.Out[point](e.bridge.Caster(), cast.NewShared(&point{}), cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()
	ref := uint32(h.Ref())

	assert.Equal(t, e.bridge.TypeCount(), e.call(t, "type_count"))
	assert.Equal(t, e.bridge.TypeIndex(ref), e.call(t, "type_index", ref))
	assert.Equal(t, e.bridge.RefCount(ref), e.call(t, "refcount", ref))
	assert.Equal(t, e.bridge.HolderOf(0), e.call(t, "holder", 0))
	assert.True(t, e.bridge.Alive(ref))
	assert.Equal(t, int32(1), e.call(t, "alive", ref))

	assert.Equal(t, StatusOK, e.bridge.IncRef(ref))
	assert.Equal(t, int32(2), e.call(t, "refcount", ref))
	assert.Equal(t, int32(StatusOK), e.call(t, "decref", ref))
	assert.Equal(t, int32(1), e.bridge.RefCount(ref))
	assert.Equal(t, StatusDeadHandle, e.bridge.DecRef(0))
}

func TestGuest(t *testing.T) {
	e := newEnv(t)

	second, err := e.bridge.Guest(e.ctx)
	require.NoError(t, err, "guests get distinct module names")
	defer second.Close(e.ctx)
	n, err := second.Call(e.ctx, "type_count")
	require.NoError(t, err)
	assert.Equal(t, int32(2), n)

	_, err = second.Call(e.ctx, "nope")
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindNotFound})
}

func TestForwardingModule_CustomImportName(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	long := "bridge_" + strings.Repeat("x", 200)
	b, err := Install(ctx, rt, host.NewInterpreter(), Options{Registry: registry.New(), ModuleName: long})
	require.NoError(t, err)
	g, err := b.Guest(ctx)
	require.NoError(t, err)
	n, err := g.Call(ctx, "type_count")
	require.NoError(t, err)
	assert.Equal(t, int32(0), n)
}

func TestUleb(t *testing.T) {
	assert.Equal(t, []byte{0x00}, uleb(nil, 0))
	assert.Equal(t, []byte{0x7f}, uleb(nil, 127))
	assert.Equal(t, []byte{0x80, 0x01}, uleb(nil, 128))
	assert.Equal(t, []byte{0xe5, 0x8e, 0x26}, uleb(nil, 624485))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, StatusOf(nil))
	assert.Equal(t, StatusUnknownType, StatusOf(errors.UnknownType(errors.PhaseCastIn, "x")))
	assert.Equal(t, StatusTypeMismatch, StatusOf(errors.TypeMismatch(errors.PhaseCastIn, "x", "y")))
	assert.Equal(t, StatusHolderMismatch, StatusOf(errors.HolderMismatch(errors.PhaseCastIn, "x", "shared", "unique")))
	assert.Equal(t, StatusDeadHandle, StatusOf(errors.DeadObject(errors.PhaseHost, 1)))
	assert.Equal(t, StatusReadOnly, StatusOf(errors.ReadOnly("Point", "x")))
	assert.Equal(t, StatusInvalid, StatusOf(stderrors.New("other")))
	assert.Equal(t, "unknown_status", Status(77).String())
}

// guestWasm is a core module that forwards check(ref, type, holder) to the
// imported bindbridge.cast:
//
//	(module
//	  (import "bindbridge" "cast" (func $cast (param i32 i32 i32) (result i32)))
//	  (func (export "check") (param i32 i32 i32) (result i32)
//	    local.get 0 local.get 1 local.get 2 call $cast))
var guestWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32 i32 i32) -> i32
	0x01, 0x08, 0x01, 0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	// import bindbridge.cast
	0x02, 0x13, 0x01,
	0x0a, 'b', 'i', 'n', 'd', 'b', 'r', 'i', 'd', 'g', 'e',
	0x04, 'c', 'a', 's', 't',
	0x00, 0x00,
	// one function of type 0
	0x03, 0x02, 0x01, 0x00,
	// export "check" = func 1
	0x07, 0x09, 0x01, 0x05, 'c', 'h', 'e', 'c', 'k', 0x00, 0x01,
	// code
	0x0a, 0x0c, 0x01, 0x0a, 0x00,
	0x20, 0x00, 0x20, 0x01, 0x20, 0x02, 0x10, 0x00, 0x0b,
}

func TestGuestImportsBridge(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	reg := registry.New()
	rec, err := registry.Register[point](reg, registry.Record{Name: "Point", Holder: registry.HolderShared})
	require.NoError(t, err)

	in := host.NewInterpreter()
	b, err := Install(ctx, rt, in, Options{Registry: reg})
	require.NoError(t, err)

	guest, err := rt.Instantiate(ctx, guestWasm)
	require.NoError(t, err)
	check := guest.ExportedFunction("check")
	require.NotNil(t, check)

	h, err := cast.Out[point](b.Caster(), cast.NewShared(&point{5, 6}), cast.TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()

	res, err := check.Call(ctx, uint64(h.Ref()), uint64(rec.Index), uint64(registry.HolderShared))
	require.NoError(t, err)
	assert.Equal(t, int32(StatusOK), api.DecodeI32(res[0]))

	res, err = check.Call(ctx, uint64(h.Ref()), uint64(rec.Index), uint64(registry.HolderUnique))
	require.NoError(t, err)
	assert.Equal(t, int32(StatusHolderMismatch), api.DecodeI32(res[0]))
}
