package cast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/wippyai/bindbridge/errors"
	"github.com/wippyai/bindbridge/handle"
	"github.com/wippyai/bindbridge/host"
	"github.com/wippyai/bindbridge/registry"
)

type Pair[A, B any] struct {
	First  A
	Second B
}

type item struct {
	Name string
}

type unregistered struct{}

type fixture struct {
	in  *host.Interpreter
	reg *registry.Registry
	c   *Caster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	in := host.NewInterpreter()
	reg := registry.New()
	return &fixture{in: in, reg: reg, c: New(in, reg)}
}

func (f *fixture) register(t *testing.T, rec registry.Record) *registry.Record {
	t.Helper()
	out, err := f.reg.Register(rec)
	require.NoError(t, err)
	return out
}

func TestRoundTrip_PairScenario(t *testing.T) {
	for _, holder := range []registry.Holder{registry.HolderUnique, registry.HolderShared} {
		t.Run(holder.String(), func(t *testing.T) {
			f := newFixture(t)
			f.register(t, registry.Record{
				Type:   registry.TypeFor[Pair[string, int]](),
				Name:   "Pair",
				Holder: holder,
			})
			f.register(t, registry.Record{
				Type:   registry.TypeFor[Pair[int, int]](),
				Name:   "IntPair",
				Holder: holder,
			})

			var owner Owner[Pair[string, int]]
			if holder == registry.HolderShared {
				owner = NewShared(&Pair[string, int]{"bla", 1})
			} else {
				owner = NewUnique(&Pair[string, int]{"bla", 1})
			}

			h, err := Out(f.c, owner, TakeOwnership, nil)
			require.NoError(t, err)
			defer h.Release()
			assert.Equal(t, int32(1), f.in.RefCount(h.Ref()))

			_, err = In[Pair[int, int]](f.c, h, holder)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrTypeMismatch)
			assert.Equal(t, int32(1), f.in.RefCount(h.Ref()), "failed cast must not change the count")

			got, err := In[Pair[string, int]](f.c, h, holder)
			require.NoError(t, err)
			defer got.Release()
			assert.Equal(t, Pair[string, int]{"bla", 1}, *got.Get())
			assert.Equal(t, int32(1), f.in.RefCount(h.Ref()))
		})
	}
}

func TestIn_UnknownType(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	h, err := Out[item](f.c, NewShared(&item{"a"}), TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()

	_, err = InShared[unregistered](f.c, h)
	assert.ErrorIs(t, err, errors.ErrUnknownType)
	assert.Equal(t, int32(1), f.in.RefCount(h.Ref()))
}

func TestIn_ForeignPayload(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	ref := f.in.New(host.NewClass("Other"), "not a box")
	h := handle.Steal(f.in, ref)
	defer h.Release()

	_, err := InShared[item](f.c, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "Other")
	assert.Equal(t, int32(1), f.in.RefCount(ref))
}

func TestIn_HolderMismatch(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	h, err := Out[item](f.c, NewShared(&item{"a"}), TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()

	_, err = InUnique[item](f.c, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrHolderMismatch)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)

	_, err = In[item](f.c, h, registry.Holder(0))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestIn_DeadHandle(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	h, err := Out[item](f.c, NewShared(&item{"a"}), TakeOwnership, nil)
	require.NoError(t, err)
	h.Release()

	_, err = InShared[item](f.c, h)
	assert.ErrorIs(t, err, errors.ErrDeadObject)

	_, err = InShared[item](f.c, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestInUnique_MovesOut(t *testing.T) {
	f := newFixture(t)
	destroyed := 0
	f.register(t, registry.Record{
		Type:   registry.TypeFor[item](),
		Holder: registry.HolderUnique,
		Layout: registry.Layout{Destroy: func(any) { destroyed++ }},
	})

	h, err := Out[item](f.c, NewUnique(&item{"a"}), TakeOwnership, nil)
	require.NoError(t, err)

	u, err := InUnique[item](f.c, h)
	require.NoError(t, err)
	assert.Equal(t, "a", u.Get().Name)

	_, err = InUnique[item](f.c, h)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "moved-from")

	_, err = f.in.GetAttr(h.Ref(), "name")
	assert.ErrorIs(t, err, errors.ErrDeadObject)

	h.Release()
	assert.Equal(t, 0, destroyed, "moved-from object must not destroy")

	u.Release()
	u.Release()
	assert.Equal(t, 1, destroyed)
}

func TestTakeOwnership_DestroyAtZero(t *testing.T) {
	f := newFixture(t)
	var destroyed []string
	f.register(t, registry.Record{
		Type:   registry.TypeFor[item](),
		Holder: registry.HolderUnique,
		Layout: registry.Layout{Destroy: func(p any) { destroyed = append(destroyed, p.(*item).Name) }},
	})

	owner := NewUnique(&item{"a"})
	h, err := Out[item](f.c, owner, TakeOwnership, nil)
	require.NoError(t, err)
	assert.Nil(t, owner.Get(), "unique owner is consumed")

	extra, err := h.Clone()
	require.NoError(t, err)

	h.Release()
	assert.Empty(t, destroyed)
	extra.Release()
	assert.Equal(t, []string{"a"}, destroyed)
}

func TestShared_UseCounts(t *testing.T) {
	f := newFixture(t)
	destroyed := 0
	f.register(t, registry.Record{
		Type:   registry.TypeFor[item](),
		Holder: registry.HolderShared,
		Layout: registry.Layout{Destroy: func(any) { destroyed++ }},
	})

	owner := NewShared(&item{"a"})
	h, err := Out[item](f.c, owner, TakeOwnership, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), owner.UseCount())

	native, err := InShared[item](f.c, h)
	require.NoError(t, err)
	assert.Equal(t, int32(3), owner.UseCount())
	assert.Same(t, owner.Get(), native.Get())

	h.Release()
	owner.Release()
	assert.Equal(t, 0, destroyed)
	assert.Equal(t, int32(1), native.UseCount())

	native.Release()
	assert.Equal(t, 1, destroyed)
}

func TestOut_HolderMismatch(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	owner := NewUnique(&item{"a"})
	before := f.in.Live()
	_, err := Out[item](f.c, owner, TakeOwnership, nil)
	assert.ErrorIs(t, err, errors.ErrHolderMismatch)
	assert.NotNil(t, owner.Get(), "failed cast must not consume the owner")
	assert.Equal(t, before, f.in.Live())
}

func TestOut_Errors(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderUnique})

	_, err := Out[unregistered](f.c, NewUnique(&unregistered{}), TakeOwnership, nil)
	assert.ErrorIs(t, err, errors.ErrUnknownType)

	_, err = Out[item](f.c, NewUnique[item](nil), Borrow, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Out[item](f.c, NewUnique(&item{}), Policy(0), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Out[item](f.c, NewUnique(&item{}), ReferenceInternal, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	assert.Equal(t, 0, f.in.Live())
}

func TestReferenceInternal_KeepsParentAlive(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[Pair[string, int]](), Holder: registry.HolderUnique})
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderUnique})

	parentDestroyed := false
	parent := &Pair[string, int]{"p", 1}
	ph, err := Out[Pair[string, int]](f.c, NewUnique(parent), TakeOwnership, nil)
	require.NoError(t, err)
	class, _ := f.in.ClassOf(ph.Ref())
	class.Finalize = func(any) { parentDestroyed = true }

	child := &item{"c"}
	ch, err := Out[item](f.c, NewUnique(child), ReferenceInternal, ph)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.in.RefCount(ph.Ref()))

	ph.Release()
	assert.True(t, f.in.Alive(ph.Ref()), "child must keep the parent alive")
	assert.False(t, parentDestroyed)

	got, err := Borrowed[item](f.c, ch)
	require.NoError(t, err)
	assert.Same(t, child, got)

	ch.Release()
	assert.False(t, f.in.Alive(ph.Ref()))
	assert.True(t, parentDestroyed)
}

func TestReferenceInternal_DeadParent(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderUnique})

	ph, err := Out[item](f.c, NewUnique(&item{"p"}), TakeOwnership, nil)
	require.NoError(t, err)
	ph.Release()

	_, err = Out[item](f.c, NewUnique(&item{"c"}), ReferenceInternal, ph)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, 0, f.in.Live())
}

func TestBorrow_NoDestroy(t *testing.T) {
	f := newFixture(t)
	destroyed := 0
	f.register(t, registry.Record{
		Type:   registry.TypeFor[item](),
		Holder: registry.HolderUnique,
		Layout: registry.Layout{Destroy: func(any) { destroyed++ }},
	})

	owner := NewUnique(&item{"a"})
	h, err := Out[item](f.c, owner, Borrow, nil)
	require.NoError(t, err)
	assert.NotNil(t, owner.Get(), "borrow leaves the owner intact")

	_, err = InUnique[item](f.c, h)
	assert.ErrorIs(t, err, errors.ErrTypeMismatch, "borrowed objects cannot transfer ownership")

	h.Release()
	assert.Equal(t, 0, destroyed)
}

func TestOutConst_ReadOnly(t *testing.T) {
	f := newFixture(t)
	rec := f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderUnique})
	rec.Class.Attrs["name"] = host.Attribute{
		Get: func(_ *host.Interpreter, _ host.Ref, p any) (cty.Value, error) {
			return cty.StringVal(p.(*item).Name), nil
		},
		Set: func(_ *host.Interpreter, _ host.Ref, p any, v cty.Value) error {
			p.(*item).Name = v.AsString()
			return nil
		},
	}

	v := &item{"const"}
	h, err := OutConst[item](f.c, NewUnique(v), Borrow, nil)
	require.NoError(t, err)
	defer h.Release()

	got, err := f.in.GetAttr(h.Ref(), "name")
	require.NoError(t, err)
	assert.Equal(t, "const", got.AsString())

	err = f.in.SetAttr(h.Ref(), "name", cty.StringVal("changed"))
	assert.ErrorIs(t, err, errors.ErrReadOnly)
	assert.Equal(t, "const", v.Name)

	mut, err := Out[item](f.c, NewUnique(v), Borrow, nil)
	require.NoError(t, err)
	defer mut.Release()
	require.NoError(t, f.in.SetAttr(mut.Ref(), "name", cty.StringVal("changed")))
	assert.Equal(t, "changed", v.Name)
}

func TestOutConst_RejectsMutableAccess(t *testing.T) {
	f := newFixture(t)
	rec := f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})
	rec.Class.Methods["rename"] = func(_ *host.Interpreter, _ host.Ref, p any, args []cty.Value) (cty.Value, error) {
		p.(*item).Name = args[0].AsString()
		return host.None, nil
	}
	rec.Class.Methods["name"] = func(_ *host.Interpreter, _ host.Ref, p any, _ []cty.Value) (cty.Value, error) {
		return cty.StringVal(p.(*item).Name), nil
	}
	rec.Class.Const["name"] = true

	owner := NewShared(&item{"const"})
	defer owner.Release()
	h, err := OutConst[item](f.c, owner, TakeOwnership, nil)
	require.NoError(t, err)
	defer h.Release()

	_, err = f.in.Call(h.Ref(), "rename", cty.StringVal("changed"))
	assert.ErrorIs(t, err, errors.ErrReadOnly)
	got, err := f.in.Call(h.Ref(), "name")
	require.NoError(t, err)
	assert.Equal(t, "const", got.AsString())

	_, err = Borrowed[item](f.c, h)
	assert.ErrorIs(t, err, errors.ErrReadOnly)
	_, err = InShared[item](f.c, h)
	assert.ErrorIs(t, err, errors.ErrReadOnly)
	assert.ErrorIs(t, f.c.Validate(h.Ref(), rec, registry.HolderShared), errors.ErrReadOnly)

	pk, err := Peek[item](f.c, h)
	require.NoError(t, err)
	assert.Same(t, owner.Get(), pk)

	cp, err := Copy[item](f.c, h)
	require.NoError(t, err)
	assert.Equal(t, "const", cp.Name)
	cp.Name = "copy"
	assert.Equal(t, "const", owner.Get().Name)
	assert.Equal(t, int32(2), owner.UseCount())
}

func TestValidate_NonOwningViews(t *testing.T) {
	f := newFixture(t)
	rec := f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})

	owner := NewShared(&item{"parent"})
	defer owner.Release()
	parent, err := Out[item](f.c, owner, TakeOwnership, nil)
	require.NoError(t, err)
	defer parent.Release()
	require.NoError(t, f.c.Validate(parent.Ref(), rec, registry.HolderShared))

	for _, policy := range []Policy{Borrow, ReferenceInternal} {
		t.Run(policy.String(), func(t *testing.T) {
			view, err := Out[item](f.c, NewRaw(&item{"view"}), policy, parent)
			require.NoError(t, err)
			defer view.Release()

			_, inErr := InShared[item](f.c, view)
			vErr := f.c.Validate(view.Ref(), rec, registry.HolderShared)
			assert.ErrorIs(t, inErr, errors.ErrTypeMismatch)
			assert.ErrorIs(t, vErr, errors.ErrTypeMismatch)
			assert.Equal(t, inErr.Error(), vErr.Error())
		})
	}
}

func TestWrapAndValidate(t *testing.T) {
	f := newFixture(t)
	rec := f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderShared})
	other := f.register(t, registry.Record{Type: registry.TypeFor[Pair[int, int]](), Holder: registry.HolderShared})

	payload, err := Wrap(f.c, &item{"w"})
	require.NoError(t, err)
	ref := f.in.New(rec.Class, payload)
	defer func() { _ = f.in.DecRef(ref) }()

	require.NoError(t, f.c.Validate(ref, rec, registry.HolderShared))
	assert.ErrorIs(t, f.c.Validate(ref, rec, registry.HolderUnique), errors.ErrHolderMismatch)
	assert.ErrorIs(t, f.c.Validate(ref, other, registry.HolderShared), errors.ErrTypeMismatch)
	assert.Equal(t, int32(1), f.in.RefCount(ref))

	got, ok := f.c.RecordOf(ref)
	require.True(t, ok)
	assert.Same(t, rec, got)

	_, err = Wrap[unregistered](f.c, &unregistered{})
	assert.ErrorIs(t, err, errors.ErrUnknownType)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "borrow", Borrow.String())
	assert.Equal(t, "reference_internal", ReferenceInternal.String())
	assert.Equal(t, "take_ownership", TakeOwnership.String())
	assert.Equal(t, "invalid", Policy(0).String())
}

func TestRaw_NonOwning(t *testing.T) {
	f := newFixture(t)
	f.register(t, registry.Record{Type: registry.TypeFor[item](), Holder: registry.HolderUnique})

	v := &item{"raw"}
	_, err := Out[item](f.c, NewRaw(v), TakeOwnership, nil)
	assert.ErrorIs(t, err, errors.ErrHolderMismatch)

	h, err := Out[item](f.c, NewRaw(v), Borrow, nil)
	require.NoError(t, err)
	got, err := Borrowed[item](f.c, h)
	require.NoError(t, err)
	assert.Same(t, v, got)
	h.Release()
	assert.Equal(t, 0, f.in.Live())
}
