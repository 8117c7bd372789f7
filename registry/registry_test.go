package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bindbridge/errors"
)

type pair struct {
	First  string
	Second int32
}

type other struct{}

func TestRegister_Lookup(t *testing.T) {
	r := New()

	rec, err := Register[pair](r, Record{Name: "Pair", Holder: HolderShared, Technology: "test"})
	require.NoError(t, err)
	assert.Equal(t, "Pair", rec.Name)
	assert.Equal(t, 0, rec.Index)
	require.NotNil(t, rec.Class)
	assert.Equal(t, "Pair", rec.Class.Name)

	got, ok := LookupFor[pair](r)
	require.True(t, ok)
	assert.Same(t, rec, got)

	_, ok = LookupFor[other](r)
	assert.False(t, ok)
}

func TestRegister_DefaultName(t *testing.T) {
	r := New()
	rec, err := Register[other](r, Record{Holder: HolderUnique})
	require.NoError(t, err)
	assert.Equal(t, TypeFor[other]().String(), rec.Name)
}

func TestRegister_Idempotent(t *testing.T) {
	r := New()

	first, err := Register[pair](r, Record{Name: "Pair", Holder: HolderShared, Technology: "a"})
	require.NoError(t, err)

	second, err := Register[pair](r, Record{Name: "Pair2", Holder: HolderShared, Technology: "b"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "a", second.Technology, "first registration wins")
	assert.Equal(t, 1, r.Len())
}

func TestRegister_Conflict(t *testing.T) {
	r := New()

	_, err := Register[pair](r, Record{Holder: HolderShared, Technology: "a"})
	require.NoError(t, err)

	_, err = Register[pair](r, Record{Holder: HolderUnique, Technology: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRegistrationConflict)
	assert.Contains(t, err.Error(), "shared")
	assert.Contains(t, err.Error(), "unique")

	rec, ok := LookupFor[pair](r)
	require.True(t, ok)
	assert.Equal(t, HolderShared, rec.Holder, "conflict must not replace the record")
}

func TestRegister_InvalidInput(t *testing.T) {
	r := New()

	_, err := r.Register(Record{Holder: HolderShared})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Register[pair](r, Record{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRegister_LayoutFromShape(t *testing.T) {
	r := New()

	shape := &wit.TypeDef{Kind: &wit.Record{Fields: []wit.Field{
		{Name: "first", Type: wit.String{}},
		{Name: "second", Type: wit.S32{}},
	}}}
	rec, err := Register[pair](r, Record{Holder: HolderShared, Layout: Layout{Shape: shape}})
	require.NoError(t, err)

	// header 8 + string (ptr,len) 8 + s32 4
	assert.Equal(t, uint32(20), rec.Layout.Size)
	assert.Equal(t, uint32(4), rec.Layout.Align)

	bare, err := Register[other](r, Record{Holder: HolderUnique})
	require.NoError(t, err)
	assert.Equal(t, uint32(8), bare.Layout.Size)
}

func TestByIndexAndName(t *testing.T) {
	r := New()
	a, err := Register[pair](r, Record{Name: "Pair", Holder: HolderShared})
	require.NoError(t, err)
	b, err := Register[other](r, Record{Name: "Other", Holder: HolderUnique})
	require.NoError(t, err)

	got, ok := r.ByIndex(1)
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.ByIndex(2)
	assert.False(t, ok)
	_, ok = r.ByIndex(-1)
	assert.False(t, ok)

	got, ok = r.ByName("Pair")
	require.True(t, ok)
	assert.Same(t, a, got)

	recs := r.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Other", recs[0].Name)
	assert.Equal(t, "Pair", recs[1].Name)
}

func TestGetOrInit_Singleton(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*Registry, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = GetOrInit()
		}(i)
	}
	wg.Wait()

	for _, r := range got {
		assert.Same(t, got[0], r)
	}
}

func TestRegister_Concurrent(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = Register[pair](r, Record{Holder: HolderShared, Technology: fmt.Sprint("t", i)})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, r.Len())
}

func TestHolder(t *testing.T) {
	tests := []struct {
		in   string
		want Holder
		ok   bool
	}{
		{"unique", HolderUnique, true},
		{"exclusive", HolderUnique, true},
		{"shared", HolderShared, true},
		{"weak", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseHolder(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "invalid", Holder(9).String())
}
