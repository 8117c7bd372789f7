package layout

import (
	"sync"

	"go.bytecodealliance.org/wit"
)

// HeaderSize is the size of the host object header: a 32-bit reference
// count followed by a 32-bit holder slot.
const HeaderSize uint32 = 8

// HeaderAlign is the alignment of the host object header.
const HeaderAlign uint32 = 4

// Info describes the size, alignment and field offsets of a shape.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
}

// Calculator computes layouts and caches type definitions by identity.
// Safe for concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Info
	mu    sync.Mutex
}

// NewCalculator creates an empty calculator.
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

var defaultCalc = NewCalculator()

// Calc computes the layout of t using a shared calculator.
func Calc(t wit.Type) Info {
	return defaultCalc.Calculate(t)
}

// ForObject computes the layout of a host object whose payload has the
// given shape. A nil shape yields a header-only object.
func ForObject(shape wit.Type) Info {
	if shape == nil {
		return Info{Size: HeaderSize, Align: HeaderAlign}
	}

	payload := Calc(shape)
	align := max(payload.Align, HeaderAlign)
	base := AlignTo(HeaderSize, payload.Align)

	var offs map[string]uint32
	if len(payload.FieldOffs) > 0 {
		offs = make(map[string]uint32, len(payload.FieldOffs))
		for name, off := range payload.FieldOffs {
			offs[name] = base + off
		}
	}

	return Info{
		Size:      AlignTo(base+payload.Size, align),
		Align:     align,
		FieldOffs: offs,
	}
}

// Calculate computes the layout of t.
func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return Info{Size: 8, Align: 4}
	case *wit.TypeDef:
		return c.typeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) typeDef(t *wit.TypeDef) Info {
	c.mu.Lock()
	cached, ok := c.cache[t]
	c.mu.Unlock()
	if ok {
		return cached
	}

	var info Info
	switch kind := t.Kind.(type) {
	case *wit.Record:
		names := make([]string, len(kind.Fields))
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			names[i] = f.Name
			types[i] = f.Type
		}
		info = c.sequential(names, types)
	case *wit.Tuple:
		info = c.sequential(nil, kind.Types)
	case *wit.Variant:
		payloads := make([]wit.Type, len(kind.Cases))
		for i, cs := range kind.Cases {
			payloads[i] = cs.Type
		}
		info = c.tagged(payloads)
	case *wit.Option:
		info = c.tagged([]wit.Type{nil, kind.Type})
	case *wit.Result:
		info = c.tagged([]wit.Type{kind.OK, kind.Err})
	case *wit.Enum:
		size := discriminantSize(len(kind.Cases))
		info = Info{Size: size, Align: size}
	case *wit.Flags:
		info = flags(len(kind.Flags))
	case *wit.List:
		info = Info{Size: 8, Align: 4}
	case *wit.Own, *wit.Borrow, *wit.Resource:
		info = Info{Size: 4, Align: 4}
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.mu.Lock()
	c.cache[t] = info
	c.mu.Unlock()
	return info
}

// sequential lays out types one after another. Field offsets are recorded
// when names are given.
func (c *Calculator) sequential(names []string, types []wit.Type) Info {
	if len(types) == 0 {
		return Info{Size: 0, Align: 1}
	}

	var offs map[string]uint32
	if names != nil {
		offs = make(map[string]uint32, len(names))
	}

	align := uint32(1)
	offset := uint32(0)
	for i, typ := range types {
		elem := c.Calculate(typ)
		offset = AlignTo(offset, elem.Align)
		if offs != nil {
			offs[names[i]] = offset
		}
		align = max(align, elem.Align)
		offset += elem.Size
	}

	return Info{
		Size:      AlignTo(offset, align),
		Align:     align,
		FieldOffs: offs,
	}
}

// tagged lays out a discriminant followed by the largest payload.
// Nil entries are cases without payload.
func (c *Calculator) tagged(payloads []wit.Type) Info {
	if len(payloads) == 0 {
		return Info{Size: 0, Align: 1}
	}

	disc := discriminantSize(len(payloads))
	align := disc
	size := uint32(0)
	for _, p := range payloads {
		if p == nil {
			continue
		}
		pl := c.Calculate(p)
		align = max(align, pl.Align)
		size = max(size, pl.Size)
	}

	payloadOffset := AlignTo(disc, align)
	return Info{
		Size:  AlignTo(payloadOffset+size, align),
		Align: align,
	}
}

func flags(n int) Info {
	switch {
	case n == 0:
		return Info{Size: 0, Align: 1}
	case n <= 8:
		return Info{Size: 1, Align: 1}
	case n <= 16:
		return Info{Size: 2, Align: 2}
	case n <= 32:
		return Info{Size: 4, Align: 4}
	case n <= 64:
		return Info{Size: 8, Align: 8}
	}
	// more than 64 flags are stored as a sequence of u32
	return Info{Size: uint32((n+31)/32) * 4, Align: 4}
}

func discriminantSize(numCases int) uint32 {
	if numCases <= 256 {
		return 1
	} else if numCases <= 65536 {
		return 2
	}
	return 4
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
