// Package layout computes the object layout descriptor for registered types.
//
// A binding technology may describe the fields of a type it registers as a
// WIT type (the "shape"). The layout is derived from the shape with Canonical
// ABI rules, so a wasm guest and the host agree on field offsets:
//
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records and tuples: fields laid out in order with padding for alignment
//   - Variants, options, results: discriminant followed by largest payload
//   - Lists and strings: (pointer, length) pair
//   - own<T> and borrow<T>: a 32-bit handle
//
// Host objects carry a fixed header in front of the payload:
//
//	info := layout.ForObject(shape)
//	// info.Size includes HeaderSize, info.FieldOffs are absolute
package layout
