// Package wasmbind exposes interpreter objects to WebAssembly guests
// running on wazero.
//
// The bridge is a binding technology that defines no types. Install looks
// up the process registry (creating it if no other technology has yet) and
// instantiates a host module, "bindbridge" by default, with these imports:
//
//	incref(ref i32) -> status i32
//	decref(ref i32) -> status i32
//	refcount(ref i32) -> i32
//	alive(ref i32) -> i32             ; 1 live, 0 dead
//	type_index(ref i32) -> i32        ; -1 when the object holds no registered type
//	cast(ref i32, type i32, holder i32) -> status i32
//	holder(type i32) -> i32           ; 1 unique, 2 shared, 0 unknown
//	type_count() -> i32
//
// Status codes are 0 ok, 1 unknown type, 2 type mismatch, 3 dead handle,
// 4 holder mismatch, 5 invalid argument and 6 read-only view.
//
// wazero does not let Go call host module functions directly. Go code uses
// the matching Bridge methods (Cast, TypeIndex, ...), or Bridge.Guest to
// get a wasm module that re-exports every import and so exercises the real
// guest path.
package wasmbind
