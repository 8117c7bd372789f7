// Package bindbridge lets independently built binding technologies share
// native objects with a scripting host and with each other.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	bindbridge/
//	├── registry/      Process-wide type registry: type identity to record
//	├── host/          Reference-counted host object heap (the interpreter)
//	├── handle/        Foreign handles: strong or borrowed host references
//	├── cast/          Cast adapters in (host to native) and out (native to host)
//	├── overload/      Ordered overload resolution with implicit conversions
//	├── iteration/     Cursor iterators and the host iteration protocol
//	├── reflectbind/   Binding technology deriving classes by reflection
//	├── wasmbind/      Binding technology exposing objects to wazero guests
//	├── manifest/      HCL manifests declaring modules and their types
//	├── loader/        Registers manifest modules in order
//	├── layout/        Object layout from WIT shapes
//	└── errors/        Structured error types
//
// # Quick Start
//
// Bind a Go type and construct it from the host side:
//
//	in := host.NewInterpreter()
//	c := cast.New(in, nil) // process registry
//	m := reflectbind.NewModule("geometry", c)
//
//	b, err := reflectbind.Class[Point](m, "Point", registry.HolderShared)
//	b.Def(params, newPoint)
//
//	h, err := reflectbind.Construct[Point](m, args, nil)
//	defer h.Release()
//
//	p, err := cast.InShared[Point](c, h)
//
// # Holder Kinds
//
// Every registered type has one holder kind per process. The first
// technology to register a type fixes it; a later registration with the
// other kind fails with a registration conflict rather than silently
// producing objects that two technologies would free differently.
//
// # Thread Safety
//
// Each Interpreter serializes access to its heap with one lock and never
// holds it across a hook. The registry is safe for concurrent use. Native
// values themselves are not synchronized.
package bindbridge
