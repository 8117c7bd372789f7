// Package registry is the process-wide type registry shared by every
// binding technology.
//
// A Record maps a Go type identity (reflect.Type) to the metadata needed to
// build and inspect host objects of that type: the host class, the object
// layout descriptor and the holder kind chosen by whichever technology
// registered the type first.
//
//	reg := registry.GetOrInit()
//	rec, err := registry.Register[Pair](reg, registry.Record{
//	    Name:       "Pair",
//	    Holder:     registry.HolderShared,
//	    Technology: "reflect:challenge",
//	})
//
// A type has one holder kind per process. Registering it again with the
// same kind is a no-op that returns the existing record; a different kind
// is a registration conflict.
package registry
