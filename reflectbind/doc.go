// Package reflectbind exposes Go types to the host through reflection.
//
// It is one binding technology among several sharing the process registry.
// A Module groups classes; Class registers a type and derives its host
// protocol from the type itself:
//
//	m := reflectbind.NewModule("challenge", caster)
//	b, err := reflectbind.Class[WhatsIt](m, "WhatsIt", registry.HolderShared)
//	b.Def([]overload.Param{
//	    overload.Arg("name", overload.String()),
//	    overload.Opt("value", overload.Int(), cty.NumberIntVal(1)),
//	}, newWhatsIt)
//
// Exported fields with a cty equivalent become read/write attributes named
// in snake_case. Exported methods whose parameters and results have cty
// equivalents become callables; a String method becomes the __str__ hook.
// Constructors are overload sets resolved in Def order.
package reflectbind
