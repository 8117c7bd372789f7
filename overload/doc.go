// Package overload resolves calls against an ordered list of typed
// signatures.
//
// Resolution is first-match, not best-match. Candidates are tried in the
// order they were added and the first one whose parameters all accept the
// arguments wins:
//
//	ctor := overload.NewSet("WhatsIt").
//	    Add([]overload.Param{
//	        overload.Arg("name", overload.String()),
//	        overload.Opt("value", overload.Int(), cty.NumberIntVal(1)),
//	    }, fromNameValue).
//	    Add([]overload.Param{
//	        overload.Arg("other", overload.Object[WhatsIt](caster, implicit)),
//	    }, fromWhatsIt)
//
// Reordering Add calls changes which candidate is selected, so the order is
// part of the exposed API. A call no candidate accepts fails with an
// *errors.OverloadError listing every attempt.
package overload
