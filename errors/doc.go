// Package errors provides structured error types for the bindbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: attribute path, Go/host type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCastIn, errors.KindTypeMismatch).
//		GoType("Pair[int,int]").
//		HostType("Pair[string,int]").
//		Detail("handle holds a different type").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownType(errors.PhaseCastOut, "Widget")
//	err := errors.RegistrationConflict("Pair", "shared", "unique", "reflect:challenge")
//
// Sentinels such as ErrTypeMismatch carry no phase and match an error of that
// kind raised in any phase:
//
//	if errors.Is(err, bberrors.ErrTypeMismatch) { ... }
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
