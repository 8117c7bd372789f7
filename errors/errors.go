package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // type registration
	PhaseCastIn   Phase = "cast_in"  // host handle to native reference
	PhaseCastOut  Phase = "cast_out" // native reference to host handle
	PhaseResolve  Phase = "resolve"  // overload resolution
	PhaseIterate  Phase = "iterate"  // iteration protocol
	PhaseHost     Phase = "host"     // host object protocol
	PhaseLoad     Phase = "load"     // binding module loading
	PhaseParse    Phase = "parse"    // manifest parsing
	PhaseBridge   Phase = "bridge"   // wasm guest bridge
)

// Kind categorizes the error
type Kind string

const (
	KindRegistrationConflict Kind = "registration_conflict"
	KindUnknownType          Kind = "unknown_type"
	KindTypeMismatch         Kind = "type_mismatch"
	KindHolderMismatch       Kind = "holder_mismatch"
	KindNoMatchingOverload   Kind = "no_matching_overload"
	KindReadOnly             Kind = "read_only"
	KindDeadObject           Kind = "dead_object"
	KindAttributeMissing     Kind = "attribute_missing"
	KindNotIterable          Kind = "not_iterable"
	KindInvalidInput         Kind = "invalid_input"
	KindInvalidData          Kind = "invalid_data"
	KindNotFound             Kind = "not_found"
	KindRegistration         Kind = "registration"
)

// Sentinels for phase-independent matching with errors.Is.
var (
	ErrRegistrationConflict = &Error{Kind: KindRegistrationConflict}
	ErrUnknownType          = &Error{Kind: KindUnknownType}
	ErrTypeMismatch         = &Error{Kind: KindTypeMismatch}
	ErrHolderMismatch       = &Error{Kind: KindHolderMismatch}
	ErrNoMatchingOverload   = &Error{Kind: KindNoMatchingOverload}
	ErrReadOnly             = &Error{Kind: KindReadOnly}
	ErrDeadObject           = &Error{Kind: KindDeadObject}
	ErrInvalidInput         = &Error{Kind: KindInvalidInput}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	HostType string
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.HostType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.HostType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", host type ")
			b.WriteString(e.HostType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.HostType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone. A holder mismatch is
// also a type mismatch.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindHolderMismatch && t.Kind == KindTypeMismatch
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the attribute or argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// HostType sets the host class name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// RegistrationConflict creates an error for a type registered twice with
// different holder kinds.
func RegistrationConflict(goType, existing, requested, owner string) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistrationConflict,
		GoType: goType,
		Detail: fmt.Sprintf("already registered by %s with %s holder, cannot re-register with %s holder", owner, existing, requested),
	}
}

// UnknownType creates an error for a cast on an unregistered type
func UnknownType(phase Phase, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownType,
		GoType: goType,
		Detail: "type is not registered by any binding technology",
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, goType, hostType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		GoType:   goType,
		HostType: hostType,
	}
}

// HolderMismatch creates an error for a cast that asks for the wrong holder kind
func HolderMismatch(phase Phase, goType, registered, requested string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindHolderMismatch,
		GoType: goType,
		Detail: fmt.Sprintf("registered with %s holder, requested %s", registered, requested),
	}
}

// DeadObject creates an error for access through a finalized object reference
func DeadObject(phase Phase, ref uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDeadObject,
		Detail: fmt.Sprintf("object %d has been finalized", ref),
		Value:  ref,
	}
}

// ReadOnly creates an error for a write to a read-only view
func ReadOnly(hostType, attr string) *Error {
	return &Error{
		Phase:    PhaseHost,
		Kind:     KindReadOnly,
		HostType: hostType,
		Path:     []string{attr},
		Detail:   "object is a read-only view",
	}
}

// AttributeMissing creates an error for an unknown attribute name
func AttributeMissing(hostType, attr string) *Error {
	return &Error{
		Phase:    PhaseHost,
		Kind:     KindAttributeMissing,
		HostType: hostType,
		Detail:   fmt.Sprintf("no attribute %q", attr),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Registration creates an error surfaced to the loader for a binding module
// that failed to register one of its types
func Registration(module, typeName string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("load module %s: register %s", module, typeName),
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// Attempt records one overload candidate rejected during resolution
type Attempt struct {
	Signature string // e.g., "WhatsIt(name: string, value: number = 1)"
	Reason    string
}

// OverloadError is returned when no candidate signature accepts the arguments
type OverloadError struct {
	Name     string
	Args     []string
	Attempts []Attempt
}

// NewOverloadError creates an error from the rejected candidates, in the
// order they were tried
func NewOverloadError(name string, args []string, attempts []Attempt) *OverloadError {
	return &OverloadError{
		Name:     name,
		Args:     args,
		Attempts: attempts,
	}
}

func (e *OverloadError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("[resolve] no_matching_overload: %s has no overloads", e.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s(): incompatible arguments (%s); tried %d overload(s):\n",
		e.Name, strings.Join(e.Args, ", "), len(e.Attempts))

	for i, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, a.Signature)
		if a.Reason != "" {
			b.WriteString("\n     ")
			b.WriteString(a.Reason)
		}
	}

	return b.String()
}

// Is reports whether target matches this error type
func (e *OverloadError) Is(target error) bool {
	switch t := target.(type) {
	case *OverloadError:
		return true
	case *Error:
		return t.Kind == KindNoMatchingOverload && (t.Phase == "" || t.Phase == PhaseResolve)
	}
	return false
}
