package registry

import (
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/bindbridge/host"
)

// Holder is the ownership kind of the native references that wrap a type.
type Holder uint8

const (
	// HolderUnique gives one native owner at a time. Casting into native
	// code moves ownership out of the host object.
	HolderUnique Holder = iota + 1

	// HolderShared uses a reference-counted control block shared by the
	// host object and every native reference.
	HolderShared
)

func (h Holder) String() string {
	switch h {
	case HolderUnique:
		return "unique"
	case HolderShared:
		return "shared"
	default:
		return "invalid"
	}
}

// Valid reports whether h is a known holder kind.
func (h Holder) Valid() bool {
	return h == HolderUnique || h == HolderShared
}

// ParseHolder parses "unique" or "shared".
func ParseHolder(s string) (Holder, bool) {
	switch s {
	case "unique", "exclusive":
		return HolderUnique, true
	case "shared":
		return HolderShared, true
	}
	return 0, false
}

// Constructor builds a new native value from host arguments.
type Constructor func(args []cty.Value, kwargs map[string]cty.Value) (any, error)

// Layout is the object layout descriptor of a registered type.
type Layout struct {
	// Shape optionally describes the object fields as a WIT type. Size and
	// Align are derived from it when left zero.
	Shape wit.Type

	// Construct is the construction trampoline.
	Construct Constructor

	// Destroy runs on the native value when its last owner goes away.
	// The argument is a pointer to the registered type.
	Destroy func(ptr any)

	Size  uint32
	Align uint32
}

// Record identifies one Go type exposed to the interpreter.
type Record struct {
	Type       reflect.Type
	Class      *host.Class
	Name       string
	Technology string
	Layout     Layout
	Index      int
	Holder     Holder
}
