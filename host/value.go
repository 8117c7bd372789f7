package host

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
)

// ObjectType is the cty capsule type carrying object references.
var ObjectType = cty.CapsuleWithOps("object", reflect.TypeOf(Ref(0)), &cty.CapsuleOps{
	GoString: func(v any) string {
		return fmt.Sprintf("host.ObjectVal(%d)", *v.(*Ref))
	},
	TypeGoString: func(reflect.Type) string {
		return "host.ObjectType"
	},
	Equals: func(a, b any) cty.Value {
		return cty.BoolVal(*a.(*Ref) == *b.(*Ref))
	},
	RawEquals: func(a, b any) bool {
		return *a.(*Ref) == *b.(*Ref)
	},
})

// ObjectVal wraps ref as a host value. The value borrows the reference; it
// does not change the reference count.
func ObjectVal(ref Ref) cty.Value {
	r := ref
	return cty.CapsuleVal(ObjectType, &r)
}

// AsObject extracts the object reference from a host value.
func AsObject(v cty.Value) (Ref, bool) {
	if !v.IsKnown() || v.IsNull() || !v.Type().Equals(ObjectType) {
		return 0, false
	}
	r, ok := v.EncapsulatedValue().(*Ref)
	if !ok || r == nil {
		return 0, false
	}
	return *r, true
}

// IsObject reports whether v carries an object reference.
func IsObject(v cty.Value) bool {
	_, ok := AsObject(v)
	return ok
}

// None is the host null value.
var None = cty.NullVal(cty.DynamicPseudoType)
