package cast

// Policy decides the reference-count bookkeeping of an outbound cast.
type Policy uint8

const (
	// Borrow creates a handle that owns nothing. The caller keeps the value
	// alive for as long as the handle is used.
	Borrow Policy = iota + 1

	// ReferenceInternal ties the new object to a parent object. The parent
	// stays alive until the child is finalized.
	ReferenceInternal

	// TakeOwnership makes the host object an owner of the value. The
	// registered destructor runs once the last owner is gone.
	TakeOwnership
)

func (p Policy) String() string {
	switch p {
	case Borrow:
		return "borrow"
	case ReferenceInternal:
		return "reference_internal"
	case TakeOwnership:
		return "take_ownership"
	default:
		return "invalid"
	}
}
