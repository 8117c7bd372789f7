package wasmbind

import (
	stderrors "errors"

	"github.com/wippyai/bindbridge/errors"
)

// Status is the result code returned to guests.
type Status int32

const (
	StatusOK             Status = 0
	StatusUnknownType    Status = 1
	StatusTypeMismatch   Status = 2
	StatusDeadHandle     Status = 3
	StatusHolderMismatch Status = 4
	StatusInvalid        Status = 5
	StatusReadOnly       Status = 6
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownType:
		return "unknown_type"
	case StatusTypeMismatch:
		return "type_mismatch"
	case StatusDeadHandle:
		return "dead_handle"
	case StatusHolderMismatch:
		return "holder_mismatch"
	case StatusInvalid:
		return "invalid"
	case StatusReadOnly:
		return "read_only"
	default:
		return "unknown_status"
	}
}

// StatusOf maps an error to the code a guest sees.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case stderrors.Is(err, errors.ErrUnknownType):
		return StatusUnknownType
	case stderrors.Is(err, errors.ErrHolderMismatch):
		return StatusHolderMismatch
	case stderrors.Is(err, errors.ErrTypeMismatch):
		return StatusTypeMismatch
	case stderrors.Is(err, errors.ErrDeadObject):
		return StatusDeadHandle
	case stderrors.Is(err, errors.ErrReadOnly):
		return StatusReadOnly
	default:
		return StatusInvalid
	}
}
