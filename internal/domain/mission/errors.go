package mission

import "errors"

var (
	ErrNotFound          = errors.New("mission not found")
	ErrForbidden         = errors.New("actor not permitted for this mission action")
	ErrInvalidTransition = errors.New("invalid mission status transition")
	ErrAlreadyAssigned   = errors.New("mission already assigned to an assistant")
	ErrConflict          = errors.New("mission transition lost a concurrent update")
	ErrValidation        = errors.New("invalid mission input")
)
