package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation error")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateIdentifier    = errors.New("duplicate identifier")
	ErrSequenceExhausted      = errors.New("sequence exhausted")
	ErrRecipientUnreachable   = errors.New("recipient unreachable")
	ErrNoRecipients           = errors.New("no recipients")
	ErrNotificationFailed     = errors.New("notification failed")
)
