package types

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownGrantTarget = errors.New("unknown grant target")
	ErrDuplicateGrant     = errors.New("charge already settled")
	ErrInvalidPayment     = errors.New("invalid payment event")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
