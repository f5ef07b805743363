package keyed

import "errors"

var (
	ErrInvalidKey  = errors.New("keyed: key does not carry object identity")
	ErrKeyNotFound = errors.New("keyed: key not found")
	ErrNotAttached = errors.New("keyed: container not bound to a store")
)
