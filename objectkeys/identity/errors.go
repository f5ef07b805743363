package identity

import "errors"

var (
	ErrUnknownID     = errors.New("identity: unknown object id")
	ErrNotResident   = errors.New("identity: object not resident")
	ErrStoreMismatch = errors.New("identity: object bound to a different store")
)
