package snapshot

import "errors"

var (
	ErrSnapshotNotFound = errors.New("snapshot: snapshot not found")
	ErrForeignSnapshot  = errors.New("snapshot: snapshot belongs to a different store")
	ErrCodecMismatch    = errors.New("snapshot: encoded with a different codec")
)
