package snapshot

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Manifest identifies one captured snapshot. Snapshot identifiers are
// ULIDs, so listing them in identifier order is listing them in
// creation order.
type Manifest struct {
	ID        ulid.ULID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	CreatedAt time.Time `json:"created_at"`
	Codec     string    `json:"codec"`
}

// Archive is the snapshot area a store exposes.
type Archive interface {
	// StoreID returns the identity of the owning store. Snapshots are
	// only meaningful against the store that captured them.
	StoreID() uuid.UUID
	SaveSnapshot(m Manifest, data []byte) error
	// LoadSnapshot fails with ErrSnapshotNotFound for unknown ids.
	LoadSnapshot(id ulid.ULID) (Manifest, []byte, error)
	// Snapshots lists manifests oldest first.
	Snapshots() ([]Manifest, error)
}

// Source is a container whose durable state can be captured. Capturing
// flushes, so staged entries are always migrated before they are
// encoded.
type Source[T any] interface {
	SnapshotState() (T, error)
}

// Target is a container whose state can be replaced from a snapshot.
type Target[T any] interface {
	RestoreState(T) error
}

// Capture encodes the source's durable state with codec and writes it
// to the archive under a fresh manifest.
func Capture[T any](ar Archive, codec Codec, src Source[T]) (Manifest, error) {
	state, err := src.SnapshotState()
	if err != nil {
		return Manifest{}, err
	}
	data, err := codec.Encode(state)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		ID:        ulid.Make(),
		StoreID:   ar.StoreID(),
		CreatedAt: time.Now().UTC(),
		Codec:     codec.Name(),
	}
	if err := ar.SaveSnapshot(m, data); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Restore loads the identified snapshot from the archive and replaces
// the target's state with it. The snapshot must have been captured
// against the archive's store and with a codec of the same name;
// binding the target to that same store is the caller's business.
func Restore[T any](ar Archive, id ulid.ULID, codec Codec, dst Target[T]) (Manifest, error) {
	m, data, err := ar.LoadSnapshot(id)
	if err != nil {
		return Manifest{}, err
	}
	if m.StoreID != ar.StoreID() {
		return Manifest{}, ErrForeignSnapshot
	}
	if m.Codec != codec.Name() {
		return Manifest{}, ErrCodecMismatch
	}
	var state T
	if err := codec.Decode(data, &state); err != nil {
		return Manifest{}, err
	}
	if err := dst.RestoreState(state); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
