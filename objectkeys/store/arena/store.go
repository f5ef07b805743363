// Package arena implements an in-memory identity store. Identifiers
// index a dense slot arena; Release frees a slot for reuse, so arena
// identifiers are stable only for the lifetime of the object, not
// forever. The store keeps its snapshot archive in memory as well.
package arena

import (
	"slices"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
)

type Store struct {
	id    uuid.UUID
	slots []identity.Identifiable
	free  []int

	manifests []snapshot.Manifest
	blobs     map[ulid.ULID][]byte
}

func New() *Store {
	return &Store{
		id:    uuid.New(),
		blobs: make(map[ulid.ULID][]byte),
	}
}

func (s *Store) Attach(obj identity.Identifiable) (identity.OID, error) {
	if bound := obj.BoundStore(); bound != nil && bound != identity.Store(s) {
		return 0, identity.ErrStoreMismatch
	}
	if oid, ok := obj.ObjectID(); ok {
		return oid, nil
	}
	var index int
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = len(s.slots)
		s.slots = append(s.slots, nil)
	}
	s.slots[index] = obj
	oid := identity.OID(index + 1)
	identity.Bind(obj, s, oid)
	return oid, nil
}

func (s *Store) Resolve(oid identity.OID) (identity.Identifiable, error) {
	index := int(oid) - 1
	if index < 0 || index >= len(s.slots) {
		return nil, identity.ErrUnknownID
	}
	obj := s.slots[index]
	if obj == nil {
		return nil, identity.ErrNotResident
	}
	return obj, nil
}

// Release frees the slot held by obj and detaches it. The identifier
// may be handed out again by a later Attach.
func (s *Store) Release(obj identity.Identifiable) error {
	if bound := obj.BoundStore(); bound != identity.Store(s) {
		return identity.ErrStoreMismatch
	}
	oid, ok := obj.ObjectID()
	if !ok {
		return identity.ErrUnknownID
	}
	index := int(oid) - 1
	s.slots[index] = nil
	s.free = append(s.free, index)
	identity.Unbind(obj)
	return nil
}

// Count returns the number of attached objects.
func (s *Store) Count() int {
	return len(s.slots) - len(s.free)
}

func (s *Store) StoreID() uuid.UUID {
	return s.id
}

func (s *Store) SaveSnapshot(m snapshot.Manifest, data []byte) error {
	s.manifests = append(s.manifests, m)
	s.blobs[m.ID] = slices.Clone(data)
	return nil
}

func (s *Store) LoadSnapshot(id ulid.ULID) (snapshot.Manifest, []byte, error) {
	for _, m := range s.manifests {
		if m.ID == id {
			return m, s.blobs[id], nil
		}
	}
	return snapshot.Manifest{}, nil, snapshot.ErrSnapshotNotFound
}

func (s *Store) Snapshots() ([]snapshot.Manifest, error) {
	return slices.Clone(s.manifests), nil
}
