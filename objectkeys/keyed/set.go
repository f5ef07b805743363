package keyed

import (
	"iter"
	"maps"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

// Set records identity-capable objects as members. It is a thin adapter
// over Map with a sentinel value. Like Map, a Set is itself attachable
// to a store; its base map is attached alongside it at the first flush.
type Set struct {
	identity.Ref

	base *Map[struct{}]
}

func NewSet() *Set {
	return &Set{base: NewMap[struct{}]()}
}

// Add inserts item into the set. Adding a present item is a no-op.
func (s *Set) Add(item any) error {
	present, err := s.base.Contains(item)
	if err != nil {
		return err
	}
	if present {
		return nil
	}
	return s.base.Set(item, struct{}{})
}

// Remove deletes item. Removing an absent item fails with ErrKeyNotFound.
func (s *Set) Remove(item any) error {
	return s.base.Delete(item)
}

func (s *Set) Contains(item any) (bool, error) {
	return s.base.Contains(item)
}

func (s *Set) Len() int {
	return s.base.Len()
}

// All yields every member exactly once, persisted members first.
func (s *Set) All() iter.Seq2[identity.Identifiable, error] {
	return s.base.Keys()
}

// Flush migrates staged members to the persisted partition, attaching
// the base map to the set's store first if it is not attached yet.
func (s *Set) Flush() error {
	store := s.BoundStore()
	if store == nil {
		return ErrNotAttached
	}
	if err := adoptBase(s.base, store); err != nil {
		return err
	}
	return s.base.Flush()
}

// SnapshotState flushes staged members and returns a copy of the
// persisted partition.
func (s *Set) SnapshotState() (map[identity.OID]struct{}, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	return maps.Clone(s.base.persisted), nil
}

// RestoreState replaces the membership with state and empties staging.
// When the set is bound to a store the base map is rebound as well, so
// a restored set resolves its members without an intervening flush.
func (s *Set) RestoreState(state map[identity.OID]struct{}) error {
	if store := s.BoundStore(); store != nil {
		if err := adoptBase(s.base, store); err != nil {
			return err
		}
	}
	return s.base.RestoreState(state)
}

func adoptBase[V any](base *Map[V], store identity.Store) error {
	if _, attached := base.ObjectID(); attached {
		return nil
	}
	_, err := store.Attach(base)
	return err
}
