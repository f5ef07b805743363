package keyed

import (
	"iter"
	"maps"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

type stagedEntry[V any] struct {
	key   identity.Identifiable
	value V
}

// Map associates identity-capable keys with values of type V. Keys that
// do not have a stable identifier yet are held in a staging partition
// addressed by container-private tokens; keys that do are held in a
// persisted partition addressed by their identifier. Flush migrates
// staged entries to the persisted partition, assigning identifiers on
// the way. A logical key lives in exactly one partition at a time.
//
// Map embeds identity.Ref, so a Map is itself attachable to a store.
// Map is not safe for concurrent use.
type Map[V any] struct {
	identity.Ref

	persisted map[identity.OID]V
	staging   map[uint64]stagedEntry[V]
	tokens    map[identity.Identifiable]uint64
	lastToken uint64
}

func NewMap[V any]() *Map[V] {
	return &Map[V]{
		persisted: make(map[identity.OID]V),
		staging:   make(map[uint64]stagedEntry[V]),
		tokens:    make(map[identity.Identifiable]uint64),
	}
}

// Set inserts or overwrites the entry for key. The entry is staged when
// the key has no identifier yet or the map itself is not bound to a
// store; otherwise it is written to the persisted partition.
func (m *Map[V]) Set(key any, value V) error {
	obj, ok := identity.As(key)
	if !ok {
		return ErrInvalidKey
	}
	oid, assigned := obj.ObjectID()
	if !assigned || m.BoundStore() == nil {
		m.stage(obj, value)
		return nil
	}
	m.persisted[oid] = value
	// The key may have been staged before it gained an identifier.
	m.evictStaged(obj)
	return nil
}

// Get returns the value stored under key, looking at the staging
// partition first.
func (m *Map[V]) Get(key any) (V, error) {
	var zero V
	obj, ok := identity.As(key)
	if !ok {
		return zero, ErrInvalidKey
	}
	if token, staged := m.tokens[obj]; staged {
		return m.staging[token].value, nil
	}
	if oid, assigned := obj.ObjectID(); assigned {
		if value, found := m.persisted[oid]; found {
			return value, nil
		}
	}
	return zero, ErrKeyNotFound
}

// Delete removes the entry for key from whichever partition holds it.
func (m *Map[V]) Delete(key any) error {
	obj, ok := identity.As(key)
	if !ok {
		return ErrInvalidKey
	}
	if token, staged := m.tokens[obj]; staged {
		delete(m.staging, token)
		delete(m.tokens, obj)
		return nil
	}
	if oid, assigned := obj.ObjectID(); assigned {
		if _, found := m.persisted[oid]; found {
			delete(m.persisted, oid)
			return nil
		}
	}
	return ErrKeyNotFound
}

func (m *Map[V]) Contains(key any) (bool, error) {
	obj, ok := identity.As(key)
	if !ok {
		return false, ErrInvalidKey
	}
	if _, staged := m.tokens[obj]; staged {
		return true, nil
	}
	if oid, assigned := obj.ObjectID(); assigned {
		_, found := m.persisted[oid]
		return found, nil
	}
	return false, nil
}

func (m *Map[V]) Len() int {
	return len(m.persisted) + len(m.staging)
}

// Keys yields every key exactly once: persisted keys first, resolved
// through the bound store in ascending identifier order, then staged
// keys in insertion order. A resolution failure is yielded through the
// error slot and ends the sequence. The sequence is restartable.
func (m *Map[V]) Keys() iter.Seq2[identity.Identifiable, error] {
	return func(yield func(identity.Identifiable, error) bool) {
		store := m.BoundStore()
		for _, oid := range slices.Sorted(maps.Keys(m.persisted)) {
			if store == nil {
				yield(nil, ErrNotAttached)
				return
			}
			obj, err := store.Resolve(oid)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(obj, nil) {
				return
			}
		}
		for _, token := range slices.Sorted(maps.Keys(m.staging)) {
			if !yield(m.staging[token].key, nil) {
				return
			}
		}
	}
}

// Flush migrates every staged entry to the persisted partition,
// attaching keys that have no identifier yet. Entries whose attachment
// fails stay staged; the failures are collected and returned together.
// Flushing an unbound map fails with ErrNotAttached.
func (m *Map[V]) Flush() error {
	store := m.BoundStore()
	if store == nil {
		return ErrNotAttached
	}
	var errs error
	for _, token := range slices.Sorted(maps.Keys(m.staging)) {
		entry := m.staging[token]
		oid, assigned := entry.key.ObjectID()
		if !assigned {
			var err error
			oid, err = store.Attach(entry.key)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
		}
		m.persisted[oid] = entry.value
		delete(m.staging, token)
		delete(m.tokens, entry.key)
	}
	return errs
}

// SnapshotState flushes staged entries and returns a copy of the
// persisted partition, the only layout that is ever captured durably.
func (m *Map[V]) SnapshotState() (map[identity.OID]V, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	return maps.Clone(m.persisted), nil
}

// RestoreState replaces the persisted partition with state and empties
// the staging partition, mirroring a freshly loaded container.
func (m *Map[V]) RestoreState(state map[identity.OID]V) error {
	m.persisted = maps.Clone(state)
	if m.persisted == nil {
		m.persisted = make(map[identity.OID]V)
	}
	clear(m.staging)
	clear(m.tokens)
	return nil
}

func (m *Map[V]) stage(obj identity.Identifiable, value V) {
	token, staged := m.tokens[obj]
	if !staged {
		m.lastToken++
		token = m.lastToken
		m.tokens[obj] = token
	}
	m.staging[token] = stagedEntry[V]{key: obj, value: value}
}

func (m *Map[V]) evictStaged(obj identity.Identifiable) {
	if token, staged := m.tokens[obj]; staged {
		delete(m.staging, token)
		delete(m.tokens, obj)
	}
}

func (m *Map[V]) values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, value := range m.persisted {
			if !yield(value) {
				return
			}
		}
		for _, entry := range m.staging {
			if !yield(entry.value) {
				return
			}
		}
	}
}
