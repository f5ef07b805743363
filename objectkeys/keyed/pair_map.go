package keyed

import (
	"errors"
	"iter"
	"maps"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

// Pair is a composite key yielded by PairMap iteration.
type Pair[S comparable] struct {
	Primary   identity.Identifiable
	Secondary S
}

// Item is a composite entry yielded by PairMap iteration.
type Item[S comparable, V any] struct {
	Primary   identity.Identifiable
	Secondary S
	Value     V
}

// PairMap associates composite keys with values of type V. The primary
// key component is identity-capable, the secondary is any comparable
// type. Entries nest as ordinary maps keyed by the secondary inside a
// Map keyed by the primary; a primary never maps to an empty inner map.
type PairMap[S comparable, V any] struct {
	identity.Ref

	base *Map[map[S]V]
}

func NewPairMap[S comparable, V any]() *PairMap[S, V] {
	return &PairMap[S, V]{base: NewMap[map[S]V]()}
}

// Set inserts or overwrites the entry for (primary, secondary).
func (pm *PairMap[S, V]) Set(primary any, secondary S, value V) error {
	inner, err := pm.base.Get(primary)
	if errors.Is(err, ErrKeyNotFound) {
		inner = make(map[S]V)
	} else if err != nil {
		return err
	}
	inner[secondary] = value
	// Reassign so the base map observes the mutation.
	return pm.base.Set(primary, inner)
}

func (pm *PairMap[S, V]) Get(primary any, secondary S) (V, error) {
	inner, err := pm.base.Get(primary)
	if err != nil {
		var zero V
		return zero, err
	}
	value, found := inner[secondary]
	if !found {
		var zero V
		return zero, ErrKeyNotFound
	}
	return value, nil
}

// Delete removes the entry for (primary, secondary). When the last
// secondary under a primary goes, the primary goes with it.
func (pm *PairMap[S, V]) Delete(primary any, secondary S) error {
	inner, err := pm.base.Get(primary)
	if err != nil {
		return err
	}
	if _, found := inner[secondary]; !found {
		return ErrKeyNotFound
	}
	delete(inner, secondary)
	if len(inner) == 0 {
		return pm.base.Delete(primary)
	}
	// Reassign so the base map observes the mutation.
	return pm.base.Set(primary, inner)
}

func (pm *PairMap[S, V]) Contains(primary any, secondary S) (bool, error) {
	inner, err := pm.base.Get(primary)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, found := inner[secondary]
	return found, nil
}

// Len counts entries across all primaries without touching the store.
func (pm *PairMap[S, V]) Len() int {
	total := 0
	for inner := range pm.base.values() {
		total += len(inner)
	}
	return total
}

// Keys yields every composite key exactly once. Primaries follow the
// base map's order; secondaries under one primary come in no
// particular order.
func (pm *PairMap[S, V]) Keys() iter.Seq2[Pair[S], error] {
	return func(yield func(Pair[S], error) bool) {
		for item, err := range pm.Items() {
			if err != nil {
				yield(Pair[S]{}, err)
				return
			}
			if !yield(Pair[S]{Primary: item.Primary, Secondary: item.Secondary}, nil) {
				return
			}
		}
	}
}

// Items yields every entry with its value, in the same order as Keys.
func (pm *PairMap[S, V]) Items() iter.Seq2[Item[S, V], error] {
	return func(yield func(Item[S, V], error) bool) {
		for primary, err := range pm.base.Keys() {
			if err != nil {
				yield(Item[S, V]{}, err)
				return
			}
			inner, err := pm.base.Get(primary)
			if err != nil {
				yield(Item[S, V]{}, err)
				return
			}
			for secondary, value := range inner {
				if !yield(Item[S, V]{Primary: primary, Secondary: secondary, Value: value}, nil) {
					return
				}
			}
		}
	}
}

// Flush migrates staged entries to the persisted partition, attaching
// the base map to the pair map's store first if it is not attached yet.
func (pm *PairMap[S, V]) Flush() error {
	store := pm.BoundStore()
	if store == nil {
		return ErrNotAttached
	}
	if err := adoptBase(pm.base, store); err != nil {
		return err
	}
	return pm.base.Flush()
}

// SnapshotState flushes staged entries and returns a deep copy of the
// persisted partition.
func (pm *PairMap[S, V]) SnapshotState() (map[identity.OID]map[S]V, error) {
	if err := pm.Flush(); err != nil {
		return nil, err
	}
	state := make(map[identity.OID]map[S]V, len(pm.base.persisted))
	for oid, inner := range pm.base.persisted {
		state[oid] = maps.Clone(inner)
	}
	return state, nil
}

// RestoreState replaces the persisted partition with a deep copy of
// state and empties staging. Primaries with empty inner maps are
// dropped. When the pair map is bound to a store the base map is
// rebound as well.
func (pm *PairMap[S, V]) RestoreState(state map[identity.OID]map[S]V) error {
	if store := pm.BoundStore(); store != nil {
		if err := adoptBase(pm.base, store); err != nil {
			return err
		}
	}
	restored := make(map[identity.OID]map[S]V, len(state))
	for oid, inner := range state {
		if len(inner) == 0 {
			continue
		}
		restored[oid] = maps.Clone(inner)
	}
	return pm.base.RestoreState(restored)
}
