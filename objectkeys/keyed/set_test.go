package keyed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

func collectMembers(t *testing.T, s *Set) []identity.Identifiable {
	t.Helper()
	var members []identity.Identifiable
	for obj, err := range s.All() {
		require.NoError(t, err)
		members = append(members, obj)
	}
	return members
}

func TestSetAddContains(t *testing.T) {
	s := NewSet()
	p := &student{Name: "John"}
	assert.NoError(t, s.Add(p))

	present, err := s.Contains(p)
	assert.NoError(t, err)
	assert.True(t, present)

	present, err = s.Contains(&student{Name: "Sarah"})
	assert.NoError(t, err)
	assert.False(t, present)
}

func TestSetAddIdempotent(t *testing.T) {
	s := NewSet()
	p := &student{Name: "John"}
	assert.NoError(t, s.Add(p))
	assert.NoError(t, s.Add(p))
	assert.Equal(t, 1, s.Len())
}

func TestSetAddInvalid(t *testing.T) {
	s := NewSet()
	assert.ErrorIs(t, s.Add("not identifiable"), ErrInvalidKey)
}

func TestSetRemove(t *testing.T) {
	s := NewSet()
	p := &student{Name: "John"}
	require.NoError(t, s.Add(p))

	assert.NoError(t, s.Remove(p))
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Remove(p), ErrKeyNotFound)
}

func TestSetAll(t *testing.T) {
	s := NewSet()
	alice := &student{Name: "Alice"}
	bob := &student{Name: "Bob"}
	require.NoError(t, s.Add(alice))
	require.NoError(t, s.Add(bob))

	seen := make(map[identity.Identifiable]int)
	for _, obj := range collectMembers(t, s) {
		seen[obj]++
	}
	assert.Len(t, seen, 2)
	assert.Equal(t, 1, seen[alice])
	assert.Equal(t, 1, seen[bob])
}

func TestSetFlushUnbound(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(&student{Name: "John"}))
	assert.ErrorIs(t, s.Flush(), ErrNotAttached)
}

func TestSetFlushAttachesMembers(t *testing.T) {
	st := newFakeStore()
	s := NewSet()
	_, err := st.Attach(s)
	require.NoError(t, err)

	p := &student{Name: "John"}
	require.NoError(t, s.Add(p))
	assert.NoError(t, s.Flush())

	_, assigned := p.ObjectID()
	assert.True(t, assigned)
	// The base map was attached alongside the set.
	_, assigned = s.base.ObjectID()
	assert.True(t, assigned)
	assert.Empty(t, s.base.staging)
}

func TestSetMixedPartitionsAll(t *testing.T) {
	st := newFakeStore()
	s := NewSet()
	_, err := st.Attach(s)
	require.NoError(t, err)

	flushed := &student{Name: "Alice"}
	require.NoError(t, s.Add(flushed))
	require.NoError(t, s.Flush())
	staged := &student{Name: "Bob"}
	require.NoError(t, s.Add(staged))

	members := collectMembers(t, s)
	assert.Len(t, members, 2)
	assert.Equal(t, 2, s.Len())
}

func TestSetSnapshotRestore(t *testing.T) {
	st := newFakeStore()
	s := NewSet()
	_, err := st.Attach(s)
	require.NoError(t, err)
	p := &student{Name: "John"}
	require.NoError(t, s.Add(p))

	state, err := s.SnapshotState()
	require.NoError(t, err)

	restored := NewSet()
	_, err = st.Attach(restored)
	require.NoError(t, err)
	require.NoError(t, restored.RestoreState(state))

	assert.Equal(t, 1, restored.Len())
	members := collectMembers(t, restored)
	require.Len(t, members, 1)
	assert.Same(t, p, members[0])
}
