// Package storetest keeps test suites that any identity.Store and
// snapshot.Archive implementation must pass. Backend packages call
// these from their own tests.
package storetest

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"syreclabs.com/go/faker"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
	"github.com/krew-solutions/object-keys-go/objectkeys/keyed"
	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
)

// Store is what a full backend provides.
type Store interface {
	identity.Store
	snapshot.Archive
}

// Member is the identity-capable fixture used by the suites.
type Member struct {
	identity.Ref
	Name string
}

func NewMember() *Member {
	return &Member{Name: faker.Name().Name()}
}

// TestStore runs the identifier assignment suite against st.
func TestStore(t *testing.T, st identity.Store) {
	alice := NewMember()
	bob := NewMember()

	aliceID, err := st.Attach(alice)
	require.NoError(t, err)
	bobID, err := st.Attach(bob)
	require.NoError(t, err)
	assert.NotEqual(t, identity.OID(0), aliceID)
	assert.NotEqual(t, aliceID, bobID)

	// Re-attaching is idempotent.
	again, err := st.Attach(alice)
	require.NoError(t, err)
	assert.Equal(t, aliceID, again)

	resolved, err := st.Resolve(aliceID)
	require.NoError(t, err)
	assert.Same(t, alice, resolved)

	_, err = st.Resolve(identity.OID(1 << 40))
	assert.ErrorIs(t, err, identity.ErrUnknownID)
	_, err = st.Resolve(0)
	assert.ErrorIs(t, err, identity.ErrUnknownID)
}

// TestStoreMismatch verifies that an object bound to a cannot be
// attached to b.
func TestStoreMismatch(t *testing.T, a, b identity.Store) {
	m := NewMember()
	_, err := a.Attach(m)
	require.NoError(t, err)

	_, err = b.Attach(m)
	assert.ErrorIs(t, err, identity.ErrStoreMismatch)
}

// TestArchive runs the snapshot area suite against ar.
func TestArchive(t *testing.T, ar snapshot.Archive) {
	first := snapshot.Manifest{
		ID:      ulid.Make(),
		StoreID: ar.StoreID(),
		Codec:   "json",
	}
	second := snapshot.Manifest{
		ID:      ulid.Make(),
		StoreID: ar.StoreID(),
		Codec:   "json+zlib",
	}
	require.NoError(t, ar.SaveSnapshot(first, []byte(`{"1":"a"}`)))
	require.NoError(t, ar.SaveSnapshot(second, []byte("compressed")))

	m, data, err := ar.LoadSnapshot(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, m.ID)
	assert.Equal(t, ar.StoreID(), m.StoreID)
	assert.Equal(t, "json", m.Codec)
	assert.Equal(t, []byte(`{"1":"a"}`), data)

	_, _, err = ar.LoadSnapshot(ulid.Make())
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)

	listed, err := ar.Snapshots()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, first.ID, listed[0].ID)
	assert.Equal(t, second.ID, listed[1].ID)
}

// TestContainerRoundTrip captures a populated map against st and
// restores it into a fresh one.
func TestContainerRoundTrip(t *testing.T, st Store) {
	m := keyed.NewMap[string]()
	_, err := st.Attach(m)
	require.NoError(t, err)

	alice := NewMember()
	bob := NewMember()
	require.NoError(t, m.Set(alice, "first"))
	require.NoError(t, m.Set(bob, "second"))

	manifest, err := snapshot.Capture[map[identity.OID]string](st, snapshot.JsonCodec{}, m)
	require.NoError(t, err)

	restored := keyed.NewMap[string]()
	_, err = st.Attach(restored)
	require.NoError(t, err)
	_, err = snapshot.Restore[map[identity.OID]string](st, manifest.ID, snapshot.JsonCodec{}, restored)
	require.NoError(t, err)

	assert.Equal(t, 2, restored.Len())
	got, err := restored.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	counts := make(map[identity.Identifiable]int)
	for obj, err := range restored.Keys() {
		require.NoError(t, err)
		counts[obj]++
	}
	assert.Len(t, counts, 2)
	assert.Equal(t, 1, counts[alice])
	assert.Equal(t, 1, counts[bob])
}
