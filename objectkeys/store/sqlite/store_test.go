package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
	"github.com/krew-solutions/object-keys-go/objectkeys/store/sqlite"
	"github.com/krew-solutions/object-keys-go/objectkeys/store/storetest"
)

func tempStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore(t *testing.T) {
	storetest.TestStore(t, tempStore(t))
}

func TestStoreMismatch(t *testing.T) {
	storetest.TestStoreMismatch(t, tempStore(t), tempStore(t))
}

func TestArchive(t *testing.T) {
	storetest.TestArchive(t, tempStore(t))
}

func TestContainerRoundTrip(t *testing.T) {
	storetest.TestContainerRoundTrip(t, tempStore(t))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open("  ")
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	st := tempStore(t)
	_, err := st.Attach(storetest.NewMember())
	require.NoError(t, err)
	_, err = st.Attach(storetest.NewMember())
	require.NoError(t, err)

	n, err := st.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReopenKeepsStoreIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.db")
	st, err := sqlite.Open(path)
	require.NoError(t, err)

	member := storetest.NewMember()
	oid, err := st.Attach(member)
	require.NoError(t, err)
	storeID := st.StoreID()
	require.NoError(t, st.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, storeID, reopened.StoreID())

	_, err = reopened.Resolve(oid)
	assert.ErrorIs(t, err, identity.ErrNotResident)

	revived := &storetest.Member{Name: member.Name}
	require.NoError(t, reopened.Adopt(revived, oid))
	resolved, err := reopened.Resolve(oid)
	require.NoError(t, err)
	assert.Same(t, revived, resolved)
}

func TestAdoptUnknownIdentifier(t *testing.T) {
	st := tempStore(t)
	err := st.Adopt(storetest.NewMember(), 9000)
	assert.ErrorIs(t, err, identity.ErrUnknownID)
}
