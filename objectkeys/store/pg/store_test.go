package pg_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
	"github.com/krew-solutions/object-keys-go/objectkeys/store/pg"
	"github.com/krew-solutions/object-keys-go/objectkeys/store/storetest"
	"github.com/krew-solutions/object-keys-go/objectkeys/utils/testutils"
)

func TestSetupCreatesPrefixedTables(t *testing.T) {
	storeID := uuid.New()
	db := testutils.NewQuerierStub(testutils.NewRowsStub([]any{storeID.String()}))
	st := pg.New(context.Background(), db, "app")

	require.NoError(t, st.Setup())

	require.Len(t, db.Queries, 5)
	assert.Contains(t, db.Queries[0], "CREATE TABLE IF NOT EXISTS app_objects")
	assert.Contains(t, db.Queries[1], "CREATE TABLE IF NOT EXISTS app_meta")
	assert.Contains(t, db.Queries[2], "CREATE TABLE IF NOT EXISTS app_snapshots")
	assert.Equal(t, storeID, st.StoreID())
}

func TestDefaultTablePrefix(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub([]any{uuid.New().String()}))
	st := pg.New(context.Background(), db, "")

	require.NoError(t, st.Setup())

	assert.Contains(t, db.Queries[0], "objectkeys_objects")
}

func TestAttachAllocatesIdentifier(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub([]any{int64(7)}))
	st := pg.New(context.Background(), db, "app")

	member := storetest.NewMember()
	oid, err := st.Attach(member)
	require.NoError(t, err)

	assert.Equal(t, identity.OID(7), oid)
	assert.Contains(t, db.ActualQuery, `INSERT INTO app_objects DEFAULT VALUES RETURNING "oid"`)

	got, ok := member.ObjectID()
	require.True(t, ok)
	assert.Equal(t, oid, got)

	queries := len(db.Queries)
	again, err := st.Attach(member)
	require.NoError(t, err)
	assert.Equal(t, oid, again)
	assert.Len(t, db.Queries, queries)
}

func TestAttachForeignObject(t *testing.T) {
	a := pg.New(context.Background(), testutils.NewQuerierStub(testutils.NewRowsStub([]any{int64(1)})), "a")
	b := pg.New(context.Background(), testutils.NewQuerierStub(testutils.NewRowsStub()), "b")

	member := storetest.NewMember()
	_, err := a.Attach(member)
	require.NoError(t, err)

	_, err = b.Attach(member)
	assert.ErrorIs(t, err, identity.ErrStoreMismatch)
}

func TestResolveLiveObject(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub([]any{int64(3)}))
	st := pg.New(context.Background(), db, "app")

	member := storetest.NewMember()
	oid, err := st.Attach(member)
	require.NoError(t, err)

	resolved, err := st.Resolve(oid)
	require.NoError(t, err)
	assert.Same(t, member, resolved)
}

func TestResolveUnknownIdentifier(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub())
	st := pg.New(context.Background(), db, "app")

	_, err := st.Resolve(42)
	assert.ErrorIs(t, err, identity.ErrUnknownID)
	assert.Contains(t, db.ActualQuery, "SELECT 1 FROM app_objects")
	assert.Equal(t, []any{int64(42)}, db.ActualParams)
}

func TestResolveKnownButNotResident(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub([]any{1}))
	st := pg.New(context.Background(), db, "app")

	_, err := st.Resolve(42)
	assert.ErrorIs(t, err, identity.ErrNotResident)
}

func TestSaveSnapshot(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub())
	st := pg.New(context.Background(), db, "app")

	m := snapshot.Manifest{
		ID:        ulid.Make(),
		StoreID:   uuid.New(),
		CreatedAt: time.Now().UTC(),
		Codec:     "json",
	}
	require.NoError(t, st.SaveSnapshot(m, []byte("payload")))

	assert.Contains(t, db.ActualQuery, "INSERT INTO app_snapshots")
	require.Len(t, db.ActualParams, 5)
	assert.Equal(t, m.ID.String(), db.ActualParams[0])
	assert.Equal(t, m.StoreID.String(), db.ActualParams[1])
	assert.Equal(t, []byte("payload"), db.ActualParams[4])
}

func TestLoadSnapshot(t *testing.T) {
	storeID := uuid.New()
	created := time.Now().UTC().Truncate(time.Second)
	db := testutils.NewQuerierStub(testutils.NewRowsStub(
		[]any{storeID.String(), created, "json+zlib", []byte("blob")},
	))
	st := pg.New(context.Background(), db, "app")

	id := ulid.Make()
	m, data, err := st.LoadSnapshot(id)
	require.NoError(t, err)

	assert.Equal(t, id, m.ID)
	assert.Equal(t, storeID, m.StoreID)
	assert.True(t, created.Equal(m.CreatedAt))
	assert.Equal(t, "json+zlib", m.Codec)
	assert.Equal(t, []byte("blob"), data)
	assert.Equal(t, []any{id.String()}, db.ActualParams)
}

func TestLoadSnapshotMissing(t *testing.T) {
	db := testutils.NewQuerierStub(testutils.NewRowsStub())
	st := pg.New(context.Background(), db, "app")

	_, _, err := st.LoadSnapshot(ulid.Make())
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
}

func TestSnapshots(t *testing.T) {
	storeID := uuid.New()
	first := ulid.Make()
	second := ulid.Make()
	now := time.Now().UTC()
	db := testutils.NewQuerierStub(testutils.NewRowsStub(
		[]any{first.String(), storeID.String(), now, "json"},
		[]any{second.String(), storeID.String(), now, "json"},
	))
	st := pg.New(context.Background(), db, "app")

	manifests, err := st.Snapshots()
	require.NoError(t, err)

	require.Len(t, manifests, 2)
	assert.Equal(t, first, manifests[0].ID)
	assert.Equal(t, second, manifests[1].ID)
	assert.Contains(t, db.ActualQuery, `ORDER BY "id"`)
	assert.True(t, db.Rows.Closed)
}
