package snapshot

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memArchive struct {
	id        uuid.UUID
	manifests []Manifest
	blobs     map[ulid.ULID][]byte
}

func newMemArchive() *memArchive {
	return &memArchive{id: uuid.New(), blobs: make(map[ulid.ULID][]byte)}
}

func (a *memArchive) StoreID() uuid.UUID {
	return a.id
}

func (a *memArchive) SaveSnapshot(m Manifest, data []byte) error {
	a.manifests = append(a.manifests, m)
	a.blobs[m.ID] = data
	return nil
}

func (a *memArchive) LoadSnapshot(id ulid.ULID) (Manifest, []byte, error) {
	for _, m := range a.manifests {
		if m.ID == id {
			return m, a.blobs[id], nil
		}
	}
	return Manifest{}, nil, ErrSnapshotNotFound
}

func (a *memArchive) Snapshots() ([]Manifest, error) {
	return slices.Clone(a.manifests), nil
}

type stubContainer struct {
	state map[string]string
	err   error
}

func (c *stubContainer) SnapshotState() (map[string]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.state, nil
}

func (c *stubContainer) RestoreState(state map[string]string) error {
	c.state = state
	return nil
}

func TestCapture_WritesManifest(t *testing.T) {
	ar := newMemArchive()
	src := &stubContainer{state: map[string]string{"a": "1"}}

	m, err := Capture[map[string]string](ar, JsonCodec{}, src)
	require.NoError(t, err)
	assert.NotEqual(t, ulid.ULID{}, m.ID)
	assert.Equal(t, ar.StoreID(), m.StoreID)
	assert.Equal(t, "json", m.Codec)
	assert.False(t, m.CreatedAt.IsZero())

	listed, err := ar.Snapshots()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, m, listed[0])
}

func TestCapture_SourceFailure(t *testing.T) {
	ar := newMemArchive()
	boom := errors.New("flush failed")
	src := &stubContainer{err: boom}

	_, err := Capture[map[string]string](ar, JsonCodec{}, src)
	assert.ErrorIs(t, err, boom)
}

func TestRestore_RoundTrip(t *testing.T) {
	ar := newMemArchive()
	src := &stubContainer{state: map[string]string{"a": "1", "b": "2"}}
	m, err := Capture[map[string]string](ar, JsonCodec{}, src)
	require.NoError(t, err)

	dst := &stubContainer{}
	got, err := Restore[map[string]string](ar, m.ID, JsonCodec{}, dst)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, src.state, dst.state)
}

func TestRestore_UnknownSnapshot(t *testing.T) {
	ar := newMemArchive()
	_, err := Restore[map[string]string](ar, ulid.Make(), JsonCodec{}, &stubContainer{})
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestRestore_ForeignSnapshot(t *testing.T) {
	origin := newMemArchive()
	src := &stubContainer{state: map[string]string{"a": "1"}}
	m, err := Capture[map[string]string](origin, JsonCodec{}, src)
	require.NoError(t, err)

	// The blob ends up in another store's archive.
	other := newMemArchive()
	_, blob, err := origin.LoadSnapshot(m.ID)
	require.NoError(t, err)
	require.NoError(t, other.SaveSnapshot(m, blob))

	_, err = Restore[map[string]string](other, m.ID, JsonCodec{}, &stubContainer{})
	assert.ErrorIs(t, err, ErrForeignSnapshot)
}

func TestRestore_CodecMismatch(t *testing.T) {
	ar := newMemArchive()
	src := &stubContainer{state: map[string]string{"a": "1"}}
	m, err := Capture[map[string]string](ar, JsonCodec{}, src)
	require.NoError(t, err)

	_, err = Restore[map[string]string](ar, m.ID, NewZlibCompressor(JsonCodec{}), &stubContainer{})
	assert.ErrorIs(t, err, ErrCodecMismatch)
}
