package bolt

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"

	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
)

func init() {
	initDB["initialize snapshots bucket"] = func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSnapshots))
		return err
	}
}

// snapshotRecord is the stored form of one snapshot. Bucket keys are
// raw ULID bytes, so a cursor walks snapshots oldest first.
type snapshotRecord struct {
	Manifest snapshot.Manifest `json:"manifest"`
	Data     []byte            `json:"data"`
}

func (s *Store) StoreID() uuid.UUID {
	return s.id
}

func (s *Store) SaveSnapshot(m snapshot.Manifest, data []byte) error {
	record, err := json.Marshal(snapshotRecord{Manifest: m, Data: data})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketSnapshots)).Put(m.ID[:], record)
	})
}

func (s *Store) LoadSnapshot(id ulid.ULID) (snapshot.Manifest, []byte, error) {
	var record snapshotRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketSnapshots)).Get(id[:])
		if v == nil {
			return snapshot.ErrSnapshotNotFound
		}
		return json.Unmarshal(v, &record)
	})
	if err != nil {
		return snapshot.Manifest{}, nil, err
	}
	return record.Manifest, record.Data, nil
}

func (s *Store) Snapshots() ([]snapshot.Manifest, error) {
	var manifests []snapshot.Manifest
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketSnapshots)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var record snapshotRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			manifests = append(manifests, record.Manifest)
		}
		return nil
	})
	return manifests, err
}
