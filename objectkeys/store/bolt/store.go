// Package bolt implements a durable identity store on a bbolt database
// file. Identifiers come from the objects bucket sequence and are never
// recycled. The store resolves objects that are live in this process;
// after reopening a database, reconstructed objects are re-bound to
// their identifiers with Adopt.
package bolt

import (
	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

const (
	bucketMeta      = "meta"
	bucketObjects   = "objects"
	bucketSnapshots = "snapshots"

	keyStoreID = "store_id"
)

var initDB = map[string]func(tx *bbolt.Tx) error{}

type Store struct {
	db   *bbolt.DB
	id   uuid.UUID
	live map[identity.OID]identity.Identifiable
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, live: make(map[identity.OID]identity.Identifiable)}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, fn := range initDB {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return s.initStoreID(tx)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// initStoreID reads the persisted store identity, minting one on first
// open. The identity survives reopening, so snapshots taken before a
// restart stay restorable.
func (s *Store) initStoreID(tx *bbolt.Tx) error {
	b := tx.Bucket([]byte(bucketMeta))
	if v := b.Get([]byte(keyStoreID)); v != nil {
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		s.id = id
		return nil
	}
	s.id = uuid.New()
	return b.Put([]byte(keyStoreID), []byte(s.id.String()))
}

func init() {
	initDB["initialize meta bucket"] = func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		return err
	}
}
