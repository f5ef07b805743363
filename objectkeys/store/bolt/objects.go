package bolt

import (
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

func init() {
	initDB["initialize objects bucket"] = func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketObjects))
		return err
	}
}

func (s *Store) Attach(obj identity.Identifiable) (identity.OID, error) {
	if bound := obj.BoundStore(); bound != nil && bound != identity.Store(s) {
		return 0, identity.ErrStoreMismatch
	}
	if oid, ok := obj.ObjectID(); ok {
		return oid, nil
	}
	var oid identity.OID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketObjects))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		oid = identity.OID(seq)
		stamp := time.Now().UTC().Format(time.RFC3339)
		return b.Put(marshalOID(oid), []byte(stamp))
	})
	if err != nil {
		return 0, err
	}
	identity.Bind(obj, s, oid)
	s.live[oid] = obj
	return oid, nil
}

func (s *Store) Resolve(oid identity.OID) (identity.Identifiable, error) {
	if obj, ok := s.live[oid]; ok {
		return obj, nil
	}
	known, err := s.knows(oid)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, identity.ErrUnknownID
	}
	return nil, identity.ErrNotResident
}

// Adopt re-binds a reconstructed object to the identifier it held when
// the database was written.
func (s *Store) Adopt(obj identity.Identifiable, oid identity.OID) error {
	if bound := obj.BoundStore(); bound != nil && bound != identity.Store(s) {
		return identity.ErrStoreMismatch
	}
	known, err := s.knows(oid)
	if err != nil {
		return err
	}
	if !known {
		return identity.ErrUnknownID
	}
	identity.Bind(obj, s, oid)
	s.live[oid] = obj
	return nil
}

// Count returns the number of identifiers ever assigned.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(bucketObjects)).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *Store) knows(oid identity.OID) (bool, error) {
	var known bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		known = tx.Bucket([]byte(bucketObjects)).Get(marshalOID(oid)) != nil
		return nil
	})
	return known, err
}

func marshalOID(oid identity.OID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(oid))
	return b
}
