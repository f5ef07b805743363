// Package sqlite implements a durable identity store on a SQLite
// database file. Identifiers come from an AUTOINCREMENT column, so they
// are never recycled even after rows are deleted. The store resolves
// objects that are live in this process; after reopening a database,
// reconstructed objects are re-bound to their identifiers with Adopt.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
)

const keyStoreID = "store_id"

var initTable = map[string]string{
	"objects": `CREATE TABLE IF NOT EXISTS objects (
		oid INTEGER PRIMARY KEY AUTOINCREMENT,
		attached_at TEXT NOT NULL)`,
	"store_meta": `CREATE TABLE IF NOT EXISTS store_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL)`,
	"snapshots": `CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		codec TEXT NOT NULL,
		data BLOB NOT NULL)`,
}

type Store struct {
	sqlDB *sql.DB
	id    uuid.UUID
	live  map[identity.OID]identity.Identifiable
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for name, query := range initTable {
		if _, err := sqlDB.Exec(query); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("create table %s: %w", name, err)
		}
	}
	s := &Store{sqlDB: sqlDB, live: make(map[identity.OID]identity.Identifiable)}
	if err := s.initStoreID(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) initStoreID() error {
	var value string
	err := s.sqlDB.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, keyStoreID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		s.id = uuid.New()
		if _, err := s.sqlDB.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`, keyStoreID, s.id.String()); err != nil {
			return fmt.Errorf("persist store id: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read store id: %w", err)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return fmt.Errorf("parse store id: %w", err)
	}
	s.id = id
	return nil
}

func (s *Store) Attach(obj identity.Identifiable) (identity.OID, error) {
	if bound := obj.BoundStore(); bound != nil && bound != identity.Store(s) {
		return 0, identity.ErrStoreMismatch
	}
	if oid, ok := obj.ObjectID(); ok {
		return oid, nil
	}
	res, err := s.sqlDB.Exec(`INSERT INTO objects (attached_at) VALUES (?)`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert object: %w", err)
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read object id: %w", err)
	}
	oid := identity.OID(last)
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
	if err := s.sqlDB.QueryRow(`SELECT COUNT(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}

func (s *Store) knows(oid identity.OID) (bool, error) {
	var one int
	err := s.sqlDB.QueryRow(`SELECT 1 FROM objects WHERE oid = ?`, uint64(oid)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query object: %w", err)
	}
	return true, nil
}

func (s *Store) StoreID() uuid.UUID {
	return s.id
}

func (s *Store) SaveSnapshot(m snapshot.Manifest, data []byte) error {
	_, err := s.sqlDB.Exec(
		`INSERT INTO snapshots (id, store_id, created_at, codec, data) VALUES (?, ?, ?, ?, ?)`,
		m.ID.String(), m.StoreID.String(), m.CreatedAt.UTC().Format(time.RFC3339Nano), m.Codec, data)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(id ulid.ULID) (snapshot.Manifest, []byte, error) {
	var (
		storeID string
		created string
		codec   string
		data    []byte
	)
	err := s.sqlDB.QueryRow(
		`SELECT store_id, created_at, codec, data FROM snapshots WHERE id = ?`, id.String()).
		Scan(&storeID, &created, &codec, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot.Manifest{}, nil, snapshot.ErrSnapshotNotFound
	}
	if err != nil {
		return snapshot.Manifest{}, nil, fmt.Errorf("query snapshot: %w", err)
	}
	m, err := manifestFromRow(id.String(), storeID, created, codec)
	if err != nil {
		return snapshot.Manifest{}, nil, err
	}
	return m, data, nil
}

// Snapshots lists manifests oldest first. ULID strings sort
// lexicographically in creation order, so ordering by id is enough.
func (s *Store) Snapshots() ([]snapshot.Manifest, error) {
	rows, err := s.sqlDB.Query(`SELECT id, store_id, created_at, codec FROM snapshots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var manifests []snapshot.Manifest
	for rows.Next() {
		var id, storeID, created, codec string
		if err := rows.Scan(&id, &storeID, &created, &codec); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		m, err := manifestFromRow(id, storeID, created, codec)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return manifests, nil
}

func manifestFromRow(id, storeID, created, codec string) (snapshot.Manifest, error) {
	parsedID, err := ulid.Parse(id)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("parse snapshot id: %w", err)
	}
	parsedStore, err := uuid.Parse(storeID)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("parse store id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	return snapshot.Manifest{ID: parsedID, StoreID: parsedStore, CreatedAt: createdAt, Codec: codec}, nil
}
