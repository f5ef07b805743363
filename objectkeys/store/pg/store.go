// Package pg implements a durable identity store on PostgreSQL.
// Identifiers come from a BIGSERIAL column, so concurrent processes
// sharing one database never hand out the same identifier twice. The
// store resolves objects that are live in this process; objects
// reconstructed after a restart are re-bound with Adopt.
package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/krew-solutions/object-keys-go/objectkeys/identity"
)

const keyStoreID = "store_id"

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx, so a
// store can run over a pool or inside a caller-managed transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	ctx       context.Context
	db        Querier
	objects   string
	meta      string
	snapshots string
	id        uuid.UUID
	live      map[identity.OID]identity.Identifiable
}

func New(ctx context.Context, db Querier, tablePrefix string) *Store {
	if tablePrefix == "" {
		tablePrefix = "objectkeys"
	}
	return &Store{
		ctx:       ctx,
		db:        db,
		objects:   tablePrefix + "_objects",
		meta:      tablePrefix + "_meta",
		snapshots: tablePrefix + "_snapshots",
		live:      make(map[identity.OID]identity.Identifiable),
	}
}

// Setup creates the store's tables when they do not exist yet and loads
// the store identity, seeding a fresh one on first run. It is safe to
// call on every start.
func (s *Store) Setup() error {
	if err := s.createTables(); err != nil {
		return err
	}
	return s.initStoreID()
}

func (s *Store) Attach(obj identity.Identifiable) (identity.OID, error) {
	if bound := obj.BoundStore(); bound != nil && bound != identity.Store(s) {
		return 0, identity.ErrStoreMismatch
	}
	if oid, ok := obj.ObjectID(); ok {
		return oid, nil
	}

	sql := fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES RETURNING "oid"`, s.objects)

	var oid int64
	if err := s.db.QueryRow(s.ctx, sql).Scan(&oid); err != nil {
		return 0, errors.Wrap(err, "unable to allocate object id")
	}

	identity.Bind(obj, s, identity.OID(oid))
	s.live[identity.OID(oid)] = obj
	return identity.OID(oid), nil
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
// the row was written.
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
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.objects)

	var n int
	if err := s.db.QueryRow(s.ctx, sql).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "unable to count objects")
	}
	return n, nil
}

func (s *Store) knows(oid identity.OID) (bool, error) {
	sql := fmt.Sprintf(`SELECT 1 FROM %s WHERE "oid" = $1`, s.objects)

	var one int
	err := s.db.QueryRow(s.ctx, sql, int64(oid)).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "unable to look up object id")
	}
	return true, nil
}

func (s *Store) createTables() error {
	sqls := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				"oid" BIGSERIAL PRIMARY KEY,
				"attached_at" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`, s.objects),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				"key" VARCHAR(64) PRIMARY KEY,
				"value" TEXT NOT NULL
			)
		`, s.meta),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				"id" CHAR(26) PRIMARY KEY,
				"store_id" UUID NOT NULL,
				"created_at" TIMESTAMPTZ NOT NULL,
				"codec" VARCHAR(255) NOT NULL,
				"data" BYTEA NOT NULL
			)
		`, s.snapshots),
	}

	for _, sql := range sqls {
		if _, err := s.db.Exec(s.ctx, sql); err != nil {
			return errors.Wrap(err, "unable to create table")
		}
	}
	return nil
}

func (s *Store) initStoreID() error {
	sql := fmt.Sprintf(`
		INSERT INTO %s ("key", "value")
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, s.meta)

	if _, err := s.db.Exec(s.ctx, sql, keyStoreID, uuid.New().String()); err != nil {
		return errors.Wrap(err, "unable to seed store identity")
	}

	sql = fmt.Sprintf(`SELECT "value" FROM %s WHERE "key" = $1`, s.meta)

	var raw string
	if err := s.db.QueryRow(s.ctx, sql, keyStoreID).Scan(&raw); err != nil {
		return errors.Wrap(err, "unable to read store identity")
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "malformed store identity")
	}

	s.id = id
	return nil
}
