package pg

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/krew-solutions/object-keys-go/objectkeys/snapshot"
)

func (s *Store) StoreID() uuid.UUID {
	return s.id
}

func (s *Store) SaveSnapshot(m snapshot.Manifest, data []byte) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s ("id", "store_id", "created_at", "codec", "data")
		VALUES ($1, $2, $3, $4, $5)
	`, s.snapshots)

	_, err := s.db.Exec(s.ctx, sql, m.ID.String(), m.StoreID.String(), m.CreatedAt, m.Codec, data)
	return errors.Wrap(err, "unable to save snapshot")
}

func (s *Store) LoadSnapshot(id ulid.ULID) (snapshot.Manifest, []byte, error) {
	sql := fmt.Sprintf(`
		SELECT "store_id"::text, "created_at", "codec", "data"
		FROM %s
		WHERE "id" = $1
	`, s.snapshots)

	var (
		storeID string
		created time.Time
		codec   string
		data    []byte
	)
	err := s.db.QueryRow(s.ctx, sql, id.String()).Scan(&storeID, &created, &codec, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return snapshot.Manifest{}, nil, snapshot.ErrSnapshotNotFound
	}
	if err != nil {
		return snapshot.Manifest{}, nil, errors.Wrap(err, "unable to load snapshot")
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
	sql := fmt.Sprintf(`
		SELECT "id", "store_id"::text, "created_at", "codec"
		FROM %s
		ORDER BY "id"
	`, s.snapshots)

	rows, err := s.db.Query(s.ctx, sql)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list snapshots")
	}
	defer rows.Close()

	var manifests []snapshot.Manifest
	for rows.Next() {
		var (
			id      string
			storeID string
			created time.Time
			codec   string
		)
		if err := rows.Scan(&id, &storeID, &created, &codec); err != nil {
			return nil, errors.Wrap(err, "unable to scan snapshot")
		}
		m, err := manifestFromRow(id, storeID, created, codec)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "unable to iterate snapshots")
	}
	return manifests, nil
}

func manifestFromRow(id, storeID string, created time.Time, codec string) (snapshot.Manifest, error) {
	parsedID, err := ulid.Parse(strings.TrimSpace(id))
	if err != nil {
		return snapshot.Manifest{}, errors.Wrap(err, "malformed snapshot id")
	}
	parsedStore, err := uuid.Parse(storeID)
	if err != nil {
		return snapshot.Manifest{}, errors.Wrap(err, "malformed snapshot store id")
	}
	return snapshot.Manifest{ID: parsedID, StoreID: parsedStore, CreatedAt: created, Codec: codec}, nil
}
