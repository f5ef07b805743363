package testutils

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func NewQuerierStub(rows *RowsStub) *QuerierStub {
	return &QuerierStub{Rows: rows}
}

// QuerierStub records every statement it sees and serves canned rows,
// so repository code can be tested without a database.
type QuerierStub struct {
	Rows         *RowsStub
	ActualQuery  string
	ActualParams []any
	Queries      []string
}

func (q *QuerierStub) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.record(sql, args)
	return pgconn.NewCommandTag("OK"), nil
}

func (q *QuerierStub) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.record(sql, args)
	return q.Rows, nil
}

func (q *QuerierStub) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.record(sql, args)
	return &RowStub{rows: q.Rows}
}

func (q *QuerierStub) record(sql string, args []any) {
	q.ActualQuery = sql
	q.ActualParams = args
	q.Queries = append(q.Queries, sql)
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows   [][]any
	idx    int
	Closed bool
}

func (r *RowsStub) Close() {
	r.Closed = true
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("")
}

func (r *RowsStub) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	for i, val := range row {
		if i >= len(dest) {
			break
		}

		switch d := dest[i].(type) {
		case *int:
			*d = toInt(val)
		case *int64:
			*d = toInt64(val)
		case *string:
			*d = val.(string)
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = val.(float64)
		case *time.Time:
			*d = val.(time.Time)
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func (r *RowsStub) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return nil, errors.New("no current row")
	}
	return r.rows[r.idx], nil
}

func (r *RowsStub) RawValues() [][]byte {
	return nil
}

func (r *RowsStub) Conn() *pgx.Conn {
	return nil
}

func toInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		panic("cannot convert to int")
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	default:
		panic("cannot convert to int64")
	}
}

type RowStub struct {
	rows *RowsStub
}

// Scan behaves like pgx.Row: it consumes the next stubbed row and
// reports pgx.ErrNoRows when none remain.
func (r *RowStub) Scan(dest ...any) error {
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}
