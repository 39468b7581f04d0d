// Package sqlstore implements ports.RecordStore on SQLite or PostgreSQL.
//
// Records live in work_items; each field value is a JSON document in
// work_item_fields, so values keep their type across a round trip.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Store is a SQL-backed record store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn, applies migrations and returns the store.
// For SQLite the DSN is a file path; its directory is created if needed.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	if d == SQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	if d == SQLite {
		// One writer; foreign keys are off by default.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d, err)
	}
	if err := Migrate(db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

// New wraps an already migrated database.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, q sqlExecer, query string, args ...any) (int, error) {
	res, err := q.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Insert adds a record and its fields in one transaction.
func (s *Store) Insert(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Type == "" {
		return domain.Record{}, fmt.Errorf("record type cannot be empty")
	}
	out := rec.Clone()
	if out.Fields == nil {
		out.Fields = map[string]any{}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			s.dialect.rebind(`INSERT INTO work_items (type, state) VALUES (?, ?) RETURNING id`),
			rec.Type, rec.State)
		if err := row.Scan(&out.ID); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		for name, v := range out.Fields {
			if err := s.putField(ctx, tx, out.ID, name, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Record{}, err
	}
	return out, nil
}

func (s *Store) putField(ctx context.Context, q sqlExecer, id int64, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", name, err)
	}
	_, err = s.exec(ctx, q,
		`INSERT INTO work_item_fields (item_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (item_id, name) DO UPDATE SET value = excluded.value`,
		id, name, string(data))
	if err != nil {
		return fmt.Errorf("write field %q: %w", name, err)
	}
	return nil
}

// Query returns the records of a type ordered by ID.
func (s *Store) Query(ctx context.Context, q ports.RecordQuery) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.dialect.rebind(`SELECT id, state FROM work_items WHERE type = ? ORDER BY id`), q.Type)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	var out []domain.Record
	index := map[int64]int{}
	for rows.Next() {
		rec := domain.Record{Type: q.Type, Fields: map[string]any{}}
		if err := rows.Scan(&rec.ID, &rec.State); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		index[rec.ID] = len(out)
		out = append(out, rec)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(out) == 0 || (q.Fields != nil && len(q.Fields) == 0) {
		return out, nil
	}

	query := `SELECT f.item_id, f.name, f.value FROM work_item_fields f
		JOIN work_items w ON w.id = f.item_id WHERE w.type = ?`
	args := []any{q.Type}
	if q.Fields != nil {
		query += ` AND f.name IN (?` + strings.Repeat(`, ?`, len(q.Fields)-1) + `)`
		for _, f := range q.Fields {
			args = append(args, f)
		}
	}
	frows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select fields: %w", err)
	}
	defer func() { _ = frows.Close() }()
	for frows.Next() {
		var (
			id   int64
			name string
			raw  []byte
		)
		if err := frows.Scan(&id, &name, &raw); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode field %q of record %d: %w", name, id, err)
		}
		out[i].Fields[name] = v
	}
	return out, frows.Err()
}

// SetField writes one field of one record.
func (s *Store) SetField(ctx context.Context, typeName string, id int64, field string, value any) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var found int64
		err := tx.QueryRowContext(ctx,
			s.dialect.rebind(`SELECT id FROM work_items WHERE id = ? AND type = ?`), id, typeName).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("record %d of type %q not found", id, typeName)
		}
		if err != nil {
			return fmt.Errorf("lookup record: %w", err)
		}
		return s.putField(ctx, tx, id, field, value)
	})
}

// RewriteState moves records of a type from one state to another.
func (s *Store) RewriteState(ctx context.Context, typeName, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	n, err := s.exec(ctx, s.db, `UPDATE work_items SET state = ? WHERE type = ? AND state = ?`, to, typeName, from)
	if err != nil {
		return 0, fmt.Errorf("rewrite state: %w", err)
	}
	return n, nil
}

// RenameType renames every record of a type.
func (s *Store) RenameType(ctx context.Context, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	n, err := s.exec(ctx, s.db, `UPDATE work_items SET type = ? WHERE type = ?`, to, from)
	if err != nil {
		return 0, fmt.Errorf("rename type: %w", err)
	}
	return n, nil
}

// RenameField renames a field on every record of a type.
// Nothing changes when any record already holds the new name.
func (s *Store) RenameField(ctx context.Context, typeName, from, to string) (int, error) {
	if from == to {
		return 0, nil
	}
	var n int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var clash int64
		err := tx.QueryRowContext(ctx, s.dialect.rebind(
			`SELECT a.item_id FROM work_item_fields a
			 JOIN work_item_fields b ON b.item_id = a.item_id AND b.name = ?
			 JOIN work_items w ON w.id = a.item_id
			 WHERE w.type = ? AND a.name = ? LIMIT 1`), to, typeName, from).Scan(&clash)
		switch {
		case err == nil:
			return fmt.Errorf("%w: record %d holds both %q and %q", domain.ErrFieldConflict, clash, from, to)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check field conflict: %w", err)
		}
		n, err = s.exec(ctx, tx,
			`UPDATE work_item_fields SET name = ?
			 WHERE name = ? AND item_id IN (SELECT id FROM work_items WHERE type = ?)`, to, from, typeName)
		if err != nil {
			return fmt.Errorf("rename field: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DestroyType removes every record of a type with its fields.
func (s *Store) DestroyType(ctx context.Context, typeName string) (int, error) {
	var n int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx,
			`DELETE FROM work_item_fields WHERE item_id IN (SELECT id FROM work_items WHERE type = ?)`, typeName); err != nil {
			return fmt.Errorf("destroy fields: %w", err)
		}
		var err error
		n, err = s.exec(ctx, tx, `DELETE FROM work_items WHERE type = ?`, typeName)
		if err != nil {
			return fmt.Errorf("destroy records: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DestroyField removes a field from every record of a type.
func (s *Store) DestroyField(ctx context.Context, typeName, field string) (int, error) {
	n, err := s.exec(ctx, s.db,
		`DELETE FROM work_item_fields WHERE name = ? AND item_id IN (SELECT id FROM work_items WHERE type = ?)`,
		field, typeName)
	if err != nil {
		return 0, fmt.Errorf("destroy field: %w", err)
	}
	return n, nil
}
