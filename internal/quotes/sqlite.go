package quotes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps each quote as a JSON document keyed by id.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer keeps Append's read-then-insert atomic
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS quotes (
		id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL,
		body TEXT NOT NULL
	)`)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, r Record) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	r = stamp(r, s.now(), func(id int64) bool {
		var n int
		_ = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM quotes WHERE id = ?`, id).Scan(&n)
		return n > 0
	})
	body, err := json.Marshal(r)
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO quotes (id, created_at, body) VALUES (?, ?, ?)`, r.ID, r.CreatedAt, string(body)); err != nil {
		return Record{}, err
	}
	return r, tx.Commit()
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, patch map[string]any) (Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	cur, err := getTx(ctx, tx, id)
	if err != nil {
		return Record{}, err
	}
	updated, err := cur.Merge(patch)
	if err != nil {
		return Record{}, err
	}
	body, err := json.Marshal(updated)
	if err != nil {
		return Record{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE quotes SET body = ? WHERE id = ?`, string(body), id); err != nil {
		return Record{}, err
	}
	return updated, tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (Record, error) {
	return getTx(ctx, s.db, id)
}

func (s *SQLiteStore) List(ctx context.Context, q string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM quotes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filter(list, q), nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTx(ctx context.Context, q queryRower, id int64) (Record, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM quotes WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Record{}, err
	}
	return r, nil
}
