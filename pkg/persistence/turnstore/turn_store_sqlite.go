package turnstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/prodkit/ideate/pkg/chat"
)

// SQLiteStore persists turns in sqlite. The (session_id, ord) unique index
// backs the strictly-increasing order invariant; Append computes max(ord)+1
// inside a transaction.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite turn store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite turn store: open")
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ord INTEGER NOT NULL,
			created_at_ms INTEGER NOT NULL,
			metadata_json TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (session_id, id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS turns_by_session_ord ON turns(session_id, ord);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite turn store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, t *chat.Turn) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite turn store: db is nil")
	}
	if err := validateTurn(t); err != nil {
		return err
	}
	metaJSON := "{}"
	if len(t.Metadata) > 0 {
		b, err := json.Marshal(t.Metadata)
		if err != nil {
			return errors.Wrap(err, "sqlite turn store: marshal metadata")
		}
		metaJSON = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "sqlite turn store: begin")
	}
	defer func() { _ = tx.Rollback() }()

	var maxOrder sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(ord) FROM turns WHERE session_id = ?`, t.SessionID).Scan(&maxOrder); err != nil {
		return errors.Wrap(err, "sqlite turn store: max order")
	}
	next := int(maxOrder.Int64) + 1
	if t.Order != 0 && t.Order <= int(maxOrder.Int64) {
		return chat.ErrOrderConflict
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns(id, session_id, role, content, ord, created_at_ms, metadata_json) VALUES(?,?,?,?,?,?,?)`,
		t.ID, t.SessionID, string(t.Role), t.Content, next, createdAt.UnixMilli(), metaJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return chat.ErrOrderConflict
		}
		return errors.Wrap(err, "sqlite turn store: insert")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "sqlite turn store: commit")
	}
	t.Order = next
	t.CreatedAt = createdAt
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite turn store: db is nil")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, ord, created_at_ms, metadata_json FROM turns WHERE session_id = ? ORDER BY ord ASC`,
		sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite turn store: list")
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Turn
	for rows.Next() {
		var t chat.Turn
		var role, metaJSON string
		var createdAtMs int64
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Content, &t.Order, &createdAtMs, &metaJSON); err != nil {
			return nil, errors.Wrap(err, "sqlite turn store: scan")
		}
		t.Role = chat.Role(role)
		t.CreatedAt = time.UnixMilli(createdAtMs)
		if metaJSON != "" && metaJSON != "{}" {
			meta := map[string]any{}
			if err := json.Unmarshal([]byte(metaJSON), &meta); err == nil {
				t.Metadata = meta
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite turn store: rows")
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
