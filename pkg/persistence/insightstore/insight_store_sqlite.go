package insightstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/prodkit/ideate/pkg/chat"
)

// SQLiteStore persists insights in sqlite, one row per insight.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite insight store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite insight store: open")
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
		`CREATE TABLE IF NOT EXISTS insights (
			id TEXT NOT NULL PRIMARY KEY,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			text TEXT NOT NULL,
			confidence REAL,
			source_turn_ids_json TEXT NOT NULL DEFAULT '[]',
			applied_to_prd INTEGER NOT NULL DEFAULT 0,
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS insights_by_session ON insights(session_id, created_at_ms ASC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite insight store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Add(ctx context.Context, in *chat.Insight) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite insight store: db is nil")
	}
	if err := in.Validate(); err != nil {
		return errors.Wrap(err, "sqlite insight store: add")
	}
	srcJSON := "[]"
	if len(in.SourceTurnIDs) > 0 {
		b, err := json.Marshal(in.SourceTurnIDs)
		if err != nil {
			return errors.Wrap(err, "sqlite insight store: marshal source turns")
		}
		srcJSON = string(b)
	}
	var confidence any
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	applied := 0
	if in.AppliedToPRD {
		applied = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights(id, session_id, type, text, confidence, source_turn_ids_json, applied_to_prd, created_at_ms) VALUES(?,?,?,?,?,?,?,?)`,
		in.ID, in.SessionID, string(in.Type), in.Text, confidence, srcJSON, applied, createdAt.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "sqlite insight store: insert")
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]chat.Insight, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite insight store: db is nil")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, type, text, confidence, source_turn_ids_json, applied_to_prd, created_at_ms FROM insights WHERE session_id = ? ORDER BY created_at_ms ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite insight store: list")
	}
	defer func() { _ = rows.Close() }()

	var out []chat.Insight
	for rows.Next() {
		var in chat.Insight
		var typ, srcJSON string
		var confidence sql.NullFloat64
		var applied int
		var createdAtMs int64
		if err := rows.Scan(&in.ID, &in.SessionID, &typ, &in.Text, &confidence, &srcJSON, &applied, &createdAtMs); err != nil {
			return nil, errors.Wrap(err, "sqlite insight store: scan")
		}
		in.Type = chat.InsightType(typ)
		if confidence.Valid {
			v := confidence.Float64
			in.Confidence = &v
		}
		if srcJSON != "" && srcJSON != "[]" {
			var src []string
			if err := json.Unmarshal([]byte(srcJSON), &src); err == nil {
				in.SourceTurnIDs = src
			}
		}
		in.AppliedToPRD = applied != 0
		in.CreatedAt = time.UnixMilli(createdAtMs)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite insight store: rows")
	}
	return out, nil
}
