// SPDX-License-Identifier: MIT
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/streamforge/provisiond/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	content_id          TEXT PRIMARY KEY,
	status              TEXT NOT NULL,
	last_provisioned_at TEXT NOT NULL,
	record              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_channels_status ON channels (status, last_provisioned_at);
`

// SQLiteStore is a Repository backed by a single SQLite file. The status
// index makes ListFailed a range scan instead of a full sweep.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// PRAGMAs go into the DSN so they apply to every pooled connection.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		dbPath, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL readers share the connection

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema failed: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) FindByContentID(ctx context.Context, contentID string) (*model.ChannelMetadata, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM channels WHERE content_id = ?`, contentID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec model.ChannelMetadata
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", contentID, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec *model.ChannelMetadata) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channels (content_id, status, last_provisioned_at, record)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (content_id) DO UPDATE SET
			status = excluded.status,
			last_provisioned_at = excluded.last_provisioned_at,
			record = excluded.record`,
		rec.ContentID, string(rec.Status), rec.LastProvisionedAt, string(raw))
	return err
}

func (s *SQLiteStore) ListFailed(ctx context.Context, limit int) ([]*model.ChannelMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM channels
		WHERE status = ?
		ORDER BY last_provisioned_at ASC, content_id ASC
		LIMIT ?`,
		string(model.StatusFailed), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var failed []*model.ChannelMetadata
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec model.ChannelMetadata
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		failed = append(failed, &rec)
	}
	return failed, rows.Err()
}
