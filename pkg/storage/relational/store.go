// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package relational implements the persistent archive on a SQL database.
// Records land in the log_entries table with their extensible key/values in
// log_fields; alerts reuse the same two tables.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS log_entries (
		id VARCHAR(36) PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		level VARCHAR(20) NOT NULL,
		source VARCHAR(100),
		message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS log_fields (
		log_id VARCHAR(36) NOT NULL,
		field_name VARCHAR(50) NOT NULL,
		field_value TEXT,
		PRIMARY KEY (log_id, field_name),
		FOREIGN KEY (log_id) REFERENCES log_entries(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON log_entries(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_level ON log_entries(level)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_source ON log_entries(source)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_message ON log_entries(message)`,
	`CREATE INDEX IF NOT EXISTS idx_fields_name ON log_fields(field_name)`,
}

// Store is the relational archive. All writes are transactional per record.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Open opens the archive database and creates the schema. Writers serialize
// through a bounded connection pool.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	s := &Store{db: db, timeout: cfg.Timeout}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	ctx, cancel := s.ctx()
	defer cancel()
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("unable to create archive schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// InsertRecord archives one parsed record and its fields in a single
// transaction. An existing row with the same id is replaced, which makes
// alert state updates idempotent.
func (s *Store) InsertRecord(record *message.LogRecord) error {
	ctx, cancel := s.ctx()
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO log_entries (id, timestamp, level, source, message)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.Timestamp, record.Level, record.Source, record.Message)
	if err != nil {
		return err
	}
	for name, value := range record.Fields {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO log_fields (log_id, field_name, field_value)
			 VALUES (?, ?, ?)`,
			record.ID, name, value)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRecord returns the archived record with the given id, or nil when it is
// not found.
func (s *Store) GetRecord(id string) (*message.LogRecord, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	record := &message.LogRecord{ID: id, Fields: make(map[string]string)}
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp, level, source, message FROM log_entries WHERE id = ?`, id).
		Scan(&record.Timestamp, &record.Level, &record.Source, &record.Message)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT field_name, field_value FROM log_fields WHERE log_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		record.Fields[name] = value
	}
	return record, rows.Err()
}

// QueryFieldValues returns the values of one named field for all entries in
// a timestamp range, newest first. It backs the alert history query, where
// the field holds the canonical alert JSON.
func (s *Store) QueryFieldValues(fieldName, start, end string, limit, offset int) ([]string, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.field_value
		   FROM log_fields f JOIN log_entries e ON e.id = f.log_id
		  WHERE f.field_name = ? AND e.timestamp >= ? AND e.timestamp <= ?
		  ORDER BY e.timestamp DESC LIMIT ? OFFSET ?`,
		fieldName, start, end, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// CountByLevel returns the number of archived entries per level in a
// timestamp range.
func (s *Store) CountByLevel(start, end string) (map[string]int, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT level, COUNT(*) FROM log_entries
		  WHERE timestamp >= ? AND timestamp <= ? GROUP BY level`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
