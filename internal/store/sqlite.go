package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/lepinkainen/listado/internal/errors"
	"github.com/lepinkainen/listado/internal/record"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface for local SQLite storage
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	ready  bool
}

// NewSQLiteStore creates a new SQLiteStore instance. Nothing is opened until Open.
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Open connects to the database and creates the records table if needed.
// Calling Open on an open store only re-applies the schema.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		db, err := sql.Open("sqlite", s.dbPath+"?_pragma=busy_timeout(5000)")
		if err != nil {
			return apperrors.NewStoreUnavailableError("open", err)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)

		if err := db.PingContext(ctx); err != nil {
			closeErr := db.Close()
			return apperrors.NewStoreUnavailableError("open", errors.Join(err, closeErr))
		}
		s.db = db
	}

	if _, err := s.db.ExecContext(ctx, RecordsSchema); err != nil {
		return apperrors.NewStoreUnavailableError("create schema", err)
	}

	s.ready = true
	slog.Debug("Local store opened", "path", s.dbPath)
	return nil
}

// Count returns the number of stored records
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady("count"); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// GetAll returns every record ordered by insertion
func (s *SQLiteStore) GetAll(ctx context.Context) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady("get all"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM records ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]record.Record, 0)
	for rows.Next() {
		var r record.Record
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// Put inserts a record, or updates the name of an existing id in place
func (s *SQLiteStore) Put(ctx context.Context, r record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady("put"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, upsertRecord, r.ID, r.Name); err != nil {
		return apperrors.NewItemWriteFailedError("put", 0, err)
	}
	return nil
}

// PutBatch writes records in a single transaction, strictly in slice order.
// The first failing item aborts the batch and rolls the transaction back.
func (s *SQLiteStore) PutBatch(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady("put batch"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewWriteFailedError("begin batch", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return apperrors.NewWriteFailedError("prepare batch", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name); err != nil {
			return apperrors.NewItemWriteFailedError("put batch", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewWriteFailedError("commit batch", err)
	}
	return nil
}

// Clear deletes all records, leaving the table in place
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady("clear"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM records")
	if err != nil {
		return apperrors.NewWriteFailedError("clear", err)
	}

	rows, _ := result.RowsAffected()
	slog.Debug("Local store cleared", "rows_deleted", rows)
	return nil
}

// Drop removes the records table. The store reports unavailable until reopened.
func (s *SQLiteStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return apperrors.NewStoreUnavailableError("drop", nil)
	}

	if _, err := s.db.ExecContext(ctx, dropRecordsSchema); err != nil {
		return apperrors.NewStoreUnavailableError("drop", err)
	}

	s.ready = false
	slog.Info("Local store dropped", "path", s.dbPath)
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// checkReady must be called with s.mu held.
func (s *SQLiteStore) checkReady(op string) error {
	if s.db == nil || !s.ready {
		return apperrors.NewStoreUnavailableError(op, nil)
	}
	return nil
}
