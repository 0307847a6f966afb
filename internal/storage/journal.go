// Package storage persists reconciliation outcomes to SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrInvalidLimit = errors.New("limit must be positive")
)

// SQLiteJournal implements service.Journal using SQLite.
type SQLiteJournal struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteJournal creates a new SQLite-backed journal.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteJournal{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// Record appends a reconciliation outcome. A missing ID is filled in with a
// fresh UUID.
func (s *SQLiteJournal) Record(ctx context.Context, entry service.JournalEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entry.Fingerprint, "fingerprint"); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (id, processed_at, fingerprint, bank_account_id,
			transaction_id, linked_transaction_id, classification, memo, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ProcessedAt.UTC(),
		entry.Fingerprint,
		entry.BankAccountID,
		entry.TransactionID,
		entry.LinkedTransactionID,
		entry.Classification,
		entry.Memo,
		int64(entry.Amount),
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteJournal) Recent(ctx context.Context, limit int) ([]service.JournalEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, processed_at, fingerprint, bank_account_id,
			transaction_id, linked_transaction_id, classification, memo, amount
		FROM journal
		ORDER BY processed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []service.JournalEntry
	for rows.Next() {
		var entry service.JournalEntry
		var amount int64
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.ProcessedAt,
			&entry.Fingerprint,
			&entry.BankAccountID,
			&entry.TransactionID,
			&entry.LinkedTransactionID,
			&entry.Classification,
			&entry.Memo,
			&amount,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", scanErr)
		}
		entry.Amount = model.Amount(amount)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal entries: %w", err)
	}
	return entries, nil
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}
