package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tverdokhlib/bankbridge/internal/model"
	"github.com/tverdokhlib/bankbridge/internal/service"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	journal, err := NewSQLiteJournal(dbPath)
	require.NoError(t, err)
	require.NoError(t, journal.Migrate(context.Background()))
	t.Cleanup(func() { _ = journal.Close() })

	return journal
}

func TestNewSQLiteJournal(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  func(t *testing.T) string
		wantErr bool
	}{
		{
			name:   "valid path",
			dbPath: func(t *testing.T) string { t.Helper(); return filepath.Join(t.TempDir(), "j.db") },
		},
		{
			name: "creates missing directory",
			dbPath: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(t.TempDir(), "nested", "dir", "j.db")
			},
		},
		{
			name:    "empty path",
			dbPath:  func(t *testing.T) string { t.Helper(); return "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			journal, err := NewSQLiteJournal(tt.dbPath(t))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, journal.Close())
		})
	}
}

func TestJournalRecordAndRecent(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := journal.Record(ctx, service.JournalEntry{
			ProcessedAt:    base.Add(time.Duration(i) * time.Minute),
			Fingerprint:    "fp-" + string(rune('a'+i)),
			BankAccountID:  "acc-1",
			TransactionID:  "txn-" + string(rune('a'+i)),
			Classification: "not_transfer",
			Memo:           "Coffee",
			Amount:         model.Amount(-12550),
		})
		require.NoError(t, err)
	}

	entries, err := journal.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, "txn-c", entries[0].TransactionID)
	assert.Equal(t, "txn-b", entries[1].TransactionID)
	assert.Equal(t, model.Amount(-12550), entries[0].Amount)
	assert.NotEmpty(t, entries[0].ID)
	assert.True(t, entries[0].ProcessedAt.After(entries[1].ProcessedAt))
}

func TestJournalRecordValidation(t *testing.T) {
	journal := newTestJournal(t)

	err := journal.Record(context.Background(), service.JournalEntry{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestJournalRecentValidation(t *testing.T) {
	journal := newTestJournal(t)

	_, err := journal.Recent(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestJournalPreservesLinkedTransaction(t *testing.T) {
	journal := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, service.JournalEntry{
		ProcessedAt:         time.Now(),
		Fingerprint:         "fp-transfer",
		BankAccountID:       "acc-uah",
		TransactionID:       "txn-new",
		LinkedTransactionID: "txn-existing",
		Classification:      "transfer",
		Amount:              model.Amount(10000),
	}))

	entries, err := journal.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "txn-existing", entries[0].LinkedTransactionID)
	assert.Equal(t, "transfer", entries[0].Classification)
}

func TestMigrateIsIdempotent(t *testing.T) {
	journal := newTestJournal(t)

	require.NoError(t, journal.Migrate(context.Background()))
	require.NoError(t, journal.Migrate(context.Background()))
}
