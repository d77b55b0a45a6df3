package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"labelweb/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_SQLite_RoundTrip(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	j := NewJournal(db)
	ctx := context.Background()
	require.NoError(t, j.Ping(ctx))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err = j.RecordAuthEvent(ctx, models.AuthEvent{Provider: "vk", Outcome: "success", ClientIP: "1.1.1.1", TokenFingerprint: "aa", CreatedAt: base})
	require.NoError(t, err)
	_, err = j.RecordAuthEvent(ctx, models.AuthEvent{Provider: "telegram", Outcome: "failed", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	id, err := j.RecordAuthEvent(ctx, models.AuthEvent{Provider: "logout", Outcome: "success", CreatedAt: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	events, err := j.RecentAuthEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "logout", events[0].Provider)
	assert.Equal(t, "telegram", events[1].Provider)
	assert.Equal(t, "failed", events[1].Outcome)
	assert.True(t, events[1].CreatedAt.Equal(base.Add(time.Minute)))
}

func TestJournal_DefaultsCreatedAt(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	j := NewJournal(db)
	j.now = func() time.Time { return fixed }

	_, err = j.RecordAuthEvent(context.Background(), models.AuthEvent{Provider: "vk_id", Outcome: "success"})
	require.NoError(t, err)

	events, err := j.RecentAuthEvents(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].CreatedAt.Equal(fixed))
}

func TestInitDB_BadPath(t *testing.T) {
	_, err := InitDB(filepath.Join(t.TempDir(), "missing-dir", "sub", "journal.db"))
	assert.Error(t, err)
}

func TestJournal_RecordAuthEvent_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO auth_events").
		WillReturnError(errors.New("disk full"))

	_, err = NewJournal(db).RecordAuthEvent(context.Background(), models.AuthEvent{Provider: "vk", Outcome: "success"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_RecentAuthEvents_ScanError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "provider", "outcome", "client_ip", "token_fingerprint", "created_at"}).
		AddRow("not-a-number", "vk", "success", "", "", time.Now())
	mock.ExpectQuery("SELECT id, provider, outcome").WithArgs(10).WillReturnRows(rows)

	_, err = NewJournal(db).RecentAuthEvents(context.Background(), 10)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournal_RecentAuthEvents_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, provider, outcome").WillReturnError(errors.New("locked"))

	_, err = NewJournal(db).RecentAuthEvents(context.Background(), 5)
	assert.Error(t, err)
}
