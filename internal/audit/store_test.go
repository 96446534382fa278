package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Apexphere-Consultancy-Limited/synckairos-sub002/internal/session"
	"github.com/stretchr/testify/require"
)

func TestStoreWriteInsertsEventAndUpsertsSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job := Job{
		SessionID:  "s1",
		Version:    2,
		EventKind:  EventSwitched,
		State:      &session.Session{SessionID: "s1", Version: 2, Status: session.StatusRunning},
		EnqueuedAt: time.Now(),
	}

	require.NoError(t, store.Write(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWriteRollsBackOnEventInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnError(assertErr("boom"))
	mock.ExpectRollback()

	job := Job{
		SessionID:  "s1",
		Version:    2,
		EventKind:  EventSwitched,
		State:      &session.Session{SessionID: "s1", Version: 2, Status: session.StatusRunning},
		EnqueuedAt: time.Now(),
	}

	require.Error(t, store.Write(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
