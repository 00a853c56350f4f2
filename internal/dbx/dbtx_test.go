package dbx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientmodels "github.com/dmitrijs2005/possync/internal/client/models"
	"github.com/dmitrijs2005/possync/internal/client/repositories/pending"
	"github.com/dmitrijs2005/possync/internal/dbx"
	"github.com/dmitrijs2005/possync/internal/models"
)

// saveQueued mirrors a queued local write: the record row and its pending
// mutation go into one transaction.
func saveQueued(ctx context.Context, tx dbx.DBTX, m *clientmodels.PendingMutation) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO products (id, data) VALUES (?, ?)`, m.RecordID, string(m.Data)); err != nil {
		return err
	}
	return pending.NewSQLiteRepository(tx).Append(ctx, m)
}

func newMutation() *clientmodels.PendingMutation {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &clientmodels.PendingMutation{
		ID:        clientmodels.NewPendingID(models.TableProducts, "p1", at),
		Table:     models.TableProducts,
		RecordID:  "p1",
		Action:    clientmodels.ActionInsert,
		Data:      []byte(`{"id":"p1","name":"Cola"}`),
		Timestamp: at,
	}
}

func TestWithTx_QueuedWriteCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").WithArgs("p1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pending_mutations").WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	m := newMutation()
	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return saveQueued(ctx, tx, m)
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, m.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_FailedEnqueueRollsBackRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errFull := errors.New("database or disk is full")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pending_mutations").WillReturnError(errFull)
	mock.ExpectRollback()

	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return saveQueued(ctx, tx, newMutation())
	})
	require.ErrorIs(t, err, errFull)
	assert.Contains(t, err.Error(), "failed to append pending mutation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_PanicRollsBackAndRepanics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	require.PanicsWithValue(t, "encoder crashed", func() {
		_ = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO products (id, data) VALUES (?, ?)`, "p1", "{}")
			require.NoError(t, err)
			panic("encoder crashed")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginErrorSkipsFn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errLocked := errors.New("database is locked")
	mock.ExpectBegin().WillReturnError(errLocked)

	called := false
	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errLocked)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitErrorIsReturned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	errCommit := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pending_mutations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errCommit)

	err = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return pending.NewSQLiteRepository(tx).Append(ctx, newMutation())
	})
	require.ErrorIs(t, err, errCommit)
	require.NoError(t, mock.ExpectationsWereMet())
}
