package runlog

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO etl.run_log").
		WithArgs("marts").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := New(mock).Start(context.Background(), "marts")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE etl.run_log").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = New(mock).Complete(context.Background(), 7, &Result{
		RowsWritten: 420,
		Metadata:    map[string]any{"experiment_id": "pdp_redesign_experiment"},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteNilResult(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE etl.run_log").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, New(mock).Complete(context.Background(), 7, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE etl.run_log").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, New(mock).Fail(context.Background(), 7, "no exposure rows found"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT started_at FROM etl.run_log").
		WithArgs("stage").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(started))

	got, err := New(mock).LastSuccess(context.Background(), "stage")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, started, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(time.Minute)
	errMsg := "boom"
	rows := pgxmock.NewRows([]string{"id", "phase", "status", "started_at", "completed_at", "rows_written", "error", "metadata"}).
		AddRow(int64(2), "marts", "failed", started, &completed, int64(0), &errMsg, []byte(nil)).
		AddRow(int64(1), "stage", "complete", started, &completed, int64(100), (*string)(nil), []byte(`{"files":4}`))

	mock.ExpectQuery("SELECT id, phase, status").WillReturnRows(rows)

	entries, err := New(mock).ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0].Error)
	assert.Equal(t, "complete", entries[1].Status)
	assert.Equal(t, float64(4), entries[1].Metadata["files"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
