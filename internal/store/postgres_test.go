package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartmetrics/abtest-cli/internal/model"
)

func TestPostgresUpsertExposures(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_marts_user_exposure"}, exposureColumns).WillReturnResult(1)
	mock.ExpectExec("INSERT INTO").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	s := NewPostgresWithPool(mock)
	n, err := s.UpsertExposures(context.Background(), []model.UserExposure{
		{ExperimentID: "exp", UserID: 1, Variant: "control", ExposureTS: time.Now(), ExposureSessionID: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE SCHEMA IF NOT EXISTS marts").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	assert.NoError(t, NewPostgresWithPool(mock).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListOutcomes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	exposureTS := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	dur := 45.0
	rows := pgxmock.NewRows([]string{
		"experiment_id", "user_id", "variant", "exposure_ts",
		"add_to_cart", "begin_checkout", "purchased", "revenue",
		"events_in_window", "events_in_exposure_session", "bounce",
		"avg_session_duration_seconds", "retained_7d",
	}).
		AddRow("exp", int64(1), "control", exposureTS, 0, 0, 0, 0.0, int64(1), int64(1), 1, (*float64)(nil), 0).
		AddRow("exp", int64(2), "treatment", exposureTS, 1, 1, 1, 25.0, int64(6), int64(4), 0, &dur, 1)

	mock.ExpectQuery("SELECT (.+) FROM marts.user_outcomes").
		WithArgs("exp").
		WillReturnRows(rows)

	got, err := NewPostgresWithPool(mock).ListOutcomes(context.Background(), "exp")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Bounce)
	assert.Nil(t, got[0].AvgSessionDurationSeconds)
	require.NotNil(t, got[1].AvgSessionDurationSeconds)
	assert.Equal(t, 45.0, *got[1].AvgSessionDurationSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}
