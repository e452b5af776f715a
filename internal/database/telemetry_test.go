package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestTracedDB_ExecRecordsSpan(t *testing.T) {
	recorder := withRecorder(t)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	db := NewTracedDB(mock)
	_, err = db.Exec(context.Background(), "CREATE TABLE t (id int)")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.exec", spans[0].Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracedDB_QueryErrorMarksSpan(t *testing.T) {
	recorder := withRecorder(t)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))

	db := NewTracedDB(mock)
	_, err = db.Query(context.Background(), "SELECT 1")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracedDB_BeginDelegates(t *testing.T) {
	withRecorder(t)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	db := NewTracedDB(mock)
	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "SELECT", statementVerb("\n\t select * from x"))
	assert.Equal(t, "INSERT", statementVerb("INSERT INTO funding_rates"))
	assert.Equal(t, "", statementVerb("   "))
}
