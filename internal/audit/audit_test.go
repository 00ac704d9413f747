package audit

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iff-guardian/nanoguard/pkg/database"
)

func TestNoopSinkDiscardsEntries(t *testing.T) {
	var sink Sink = NoopSink{}
	err := sink.Record(context.Background(), Entry{Action: "block_ip"})
	assert.NoError(t, err)
}

func newMockSink(t *testing.T) (*PostgresSink, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewPostgresSink(&database.DB{DB: mockDB}), mock
}

func TestPostgresSinkRecordInsertsRow(t *testing.T) {
	sink, mock := newMockSink(t)

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "block_ip", "10.0.0.1", sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), true, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := sink.Record(context.Background(), Entry{
		Action:   "block_ip",
		Resource: "10.0.0.1",
		Success:  true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRecordStampsIDWhenMissing(t *testing.T) {
	sink, mock := newMockSink(t)

	mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := Entry{OperatorID: nil, Action: "rate_limit", Resource: "10.0.0.2"}
	require.Equal(t, uuid.Nil, entry.ID)

	err := sink.Record(context.Background(), entry)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
