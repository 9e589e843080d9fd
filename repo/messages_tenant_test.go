package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"pericias-backend/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

const setSearchPathPattern = `SET LOCAL search_path = "tenant_a", public`

// Every tenant store operation must pin the schema with SET LOCAL inside its
// own transaction; a session-level SET on a pooled connection can land on a
// different connection than the statement that follows it.
func TestTenantMessageStore_PinsSchemaPerOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("create runs inside a schema-pinned transaction", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		store := NewTenantMessageStore(gdb, "tenant_a")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(setSearchPathPattern)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO "message_logs"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.Create(ctx, &models.MessageLog{
			Id:        "11111111-1111-1111-1111-111111111111",
			Direction: models.DirectionInbound,
			Phone:     "+5511988887777",
			Status:    "received",
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status update runs inside a schema-pinned transaction", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		store := NewTenantMessageStore(gdb, "tenant_a")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(setSearchPathPattern)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "message_logs" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		affected, err := store.UpdateOutboundStatus(ctx, "wamid.OUT1", "delivered", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inbound lookup runs inside a schema-pinned transaction", func(t *testing.T) {
		gdb, mock := newMockDB(t)
		store := NewTenantMessageStore(gdb, "tenant_a")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(setSearchPathPattern)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "message_logs"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectCommit()

		has, err := store.HasInboundFrom(ctx, "+5511988887777")
		require.NoError(t, err)
		assert.True(t, has)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantMessageStore_RollsBackOnError(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewTenantMessageStore(gdb, "tenant_a")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(setSearchPathPattern)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "message_logs"`).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, err := store.HasInboundFrom(context.Background(), "+55")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
