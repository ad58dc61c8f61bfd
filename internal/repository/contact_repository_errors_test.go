package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ankaboot-source/leadminer-engine/internal/models"
)

// newMockDB opens a GORM session over sqlmock so storage failures can
// be injected without a database.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestUpsertBatchPropagatesWriteFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectQuery(`INSERT INTO "contacts"`).
		WillReturnError(assert.AnError)

	err := repo.UpsertBatch(context.Background(), []*models.Contact{
		{UserID: "user-1", Email: "jane@acme.io", FieldCounts: models.FieldCounts{"from": 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upsert contacts")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmailPropagatesQueryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "contacts"`).
		WillReturnError(assert.AnError)

	_, err := repo.GetByEmail(context.Background(), "user-1", "jane@acme.io")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "a broken connection is not a missing row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserPropagatesCountFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContactRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "contacts"`).
		WillReturnError(assert.AnError)

	_, _, err := repo.ListByUser(context.Background(), "user-1", 10, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count contacts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
