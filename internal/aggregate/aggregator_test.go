package aggregate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ankaboot-source/leadminer-engine/internal/errors"
	"github.com/ankaboot-source/leadminer-engine/internal/extract"
	"github.com/ankaboot-source/leadminer-engine/internal/models"
)

type mockContactRepo struct {
	mock.Mock
}

func (m *mockContactRepo) UpsertBatch(ctx context.Context, contacts []*models.Contact) error {
	args := m.Called(ctx, contacts)
	return args.Error(0)
}

func (m *mockContactRepo) GetByEmail(ctx context.Context, userID, email string) (*models.Contact, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *mockContactRepo) Exists(ctx context.Context, userID, email string) (bool, error) {
	args := m.Called(ctx, userID, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockContactRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Contact, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	return nil, 0, args.Error(2)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(repo *mockContactRepo, batchSize int) (*Aggregator, *ExistenceCache) {
	cache := NewExistenceCache()
	agg := NewAggregator("user-1", repo, cache, Config{
		FlushBatchSize:  batchSize,
		MaxWriteRetries: 1,
	}, testLogger())
	return agg, cache
}

func sighting(email string, field extract.Field, date time.Time) Sighting {
	return Sighting{
		Email:    email,
		Field:    field,
		Date:     date,
		Category: extract.CategoryCustom,
	}
}

func TestAggregator_MergesFieldsAcrossMessages(t *testing.T) {
	repo := new(mockContactRepo)
	agg, _ := newTestAggregator(repo, 100)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, agg.Add(ctx, sighting("jane@acme.io", extract.FieldFrom, now)))
	require.NoError(t, agg.Add(ctx, sighting("jane@acme.io", extract.FieldBody, now)))
	require.NoError(t, agg.Add(ctx, sighting("jane@acme.io", extract.FieldFrom, now)))

	assert.Equal(t, 1, agg.Size(), "one aggregate per address")

	var flushed []*models.Contact
	repo.On("UpsertBatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		flushed = args.Get(1).([]*models.Contact)
	}).Return(nil)

	require.NoError(t, agg.Flush(ctx))
	require.Len(t, flushed, 1)
	assert.Equal(t, 2, flushed[0].FieldCounts["from"])
	assert.Equal(t, 1, flushed[0].FieldCounts["body"])
}

func TestAggregator_LastSeenNeverRegresses(t *testing.T) {
	repo := new(mockContactRepo)
	later := time.Date(2014, 2, 28, 17, 3, 0, 0, time.UTC)
	earlier := time.Date(2014, 2, 28, 16, 50, 0, 0, time.UTC)

	for _, order := range [][]time.Time{{later, earlier}, {earlier, later}} {
		agg, _ := newTestAggregator(repo, 100)
		ctx := context.Background()
		for _, d := range order {
			require.NoError(t, agg.Add(ctx, sighting("jane@acme.io", extract.FieldFrom, d)))
		}
		agg.mu.Lock()
		got := agg.batch["jane@acme.io"].LastSeenAt
		agg.mu.Unlock()
		assert.Equal(t, later, got, "order %v", order)
	}
}

func TestAggregator_NameFilledOnce(t *testing.T) {
	repo := new(mockContactRepo)
	agg, _ := newTestAggregator(repo, 100)
	ctx := context.Background()
	now := time.Now()

	s1 := sighting("jane@acme.io", extract.FieldFrom, now)
	require.NoError(t, agg.Add(ctx, s1))

	s2 := sighting("jane@acme.io", extract.FieldFrom, now)
	s2.Name = "Jane Doe"
	require.NoError(t, agg.Add(ctx, s2))

	s3 := sighting("jane@acme.io", extract.FieldFrom, now)
	s3.Name = "J. Doe"
	require.NoError(t, agg.Add(ctx, s3))

	agg.mu.Lock()
	got := agg.batch["jane@acme.io"].Name
	agg.mu.Unlock()
	assert.Equal(t, "Jane Doe", got)
}

func TestAggregator_FlushesAtBatchSize(t *testing.T) {
	repo := new(mockContactRepo)
	agg, cache := newTestAggregator(repo, 2)
	ctx := context.Background()
	now := time.Now()

	repo.On("UpsertBatch", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, agg.Add(ctx, sighting("a@x.io", extract.FieldFrom, now)))
	repo.AssertNumberOfCalls(t, "UpsertBatch", 0)

	require.NoError(t, agg.Add(ctx, sighting("b@y.io", extract.FieldFrom, now)))
	repo.AssertNumberOfCalls(t, "UpsertBatch", 1)

	assert.Zero(t, agg.Size(), "batch resets after flush")
	assert.True(t, cache.Has("user-1", "a@x.io"))
	assert.True(t, cache.Has("user-1", "b@y.io"))
}

func TestAggregator_CacheHitLoadsStoredRecord(t *testing.T) {
	repo := new(mockContactRepo)
	agg, cache := newTestAggregator(repo, 100)
	ctx := context.Background()
	cache.MarkMined("user-1", "jane@acme.io")

	stored := &models.Contact{
		UserID:      "user-1",
		Email:       "jane@acme.io",
		Name:        "Jane Doe",
		FieldCounts: models.FieldCounts{"from": 5},
	}
	repo.On("GetByEmail", mock.Anything, "user-1", "jane@acme.io").Return(stored, nil)

	require.NoError(t, agg.Add(ctx, sighting("jane@acme.io", extract.FieldTo, time.Now())))

	agg.mu.Lock()
	got := agg.batch["jane@acme.io"]
	agg.mu.Unlock()
	assert.Equal(t, 5, got.FieldCounts["from"], "stored counters are carried forward")
	assert.Equal(t, 1, got.FieldCounts["to"])
	assert.Equal(t, "Jane Doe", got.Name)
}

func TestAggregator_WriteFailureAfterRetries(t *testing.T) {
	repo := new(mockContactRepo)
	agg, cache := newTestAggregator(repo, 100)
	ctx := context.Background()

	repo.On("UpsertBatch", mock.Anything, mock.Anything).Return(fmt.Errorf("db down"))

	require.NoError(t, agg.Add(ctx, sighting("a@x.io", extract.FieldFrom, time.Now())))
	err := agg.Flush(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorageWrite)
	assert.False(t, cache.Has("user-1", "a@x.io"), "failed batch must not mark addresses mined")

	// One initial attempt plus one retry
	repo.AssertNumberOfCalls(t, "UpsertBatch", 2)
}

func TestExistenceCache_PerUserKeys(t *testing.T) {
	cache := NewExistenceCache()
	cache.MarkMined("user-1", "jane@acme.io")

	assert.True(t, cache.Has("user-1", "jane@acme.io"))
	assert.False(t, cache.Has("user-2", "jane@acme.io"))
	assert.False(t, cache.Has("user-1", "bob@corp.com"))
}

func TestAggregator_FlushEmptyIsNoop(t *testing.T) {
	repo := new(mockContactRepo)
	agg, _ := newTestAggregator(repo, 100)
	require.NoError(t, agg.Flush(context.Background()))
	repo.AssertNumberOfCalls(t, "UpsertBatch", 0)
}
