package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ankaboot-source/leadminer-engine/internal/models"
)

// SourceRepositoryTestSuite is the test suite for SourceRepository
type SourceRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo SourceRepository
}

// SetupSuite runs once before all tests
func (s *SourceRepositoryTestSuite) SetupSuite() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)

	err = db.AutoMigrate(&models.MiningSource{})
	require.NoError(s.T(), err)

	s.db = db
	s.repo = NewSourceRepository(db)
}

// TearDownSuite runs once after all tests
func (s *SourceRepositoryTestSuite) TearDownSuite() {
	sqlDB, _ := s.db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// SetupTest runs before each test
func (s *SourceRepositoryTestSuite) SetupTest() {
	s.db.Exec("DELETE FROM mining_sources")
}

func (s *SourceRepositoryTestSuite) TestCreateAndGet() {
	ctx := context.Background()
	source := &models.MiningSource{
		UserID:   "user-1",
		Email:    "owner@acme.io",
		Type:     models.SourceTypeIMAP,
		Host:     "mail.acme.io",
		Port:     993,
		Password: "secret",
	}
	require.NoError(s.T(), s.repo.Create(ctx, source))
	require.NotZero(s.T(), source.ID)

	got, err := s.repo.GetByID(ctx, "user-1", source.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "owner@acme.io", got.Email)
	assert.False(s.T(), got.IsOAuth())
}

func (s *SourceRepositoryTestSuite) TestGetScopedToOwner() {
	ctx := context.Background()
	source := &models.MiningSource{UserID: "user-1", Email: "owner@acme.io", Type: models.SourceTypeIMAP}
	require.NoError(s.T(), s.repo.Create(ctx, source))

	_, err := s.repo.GetByID(ctx, "intruder", source.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *SourceRepositoryTestSuite) TestUpdateToken() {
	ctx := context.Background()
	source := &models.MiningSource{
		UserID:       "user-1",
		Email:        "owner@gmail.com",
		Type:         models.SourceTypeGoogle,
		RefreshToken: "refresh",
	}
	require.NoError(s.T(), s.repo.Create(ctx, source))

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(s.T(), s.repo.UpdateToken(ctx, source.ID, "new-access", expiry))

	got, err := s.repo.GetByID(ctx, "user-1", source.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new-access", got.AccessToken)
	assert.Equal(s.T(), expiry, got.TokenExpiry.UTC().Truncate(time.Second))
	assert.Equal(s.T(), "refresh", got.RefreshToken, "refresh token is untouched")
}

func (s *SourceRepositoryTestSuite) TestUpdateTokenMissingSource() {
	err := s.repo.UpdateToken(context.Background(), 9999, "tok", time.Now())
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

func (s *SourceRepositoryTestSuite) TestDelete() {
	ctx := context.Background()
	source := &models.MiningSource{UserID: "user-1", Email: "owner@acme.io", Type: models.SourceTypeIMAP}
	require.NoError(s.T(), s.repo.Create(ctx, source))

	require.NoError(s.T(), s.repo.Delete(ctx, "user-1", source.ID))
	_, err := s.repo.GetByID(ctx, "user-1", source.ID)
	assert.ErrorIs(s.T(), err, ErrNotFound)

	assert.ErrorIs(s.T(), s.repo.Delete(ctx, "user-1", source.ID), ErrNotFound)
}

// TestSourceRepositoryTestSuite runs the test suite
func TestSourceRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SourceRepositoryTestSuite))
}
