package privacy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
	"github.com/shrixloki/lokiai-biometrics/internal/cache"
	"github.com/shrixloki/lokiai-biometrics/internal/database"
)

func newTestService(t *testing.T, retentionDays int) (*Service, *database.Repository, *cache.ModelCache) {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	models := cache.NewModelCache(time.Minute)
	return NewService(repo, models, retentionDays, nil), repo, models
}

func TestAnonymizeIdentifier(t *testing.T) {
	a := AnonymizeIdentifier("0xABC")
	b := AnonymizeIdentifier("0xABC")
	c := AnonymizeIdentifier("0xDEF")

	assert.Equal(t, a, b, "pseudonym must be stable")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
	assert.NotContains(t, a, "0xABC")
}

func TestPurgeOldAttempts(t *testing.T) {
	svc, repo, _ := newTestService(t, 30)
	ctx := context.Background()

	old := database.NewAttemptRow("alice", "voice", false, 0.2, "", "", "", time.Now().AddDate(0, 0, -60))
	fresh := database.NewAttemptRow("alice", "voice", true, 0.9, "", "", "", time.Now())
	require.NoError(t, repo.InsertAttempt(ctx, old))
	require.NoError(t, repo.InsertAttempt(ctx, fresh))

	purged, err := svc.PurgeOldAttempts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	attempts, err := repo.RecentAttempts(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestDeleteUserData(t *testing.T) {
	svc, repo, models := newTestService(t, 30)
	ctx := context.Background()

	model := &biometric.StoredModel{
		Type:        biometric.ModelTypeStatistical,
		Statistical: &biometric.StatisticalModel{Means: []float64{1}, Stds: []float64{1}, PercentileThreshold: 1, PercentileUsed: 95},
	}
	require.NoError(t, repo.SaveKeystrokeModel(ctx, "alice", model, 5))
	require.NoError(t, repo.InsertAttempt(ctx, database.NewAttemptRow("alice", "statistical", true, 0.1, "", "", "", time.Now())))
	models.Set(cache.KeystrokeKey("alice"), model)

	deleted, err := svc.DeleteUserData(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.LoadKeystrokeModel(ctx, "alice")
	assert.ErrorIs(t, err, biometric.ErrModelMissing)

	attempts, err := repo.RecentAttempts(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	_, ok := models.Get(cache.KeystrokeKey("alice"))
	assert.False(t, ok, "cached model must be invalidated")
}
