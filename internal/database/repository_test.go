package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRepository(db)
}

func statisticalFixture() *biometric.StoredModel {
	return &biometric.StoredModel{
		Type: biometric.ModelTypeStatistical,
		Statistical: &biometric.StatisticalModel{
			Means:               []float64{0.1, 0.2, 0.3},
			Stds:                []float64{1, 1, 1},
			PercentileThreshold: 0.5,
			PercentileUsed:      95,
		},
	}
}

func TestKeystrokeModelRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveKeystrokeModel(ctx, "0xABC", statisticalFixture(), 7))

	loaded, err := repo.LoadKeystrokeModel(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, biometric.ModelTypeStatistical, loaded.Type)
	require.NotNil(t, loaded.Statistical)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, loaded.Statistical.Means)
	assert.Equal(t, 0.5, loaded.Statistical.PercentileThreshold)
}

func TestLoadMissingModel(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.LoadKeystrokeModel(context.Background(), "nobody")
	assert.ErrorIs(t, err, biometric.ErrModelMissing)

	_, err = repo.LoadVoiceReference(context.Background(), "nobody")
	assert.ErrorIs(t, err, biometric.ErrModelMissing)
}

func TestSaveReplacesExistingModel(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveKeystrokeModel(ctx, "0xABC", statisticalFixture(), 5))

	updated := statisticalFixture()
	updated.Statistical.PercentileThreshold = 0.9
	require.NoError(t, repo.SaveKeystrokeModel(ctx, "0xABC", updated, 12))

	loaded, err := repo.LoadKeystrokeModel(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, 0.9, loaded.Statistical.PercentileThreshold)

	status, err := repo.GetUserStatus(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, 12, status.KeystrokeSamples)
}

func TestVoiceReferenceRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ref := biometric.VoiceFeatureSet{
		MFCC:             []float64{1.1, -0.4, 2.2},
		SpectralCentroid: 1500,
		ZeroCrossingRate: 0.07,
		Pitch:            130,
		Energy:           0.4,
	}
	require.NoError(t, repo.SaveVoiceReference(ctx, "0xABC", ref, 3))

	loaded, err := repo.LoadVoiceReference(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, ref, loaded)
}

func TestUserStatusAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveKeystrokeModel(ctx, "alice", statisticalFixture(), 5))
	require.NoError(t, repo.SaveVoiceReference(ctx, "alice", biometric.VoiceFeatureSet{MFCC: []float64{1}}, 3))
	require.NoError(t, repo.SaveKeystrokeModel(ctx, "bob", statisticalFixture(), 6))

	status, err := repo.GetUserStatus(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.KeystrokeModel)
	assert.True(t, status.VoiceModel)
	assert.Equal(t, "statistical", status.KeystrokeMethod)
	assert.Equal(t, 3, status.VoiceSamples)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	assert.False(t, users[1].VoiceModel)
}

func TestDeleteUserModels(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveKeystrokeModel(ctx, "alice", statisticalFixture(), 5))
	require.NoError(t, repo.SaveVoiceReference(ctx, "alice", biometric.VoiceFeatureSet{MFCC: []float64{1}}, 3))

	deleted, err := repo.DeleteUserModels(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = repo.LoadKeystrokeModel(ctx, "alice")
	assert.ErrorIs(t, err, biometric.ErrModelMissing)
}

func TestAttemptAuditTrail(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	writer := NewAttemptWriter(repo)
	for i := 0; i < 3; i++ {
		err := writer.RecordAttempt(biometric.Attempt{
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			Username:  "alice",
			Method:    "statistical",
			Passed:    i%2 == 0,
			Score:     float64(i) * 0.1,
			IP:        "10.0.0.1",
			Reason:    "test",
		})
		require.NoError(t, err)
	}

	attempts, err := repo.RecentAttempts(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	// Newest first.
	assert.True(t, attempts[0].CreatedAt.After(attempts[1].CreatedAt) ||
		attempts[0].CreatedAt.Equal(attempts[1].CreatedAt))
}

func TestPurgeAttemptsBefore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	old := NewAttemptRow("alice", "voice", false, 0.1, "", "", "", time.Now().Add(-48*time.Hour))
	fresh := NewAttemptRow("alice", "voice", true, 0.9, "", "", "", time.Now())
	require.NoError(t, repo.InsertAttempt(ctx, old))
	require.NoError(t, repo.InsertAttempt(ctx, fresh))

	purged, err := repo.PurgeAttemptsBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	attempts, err := repo.RecentAttempts(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, fresh.ID, attempts[0].ID)
}
