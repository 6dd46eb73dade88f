package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/shrixloki/lokiai-biometrics/internal/cache"
	"github.com/shrixloki/lokiai-biometrics/internal/database"
)

// DefaultRetentionDays bounds how long attempt audit rows are kept.
const DefaultRetentionDays = 90

// Service owns data retention and erasure for biometric records.
type Service struct {
	repo          *database.Repository
	models        *cache.ModelCache
	retentionDays int
	logger        *slog.Logger
}

// NewService creates a privacy service.
func NewService(repo *database.Repository, models *cache.ModelCache, retentionDays int, logger *slog.Logger) *Service {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          repo,
		models:        models,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// AnonymizeIdentifier produces a stable pseudonym for a username, used when
// identifiers leave the audit trail (exports, aggregate reporting).
func AnonymizeIdentifier(username string) string {
	sum := sha256.Sum256([]byte(username))
	return hex.EncodeToString(sum[:])[:16]
}

// PurgeOldAttempts deletes audit rows past the retention window.
func (s *Service) PurgeOldAttempts(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)

	purged, err := s.repo.PurgeAttemptsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		s.logger.Info("purged expired attempt records",
			"purged", purged,
			"retention_days", s.retentionDays)
	}
	return purged, nil
}

// DeleteUserData erases everything stored for a user: models, audit trail and
// cached entries. Returns the number of model rows removed.
func (s *Service) DeleteUserData(ctx context.Context, username string) (int64, error) {
	models, err := s.repo.DeleteUserModels(ctx, username)
	if err != nil {
		return 0, err
	}

	attempts, err := s.repo.DeleteUserAttempts(ctx, username)
	if err != nil {
		return models, err
	}

	if s.models != nil {
		s.models.InvalidateUser(username)
	}

	s.logger.Info("user data erased",
		"user", AnonymizeIdentifier(username),
		"models_deleted", models,
		"attempts_deleted", attempts)

	return models, nil
}

// Run executes the retention sweep on a fixed interval until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeOldAttempts(ctx); err != nil {
				s.logger.Warn("retention sweep failed", "error", err)
			}
		}
	}
}
