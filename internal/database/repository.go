package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
	"github.com/shrixloki/lokiai-biometrics/internal/types"
)

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveKeystrokeModel stores (or replaces) a user's keystroke model.
func (r *Repository) SaveKeystrokeModel(ctx context.Context, username string, model *biometric.StoredModel, sampleCount int) error {
	payload, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode keystroke model: %w", err)
	}
	return r.upsertModel(ctx, username, ModelTypeKeystroke, payload, sampleCount)
}

// LoadKeystrokeModel fetches a user's keystroke model. Returns
// biometric.ErrModelMissing when the user has never enrolled.
func (r *Repository) LoadKeystrokeModel(ctx context.Context, username string) (*biometric.StoredModel, error) {
	payload, _, err := r.getPayload(ctx, username, ModelTypeKeystroke)
	if err != nil {
		return nil, err
	}

	var model biometric.StoredModel
	if err := json.Unmarshal(payload, &model); err != nil {
		return nil, fmt.Errorf("failed to decode keystroke model: %w", err)
	}
	return &model, nil
}

// SaveVoiceReference stores (or replaces) a user's averaged voice reference.
func (r *Repository) SaveVoiceReference(ctx context.Context, username string, ref biometric.VoiceFeatureSet, sampleCount int) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to encode voice reference: %w", err)
	}
	return r.upsertModel(ctx, username, ModelTypeVoice, payload, sampleCount)
}

// LoadVoiceReference fetches a user's voice reference. Returns
// biometric.ErrModelMissing when the user has never enrolled.
func (r *Repository) LoadVoiceReference(ctx context.Context, username string) (biometric.VoiceFeatureSet, error) {
	var ref biometric.VoiceFeatureSet

	payload, _, err := r.getPayload(ctx, username, ModelTypeVoice)
	if err != nil {
		return ref, err
	}

	if err := json.Unmarshal(payload, &ref); err != nil {
		return ref, fmt.Errorf("failed to decode voice reference: %w", err)
	}
	return ref, nil
}

func (r *Repository) upsertModel(ctx context.Context, username, modelType string, payload []byte, sampleCount int) error {
	stmt, err := r.db.GetPreparedStatement("upsert_model")
	if err != nil {
		return err
	}

	now := time.Now()
	if _, err := stmt.ExecContext(ctx, username, modelType, string(payload), sampleCount, now, now); err != nil {
		return fmt.Errorf("failed to save %s model: %w", modelType, err)
	}
	return nil
}

func (r *Repository) getPayload(ctx context.Context, username, modelType string) ([]byte, int, error) {
	stmt, err := r.db.GetPreparedStatement("get_model")
	if err != nil {
		return nil, 0, err
	}

	var payload string
	var sampleCount int
	var updatedAt time.Time
	err = stmt.QueryRowContext(ctx, username, modelType).Scan(&payload, &sampleCount, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, 0, biometric.ErrModelMissing
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s model: %w", modelType, err)
	}

	return []byte(payload), sampleCount, nil
}

// GetUserStatus reports which models a user has enrolled.
func (r *Repository) GetUserStatus(ctx context.Context, username string) (types.UserStatus, error) {
	status := types.UserStatus{Username: username}

	stmt, err := r.db.GetPreparedStatement("get_user_models")
	if err != nil {
		return status, err
	}

	rows, err := stmt.QueryContext(ctx, username)
	if err != nil {
		return status, fmt.Errorf("failed to query user models: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var modelType, payload string
		var sampleCount int
		var updatedAt time.Time
		if err := rows.Scan(&modelType, &payload, &sampleCount, &updatedAt); err != nil {
			return status, fmt.Errorf("failed to scan model row: %w", err)
		}

		switch modelType {
		case ModelTypeKeystroke:
			status.KeystrokeModel = true
			status.KeystrokeSamples = sampleCount
			status.KeystrokeMethod = keystrokeMethod([]byte(payload))
		case ModelTypeVoice:
			status.VoiceModel = true
			status.VoiceSamples = sampleCount
		}

		if status.UpdatedAt == nil || updatedAt.After(*status.UpdatedAt) {
			u := updatedAt
			status.UpdatedAt = &u
		}
	}

	return status, rows.Err()
}

// keystrokeMethod peeks at the stored payload for the model type
// discriminator without decoding the full model.
func keystrokeMethod(payload []byte) string {
	var probe struct {
		Type string `json:"modelType"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.Type
}

// ListUsers returns the status of every enrolled user.
func (r *Repository) ListUsers(ctx context.Context) ([]types.UserStatus, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT username FROM biometric_models ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	users := make([]types.UserStatus, 0, len(usernames))
	for _, username := range usernames {
		status, err := r.GetUserStatus(ctx, username)
		if err != nil {
			return nil, err
		}
		users = append(users, status)
	}
	return users, nil
}

// DeleteUserModels removes all stored models for a user. Returns the number
// of model rows removed.
func (r *Repository) DeleteUserModels(ctx context.Context, username string) (int64, error) {
	stmt, err := r.db.GetPreparedStatement("delete_user_models")
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user models: %w", err)
	}
	return res.RowsAffected()
}

// InsertAttempt stores one verification attempt.
func (r *Repository) InsertAttempt(ctx context.Context, row *AttemptRow) error {
	stmt, err := r.db.GetPreparedStatement("insert_attempt")
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, row.ID, row.Username, row.Method, row.Passed,
		row.Score, row.IPAddress, row.UserAgent, row.Reason, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// RecentAttempts returns a user's most recent verification attempts.
func (r *Repository) RecentAttempts(ctx context.Context, username string, limit int) ([]types.AttemptRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	stmt, err := r.db.GetPreparedStatement("recent_attempts")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.QueryContext(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]types.AttemptRecord, 0, limit)
	for rows.Next() {
		var row AttemptRow
		if err := rows.Scan(&row.ID, &row.Username, &row.Method, &row.Passed,
			&row.Score, &row.IPAddress, &row.UserAgent, &row.Reason, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		attempts = append(attempts, types.AttemptRecord{
			ID:        row.ID,
			Username:  row.Username,
			Method:    row.Method,
			Passed:    row.Passed,
			Score:     row.Score,
			IP:        row.IPAddress,
			UserAgent: row.UserAgent,
			Reason:    row.Reason,
			CreatedAt: row.CreatedAt,
		})
	}
	return attempts, rows.Err()
}

// PurgeAttemptsBefore deletes attempt rows older than the cutoff.
func (r *Repository) PurgeAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, err := r.db.GetPreparedStatement("purge_attempts")
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge attempts: %w", err)
	}
	return res.RowsAffected()
}

// DeleteUserAttempts removes a user's entire audit trail.
func (r *Repository) DeleteUserAttempts(ctx context.Context, username string) (int64, error) {
	stmt, err := r.db.GetPreparedStatement("delete_user_attempts")
	if err != nil {
		return 0, err
	}

	res, err := stmt.ExecContext(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user attempts: %w", err)
	}
	return res.RowsAffected()
}
