package database

import (
	"time"

	"github.com/google/uuid"
)

// Model type discriminators for the biometric_models table.
const (
	ModelTypeKeystroke = "keystroke"
	ModelTypeVoice     = "voice"
)

// ModelRecord is one stored model row
type ModelRecord struct {
	Username    string    `json:"username"`
	ModelType   string    `json:"model_type"`
	Payload     string    `json:"payload"`
	SampleCount int       `json:"sample_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AttemptRow is one audit-trail row
type AttemptRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Method    string    `json:"method"`
	Passed    bool      `json:"passed"`
	Score     float64   `json:"score"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAttemptRow creates an attempt row with a fresh identifier
func NewAttemptRow(username, method string, passed bool, score float64, ip, userAgent, reason string, at time.Time) *AttemptRow {
	if at.IsZero() {
		at = time.Now()
	}
	return &AttemptRow{
		ID:        uuid.New().String(),
		Username:  username,
		Method:    method,
		Passed:    passed,
		Score:     score,
		IPAddress: ip,
		UserAgent: userAgent,
		Reason:    reason,
		CreatedAt: at,
	}
}
