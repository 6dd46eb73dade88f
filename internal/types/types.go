package types

import (
	"strings"
	"time"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
)

// FeaturePayload is the nested feature container some clients send instead of
// a top-level vector.
type FeaturePayload struct {
	Features []float64 `json:"features"`
}

// KeystrokeVerifyRequest is the verification request body. Clients send the
// feature vector in one of three shapes: a top-level vector, a nested
// extractedFeatures object, or raw timing components.
type KeystrokeVerifyRequest struct {
	Username          string          `json:"username" binding:"required"`
	Features          []float64       `json:"features"`
	ExtractedFeatures *FeaturePayload `json:"extractedFeatures"`

	biometric.KeystrokeTiming
}

// ResolveFeatures picks the feature vector out of the request, preferring the
// explicit vector, then the nested payload, then assembly from raw timings.
// The result is zero-padded to the canonical length.
func (r *KeystrokeVerifyRequest) ResolveFeatures() []float64 {
	switch {
	case len(r.Features) > 0:
		return biometric.Canonicalize(r.Features)
	case r.ExtractedFeatures != nil && len(r.ExtractedFeatures.Features) > 0:
		return biometric.Canonicalize(r.ExtractedFeatures.Features)
	default:
		return biometric.AssembleVector(r.KeystrokeTiming)
	}
}

// KeystrokeEnrollRequest carries an enrollment batch. Either Samples (raw
// vectors fitted server-side into a statistical model) or Model (a pre-trained
// autoencoder exported by the client trainer) must be present.
type KeystrokeEnrollRequest struct {
	Username   string                      `json:"username" binding:"required"`
	Samples    [][]float64                 `json:"samples"`
	Model      *biometric.AutoencoderModel `json:"model"`
	Percentile float64                     `json:"percentile"`
}

// VoiceEnrollRequest carries the voice enrollment batch.
type VoiceEnrollRequest struct {
	Username string                     `json:"username" binding:"required"`
	Samples  []biometric.VoiceFeatureSet `json:"samples" binding:"required"`
}

// VoiceVerifyRequest carries a single voice probe.
type VoiceVerifyRequest struct {
	Username string                    `json:"username" binding:"required"`
	Features biometric.VoiceFeatureSet `json:"features" binding:"required"`
}

// EnrollResponse confirms a stored model.
type EnrollResponse struct {
	Success     bool   `json:"success"`
	Username    string `json:"username"`
	Method      string `json:"method"`
	SampleCount int    `json:"sampleCount"`
	Message     string `json:"message"`
}

// VoiceVerifyResponse wraps the similarity result for the HTTP surface.
type VoiceVerifyResponse struct {
	Success  bool                       `json:"success"`
	Username string                     `json:"username"`
	Result   biometric.SimilarityResult `json:"result"`
}

// UserStatus reports which models a user has enrolled.
type UserStatus struct {
	Username         string     `json:"username"`
	KeystrokeModel   bool       `json:"keystrokeModel"`
	KeystrokeMethod  string     `json:"keystrokeMethod,omitempty"`
	VoiceModel       bool       `json:"voiceModel"`
	KeystrokeSamples int        `json:"keystrokeSamples"`
	VoiceSamples     int        `json:"voiceSamples"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// AttemptRecord is the API projection of a stored authentication attempt.
type AttemptRecord struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Method    string    `json:"method"`
	Passed    bool      `json:"passed"`
	Score     float64   `json:"score"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthResponse is returned by the health and status endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// ValidUsername reports whether a username is acceptable as a storage key.
// Wallet-address identifiers, emails and plain handles all pass; control
// characters and path separators do not.
func ValidUsername(username string) bool {
	if l := len(username); l == 0 || l > 128 {
		return false
	}
	if strings.ContainsAny(username, "/\\\x00\n\r\t ") {
		return false
	}
	return true
}
