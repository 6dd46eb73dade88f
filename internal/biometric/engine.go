package biometric

import (
	"fmt"
	"log/slog"
	"time"
)

// ModelType selects the scoring path for a stored keystroke model.
type ModelType string

const (
	ModelTypeStatistical ModelType = "statistical"
	ModelTypeAutoencoder ModelType = "autoencoder"
)

// StoredModel is the closed variant of a per-user keystroke model: exactly
// one of the two cases is populated, selected by Type.
type StoredModel struct {
	Type        ModelType         `json:"modelType"`
	Statistical *StatisticalModel `json:"statistical,omitempty"`
	Autoencoder *AutoencoderModel `json:"autoencoder,omitempty"`
}

// AuthResult is the structured outcome of one authentication call. Success
// reports whether a comparison could be performed at all; Authenticated
// reports the accept/reject verdict of that comparison.
type AuthResult struct {
	Success       bool      `json:"success"`
	Authenticated bool      `json:"authenticated"`
	Score         float64   `json:"score"`
	Threshold     float64   `json:"threshold"`
	Deviations    []float64 `json:"deviations"`
	Reason        string    `json:"reason"`
	Method        string    `json:"method"`
	Confidence    *float64  `json:"confidence,omitempty"`
}

// RequestMeta carries caller context for the per-attempt audit record.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Attempt is the audit record emitted once per authentication call.
type Attempt struct {
	Timestamp time.Time
	Username  string
	Method    string
	Passed    bool
	Score     float64
	IP        string
	UserAgent string
	Reason    string
}

// AttemptSink receives authentication-attempt records. A sink failure must
// never affect the authentication verdict.
type AttemptSink interface {
	RecordAttempt(a Attempt) error
}

// Engine wraps the two keystroke scoring models behind a single entry point
// and emits one attempt record per call.
type Engine struct {
	sink   AttemptSink
	logger *slog.Logger
}

// NewEngine creates an engine. sink may be nil, in which case attempts are
// only logged.
func NewEngine(sink AttemptSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{sink: sink, logger: logger}
}

// Authenticate scores the resolved feature vector against the user's stored
// model and returns a definite accept/reject result. All scoring failures are
// recovered into a non-authenticated result with a human-readable reason;
// this method never returns an error.
func (e *Engine) Authenticate(username string, features []float64, model *StoredModel, meta RequestMeta) AuthResult {
	var res AuthResult

	switch {
	case model == nil:
		res = AuthResult{
			Success: false,
			Reason:  fmt.Sprintf("No model found for user %s. Please register first.", username),
			Method:  "none",
		}
	case model.Type == ModelTypeAutoencoder:
		res = e.scoreAutoencoder(features, model.Autoencoder)
	default:
		res = e.scoreStatistical(features, model.Statistical)
	}

	e.emitAttempt(username, meta, res)
	return res
}

func (e *Engine) scoreStatistical(features []float64, m *StatisticalModel) AuthResult {
	if err := m.Validate(); err != nil {
		return AuthResult{
			Success: false,
			Reason:  "no usable statistical model",
			Method:  string(ModelTypeStatistical),
		}
	}

	mse, deviations := m.Score(features)
	res := AuthResult{
		Success:       true,
		Authenticated: mse <= m.PercentileThreshold,
		Score:         mse,
		Threshold:     m.PercentileThreshold,
		Deviations:    deviations,
		Method:        string(ModelTypeStatistical),
	}
	if res.Authenticated {
		res.Reason = fmt.Sprintf("MSE (%.6f) within %.0fth percentile threshold (%.6f)",
			mse, m.PercentileUsed, m.PercentileThreshold)
	} else {
		res.Reason = fmt.Sprintf("MSE (%.6f) exceeds %.0fth percentile threshold (%.6f)",
			mse, m.PercentileUsed, m.PercentileThreshold)
	}
	return res
}

func (e *Engine) scoreAutoencoder(features []float64, m *AutoencoderModel) AuthResult {
	if err := m.Validate(); err != nil {
		return AuthResult{
			Success: false,
			Reason:  "no usable autoencoder model",
			Method:  string(ModelTypeAutoencoder),
		}
	}

	reconErr, confidence, deviations := m.Score(features)
	res := AuthResult{
		Success:       true,
		Authenticated: reconErr <= m.Threshold,
		Score:         reconErr,
		Threshold:     m.Threshold,
		Deviations:    deviations,
		Method:        string(ModelTypeAutoencoder),
		Confidence:    &confidence,
	}
	if res.Authenticated {
		res.Reason = fmt.Sprintf("Reconstruction error (%.6f) within threshold (%.6f)", reconErr, m.Threshold)
	} else {
		res.Reason = fmt.Sprintf("Reconstruction error (%.6f) exceeds threshold (%.6f)", reconErr, m.Threshold)
	}
	return res
}

// emitAttempt records the attempt fire-and-forget: the write happens on a
// separate goroutine and failures are surfaced only to operational logs.
func (e *Engine) emitAttempt(username string, meta RequestMeta, res AuthResult) {
	attempt := Attempt{
		Timestamp: time.Now(),
		Username:  username,
		Method:    res.Method,
		Passed:    res.Authenticated,
		Score:     res.Score,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Reason:    res.Reason,
	}

	e.logger.Info("authentication attempt",
		"username", username,
		"method", res.Method,
		"authenticated", res.Authenticated,
		"score", res.Score,
		"ip", meta.IP,
	)

	if e.sink == nil {
		return
	}
	go func() {
		if err := e.sink.RecordAttempt(attempt); err != nil {
			e.logger.Warn("failed to record authentication attempt",
				"username", username, "error", err)
		}
	}()
}
