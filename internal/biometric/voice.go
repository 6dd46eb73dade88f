package biometric

import (
	"math"
	"sync"
)

// VoiceFeatureSet is the audio-derived feature record used on the voice
// path: an MFCC mean vector plus scalar spectral measures.
type VoiceFeatureSet struct {
	MFCC             []float64 `json:"mfcc"`
	SpectralCentroid float64   `json:"spectralCentroid"`
	ZeroCrossingRate float64   `json:"zcr"`
	Pitch            float64   `json:"pitch"`
	Energy           float64   `json:"energy"`
}

// DefaultSimilarityThreshold is the accept boundary for overall similarity.
// A calibration parameter, tunable at runtime via the admin config endpoint.
const DefaultSimilarityThreshold = 0.75

// SimilarityWeights fuses the four sub-scores into the overall similarity.
// Weights must sum to 1.
type SimilarityWeights struct {
	Pitch        float64 `json:"pitch"`
	Tempo        float64 `json:"tempo"`
	Spectral     float64 `json:"spectral"`
	VoiceQuality float64 `json:"voiceQuality"`
}

// DefaultSimilarityWeights returns an equal-weight fusion. The coefficients
// are calibration parameters chosen empirically, not learned.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{Pitch: 0.25, Tempo: 0.25, Spectral: 0.25, VoiceQuality: 0.25}
}

// SimilarityResult is the outcome of one voice verification.
type SimilarityResult struct {
	OverallSimilarity         float64 `json:"overallSimilarity"`
	PitchNormalizedSimilarity float64 `json:"pitchNormalizedSimilarity"`
	TempoNormalizedSimilarity float64 `json:"tempoNormalizedSimilarity"`
	SpectralSimilarity        float64 `json:"spectralSimilarity"`
	VoiceQualitySimilarity    float64 `json:"voiceQualitySimilarity"`
	ConfidenceScore           float64 `json:"confidenceScore"`
	ConfidenceLevel           string  `json:"confidenceLevel"`
	Threshold                 float64 `json:"threshold"`
	Authenticated             bool    `json:"authenticated"`
}

// SimilarityEngine compares a probe feature set against an averaged
// reference model using five independent normalized distance metrics.
type SimilarityEngine struct {
	weights SimilarityWeights

	mu        sync.RWMutex
	threshold float64
}

// NewSimilarityEngine creates an engine with the given fusion weights and
// accept threshold.
func NewSimilarityEngine(weights SimilarityWeights, threshold float64) *SimilarityEngine {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &SimilarityEngine{weights: weights, threshold: threshold}
}

// Threshold returns the current accept boundary.
func (e *SimilarityEngine) Threshold() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// SetThreshold updates the accept boundary at runtime.
func (e *SimilarityEngine) SetThreshold(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = t
}

// Similarity computes the weighted multi-metric similarity between probe and
// reference. Returns ErrInvalidFeatureSet when either side is missing its
// MFCC vector or the vectors disagree in length; that failure is distinct
// from a low-similarity rejection.
func (e *SimilarityEngine) Similarity(probe, reference VoiceFeatureSet) (SimilarityResult, error) {
	if len(probe.MFCC) == 0 || len(reference.MFCC) == 0 {
		return SimilarityResult{}, ErrInvalidFeatureSet
	}
	if len(probe.MFCC) != len(reference.MFCC) {
		return SimilarityResult{}, ErrInvalidFeatureSet
	}

	// Five normalized distances, each relative to the reference magnitude so
	// sessions with different loudness or pitch baselines stay comparable.
	mfccSim := toSimilarity(mfccDistance(probe.MFCC, reference.MFCC))
	centroidSim := toSimilarity(relativeDiff(probe.SpectralCentroid, reference.SpectralCentroid))
	zcrSim := toSimilarity(relativeDiff(probe.ZeroCrossingRate, reference.ZeroCrossingRate))
	pitchSim := toSimilarity(relativeDiff(probe.Pitch, reference.Pitch))
	energySim := toSimilarity(relativeDiff(probe.Energy, reference.Energy))

	// Fixed metric-to-subscore mixes; calibration parameters, not learned.
	res := SimilarityResult{
		PitchNormalizedSimilarity: 0.7*pitchSim + 0.3*mfccSim,
		TempoNormalizedSimilarity: 0.6*zcrSim + 0.4*energySim,
		SpectralSimilarity:        0.6*mfccSim + 0.4*centroidSim,
		VoiceQualitySimilarity:    0.5*energySim + 0.3*centroidSim + 0.2*zcrSim,
	}

	res.OverallSimilarity = e.weights.Pitch*res.PitchNormalizedSimilarity +
		e.weights.Tempo*res.TempoNormalizedSimilarity +
		e.weights.Spectral*res.SpectralSimilarity +
		e.weights.VoiceQuality*res.VoiceQualitySimilarity

	res.ConfidenceScore = agreementConfidence([]float64{
		res.PitchNormalizedSimilarity,
		res.TempoNormalizedSimilarity,
		res.SpectralSimilarity,
		res.VoiceQualitySimilarity,
	})
	res.ConfidenceLevel = confidenceLevel(res.ConfidenceScore)

	res.Threshold = e.Threshold()
	res.Authenticated = res.OverallSimilarity >= res.Threshold

	return res, nil
}

// mfccDistance is the Euclidean distance between MFCC mean vectors,
// normalized by the reference vector's magnitude.
func mfccDistance(probe, reference []float64) float64 {
	var dist, refNorm float64
	for i := range probe {
		d := probe[i] - reference[i]
		dist += d * d
		refNorm += reference[i] * reference[i]
	}
	dist = math.Sqrt(dist)
	refNorm = math.Sqrt(refNorm)
	if refNorm < 1e-9 {
		refNorm = 1
	}
	return dist / refNorm
}

// relativeDiff normalizes a scalar difference against the reference
// magnitude; references near zero fall back to the absolute difference.
func relativeDiff(probe, reference float64) float64 {
	denom := math.Abs(reference)
	if denom < 1e-9 {
		denom = 1
	}
	return math.Abs(probe-reference) / denom
}

func toSimilarity(distance float64) float64 {
	return math.Max(0, 1-distance)
}

// agreementConfidence penalizes disagreement across sub-scores: even a high
// mean similarity earns low confidence when the metrics diverge. The factor
// of 4 is a calibration constant scaling the sub-score variance.
func agreementConfidence(subs []float64) float64 {
	mean := 0.0
	for _, s := range subs {
		mean += s
	}
	mean /= float64(len(subs))

	variance := 0.0
	for _, s := range subs {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(subs))

	return clamp(1-4*variance, 0, 1)
}

func confidenceLevel(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "high"
	case confidence > 0.6:
		return "medium"
	default:
		return "low"
	}
}
