package biometric

import (
	"math"
	"testing"
)

func sampleSet() VoiceFeatureSet {
	return VoiceFeatureSet{
		MFCC:             []float64{1.2, -0.5, 3.1, 0.9},
		SpectralCentroid: 1800,
		ZeroCrossingRate: 0.08,
		Pitch:            140,
		Energy:           0.35,
	}
}

func TestSimilarityIdentical(t *testing.T) {
	engine := NewSimilarityEngine(DefaultSimilarityWeights(), 0.75)
	set := sampleSet()

	res, err := engine.Similarity(set, set)
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}

	if math.Abs(res.OverallSimilarity-1) > 1e-12 {
		t.Errorf("overall similarity = %v, want 1.0", res.OverallSimilarity)
	}
	if res.ConfidenceLevel != "high" {
		t.Errorf("confidence level = %q, want high", res.ConfidenceLevel)
	}
	if !res.Authenticated {
		t.Error("identical probe must authenticate")
	}
}

func TestSimilarityMissingMFCC(t *testing.T) {
	engine := NewSimilarityEngine(DefaultSimilarityWeights(), 0.75)

	probe := sampleSet()
	probe.MFCC = nil

	if _, err := engine.Similarity(probe, sampleSet()); err != ErrInvalidFeatureSet {
		t.Errorf("missing probe MFCC: got %v, want ErrInvalidFeatureSet", err)
	}
	if _, err := engine.Similarity(sampleSet(), VoiceFeatureSet{}); err != ErrInvalidFeatureSet {
		t.Errorf("missing reference MFCC: got %v, want ErrInvalidFeatureSet", err)
	}

	short := sampleSet()
	short.MFCC = short.MFCC[:2]
	if _, err := engine.Similarity(short, sampleSet()); err != ErrInvalidFeatureSet {
		t.Errorf("MFCC length mismatch: got %v, want ErrInvalidFeatureSet", err)
	}
}

func TestSimilarityDistinctVoices(t *testing.T) {
	engine := NewSimilarityEngine(DefaultSimilarityWeights(), 0.75)

	probe := VoiceFeatureSet{
		MFCC:             []float64{-4, 8, -1, 5},
		SpectralCentroid: 4200,
		ZeroCrossingRate: 0.31,
		Pitch:            310,
		Energy:           0.02,
	}

	res, err := engine.Similarity(probe, sampleSet())
	if err != nil {
		t.Fatalf("Similarity: %v", err)
	}
	if res.OverallSimilarity >= 0.75 {
		t.Errorf("dissimilar voices scored %v, expected below threshold", res.OverallSimilarity)
	}
	if res.Authenticated {
		t.Error("dissimilar probe must not authenticate")
	}
}

func TestConfidencePenalizesDisagreement(t *testing.T) {
	// All sub-scores equal: full agreement.
	if got := agreementConfidence([]float64{0.9, 0.9, 0.9, 0.9}); math.Abs(got-1) > 1e-12 {
		t.Errorf("agreement confidence = %v, want 1", got)
	}

	// Same mean, wildly divergent metrics: confidence must drop even though
	// the average similarity is high.
	spread := agreementConfidence([]float64{1, 1, 0.8, 0.2})
	tight := agreementConfidence([]float64{0.75, 0.75, 0.75, 0.75})
	if spread >= tight {
		t.Errorf("divergent sub-scores (%v) should score below uniform ones (%v)", spread, tight)
	}
}

func TestConfidenceLevelBuckets(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.95, "high"},
		{0.81, "high"},
		{0.8, "medium"},
		{0.61, "medium"},
		{0.6, "low"},
		{0.1, "low"},
	}

	for _, tt := range tests {
		if got := confidenceLevel(tt.confidence); got != tt.want {
			t.Errorf("confidenceLevel(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestSetThreshold(t *testing.T) {
	engine := NewSimilarityEngine(DefaultSimilarityWeights(), 0.75)

	engine.SetThreshold(0.9)
	if got := engine.Threshold(); got != 0.9 {
		t.Errorf("Threshold() = %v, want 0.9", got)
	}

	// Out-of-range constructor argument falls back to the default.
	fallback := NewSimilarityEngine(DefaultSimilarityWeights(), 0)
	if got := fallback.Threshold(); got != DefaultSimilarityThreshold {
		t.Errorf("Threshold() = %v, want default %v", got, DefaultSimilarityThreshold)
	}
}
