package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shrixloki/lokiai-biometrics/internal/biometric"
)

func TestResolveFeaturesPrefersTopLevelVector(t *testing.T) {
	req := KeystrokeVerifyRequest{
		Username:          "0xABC",
		Features:          []float64{1, 2, 3},
		ExtractedFeatures: &FeaturePayload{Features: []float64{9, 9}},
	}

	got := req.ResolveFeatures()
	assert.Len(t, got, biometric.CanonicalLength)
	assert.Equal(t, []float64{1, 2, 3}, got[:3])
}

func TestResolveFeaturesNestedPayload(t *testing.T) {
	req := KeystrokeVerifyRequest{
		Username:          "0xABC",
		ExtractedFeatures: &FeaturePayload{Features: []float64{4, 5}},
	}

	got := req.ResolveFeatures()
	assert.Len(t, got, biometric.CanonicalLength)
	assert.Equal(t, 4.0, got[0])
	assert.Equal(t, 5.0, got[1])
	assert.Equal(t, 0.0, got[2])
}

func TestResolveFeaturesFromRawTimings(t *testing.T) {
	req := KeystrokeVerifyRequest{
		Username: "0xABC",
		KeystrokeTiming: biometric.KeystrokeTiming{
			HoldTimes:   []float64{0.1, 0.2},
			TypingSpeed: 5,
		},
	}

	got := req.ResolveFeatures()
	assert.Len(t, got, biometric.CanonicalLength)
	assert.Equal(t, 0.1, got[0])
	assert.Equal(t, 5.0, got[len(got)-4])
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"0x742d35Cc6634C0532925a3b844Bc9e7595f2bD18", true},
		{"alice", true},
		{"user@example.com", true},
		{"", false},
		{"has space", false},
		{"path/traversal", false},
		{"null\x00byte", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidUsername(tt.username), "username %q", tt.username)
	}
}
