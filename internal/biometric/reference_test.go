package biometric

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildReferenceSingleSample(t *testing.T) {
	set := sampleSet()

	ref, err := BuildReference([]VoiceFeatureSet{set})
	if err != nil {
		t.Fatalf("BuildReference: %v", err)
	}
	if !reflect.DeepEqual(ref, set) {
		t.Errorf("average of a single sample must equal the sample:\n got %+v\nwant %+v", ref, set)
	}
}

func TestBuildReferenceAverages(t *testing.T) {
	sets := []VoiceFeatureSet{
		{MFCC: []float64{1, 2}, SpectralCentroid: 1000, ZeroCrossingRate: 0.1, Pitch: 100, Energy: 0.2},
		{MFCC: []float64{3, 6}, SpectralCentroid: 3000, ZeroCrossingRate: 0.3, Pitch: 200, Energy: 0.4},
	}

	ref, err := BuildReference(sets)
	if err != nil {
		t.Fatalf("BuildReference: %v", err)
	}

	// Averaged floats carry rounding noise (0.2+0.4 does not halve back to
	// exactly 0.3), so compare within a tolerance.
	wantMFCC := []float64{2, 4}
	if len(ref.MFCC) != len(wantMFCC) {
		t.Fatalf("MFCC length = %d, want %d", len(ref.MFCC), len(wantMFCC))
	}
	for i := range wantMFCC {
		if math.Abs(ref.MFCC[i]-wantMFCC[i]) > 1e-12 {
			t.Errorf("MFCC[%d] = %v, want %v", i, ref.MFCC[i], wantMFCC[i])
		}
	}

	scalars := []struct {
		name string
		got  float64
		want float64
	}{
		{"SpectralCentroid", ref.SpectralCentroid, 2000},
		{"ZeroCrossingRate", ref.ZeroCrossingRate, 0.2},
		{"Pitch", ref.Pitch, 150},
		{"Energy", ref.Energy, 0.3},
	}
	for _, s := range scalars {
		if math.Abs(s.got-s.want) > 1e-12 {
			t.Errorf("%s = %v, want %v", s.name, s.got, s.want)
		}
	}
}

func TestBuildReferenceEmpty(t *testing.T) {
	if _, err := BuildReference(nil); err != ErrEmptyEnrollment {
		t.Errorf("got %v, want ErrEmptyEnrollment", err)
	}
}

func TestBuildReferenceShapeMismatch(t *testing.T) {
	sets := []VoiceFeatureSet{
		{MFCC: []float64{1, 2, 3}},
		{MFCC: []float64{1, 2}},
	}
	if _, err := BuildReference(sets); err != ErrShapeMismatch {
		t.Errorf("got %v, want ErrShapeMismatch (must never silently truncate)", err)
	}
}
