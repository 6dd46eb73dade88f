package biometric

// BuildReference averages a batch of enrolled voice feature sets into a
// single reference model of the same shape. All sets must share the same
// MFCC vector length; mismatches fail rather than silently truncate.
func BuildReference(sets []VoiceFeatureSet) (VoiceFeatureSet, error) {
	if len(sets) == 0 {
		return VoiceFeatureSet{}, ErrEmptyEnrollment
	}

	mfccLen := len(sets[0].MFCC)
	for _, s := range sets[1:] {
		if len(s.MFCC) != mfccLen {
			return VoiceFeatureSet{}, ErrShapeMismatch
		}
	}

	ref := VoiceFeatureSet{MFCC: make([]float64, mfccLen)}
	for _, s := range sets {
		for i, v := range s.MFCC {
			ref.MFCC[i] += v
		}
		ref.SpectralCentroid += s.SpectralCentroid
		ref.ZeroCrossingRate += s.ZeroCrossingRate
		ref.Pitch += s.Pitch
		ref.Energy += s.Energy
	}

	n := float64(len(sets))
	for i := range ref.MFCC {
		ref.MFCC[i] /= n
	}
	ref.SpectralCentroid /= n
	ref.ZeroCrossingRate /= n
	ref.Pitch /= n
	ref.Energy /= n

	return ref, nil
}
