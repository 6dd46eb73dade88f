package biometric

import (
	"math"
	"sort"
)

// DefaultPercentile is the enrollment percentile used to calibrate the
// statistical decision threshold when the caller does not override it.
const DefaultPercentile = 95

// StatisticalModel holds per-dimension enrollment statistics and a
// percentile-calibrated MSE threshold. Immutable after fitting; replaced
// wholesale on re-enrollment.
type StatisticalModel struct {
	Means               []float64 `json:"means"`
	Stds                []float64 `json:"stds"`
	PercentileThreshold float64   `json:"percentileThreshold"`
	PercentileUsed      float64   `json:"percentileUsed"`
}

// Validate reports ErrModelIncomplete when the stored statistics are absent
// or malformed. A model that fails validation must never be scored against.
func (m *StatisticalModel) Validate() error {
	if m == nil || len(m.Means) == 0 || len(m.Stds) == 0 {
		return ErrModelIncomplete
	}
	if len(m.Means) != len(m.Stds) {
		return ErrModelIncomplete
	}
	return nil
}

// Score computes the normalized squared-deviation MSE of features against the
// model, plus a per-dimension deviation profile capped to [0,1] for display.
// A stored std of 0 is treated as 1 to avoid division by zero.
func (m *StatisticalModel) Score(features []float64) (mse float64, deviations []float64) {
	n := len(features)
	if n > len(m.Means) {
		n = len(m.Means)
	}

	deviations = make([]float64, 0, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		std := m.Stds[i]
		if std == 0 {
			std = 1
		}
		normalized := (features[i] - m.Means[i]) / std
		deviations = append(deviations, math.Min(math.Abs(normalized), 1))
		sum += normalized * normalized
	}

	if len(features) == 0 {
		return 0, deviations
	}
	return sum / float64(len(features)), deviations
}

// FitStatisticalModel builds a model from a batch of enrollment samples:
// per-dimension mean and (population) standard deviation, plus a decision
// threshold at the given percentile of the enrollment samples' own MSE
// scores (nearest-rank).
func FitStatisticalModel(samples [][]float64, percentile float64) (*StatisticalModel, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyEnrollment
	}

	dims := len(samples[0])
	for _, s := range samples[1:] {
		if len(s) != dims {
			return nil, ErrShapeMismatch
		}
	}
	if dims == 0 {
		return nil, ErrEmptyEnrollment
	}
	if percentile <= 0 || percentile > 100 {
		percentile = DefaultPercentile
	}

	means := make([]float64, dims)
	for _, s := range samples {
		for i, v := range s {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(samples))
	}

	stds := make([]float64, dims)
	for _, s := range samples {
		for i, v := range s {
			d := v - means[i]
			stds[i] += d * d
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i] / float64(len(samples)))
	}

	model := &StatisticalModel{
		Means:          means,
		Stds:           stds,
		PercentileUsed: percentile,
	}

	// Calibrate the threshold against the enrollment samples themselves.
	mses := make([]float64, len(samples))
	for i, s := range samples {
		mses[i], _ = model.Score(s)
	}
	model.PercentileThreshold = percentileOf(mses, percentile)

	return model, nil
}

// percentileOf returns the nearest-rank p-th percentile of xs.
func percentileOf(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	rank := int(math.Ceil(p / 100 * float64(len(cp))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(cp) {
		rank = len(cp)
	}
	return cp[rank-1]
}
