package biometric

import "math"

// Default layer widths for supplied autoencoder models that do not declare
// their own.
const (
	DefaultHiddenSize     = 16
	DefaultBottleneckSize = 8
)

// NormalizationParams holds the per-dimension min-max ranges recorded at
// training time.
type NormalizationParams struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// TrainingStats carries optional statistics from the (external) training run.
type TrainingStats struct {
	MaxError float64 `json:"maxError"`
}

// AutoencoderModel is a pre-trained three-layer feed-forward autoencoder
// (input -> hidden -> bottleneck -> input). Weights are supplied by the
// training pipeline; this type only performs inference. Immutable after
// creation, loaded whole from storage per request.
type AutoencoderModel struct {
	InputSize      int `json:"inputSize"`
	HiddenSize     int `json:"hiddenSize"`
	BottleneckSize int `json:"bottleneckSize"`

	Weights1 [][]float64 `json:"weights1"` // inputSize x hiddenSize
	Weights2 [][]float64 `json:"weights2"` // hiddenSize x bottleneckSize
	Weights3 [][]float64 `json:"weights3"` // bottleneckSize x inputSize
	Bias1    []float64   `json:"bias1"`
	Bias2    []float64   `json:"bias2"`
	Bias3    []float64   `json:"bias3"`

	Normalization NormalizationParams `json:"normalizationParams"`
	Threshold     float64             `json:"threshold"`
	TrainingStats *TrainingStats      `json:"trainingStats,omitempty"`
}

// Validate checks the declared layer widths against the weight matrices and
// bias vectors, filling in defaults for undeclared sizes. Returns
// ErrModelIncomplete on any inconsistency.
func (m *AutoencoderModel) Validate() error {
	if m == nil {
		return ErrModelIncomplete
	}
	if m.HiddenSize == 0 {
		m.HiddenSize = DefaultHiddenSize
	}
	if m.BottleneckSize == 0 {
		m.BottleneckSize = DefaultBottleneckSize
	}
	if m.InputSize == 0 {
		m.InputSize = len(m.Weights1)
	}

	if len(m.Weights1) != m.InputSize ||
		len(m.Weights2) != m.HiddenSize ||
		len(m.Weights3) != m.BottleneckSize {
		return ErrModelIncomplete
	}
	for _, row := range m.Weights1 {
		if len(row) != m.HiddenSize {
			return ErrModelIncomplete
		}
	}
	for _, row := range m.Weights2 {
		if len(row) != m.BottleneckSize {
			return ErrModelIncomplete
		}
	}
	for _, row := range m.Weights3 {
		if len(row) != m.InputSize {
			return ErrModelIncomplete
		}
	}
	if len(m.Bias1) != m.HiddenSize || len(m.Bias2) != m.BottleneckSize || len(m.Bias3) != m.InputSize {
		return ErrModelIncomplete
	}
	return nil
}

// Predict runs the pure forward pass. Output values are always in (0,1)
// because the final layer is a clamped sigmoid.
func (m *AutoencoderModel) Predict(input []float64) []float64 {
	hidden := forwardLayer(input, m.Weights1, m.Bias1, m.HiddenSize, relu)
	bottleneck := forwardLayer(hidden, m.Weights2, m.Bias2, m.BottleneckSize, relu)
	return forwardLayer(bottleneck, m.Weights3, m.Bias3, m.InputSize, sigmoid)
}

func forwardLayer(in []float64, weights [][]float64, bias []float64, width int, activate func(float64) float64) []float64 {
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		sum := bias[i]
		for j := 0; j < len(in) && j < len(weights); j++ {
			sum += in[j] * weights[j][i]
		}
		out[i] = activate(sum)
	}
	return out
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

// sigmoid clamps its argument to avoid overflow in Exp.
func sigmoid(x float64) float64 {
	x = clamp(x, -500, 500)
	return 1 / (1 + math.Exp(-x))
}

// Score normalizes the input with the stored min-max ranges, runs the forward
// pass and returns the mean squared reconstruction error, a confidence in
// [0,1], and a deviation profile (first 10 normalized inputs, abs-capped to
// [0,1]) for visualization.
func (m *AutoencoderModel) Score(features []float64) (reconstructionError, confidence float64, deviations []float64) {
	normalized := m.normalize(features)
	reconstructed := m.Predict(normalized)

	sum := 0.0
	for i := range normalized {
		var r float64
		if i < len(reconstructed) {
			r = reconstructed[i]
		}
		d := normalized[i] - r
		sum += d * d
	}
	if len(normalized) > 0 {
		reconstructionError = sum / float64(len(normalized))
	}

	maxError := 2 * m.Threshold
	if m.TrainingStats != nil && m.TrainingStats.MaxError > 0 {
		maxError = m.TrainingStats.MaxError
	}
	if maxError > 0 {
		confidence = clamp(1-reconstructionError/(2*maxError), 0, 1)
	}

	n := len(normalized)
	if n > 10 {
		n = 10
	}
	deviations = make([]float64, n)
	for i := 0; i < n; i++ {
		deviations[i] = clamp(math.Abs(normalized[i]), 0, 1)
	}

	return reconstructionError, confidence, deviations
}

// normalize applies the stored min-max ranges. Dimensions beyond the stored
// range, or with a zero range, normalize to 0 (pad policy).
func (m *AutoencoderModel) normalize(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		if i >= len(m.Normalization.Min) || i >= len(m.Normalization.Max) {
			continue
		}
		span := m.Normalization.Max[i] - m.Normalization.Min[i]
		if span == 0 {
			continue
		}
		out[i] = (v - m.Normalization.Min[i]) / span
	}
	return out
}
