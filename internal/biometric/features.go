package biometric

// Canonical keystroke feature layout. The enrollment password is fixed at 11
// characters, which yields 11 hold times, 10 down-down digraph times and 10
// up-down digraph times, followed by four scalar summary features.
const (
	PasswordLength = 11

	holdCount    = PasswordLength
	digraphCount = PasswordLength - 1
	scalarCount  = 4

	// CanonicalLength is the fixed keystroke vector length (35).
	CanonicalLength = holdCount + 2*digraphCount + scalarCount
)

// KeystrokeTiming holds the raw timing components captured by the client when
// no pre-assembled feature vector is present in the request.
type KeystrokeTiming struct {
	HoldTimes     []float64 `json:"holdTimes"`
	DDTimes       []float64 `json:"ddTimes"`
	UDTimes       []float64 `json:"udTimes"`
	TypingSpeed   float64   `json:"typingSpeed"`
	FlightTime    float64   `json:"flightTime"`
	ErrorRate     float64   `json:"errorRate"`
	PressPressure float64   `json:"pressPressure"`
}

// AssembleVector builds the canonical feature vector from raw timing
// components: hold times, dd digraphs, ud digraphs, then the four scalars.
// Each segment is zero-padded to its canonical width.
func AssembleVector(t KeystrokeTiming) []float64 {
	v := make([]float64, 0, CanonicalLength)
	v = appendPadded(v, t.HoldTimes, holdCount)
	v = appendPadded(v, t.DDTimes, digraphCount)
	v = appendPadded(v, t.UDTimes, digraphCount)
	v = append(v, t.TypingSpeed, t.FlightTime, t.ErrorRate, t.PressPressure)
	return v
}

func appendPadded(dst, src []float64, width int) []float64 {
	for i := 0; i < width; i++ {
		if i < len(src) {
			dst = append(dst, src[i])
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}

// Canonicalize zero-pads a vector up to CanonicalLength. Longer vectors pass
// through unchanged; scoring never truncates input dimensions.
func Canonicalize(features []float64) []float64 {
	if len(features) >= CanonicalLength {
		return features
	}
	padded := make([]float64, CanonicalLength)
	copy(padded, features)
	return padded
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
