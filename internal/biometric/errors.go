package biometric

import "errors"

// Sentinel errors for the scoring and enrollment paths. Handlers map these to
// structured HTTP responses; an ordinary rejection (score above threshold) is
// a result, never an error.
var (
	// ErrModelMissing means no enrolled model exists for the username.
	ErrModelMissing = errors.New("no enrolled model for user")

	// ErrModelIncomplete means a stored model is present but malformed
	// (missing statistics, inconsistent matrix dimensions).
	ErrModelIncomplete = errors.New("stored model is incomplete or malformed")

	// ErrInvalidFeatureSet means a probe or reference voice feature set is
	// missing required sub-features, e.g. the MFCC vector.
	ErrInvalidFeatureSet = errors.New("feature set is missing required sub-features")

	// ErrEmptyEnrollment means model building was attempted with no samples.
	ErrEmptyEnrollment = errors.New("enrollment requires at least one sample")

	// ErrShapeMismatch means enrollment samples disagree on vector shape.
	ErrShapeMismatch = errors.New("enrollment samples have mismatched shapes")
)
