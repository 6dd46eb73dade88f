package biometric

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

type captureSink struct {
	attempts chan Attempt
}

func newCaptureSink() *captureSink {
	return &captureSink{attempts: make(chan Attempt, 8)}
}

func (s *captureSink) RecordAttempt(a Attempt) error {
	s.attempts <- a
	return nil
}

func (s *captureSink) wait(t *testing.T) Attempt {
	t.Helper()
	select {
	case a := <-s.attempts:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for attempt record")
		return Attempt{}
	}
}

func statModel(threshold float64) *StoredModel {
	return &StoredModel{
		Type: ModelTypeStatistical,
		Statistical: &StatisticalModel{
			Means:               []float64{0, 0},
			Stds:                []float64{1, 1},
			PercentileThreshold: threshold,
			PercentileUsed:      95,
		},
	}
}

func TestAuthenticateStatisticalAccept(t *testing.T) {
	sink := newCaptureSink()
	engine := NewEngine(sink, slog.Default())

	res := engine.Authenticate("alice", []float64{0, 0}, statModel(0.5), RequestMeta{IP: "10.0.0.1"})

	if !res.Success || !res.Authenticated {
		t.Fatalf("expected authenticated result, got %+v", res)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0", res.Score)
	}
	if res.Method != "statistical" {
		t.Errorf("method = %q, want statistical", res.Method)
	}

	attempt := sink.wait(t)
	if attempt.Username != "alice" || !attempt.Passed || attempt.IP != "10.0.0.1" {
		t.Errorf("unexpected attempt record %+v", attempt)
	}
}

func TestAuthenticateStatisticalReject(t *testing.T) {
	engine := NewEngine(nil, slog.Default())

	res := engine.Authenticate("alice", []float64{2, 2}, statModel(0.5), RequestMeta{})

	if !res.Success {
		t.Fatal("rejection should still be a successful comparison")
	}
	if res.Authenticated {
		t.Fatal("mse 4 must not pass threshold 0.5")
	}
	if res.Score != 4 {
		t.Errorf("score = %v, want 4", res.Score)
	}
	if !strings.Contains(res.Reason, "4.00000") || !strings.Contains(res.Reason, "0.50000") {
		t.Errorf("reason %q must report mse and threshold to six decimals", res.Reason)
	}
	if !strings.Contains(res.Reason, "95th percentile") {
		t.Errorf("reason %q must name the percentile used", res.Reason)
	}
}

func TestAuthenticateModelMissing(t *testing.T) {
	sink := newCaptureSink()
	engine := NewEngine(sink, slog.Default())

	res := engine.Authenticate("bob", []float64{1, 2}, nil, RequestMeta{})

	if res.Success || res.Authenticated {
		t.Fatalf("missing model must not authenticate, got %+v", res)
	}
	if res.Reason != "No model found for user bob. Please register first." {
		t.Errorf("unexpected reason %q", res.Reason)
	}

	attempt := sink.wait(t)
	if attempt.Passed {
		t.Error("missing-model attempt must be recorded as failed")
	}
}

func TestAuthenticateModelIncomplete(t *testing.T) {
	engine := NewEngine(nil, slog.Default())
	broken := &StoredModel{Type: ModelTypeStatistical, Statistical: &StatisticalModel{}}

	res := engine.Authenticate("carol", []float64{1}, broken, RequestMeta{})

	if res.Success || res.Authenticated {
		t.Fatalf("incomplete model must not authenticate, got %+v", res)
	}
	if !strings.Contains(res.Reason, "no usable statistical model") {
		t.Errorf("unexpected reason %q", res.Reason)
	}
}

func TestAuthenticateAutoencoderDispatch(t *testing.T) {
	engine := NewEngine(nil, slog.Default())
	model := &StoredModel{
		Type:        ModelTypeAutoencoder,
		Autoencoder: zeroAutoencoder(4),
	}
	// Zero-weight reconstruction error is 0.25; threshold above that accepts.
	model.Autoencoder.Threshold = 0.3

	res := engine.Authenticate("dave", make([]float64, 4), model, RequestMeta{})

	if !res.Success || !res.Authenticated {
		t.Fatalf("expected accept, got %+v", res)
	}
	if res.Method != "autoencoder" {
		t.Errorf("method = %q, want autoencoder", res.Method)
	}
	if res.Confidence == nil {
		t.Fatal("autoencoder path must report confidence")
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	engine := NewEngine(nil, slog.Default())
	features := []float64{1, 1}

	// Raising the threshold while the score is fixed must never flip an
	// accept into a reject.
	prevAccepted := false
	for _, th := range []float64{0.1, 0.5, 1.0, 2.0, 10.0} {
		res := engine.Authenticate("erin", features, statModel(th), RequestMeta{})
		if prevAccepted && !res.Authenticated {
			t.Fatalf("accept flipped to reject when threshold rose to %v", th)
		}
		prevAccepted = res.Authenticated
	}
}

func TestAttemptSinkFailureDoesNotAffectVerdict(t *testing.T) {
	engine := NewEngine(failingSink{}, slog.Default())

	res := engine.Authenticate("frank", []float64{0, 0}, statModel(0.5), RequestMeta{})
	if !res.Success || !res.Authenticated {
		t.Fatalf("sink failure changed the verdict: %+v", res)
	}
}

type failingSink struct{}

func (failingSink) RecordAttempt(Attempt) error {
	return errSinkDown
}

var errSinkDown = &sinkError{}

type sinkError struct{}

func (*sinkError) Error() string { return "sink down" }
