package logging_test

import (
	"testing"

	"cadence/internal/logging"
)

func TestProgressSamplerEmitsOnBucketChange(t *testing.T) {
	sampler := logging.NewProgressSampler(10)

	if !sampler.ShouldLog(0, "rendering") {
		t.Fatal("expected first event to log")
	}
	if sampler.ShouldLog(3, "rendering") {
		t.Fatal("expected same-bucket event to be suppressed")
	}
	if !sampler.ShouldLog(12, "rendering") {
		t.Fatal("expected bucket crossing to log")
	}
}

func TestProgressSamplerEmitsOnStageChange(t *testing.T) {
	sampler := logging.NewProgressSampler(10)
	sampler.ShouldLog(50, "rendering")

	if !sampler.ShouldLog(50, "encoding") {
		t.Fatal("expected stage change to log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	sampler := logging.NewProgressSampler(10)
	sampler.ShouldLog(99, "encoding")
	sampler.Reset()

	if !sampler.ShouldLog(1, "encoding") {
		t.Fatal("expected reset sampler to log again")
	}
}
