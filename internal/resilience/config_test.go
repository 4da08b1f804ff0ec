package resilience

import (
	"testing"
	"time"
)

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 100, 2000)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != 100*time.Millisecond || cfg.MaxBackoff != 2*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}

	def := FromRetryConfig(0, 0, 0)
	if def.MaxAttempts != 3 || def.InitialBackoff != 500*time.Millisecond {
		t.Errorf("expected defaults, got %+v", def)
	}
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(2, 60)
	if cfg.FailureThreshold != 2 || cfg.ResetTimeout != time.Minute {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
