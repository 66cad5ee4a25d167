package config

import (
	"testing"

	"github.com/vovakirdan/hotowire-server/internal/core"
)

func TestDefaultPolicy(t *testing.T) {
	cfg := Default()
	if cfg.Policy() != core.PolicySameTeam {
		t.Fatalf("default policy: %v", cfg.Policy())
	}
}

func TestPolicyFallsBackOnUnknownValue(t *testing.T) {
	cfg := Default()
	cfg.HandoverPolicy = "free_for_all"
	if cfg.Policy() != core.PolicySameTeam {
		t.Fatalf("unknown policy must fall back, got %v", cfg.Policy())
	}

	cfg.HandoverPolicy = string(core.PolicyCrossTeam)
	if cfg.Policy() != core.PolicyCrossTeam {
		t.Fatalf("cross_team must resolve, got %v", cfg.Policy())
	}
}
