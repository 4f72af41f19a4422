package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.StoreType != "memory" {
		t.Errorf("StoreType = %v, want memory", cfg.StoreType)
	}
	if cfg.DetectionTimeout != 30*time.Second {
		t.Errorf("DetectionTimeout = %v, want 30s", cfg.DetectionTimeout)
	}
	if cfg.AttestationTTL != 24*time.Hour {
		t.Errorf("AttestationTTL = %v, want 24h", cfg.AttestationTTL)
	}
	if cfg.BatchConcurrency != 5 {
		t.Errorf("BatchConcurrency = %v, want 5", cfg.BatchConcurrency)
	}
	if cfg.PrimaryPerHectare.String() != "150" {
		t.Errorf("PrimaryPerHectare = %v, want 150", cfg.PrimaryPerHectare)
	}
	if cfg.SecondaryPerHectare.String() != "5000" {
		t.Errorf("SecondaryPerHectare = %v, want 5000", cfg.SecondaryPerHectare)
	}
	if cfg.EligibilityPolicy != PolicyCalendarYear {
		t.Errorf("EligibilityPolicy = %v, want %v", cfg.EligibilityPolicy, PolicyCalendarYear)
	}
	if cfg.MinClaimInterval != 0 {
		t.Errorf("MinClaimInterval = %v, want 0", cfg.MinClaimInterval)
	}
	if cfg.ClaimTimezone.String() != "UTC" {
		t.Errorf("ClaimTimezone = %v, want UTC", cfg.ClaimTimezone)
	}
}

func TestLoad_RollingPolicyDefaultsTo365Days(t *testing.T) {
	t.Setenv("ELIGIBILITY_POLICY", PolicyRollingInterval)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MinClaimInterval != 365*24*time.Hour {
		t.Errorf("MinClaimInterval = %v, want 365 days", cfg.MinClaimInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown store", "STORE_TYPE", "cassandra"},
		{"unknown policy", "ELIGIBILITY_POLICY", "monthly"},
		{"bad timeout", "DETECTION_TIMEOUT", "soon"},
		{"zero rate", "REWARD_PRIMARY_PER_HECTARE", "0"},
		{"bad rate", "REWARD_SECONDARY_PER_HECTARE", "lots"},
		{"short seed", "ATTESTOR_KEY_SEED", "abcd"},
		{"bad timezone", "CLAIM_TIMEZONE", "Mars/Olympus"},
		{"relay without url", "SETTLEMENT_MODE", "relay"},
		{"zero concurrency", "BATCH_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s error = nil, want error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ProductionRequiresKeySeed(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want missing key seed error")
	}

	t.Setenv("ATTESTOR_KEY_SEED", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.StrictAttestation {
		t.Error("StrictAttestation = false, want true in production")
	}
}
