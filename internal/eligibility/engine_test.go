package eligibility

import (
	"strings"
	"testing"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

func claimedAt(t time.Time) model.ClaimHistory {
	return model.ClaimHistory{FarmID: "farm1", LastClaimAt: &t, LastClaimYear: t.Year(), Version: 1}
}

func TestEvaluate(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		in           Input
		wantEligible bool
		wantCode     string
		wantState    string
		wantReason   string
	}{
		{
			name:         "never claimed clean and verified",
			in:           Input{FarmID: "farm1", Clean: true, ProofVerified: true, Now: now},
			wantEligible: true,
			wantCode:     model.CodeEligible,
			wantState:    model.StateNeverClaimed,
		},
		{
			name:       "burning detected",
			in:         Input{FarmID: "farm2", Clean: false, ProofVerified: true, Now: now},
			wantCode:   model.CodeBurningDetected,
			wantState:  model.StateNeverClaimed,
			wantReason: "burning detected",
		},
		{
			name:       "burning wins over unverified proof",
			in:         Input{FarmID: "farm2", Clean: false, ProofVerified: false, Now: now},
			wantCode:   model.CodeBurningDetected,
			wantState:  model.StateNeverClaimed,
			wantReason: "burning detected",
		},
		{
			name:       "proof not verified",
			in:         Input{FarmID: "farm1", Clean: true, ProofVerified: false, Now: now},
			wantCode:   model.CodeProofNotVerified,
			wantState:  model.StateNeverClaimed,
			wantReason: "proof verification failed",
		},
		{
			name: "already claimed this year",
			in: Input{FarmID: "farm1", Clean: true, ProofVerified: true, Now: now,
				History: claimedAt(time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))},
			wantCode:   model.CodeAlreadyClaimed,
			wantState:  model.StateClaimedThisYear,
			wantReason: "already claimed this year",
		},
		{
			name: "claimed last year",
			in: Input{FarmID: "farm1", Clean: true, ProofVerified: true, Now: now,
				History: claimedAt(time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC))},
			wantEligible: true,
			wantCode:     model.CodeEligible,
			wantState:    model.StateClaimWindowOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Evaluate(tt.in)
			if got.Eligible != tt.wantEligible {
				t.Errorf("Evaluate().Eligible = %v, want %v", got.Eligible, tt.wantEligible)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Evaluate().Code = %v, want %v", got.Code, tt.wantCode)
			}
			if got.State != tt.wantState {
				t.Errorf("Evaluate().State = %v, want %v", got.State, tt.wantState)
			}
			if !strings.Contains(got.Reason, tt.wantReason) {
				t.Errorf("Evaluate().Reason = %q, want it to contain %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluate_YearBoundary(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	history := claimedAt(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))

	sameYear := engine.Evaluate(Input{Clean: true, ProofVerified: true, History: history,
		Now: time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC)})
	if sameYear.Eligible {
		t.Fatal("Evaluate() in claim year Eligible = true, want false")
	}
	if sameYear.NextEligibleYear != 2026 {
		t.Errorf("NextEligibleYear = %d, want 2026", sameYear.NextEligibleYear)
	}
	if sameYear.DaysUntilNextClaim != 1 {
		t.Errorf("DaysUntilNextClaim = %d, want 1", sameYear.DaysUntilNextClaim)
	}
	wantNext := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	if sameYear.NextClaimDate == nil || !sameYear.NextClaimDate.Equal(wantNext) {
		t.Errorf("NextClaimDate = %v, want %v", sameYear.NextClaimDate, wantNext)
	}

	nextYear := engine.Evaluate(Input{Clean: true, ProofVerified: true, History: history,
		Now: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)})
	if !nextYear.Eligible {
		t.Errorf("Evaluate() in following year Eligible = false, reason %q", nextYear.Reason)
	}
}

func TestEvaluate_Timezone(t *testing.T) {
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}
	engine := NewEngine(Policy{Mode: ModeCalendarYear, Location: bangkok})

	// 2025-12-31T18:00Z is already 2026 in Bangkok (UTC+7)
	history := claimedAt(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))
	got := engine.Evaluate(Input{Clean: true, ProofVerified: true, History: history,
		Now: time.Date(2025, time.December, 31, 18, 0, 0, 0, time.UTC)})
	if !got.Eligible {
		t.Errorf("Evaluate() Eligible = false, want true in Bangkok new year; reason %q", got.Reason)
	}
}

func TestEvaluate_MinInterval(t *testing.T) {
	engine := NewEngine(Policy{Mode: ModeRollingInterval, Location: time.UTC})
	if engine.Policy().MinInterval != DefaultRollingInterval {
		t.Fatalf("MinInterval = %v, want %v", engine.Policy().MinInterval, DefaultRollingInterval)
	}

	last := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	history := claimedAt(last)

	// New calendar year but only 214 days since the last claim
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	got := engine.Evaluate(Input{Clean: true, ProofVerified: true, History: history, Now: now})
	if got.Eligible {
		t.Fatal("Evaluate() Eligible = true, want false before interval elapsed")
	}
	if got.Code != model.CodeIntervalNotElapsed {
		t.Errorf("Code = %v, want %v", got.Code, model.CodeIntervalNotElapsed)
	}
	if got.DaysUntilNextClaim != 151 {
		t.Errorf("DaysUntilNextClaim = %d, want 151", got.DaysUntilNextClaim)
	}
	if !strings.Contains(got.Reason, "151 more days") {
		t.Errorf("Reason = %q, want days remaining", got.Reason)
	}
	wantNext := last.Add(DefaultRollingInterval)
	if got.NextClaimDate == nil || !got.NextClaimDate.Equal(wantNext) {
		t.Errorf("NextClaimDate = %v, want %v", got.NextClaimDate, wantNext)
	}

	after := engine.Evaluate(Input{Clean: true, ProofVerified: true, History: history, Now: wantNext})
	if !after.Eligible {
		t.Errorf("Evaluate() at interval end Eligible = false, reason %q", after.Reason)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	engine := NewEngine(DefaultPolicy())
	in := Input{FarmID: "farm1", Clean: true, ProofVerified: true,
		History: claimedAt(time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)),
		Now:     time.Date(2025, time.May, 6, 0, 0, 0, 0, time.UTC)}

	first := engine.Evaluate(in)
	for i := 0; i < 10; i++ {
		got := engine.Evaluate(in)
		if got.Code != first.Code || got.Reason != first.Reason || got.Eligible != first.Eligible {
			t.Fatalf("Evaluate() run %d = %+v, want %+v", i, got, first)
		}
	}
}
