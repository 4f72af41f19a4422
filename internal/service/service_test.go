package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eunej/CleanField/internal/attestation"
	"github.com/eunej/CleanField/internal/claim"
	"github.com/eunej/CleanField/internal/eligibility"
	"github.com/eunej/CleanField/internal/farmlock"
	"github.com/eunej/CleanField/internal/farms"
	"github.com/eunej/CleanField/internal/hotspot"
	"github.com/eunej/CleanField/internal/model"
	"github.com/eunej/CleanField/internal/reward"
	"github.com/eunej/CleanField/internal/settlement"
	"github.com/eunej/CleanField/internal/store"
)

// countingProvider records the peak number of concurrent queries
type countingProvider struct {
	inner    hotspot.Provider
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (c *countingProvider) Query(ctx context.Context, q hotspot.Query) (hotspot.ProviderResponse, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()
	return c.inner.Query(ctx, q)
}

type testEnv struct {
	svc      *Service
	provider *countingProvider
	settler  *settlement.MockExecutor
}

func newTestEnv(t *testing.T, requireAttestation bool, batch int) *testEnv {
	t.Helper()

	farm10 := model.Farm{
		ID:            "farm10",
		Name:          "Offline Fields",
		WalletAddress: "0x0000000000000000000000000000000000000010",
		Location:      model.Location{Lat: 17.0, Lng: 99.8},
		AreaHectares:  12,
		GistdaID:      "GISTDA-TH-0010",
	}
	registry := farms.NewRegistry(append(farms.DemoFarms(), farm10)...)

	mock := hotspot.NewMockProvider()
	mock.SetLatency(5 * time.Millisecond)
	provider := &countingProvider{inner: mock}

	attestor, err := attestation.NewAttestor(nil)
	if err != nil {
		t.Fatalf("NewAttestor() error = %v", err)
	}
	builder := attestation.NewBuilder(attestation.BuilderConfig{
		AppID:      "demo_cleanfield_app",
		TemplateID: "gistda_hotspot_verification_v1",
		Salt:       "test",
	}, attestor)
	calc, err := reward.NewCalculator(reward.DefaultRates())
	if err != nil {
		t.Fatalf("NewCalculator() error = %v", err)
	}
	policy := eligibility.DefaultPolicy()
	engine := eligibility.NewEngine(policy)

	settler := settlement.NewMockExecutor()
	processor := claim.New(claim.Deps{
		Farms:   registry,
		Store:   store.NewMemoryStore(),
		Locker:  farmlock.NewLocalLocker(),
		Engine:  engine,
		Rewards: calc,
		Settler: settler,
	})

	svc := New(Deps{
		Farms:              registry,
		Checker:            hotspot.NewChecker(provider, time.Second, 1),
		Builder:            builder,
		Verifier:           attestation.NewVerifier(attestation.VerifierConfig{Strict: true}, builder),
		Claims:             processor,
		Rewards:            calc,
		Policy:             engine.Policy(),
		BatchConcurrency:   batch,
		RequireAttestation: requireAttestation,
	})
	return &testEnv{svc: svc, provider: provider, settler: settler}
}

func TestVerifyFarm(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()

	tests := []struct {
		farmID    string
		noBurning bool
		count     int
		preview   bool
	}{
		{"farm1", true, 0, true},
		{"farm2", false, 3, true},
		{"farm5", false, 1, true},
		{"farm10", false, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.farmID, func(t *testing.T) {
			got, err := env.svc.VerifyFarm(ctx, tt.farmID)
			if err != nil {
				t.Fatalf("VerifyFarm() error = %v", err)
			}
			if got.NoBurning != tt.noBurning {
				t.Errorf("VerifyFarm().NoBurning = %v, want %v", got.NoBurning, tt.noBurning)
			}
			if got.Detection.HotspotCount != tt.count {
				t.Errorf("VerifyFarm().Detection.HotspotCount = %d, want %d", got.Detection.HotspotCount, tt.count)
			}
			if (got.ProofHashPreview != "") != tt.preview {
				t.Errorf("VerifyFarm().ProofHashPreview = %q, want preview %v", got.ProofHashPreview, tt.preview)
			}
		})
	}

	if _, err := env.svc.VerifyFarm(ctx, "farm99"); !errors.Is(err, farms.ErrFarmNotFound) {
		t.Errorf("VerifyFarm(farm99) error = %v, want ErrFarmNotFound", err)
	}
}

func TestAttestFarm(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()

	clean, err := env.svc.AttestFarm(ctx, "farm1", "")
	if err != nil {
		t.Fatalf("AttestFarm() error = %v", err)
	}
	if !clean.Attestation.Success || !clean.Verification.Verified {
		t.Errorf("AttestFarm(farm1) = %+v, want verified success", clean)
	}
	if clean.Attestation.Requester != "0x1234567890123456789012345678901234567890" {
		t.Errorf("Requester = %q, want farm wallet", clean.Attestation.Requester)
	}
	if clean.OnChain == nil || clean.OnChain.ProofHash != clean.Attestation.Proof.Hash {
		t.Errorf("OnChain = %+v, want payload for the proof", clean.OnChain)
	}

	offline, err := env.svc.AttestFarm(ctx, "farm10", "")
	if err != nil {
		t.Fatalf("AttestFarm(farm10) error = %v", err)
	}
	if offline.Attestation.Success || offline.Verification.Verified || offline.OnChain != nil {
		t.Errorf("AttestFarm(farm10) = %+v, want unsuccessful", offline)
	}
	if offline.Attestation.Data.HotspotCount != -1 {
		t.Errorf("HotspotCount = %d, want -1", offline.Attestation.Data.HotspotCount)
	}
}

func TestBatchAttest(t *testing.T) {
	env := newTestEnv(t, true, 2)

	ids := []string{"farm1", "farm2", "farm3", "farm4", "farm5", "farm10", "farm99"}
	result, err := env.svc.BatchAttest(context.Background(), ids, "")
	if err != nil {
		t.Fatalf("BatchAttest() error = %v", err)
	}

	want := BatchSummary{Total: 7, Successful: 3, Clean: 3, Burning: 2, Failed: 2}
	if result.Summary != want {
		t.Errorf("BatchAttest().Summary = %+v, want %+v", result.Summary, want)
	}

	wantStatus := []string{BatchAttested, BatchBurningDetected, BatchAttested, BatchAttested, BatchBurningDetected, BatchFailed, BatchFailed}
	for i, item := range result.Results {
		if item.FarmID != ids[i] || item.Status != wantStatus[i] {
			t.Errorf("Results[%d] = %s/%s, want %s/%s", i, item.FarmID, item.Status, ids[i], wantStatus[i])
		}
	}

	if got := env.provider.calls.Load(); got != 4 {
		t.Errorf("provider calls = %d, want 4 (burning farms are not queried)", got)
	}
	if env.provider.peak > 2 {
		t.Errorf("peak concurrent queries = %d, want <= 2", env.provider.peak)
	}

	if _, err := env.svc.BatchAttest(context.Background(), nil, ""); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("BatchAttest(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestClaimWithAttestation(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()

	out, err := env.svc.AttestFarm(ctx, "farm1", "")
	if err != nil {
		t.Fatalf("AttestFarm() error = %v", err)
	}

	tampered := out.Attestation
	tampered.Data.HotspotCount = 7
	result, err := env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm1"}, &tampered)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Success || result.Eligibility.Code != model.CodeProofNotVerified {
		t.Errorf("Claim(tampered) = %+v, want PROOF_NOT_VERIFIED", result)
	}

	if _, err := env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm3"}, &out.Attestation); !errors.Is(err, ErrAttestationFarm) {
		t.Errorf("Claim(other farm) error = %v, want ErrAttestationFarm", err)
	}

	result, err = env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm1"}, &out.Attestation)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !result.Success || result.Amount == nil || result.Amount.Primary.Amount != "3825" {
		t.Errorf("Claim() = %+v, want 3825 USDC paid", result)
	}

	history, err := env.svc.FarmHistory(ctx, "farm1")
	if err != nil {
		t.Fatalf("FarmHistory() error = %v", err)
	}
	if len(history.Payments) != 1 || history.Payments[0].ProofHash != out.Attestation.Proof.Hash {
		t.Errorf("FarmHistory() = %+v, want payment bound to the proof", history)
	}
}

func TestClaimCannotRedirectPayout(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()
	attacker := "0x9999999999999999999999999999999999999999"

	out, err := env.svc.AttestFarm(ctx, "farm1", attacker)
	if err != nil {
		t.Fatalf("AttestFarm() error = %v", err)
	}
	if !out.Verification.Verified {
		t.Fatalf("AttestFarm().Verification = %+v, want verified", out.Verification)
	}

	_, err = env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm1", WalletAddress: attacker}, &out.Attestation)
	if !errors.Is(err, claim.ErrInvalidRequest) {
		t.Errorf("Claim(foreign wallet) error = %v, want claim.ErrInvalidRequest", err)
	}
	if n := len(env.settler.Settlements()); n != 0 {
		t.Fatalf("settlements = %d, want 0", n)
	}

	result, err := env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm1"}, &out.Attestation)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Claim() = %+v, want success", result)
	}
	farm, _ := env.svc.GetFarm("farm1")
	if got := env.settler.Settlements()[0].Recipient; got != farm.WalletAddress {
		t.Errorf("settled to %q, want registered wallet %q", got, farm.WalletAddress)
	}
}

func TestClaimWithBurningAttestation(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()

	out, err := env.svc.AttestFarm(ctx, "farm2", "")
	if err != nil {
		t.Fatalf("AttestFarm() error = %v", err)
	}
	result, err := env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm2"}, &out.Attestation)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Success || result.Eligibility.Code != model.CodeBurningDetected {
		t.Errorf("Claim() = %+v, want BURNING_DETECTED", result)
	}
}

func TestClaimWithoutAttestation(t *testing.T) {
	asserted := model.ClaimRequest{FarmID: "farm1", NoBurningDetected: true, ProofVerified: true}

	strict := newTestEnv(t, true, 5)
	result, err := strict.svc.Claim(context.Background(), asserted, nil)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if result.Success || result.Eligibility.Code != model.CodeProofNotVerified {
		t.Errorf("strict Claim() = %+v, want PROOF_NOT_VERIFIED", result)
	}

	lenient := newTestEnv(t, false, 5)
	result, err = lenient.svc.Claim(context.Background(), asserted, nil)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !result.Success {
		t.Errorf("lenient Claim() = %+v, want success", result)
	}

	if _, err := lenient.svc.Claim(context.Background(), model.ClaimRequest{}, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Claim(empty) error = %v, want ErrInvalidRequest", err)
	}
}

func TestClaimStatusAndDistribution(t *testing.T) {
	env := newTestEnv(t, false, 5)
	ctx := context.Background()

	status, err := env.svc.ClaimStatus(ctx, "farm3")
	if err != nil {
		t.Fatalf("ClaimStatus() error = %v", err)
	}
	if !status.Eligibility.Eligible || status.Eligibility.State != model.StateNeverClaimed {
		t.Errorf("ClaimStatus().Eligibility = %+v, want eligible, never claimed", status.Eligibility)
	}
	if status.Estimate.Primary.Amount != "6300" {
		t.Errorf("ClaimStatus().Estimate.Primary = %s, want 6300", status.Estimate.Primary.Amount)
	}
	if status.Config.Policy != eligibility.ModeCalendarYear || status.Config.Timezone != "UTC" {
		t.Errorf("ClaimStatus().Config = %+v", status.Config)
	}

	if _, err := env.svc.Claim(ctx, model.ClaimRequest{FarmID: "farm3", NoBurningDetected: true, ProofVerified: true}, nil); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	after, _ := env.svc.ClaimStatus(ctx, "farm3")
	if after.Eligibility.Eligible || after.Eligibility.State != model.StateClaimedThisYear {
		t.Errorf("ClaimStatus() after claim = %+v, want claimed this year", after.Eligibility)
	}

	report, err := env.svc.Distribution(ctx)
	if err != nil {
		t.Fatalf("Distribution() error = %v", err)
	}
	if len(report.Farms) != 6 || report.Stats.TotalPrimary != "6300" || report.Stats.UniqueFarms != 1 {
		t.Errorf("Distribution() = %+v", report)
	}

	if err := env.svc.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	reset, _ := env.svc.ClaimStatus(ctx, "farm3")
	if !reset.Eligibility.Eligible {
		t.Errorf("ClaimStatus() after reset = %+v, want eligible", reset.Eligibility)
	}
}

func TestVerifyAttestation(t *testing.T) {
	env := newTestEnv(t, true, 5)
	ctx := context.Background()

	out, _ := env.svc.AttestFarm(ctx, "farm4", "0xabc")
	got := env.svc.VerifyAttestation(ctx, &out.Attestation)
	if !got.Verification.Verified || got.OnChain == nil {
		t.Errorf("VerifyAttestation() = %+v, want verified with on-chain payload", got)
	}

	if got := env.svc.VerifyAttestation(ctx, nil); got.Verification.Verified || got.Verification.Reason != attestation.ReasonNotSuccessful {
		t.Errorf("VerifyAttestation(nil) = %+v, want not successful", got.Verification)
	}

	expired := env.svc.WithClock(func() time.Time { return time.Now().Add(25 * time.Hour) }).VerifyAttestation(ctx, &out.Attestation)
	if expired.Verification.Reason != attestation.ReasonExpired {
		t.Errorf("VerifyAttestation() later = %+v, want expired", expired.Verification)
	}
}
