package integration

import (
	"context"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// skipIfNoService skips the test if the service is not available
func skipIfNoService(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.HealthCheck(ctx); err != nil {
		t.Skipf("Service not available: %v (run with docker-compose up)", err)
	}
}

func getTestClient() *Client {
	baseURL := DefaultBaseURL
	if u := os.Getenv("CLEANFIELD_URL"); u != "" {
		baseURL = u
	}
	return NewClient(baseURL)
}

// TestEndToEndClaim attests a clean farm, claims its reward and checks it cannot be claimed twice
func TestEndToEndClaim(t *testing.T) {
	c := getTestClient()
	skipIfNoService(t, c)

	ctx := context.Background()
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Failed to reset claim state: %v", err)
	}

	t.Log("Step 1: Attesting farm1...")
	out, err := c.Attest(ctx, "farm1")
	if err != nil {
		t.Fatalf("Failed to attest farm1: %v", err)
	}
	if !out.Verification.Verified || !out.Attestation.Data.NoBurningDetected {
		t.Fatalf("farm1 attestation = %+v, want verified and clean", out.Verification)
	}
	t.Logf("  Proof hash: %s", out.Attestation.Proof.Hash)

	t.Log("Step 2: Claiming reward...")
	result, status, err := c.Claim(ctx, "farm1", &out.Attestation)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if status != http.StatusOK || !result.Success {
		t.Fatalf("claim = %d %+v, want success", status, result)
	}
	if result.Amount == nil || result.Amount.Primary.Amount != "3825" {
		t.Errorf("claim amount = %+v, want 3825", result.Amount)
	}
	t.Logf("  Settlement ref: %s", result.SettlementRef)

	t.Log("Step 3: Claiming again in the same year...")
	again, status, err := c.Claim(ctx, "farm1", &out.Attestation)
	if err != nil {
		t.Fatalf("Failed to submit second claim: %v", err)
	}
	if status != http.StatusUnprocessableEntity || again.Eligibility.Code != model.CodeAlreadyClaimed {
		t.Errorf("second claim = %d %s, want 422 ALREADY_CLAIMED", status, again.Eligibility.Code)
	}

	t.Log("Step 4: Checking history...")
	history, err := c.FarmHistory(ctx, "farm1")
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if history.TotalPayments != 1 || history.TotalClaimedPrimary != "3825" {
		t.Errorf("history = %+v, want one 3825 payment", history)
	}
}

// TestConcurrentClaimsPayOnce fires parallel claims for one farm
func TestConcurrentClaimsPayOnce(t *testing.T) {
	c := getTestClient()
	skipIfNoService(t, c)

	ctx := context.Background()
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Failed to reset claim state: %v", err)
	}
	out, err := c.Attest(ctx, "farm3")
	if err != nil {
		t.Fatalf("Failed to attest farm3: %v", err)
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, _, err := c.Claim(ctx, "farm3", &out.Attestation)
			if err != nil {
				t.Logf("claim error: %v", err)
				return
			}
			if result.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful claims = %d, want exactly 1", successes)
	}

	if uri := os.Getenv("MONGO_TEST_URI"); uri != "" {
		cleaner, err := NewDatabaseCleaner(uri, getEnvOr("MONGO_DB", "cleanfield"))
		if err != nil {
			t.Fatalf("Failed to connect cleaner: %v", err)
		}
		defer cleaner.Close(ctx)

		n, err := cleaner.CountPayments(ctx, "farm3", model.PaymentCompleted)
		if err != nil {
			t.Fatalf("Failed to count payments: %v", err)
		}
		if n != 1 {
			t.Errorf("stored completed payments = %d, want 1", n)
		}
		if err := cleaner.CleanFarm(ctx, "farm3"); err != nil {
			t.Errorf("Failed to clean farm3: %v", err)
		}
	}
}

// TestBatchAttestation checks the demo batch summary
func TestBatchAttestation(t *testing.T) {
	c := getTestClient()
	skipIfNoService(t, c)

	farms, err := c.ListFarms(context.Background())
	if err != nil {
		t.Fatalf("Failed to list farms: %v", err)
	}
	ids := make([]string, 0, len(farms))
	for _, f := range farms {
		ids = append(ids, f.ID)
	}

	summary, err := c.BatchAttest(context.Background(), ids)
	if err != nil {
		t.Fatalf("Failed to batch attest: %v", err)
	}
	if summary.Total != len(ids) || summary.Successful+summary.Failed+countBurningSkipped(farms) != summary.Total {
		t.Errorf("batch summary = %+v for %d farms", summary, len(ids))
	}
}

func countBurningSkipped(farms []model.Farm) int {
	n := 0
	for _, f := range farms {
		if f.HasBurning {
			n++
		}
	}
	return n
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
