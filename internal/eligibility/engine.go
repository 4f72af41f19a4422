package eligibility

import (
	"fmt"
	"math"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// Policy modes
const (
	ModeCalendarYear    = "calendar_year"
	ModeRollingInterval = "rolling_interval"
)

const day = 24 * time.Hour

// DefaultRollingInterval is the legacy minimum time between two claims
const DefaultRollingInterval = 365 * day

// Policy configures how claim windows are computed.
//
// Both modes enforce at most one claim per calendar year. MinInterval, when
// positive, additionally requires that much time since the last claim.
// rolling_interval mode defaults MinInterval to 365 days.
type Policy struct {
	Mode        string
	MinInterval time.Duration
	Location    *time.Location
}

// DefaultPolicy is one claim per UTC calendar year with no interval
func DefaultPolicy() Policy {
	return Policy{Mode: ModeCalendarYear, Location: time.UTC}
}

// Input is everything the engine needs to decide one claim
type Input struct {
	FarmID        string
	Clean         bool
	ProofVerified bool
	History       model.ClaimHistory
	Now           time.Time
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	if policy.Mode == "" {
		policy.Mode = ModeCalendarYear
	}
	if policy.Mode == ModeRollingInterval && policy.MinInterval <= 0 {
		policy.MinInterval = DefaultRollingInterval
	}
	return &Engine{policy: policy}
}

// Policy returns the active policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Year returns the calendar year of t in the policy location
func (e *Engine) Year(t time.Time) int {
	return t.In(e.policy.Location).Year()
}

// State classifies a farm's claim history at now
func (e *Engine) State(history model.ClaimHistory, now time.Time) string {
	switch {
	case !history.HasClaimed():
		return model.StateNeverClaimed
	case history.LastClaimYear >= e.Year(now):
		return model.StateClaimedThisYear
	default:
		return model.StateClaimWindowOpen
	}
}

// NextClaimDate is the earliest instant a farm with this history may claim again.
// It returns nil for a farm that never claimed.
func (e *Engine) NextClaimDate(history model.ClaimHistory) *time.Time {
	if !history.HasClaimed() {
		return nil
	}

	next := time.Date(history.LastClaimYear+1, time.January, 1, 0, 0, 0, 0, e.policy.Location)
	if e.policy.MinInterval > 0 {
		if byInterval := history.LastClaimAt.Add(e.policy.MinInterval); byInterval.After(next) {
			next = byInterval
		}
	}
	return &next
}

// Evaluate decides whether the farm may claim now. Rules apply in order and
// the first failing rule determines the reason.
func (e *Engine) Evaluate(in Input) model.EligibilityResult {
	result := model.EligibilityResult{
		State:             e.State(in.History, in.Now),
		NoBurningDetected: in.Clean,
		ProofVerified:     in.ProofVerified,
		LastClaimDate:     in.History.LastClaimAt,
		NextClaimDate:     e.NextClaimDate(in.History),
	}

	if !in.Clean {
		result.Code = model.CodeBurningDetected
		result.Reason = "burning detected: farm is not eligible for clean-air rewards"
		return result
	}

	if !in.ProofVerified {
		result.Code = model.CodeProofNotVerified
		result.Reason = "proof verification failed: submit a valid attestation"
		return result
	}

	currentYear := e.Year(in.Now)
	if in.History.HasClaimed() && in.History.LastClaimYear >= currentYear {
		result.Code = model.CodeAlreadyClaimed
		result.NextEligibleYear = in.History.LastClaimYear + 1
		result.DaysUntilNextClaim = daysUntil(in.Now, result.NextClaimDate)
		result.Reason = fmt.Sprintf("already claimed this year: next eligible year is %d", result.NextEligibleYear)
		return result
	}

	if e.policy.MinInterval > 0 && in.History.HasClaimed() {
		elapsed := in.Now.Sub(*in.History.LastClaimAt)
		if elapsed < e.policy.MinInterval {
			remaining := daysCeil(e.policy.MinInterval - elapsed)
			result.Code = model.CodeIntervalNotElapsed
			result.DaysUntilNextClaim = remaining
			result.Reason = fmt.Sprintf("minimum claim interval not elapsed: must wait %d more days", remaining)
			return result
		}
	}

	result.Eligible = true
	result.Code = model.CodeEligible
	return result
}

func daysUntil(now time.Time, next *time.Time) int {
	if next == nil || !next.After(now) {
		return 0
	}
	return daysCeil(next.Sub(now))
}

func daysCeil(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}
