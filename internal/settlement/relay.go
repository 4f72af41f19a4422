package settlement

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/eunej/CleanField/internal/httpclient"
)

// RelayExecutor forwards instructions to an external transaction relayer
type RelayExecutor struct {
	baseURL string
	client  *httpclient.Client
}

type relayResponse struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewRelayExecutor creates a relay client. Submissions are not retried so a
// transfer is never sent twice.
func NewRelayExecutor(baseURL, token string, timeout time.Duration) *RelayExecutor {
	var opts []httpclient.Option
	if token != "" {
		opts = append(opts, httpclient.WithAuth(&httpclient.BearerTokenAuth{Token: token}))
	}
	return &RelayExecutor{
		baseURL: baseURL,
		client:  httpclient.NewClient("settlement-relay", timeout, opts...),
	}
}

func (r *RelayExecutor) Settle(ctx context.Context, in Instruction) (Receipt, error) {
	if err := in.Validate(); err != nil {
		return Receipt{}, err
	}

	var resp relayResponse
	err := httpclient.NewRequest(http.MethodPost, r.baseURL).
		Path("/v1/transfers").
		Header("Idempotency-Key", fmt.Sprintf("%s:%d", in.FarmID, in.Year)).
		JSON(in).
		Context(ctx).
		ExecuteJSON(r.client, &resp)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrSettlementFailed, err)
	}

	switch resp.Status {
	case StatusConfirmed, StatusPending:
	default:
		reason := resp.Error
		if reason == "" {
			reason = "relayer status " + resp.Status
		}
		return Receipt{}, fmt.Errorf("%w: %s", ErrSettlementFailed, reason)
	}
	if resp.TxHash == "" {
		return Receipt{}, fmt.Errorf("%w: relayer returned no tx hash", ErrSettlementFailed)
	}

	return Receipt{
		TxHash:    resp.TxHash,
		Status:    resp.Status,
		SettledAt: time.Now().UTC(),
	}, nil
}
