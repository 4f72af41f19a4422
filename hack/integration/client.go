package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// DefaultBaseURL is the local docker-compose address of the service
const DefaultBaseURL = "http://localhost:8080"

// Client is the integration test client
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new integration test client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Request makes an HTTP request against a path of the service
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.http.Do(req)
}

// JSON makes a request and decodes the JSON response. Business rejections
// such as 422 still decode into result; the status is returned alongside.
func (c *Client) JSON(ctx context.Context, method, path string, body, result any) (int, error) {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnprocessableEntity {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if result != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(result)
	}
	return resp.StatusCode, nil
}

// RequestWithStatus makes a request and returns the status code and raw body
func (c *Client) RequestWithStatus(ctx context.Context, method, path string, body any) (int, []byte, error) {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, bodyBytes, nil
}

// HealthCheck checks if the service is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.Request(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

// WaitForService polls /health until it answers or timeout passes
func (c *Client) WaitForService(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := c.HealthCheck(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for cleanfield at %s", c.baseURL)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

// Farms API

func (c *Client) ListFarms(ctx context.Context) ([]model.Farm, error) {
	var result struct {
		Farms []model.Farm `json:"farms"`
	}
	_, err := c.JSON(ctx, http.MethodGet, "/v1/farms", nil, &result)
	return result.Farms, err
}

// Attestation API

type AttestationOutcome struct {
	Attestation  model.Attestation        `json:"attestation"`
	Verification model.VerificationResult `json:"verification"`
	OnChain      *model.OnChainProof      `json:"on_chain,omitempty"`
}

type BatchSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Clean      int `json:"clean"`
	Burning    int `json:"burning"`
	Failed     int `json:"failed"`
}

func (c *Client) Attest(ctx context.Context, farmID string) (*AttestationOutcome, error) {
	var result AttestationOutcome
	_, err := c.JSON(ctx, http.MethodPost, "/v1/attestations", map[string]string{"farm_id": farmID}, &result)
	return &result, err
}

func (c *Client) BatchAttest(ctx context.Context, farmIDs []string) (*BatchSummary, error) {
	var result struct {
		Summary BatchSummary `json:"summary"`
	}
	_, err := c.JSON(ctx, http.MethodPost, "/v1/attestations/batch", map[string]any{"farm_ids": farmIDs}, &result)
	return &result.Summary, err
}

// Claims API

func (c *Client) Claim(ctx context.Context, farmID string, att *model.Attestation) (*model.ClaimResult, int, error) {
	var result model.ClaimResult
	status, err := c.JSON(ctx, http.MethodPost, "/v1/claims", map[string]any{
		"farm_id":     farmID,
		"attestation": att,
	}, &result)
	return &result, status, err
}

func (c *Client) FarmHistory(ctx context.Context, farmID string) (*model.FarmPaymentHistory, error) {
	var result model.FarmPaymentHistory
	_, err := c.JSON(ctx, http.MethodGet, "/v1/claims/history?farm_id="+url.QueryEscape(farmID), nil, &result)
	return &result, err
}

// Reset clears claim state; the endpoint only exists outside production
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.JSON(ctx, http.MethodPost, "/internal/reset", nil, nil)
	return err
}
