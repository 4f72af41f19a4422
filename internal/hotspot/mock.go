package hotspot

import (
	"context"
	"sync"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// MockProvider serves canned detection payloads per farm. Farms without a
// fixture are reported clean.
type MockProvider struct {
	mu       sync.RWMutex
	fixtures map[string]ProviderResponse
	failures map[string]error
	latency  time.Duration
}

// NewMockProvider creates a provider loaded with the pilot fixtures
func NewMockProvider() *MockProvider {
	return &MockProvider{
		fixtures: DemoFixtures(),
		failures: make(map[string]error),
	}
}

// SetFixture replaces the payload returned for farmID
func (p *MockProvider) SetFixture(farmID string, resp ProviderResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fixtures[farmID] = resp
}

// FailWith makes queries for farmID return err
func (p *MockProvider) FailWith(farmID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, farmID)
		return
	}
	p.failures[farmID] = err
}

// SetLatency delays every query by d, honoring context cancellation
func (p *MockProvider) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

func (p *MockProvider) Query(ctx context.Context, q Query) (ProviderResponse, error) {
	p.mu.RLock()
	latency := p.latency
	failure := p.failures[q.FarmID]
	resp, ok := p.fixtures[q.FarmID]
	p.mu.RUnlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return ProviderResponse{}, ctx.Err()
		}
	}

	if failure != nil {
		return ProviderResponse{}, failure
	}
	if !ok {
		return ProviderResponse{}, nil
	}

	// Copy so callers cannot mutate the fixture
	resp.Hotspots = append([]model.Hotspot(nil), resp.Hotspots...)
	return resp, nil
}

// DemoFixtures mirror the detection scenarios of the pilot farms
func DemoFixtures() map[string]ProviderResponse {
	acquired := time.Date(2026, time.January, 15, 13, 42, 0, 0, time.UTC)
	spot := func(id int64, lat, lng float64, confidence string, brightness float64) model.Hotspot {
		return model.Hotspot{
			ObjectID:   id,
			Latitude:   lat,
			Longitude:  lng,
			AcquiredAt: acquired,
			Confidence: confidence,
			Brightness: brightness,
			LandUse:    AgriculturalLandUse,
		}
	}
	withSpots := func(hotspots ...model.Hotspot) ProviderResponse {
		return ProviderResponse{
			HotspotCount: len(hotspots),
			Confidence:   Breakdown(hotspots),
			Hotspots:     hotspots,
		}
	}

	return map[string]ProviderResponse{
		"farm1": withSpots(),
		"farm2": withSpots(
			spot(100501, 14.3541, 100.5702, "high", 367.2),
			spot(100502, 14.3528, 100.5689, "high", 355.8),
			spot(100503, 14.3537, 100.5711, "nominal", 331.0),
		),
		"farm3": withSpots(),
		"farm4": withSpots(),
		"farm5": withSpots(
			spot(100788, 18.7891, 98.9860, "high", 389.5),
		),
		"farm6": withSpots(
			spot(100234, 15.2301, 104.8571, "low", 312.4),
		),
		"farm7": withSpots(),
		"farm8": withSpots(),
		"farm9": withSpots(
			spot(100901, 19.9101, 99.8311, "nominal", 329.1),
			spot(100902, 19.9095, 99.8322, "high", 358.7),
			spot(100903, 19.9088, 99.8299, "nominal", 333.4),
			spot(100904, 19.9079, 99.8308, "low", 309.9),
		),
		"farm10": {HotspotCount: model.HotspotCountUnavailable},
	}
}
