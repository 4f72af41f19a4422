package hotspot

import (
	"context"
	"log/slog"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// Checker runs one bounded detection query per farm and interprets the result.
// Errors never escape: a failed or timed-out query yields an unavailable result.
type Checker struct {
	provider Provider
	timeout  time.Duration
	bufferKm float64
	now      func() time.Time
}

func NewChecker(provider Provider, timeout time.Duration, bufferKm float64) *Checker {
	if bufferKm <= 0 {
		bufferKm = 1
	}
	return &Checker{
		provider: provider,
		timeout:  timeout,
		bufferKm: bufferKm,
		now:      time.Now,
	}
}

// WithClock overrides the clock used for CheckedAt
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check queries the provider for farm and returns the interpreted detection
func (c *Checker) Check(ctx context.Context, farm model.Farm) model.DetectionResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Query(ctx, Query{
		FarmID:   farm.ID,
		Lat:      farm.Location.Lat,
		Lng:      farm.Location.Lng,
		BufferKm: c.bufferKm,
	})
	if err != nil {
		slog.WarnContext(ctx, "detection_unavailable",
			"farm_id", farm.ID,
			"error", err,
		)
		return Unavailable(farm.ID, err.Error(), c.now())
	}

	result := Interpret(farm.ID, resp, c.now())
	slog.DebugContext(ctx, "detection_checked",
		"farm_id", farm.ID,
		"status", result.Status,
		"hotspot_count", result.HotspotCount,
		"clean", result.Clean,
	)
	return result
}
