package hotspot

import (
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// ProviderResponse is a raw detection payload. HotspotCount is
// model.HotspotCountUnavailable when the provider had no data.
type ProviderResponse struct {
	HotspotCount int
	Confidence   model.ConfidenceBreakdown
	Hotspots     []model.Hotspot
}

// IsClean applies the strict burning rule: only a confirmed count of zero is clean.
// Any detection, whatever its confidence, disqualifies; -1 is never clean.
func IsClean(hotspotCount int) bool {
	return hotspotCount == 0
}

// Interpret turns a provider payload into a DetectionResult. The count used is
// the largest of the reported count, the listed hotspots and the confidence
// tiers, so an inconsistent payload can never look cleaner than its parts.
func Interpret(farmID string, resp ProviderResponse, checkedAt time.Time) model.DetectionResult {
	if resp.HotspotCount < 0 {
		return Unavailable(farmID, "provider reported data unavailable", checkedAt)
	}

	count := resp.HotspotCount
	if n := len(resp.Hotspots); n > count {
		count = n
	}
	if n := resp.Confidence.Total(); n > count {
		count = n
	}

	return model.DetectionResult{
		FarmID:       farmID,
		Status:       model.DetectionAvailable,
		HotspotCount: count,
		Confidence:   resp.Confidence,
		Clean:        IsClean(count),
		Hotspots:     resp.Hotspots,
		CheckedAt:    checkedAt.UTC(),
	}
}

// Unavailable builds the data-unavailable variant of a DetectionResult
func Unavailable(farmID, reason string, checkedAt time.Time) model.DetectionResult {
	return model.DetectionResult{
		FarmID:       farmID,
		Status:       model.DetectionUnavailable,
		HotspotCount: model.HotspotCountUnavailable,
		Clean:        false,
		CheckedAt:    checkedAt.UTC(),
		Reason:       reason,
	}
}

// Breakdown counts hotspots by confidence tier
func Breakdown(hotspots []model.Hotspot) model.ConfidenceBreakdown {
	var b model.ConfidenceBreakdown
	for _, h := range hotspots {
		switch h.Confidence {
		case "high", "h":
			b.High++
		case "low", "l":
			b.Low++
		default:
			b.Nominal++
		}
	}
	return b
}
