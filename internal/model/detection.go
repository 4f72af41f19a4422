package model

import "time"

// Detection status values
const (
	DetectionAvailable   = "available"
	DetectionUnavailable = "unavailable"
)

// HotspotCountUnavailable marks a detection whose data source could not be read
const HotspotCountUnavailable = -1

// ConfidenceBreakdown counts detected hotspots by satellite confidence tier
type ConfidenceBreakdown struct {
	High    int `json:"high"`
	Nominal int `json:"nominal"`
	Low     int `json:"low"`
}

// Total returns the number of hotspots across all tiers
func (c ConfidenceBreakdown) Total() int {
	return c.High + c.Nominal + c.Low
}

// Hotspot is a single thermal anomaly reported by the detection provider
type Hotspot struct {
	ObjectID   int64     `json:"object_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AcquiredAt time.Time `json:"acquired_at"`
	Confidence string    `json:"confidence"` // high|nominal|low
	Brightness float64   `json:"brightness,omitempty"`
	LandUse    string    `json:"land_use,omitempty"`
}

// DetectionResult is the interpreted outcome of a hotspot query.
// Status selects the variant: an unavailable result always has
// HotspotCount == -1 and Clean == false.
type DetectionResult struct {
	FarmID       string              `json:"farm_id"`
	Status       string              `json:"status"`
	HotspotCount int                 `json:"hotspot_count"`
	Confidence   ConfidenceBreakdown `json:"confidence"`
	Clean        bool                `json:"clean"`
	Hotspots     []Hotspot           `json:"hotspots,omitempty"`
	CheckedAt    time.Time           `json:"checked_at"`
	Reason       string              `json:"reason,omitempty"`
}

// Available reports whether the detection carries real data
func (d DetectionResult) Available() bool {
	return d.Status == DetectionAvailable
}
