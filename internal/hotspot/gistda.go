package hotspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eunej/CleanField/internal/httpclient"
	"github.com/eunej/CleanField/internal/model"
)

// AgriculturalLandUse is the GISTDA land-use name for farmland
const AgriculturalLandUse = "พื้นที่เกษตร"

// kmPerDegree approximates one degree of latitude
const kmPerDegree = 111.0

// GISTDAProvider queries the GISTDA ArcGIS hotspot layer
type GISTDAProvider struct {
	client *httpclient.Client
	url    string
}

// NewGISTDAProvider creates a provider for the ArcGIS query endpoint at url.
// Requests are never retried; timeout bounds each query.
func NewGISTDAProvider(url string, timeout time.Duration) *GISTDAProvider {
	return &GISTDAProvider{
		client: httpclient.NewClient("gistda", timeout),
		url:    url,
	}
}

type arcgisResponse struct {
	Features []arcgisFeature `json:"features"`
	Error    *arcgisError    `json:"error,omitempty"`
}

type arcgisFeature struct {
	Attributes struct {
		ObjectID   int64           `json:"OBJECTID"`
		Latitude   float64         `json:"latitude"`
		Longitude  float64         `json:"longitude"`
		AcqDate    json.RawMessage `json:"acq_date"`
		Confidence string          `json:"confidence"`
		Brightness float64         `json:"brightness"`
		LandUse    string          `json:"lu_name"`
	} `json:"attributes"`
	Geometry *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"geometry,omitempty"`
}

type arcgisError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *GISTDAProvider) Query(ctx context.Context, q Query) (ProviderResponse, error) {
	buffer := q.BufferKm / kmPerDegree
	envelope := strings.Join([]string{
		formatCoord(q.Lng - buffer),
		formatCoord(q.Lat - buffer),
		formatCoord(q.Lng + buffer),
		formatCoord(q.Lat + buffer),
	}, ",")

	var resp arcgisResponse
	err := httpclient.NewRequest(http.MethodGet, p.url).
		Context(ctx).
		Query("where", fmt.Sprintf("lu_name='%s'", AgriculturalLandUse)).
		Query("geometry", envelope).
		Query("geometryType", "esriGeometryEnvelope").
		Query("spatialRel", "esriSpatialRelIntersects").
		Query("outFields", "*").
		Query("f", "json").
		ExecuteJSON(p.client, &resp)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("gistda query: %w", err)
	}

	// ArcGIS reports query errors in a 200 body
	if resp.Error != nil {
		return ProviderResponse{}, fmt.Errorf("gistda api error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	hotspots := make([]model.Hotspot, 0, len(resp.Features))
	for _, f := range resp.Features {
		a := f.Attributes
		h := model.Hotspot{
			ObjectID:   a.ObjectID,
			Latitude:   a.Latitude,
			Longitude:  a.Longitude,
			AcquiredAt: parseAcqDate(a.AcqDate),
			Confidence: a.Confidence,
			Brightness: a.Brightness,
			LandUse:    a.LandUse,
		}
		if f.Geometry != nil {
			if h.Latitude == 0 {
				h.Latitude = f.Geometry.Y
			}
			if h.Longitude == 0 {
				h.Longitude = f.Geometry.X
			}
		}
		hotspots = append(hotspots, h)
	}

	return ProviderResponse{
		HotspotCount: len(hotspots),
		Confidence:   Breakdown(hotspots),
		Hotspots:     hotspots,
	}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// parseAcqDate accepts epoch milliseconds or a YYYY-MM-DD string
func parseAcqDate(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
