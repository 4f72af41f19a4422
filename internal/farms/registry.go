package farms

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

var ErrFarmNotFound = errors.New("farm not found")

// Registry is a read-only view of registered farms.
// Registration itself happens outside this service.
type Registry struct {
	mu    sync.RWMutex
	farms map[string]model.Farm
}

// NewRegistry creates a registry holding the given farms
func NewRegistry(farms ...model.Farm) *Registry {
	r := &Registry{farms: make(map[string]model.Farm, len(farms))}
	for _, f := range farms {
		r.farms[f.ID] = f
	}
	return r
}

// NewDemoRegistry returns the registry of the pilot farms
func NewDemoRegistry() *Registry {
	return NewRegistry(DemoFarms()...)
}

// Get returns a farm by id
func (r *Registry) Get(id string) (model.Farm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.farms[id]
	if !ok {
		return model.Farm{}, ErrFarmNotFound
	}
	return f, nil
}

// List returns all farms ordered by id
func (r *Registry) List() []model.Farm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]model.Farm, 0, len(r.farms))
	for _, f := range r.farms {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// DemoFarms are the pilot farms in central and northern Thailand
func DemoFarms() []model.Farm {
	return []model.Farm{
		{
			ID:            "farm1",
			Name:          "Green Valley Farm",
			Owner:         "Somchai Patel",
			WalletAddress: "0x1234567890123456789012345678901234567890",
			Location:      model.Location{Lat: 13.7563, Lng: 100.5018},
			AreaHectares:  25.5,
			GistdaID:      "GISTDA-TH-0001",
			RegisteredAt:  date(2024, time.January, 15),
		},
		{
			ID:               "farm2",
			Name:             "Sunrise Orchards",
			Owner:            "Niran Kumar",
			WalletAddress:    "0x2345678901234567890123456789012345678901",
			Location:         model.Location{Lat: 14.3532, Lng: 100.5698},
			AreaHectares:     18.2,
			GistdaID:         "GISTDA-TH-0002",
			HasBurning:       true,
			BurningIncidents: 2,
			RegisteredAt:     date(2024, time.February, 20),
		},
		{
			ID:            "farm3",
			Name:          "Golden Harvest Fields",
			Owner:         "Apinya Wong",
			WalletAddress: "0x3456789012345678901234567890123456789012",
			Location:      model.Location{Lat: 15.8700, Lng: 100.9925},
			AreaHectares:  42.0,
			GistdaID:      "GISTDA-TH-0003",
			RegisteredAt:  date(2024, time.March, 10),
		},
		{
			ID:            "farm4",
			Name:          "River Bend Agriculture",
			Owner:         "Kittisak Chen",
			WalletAddress: "0x4567890123456789012345678901234567890123",
			Location:      model.Location{Lat: 16.4419, Lng: 102.8359},
			AreaHectares:  33.7,
			GistdaID:      "GISTDA-TH-0004",
			RegisteredAt:  date(2024, time.April, 5),
		},
		{
			ID:               "farm5",
			Name:             "Mountain View Plantation",
			Owner:            "Pranee Singh",
			WalletAddress:    "0x5678901234567890123456789012345678901234",
			Location:         model.Location{Lat: 18.7883, Lng: 98.9853},
			AreaHectares:     51.3,
			GistdaID:         "GISTDA-TH-0005",
			HasBurning:       true,
			BurningIncidents: 1,
			RegisteredAt:     date(2024, time.May, 12),
		},
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
