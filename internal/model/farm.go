package model

import "time"

// Location is a WGS84 coordinate
type Location struct {
	Lat float64 `json:"lat" bson:"lat" firestore:"lat"`
	Lng float64 `json:"lng" bson:"lng" firestore:"lng"`
}

// Farm is a registered farm eligible for clean-air incentives
type Farm struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Owner            string    `json:"owner"`
	WalletAddress    string    `json:"wallet_address"`
	Location         Location  `json:"location"`
	AreaHectares     float64   `json:"area_hectares"`
	GistdaID         string    `json:"gistda_id"`
	HasBurning       bool      `json:"has_burning"`
	BurningIncidents int       `json:"burning_incidents"`
	RegisteredAt     time.Time `json:"registered_at"`
}
