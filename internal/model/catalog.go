package model

import "time"

// Venue is a bar or shop where captures can be attributed.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog entry used for manual selection when classification fails.
type Product struct {
	ID            string    `json:"id"`
	BrandName     string    `json:"brand_name"`
	DisplayName   string    `json:"display_name"`
	Category      Category  `json:"category"`
	VolumeML      int       `json:"volume_ml"`
	IsTargetBrand bool      `json:"is_target_brand"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}
