package model

import "time"

// Source says how a consumption record was classified.
type Source string

const (
	SourceVision     Source = "vision"
	SourceManual     Source = "manual"
	SourceAdjustment Source = "adjustment"
)

// ConsumptionRecord is one persisted capture event and the points it earned.
type ConsumptionRecord struct {
	ID            int64     `json:"id,string"`
	UserID        string    `json:"user_id"`
	VenueID       string    `json:"venue_id,omitempty"`
	ProductID     string    `json:"product_id,omitempty"`
	BrandName     string    `json:"brand_name"`
	Category      Category  `json:"category"`
	VolumeML      int       `json:"volume_ml"`
	Quantity      int       `json:"quantity"`
	Confidence    float64   `json:"confidence"`
	IsTargetBrand bool      `json:"is_target_brand"`
	Points        int64     `json:"points"`
	ImageKey      string    `json:"image_key,omitempty"`
	Source        Source    `json:"source"`
	Note          string    `json:"note,omitempty"`
	ConsumedAt    time.Time `json:"consumed_at"`
}

// CategoryCount is one bucket of the per-category analytics breakdown.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
	Points   int64    `json:"points"`
}

// DailyCount is one bucket of the daily capture series.
type DailyCount struct {
	Day    string `json:"day"`
	Count  int64  `json:"count"`
	Points int64  `json:"points"`
}

// BrandCount is one row of the top-brands table.
type BrandCount struct {
	BrandName string `json:"brand_name"`
	Count     int64  `json:"count"`
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalUsers        int64           `json:"total_users"`
	ActiveUsers       int64           `json:"active_users"`
	TotalConsumptions int64           `json:"total_consumptions"`
	TotalPoints       int64           `json:"total_points"`
	ByCategory        []CategoryCount `json:"by_category"`
	Daily             []DailyCount    `json:"daily"`
	TopBrands         []BrandCount    `json:"top_brands"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
