package model

import "strings"

// Category is the beverage class reported by the classifier.
type Category string

const (
	CategoryDraftBeer  Category = "draft_beer"
	CategoryHighball   Category = "highball"
	CategorySour       Category = "sour"
	CategoryGinSoda    Category = "gin_soda"
	CategoryNonAlcohol Category = "non_alcohol"
	CategoryWater      Category = "water"
	CategorySoftDrink  Category = "soft_drink"
	CategoryOther      Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryDraftBeer,
	CategoryHighball,
	CategorySour,
	CategoryGinSoda,
	CategoryNonAlcohol,
	CategoryWater,
	CategorySoftDrink,
	CategoryOther,
}

// ParseCategory maps free text to a Category. Unknown values map to CategoryOther.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for _, c := range Categories {
		if string(c) == key {
			return c
		}
	}
	return CategoryOther
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// DrinkObservation is one normalized classification event.
// Values are only produced by the intake adapter and never mutated afterwards.
type DrinkObservation struct {
	BrandName     string   `json:"brand_name"`
	Category      Category `json:"category"`
	VolumeML      int      `json:"volume_ml"`
	Quantity      int      `json:"quantity"`
	Confidence    float64  `json:"confidence"`
	IsTargetBrand bool     `json:"is_target_brand"`
}

// PointAward is the itemized result of scoring one observation.
type PointAward struct {
	BasePoints         int     `json:"base_points"`
	CategoryMultiplier float64 `json:"category_multiplier"`
	VolumeBonus        float64 `json:"volume_bonus"`
	ConfidenceBonus    float64 `json:"confidence_bonus"`
	Quantity           int     `json:"quantity"`
	FinalPoints        int     `json:"final_points"`
}
