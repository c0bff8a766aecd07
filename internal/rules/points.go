package rules

import (
	"math"

	"drinkpoint-api/internal/model"
)

// PointRules is the point formula's configuration. Build one with DefaultPointRules
// or LoadFile; the zero value awards nothing.
type PointRules struct {
	BasePoints           int                        `yaml:"base_points" json:"base_points"`
	Multipliers          map[model.Category]float64 `yaml:"multipliers" json:"multipliers"`
	VolumeThresholdML    int                        `yaml:"volume_threshold_ml" json:"volume_threshold_ml"`
	VolumeMultiplier     float64                    `yaml:"volume_multiplier" json:"volume_multiplier"`
	ConfidenceThreshold  float64                    `yaml:"confidence_threshold" json:"confidence_threshold"`
	ConfidenceMultiplier float64                    `yaml:"confidence_multiplier" json:"confidence_multiplier"`
}

// DefaultPointRules returns the production point table.
func DefaultPointRules() PointRules {
	return PointRules{
		BasePoints: 10,
		Multipliers: map[model.Category]float64{
			model.CategoryDraftBeer:  1.2,
			model.CategoryHighball:   1.3,
			model.CategorySour:       1.3,
			model.CategoryGinSoda:    1.4,
			model.CategoryNonAlcohol: 1.0,
			model.CategoryWater:      0.5,
			model.CategorySoftDrink:  0.8,
			model.CategoryOther:      1.0,
		},
		VolumeThresholdML:    500,
		VolumeMultiplier:     1.5,
		ConfidenceThreshold:  0.8,
		ConfidenceMultiplier: 1.1,
	}
}

// Multiplier returns the category multiplier, 1.0 for categories missing from the table.
func (r PointRules) Multiplier(c model.Category) float64 {
	if m, ok := r.Multipliers[c]; ok {
		return m
	}
	return 1.0
}

// ComputeAward scores one observation. Non-target brands always score zero, whatever
// their volume or confidence.
func (r PointRules) ComputeAward(obs model.DrinkObservation) model.PointAward {
	if !obs.IsTargetBrand {
		return model.PointAward{}
	}

	award := model.PointAward{
		BasePoints:         r.BasePoints,
		CategoryMultiplier: r.Multiplier(obs.Category),
		VolumeBonus:        1.0,
		ConfidenceBonus:    1.0,
		Quantity:           obs.Quantity,
	}
	if obs.VolumeML >= r.VolumeThresholdML {
		award.VolumeBonus = r.VolumeMultiplier
	}
	if obs.Confidence > r.ConfidenceThreshold {
		award.ConfidenceBonus = r.ConfidenceMultiplier
	}

	raw := float64(award.BasePoints) * award.CategoryMultiplier * award.VolumeBonus *
		award.ConfidenceBonus * float64(award.Quantity)
	award.FinalPoints = roundHalfUp(raw)
	return award
}

// ComputeAward scores obs with the default point table.
func ComputeAward(obs model.DrinkObservation) model.PointAward {
	return DefaultPointRules().ComputeAward(obs)
}

// roundHalfUp rounds to the nearest integer with halves going up. The epsilon absorbs
// binary representation error such as 10*1.25 landing on 12.4999999.
func roundHalfUp(v float64) int {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return int(math.Floor(v + 0.5 + 1e-9))
}
