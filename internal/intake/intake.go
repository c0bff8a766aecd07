// Package intake turns the loosely typed output of the vision classifier into a
// model.DrinkObservation. Missing fields get defaults and out-of-range numbers are
// clamped; only a result with neither a brand nor a category is rejected.
package intake

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"drinkpoint-api/internal/model"
)

// ErrUnclassifiable is returned when the classifier produced neither a brand name nor a
// category. Callers fall back to manual product selection.
var ErrUnclassifiable = errors.New("intake: result has no brand name and no category")

const (
	DefaultVolumeML   = 350
	DefaultQuantity   = 1
	DefaultConfidence = 0.5

	MinVolumeML = 50
	MaxVolumeML = 3000
	MinQuantity = 1
	MaxQuantity = 10
)

var (
	brandKeys      = []string{"brandName", "brand_name", "brand"}
	categoryKeys   = []string{"category", "categoryGuess", "category_guess"}
	volumeKeys     = []string{"volumeMl", "volume_ml", "volume"}
	quantityKeys   = []string{"quantity", "qty", "count"}
	confidenceKeys = []string{"confidence", "score"}
	targetKeys     = []string{"isTargetBrand", "is_target_brand", "targetBrand", "target_brand"}
)

// Normalize converts a raw classifier record into an observation.
func Normalize(raw map[string]any) (model.DrinkObservation, error) {
	brand := strings.TrimSpace(lookupString(raw, brandKeys))
	categoryText := strings.TrimSpace(lookupString(raw, categoryKeys))
	if brand == "" && categoryText == "" {
		return model.DrinkObservation{}, ErrUnclassifiable
	}

	obs := model.DrinkObservation{
		BrandName:     brand,
		Category:      model.ParseCategory(categoryText),
		VolumeML:      DefaultVolumeML,
		Quantity:      DefaultQuantity,
		Confidence:    DefaultConfidence,
		IsTargetBrand: true,
	}

	if v, ok := lookupNumber(raw, volumeKeys); ok {
		obs.VolumeML = clampRound(v, MinVolumeML, MaxVolumeML)
	}
	if v, ok := lookupNumber(raw, quantityKeys); ok {
		obs.Quantity = clampRound(v, MinQuantity, MaxQuantity)
	}
	if v, ok := lookupNumber(raw, confidenceKeys); ok {
		obs.Confidence = math.Min(math.Max(v, 0), 1)
	}
	// Only an explicit false removes the target-brand benefit of the doubt.
	if b, ok := lookupBool(raw, targetKeys); ok && !b {
		obs.IsTargetBrand = false
	}

	return obs, nil
}

// clampRound clamps before converting so values beyond the int range still land on a bound.
func clampRound(v float64, lo, hi int) int {
	return int(math.Round(math.Min(math.Max(v, float64(lo)), float64(hi))))
}

func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(raw map[string]any, keys []string) string {
	v, ok := lookup(raw, keys)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func lookupNumber(raw map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return 0, false
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(t)), "ml")
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func lookupBool(raw map[string]any, keys []string) (bool, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}
