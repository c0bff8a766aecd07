package intake

import (
	"encoding/json"
	"errors"
	"testing"

	"drinkpoint-api/internal/model"
)

func TestNormalizeDefaults(t *testing.T) {
	obs, err := Normalize(map[string]any{"brandName": "Golden Hop"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := model.DrinkObservation{
		BrandName:     "Golden Hop",
		Category:      model.CategoryOther,
		VolumeML:      350,
		Quantity:      1,
		Confidence:    0.5,
		IsTargetBrand: true,
	}
	if obs != want {
		t.Fatalf("got %+v, want %+v", obs, want)
	}
}

func TestNormalizeClampsAndMaps(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want model.DrinkObservation
	}{
		{
			name: "negative volume and zero quantity",
			raw:  map[string]any{"category": "highball", "volumeMl": -20.0, "quantity": 0.0},
			want: model.DrinkObservation{Category: model.CategoryHighball, VolumeML: 50, Quantity: 1, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "huge volume and quantity",
			raw:  map[string]any{"brand": "X", "volume_ml": 9000, "qty": 40},
			want: model.DrinkObservation{BrandName: "X", Category: model.CategoryOther, VolumeML: 3000, Quantity: 10, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "values beyond the int range",
			raw:  map[string]any{"brandName": "X", "volumeMl": 1e20, "quantity": 1e19},
			want: model.DrinkObservation{BrandName: "X", Category: model.CategoryOther, VolumeML: 3000, Quantity: 10, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "huge negative values",
			raw:  map[string]any{"brandName": "X", "volumeMl": "-1e30", "quantity": -1e19},
			want: model.DrinkObservation{BrandName: "X", Category: model.CategoryOther, VolumeML: 50, Quantity: 1, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "unknown category becomes other",
			raw:  map[string]any{"brandName": "Y", "category": "kombucha"},
			want: model.DrinkObservation{BrandName: "Y", Category: model.CategoryOther, VolumeML: 350, Quantity: 1, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "loose category spelling",
			raw:  map[string]any{"category": "Gin Soda", "confidence": 1.7},
			want: model.DrinkObservation{Category: model.CategoryGinSoda, VolumeML: 350, Quantity: 1, Confidence: 1, IsTargetBrand: true},
		},
		{
			name: "numeric strings",
			raw:  map[string]any{"brandName": "Z", "volumeMl": "500ml", "quantity": "2", "confidence": "0.9"},
			want: model.DrinkObservation{BrandName: "Z", Category: model.CategoryOther, VolumeML: 500, Quantity: 2, Confidence: 0.9, IsTargetBrand: true},
		},
		{
			name: "explicit false target brand",
			raw:  map[string]any{"brandName": "Rival", "category": "draft_beer", "isTargetBrand": false},
			want: model.DrinkObservation{BrandName: "Rival", Category: model.CategoryDraftBeer, VolumeML: 350, Quantity: 1, Confidence: 0.5, IsTargetBrand: false},
		},
		{
			name: "string false target brand",
			raw:  map[string]any{"brandName": "Rival", "is_target_brand": "false"},
			want: model.DrinkObservation{BrandName: "Rival", Category: model.CategoryOther, VolumeML: 350, Quantity: 1, Confidence: 0.5, IsTargetBrand: false},
		},
		{
			name: "null target brand keeps benefit of the doubt",
			raw:  map[string]any{"brandName": "Maybe", "isTargetBrand": nil},
			want: model.DrinkObservation{BrandName: "Maybe", Category: model.CategoryOther, VolumeML: 350, Quantity: 1, Confidence: 0.5, IsTargetBrand: true},
		},
		{
			name: "json number values",
			raw:  map[string]any{"brandName": "N", "volumeMl": json.Number("700"), "quantity": json.Number("2")},
			want: model.DrinkObservation{BrandName: "N", Category: model.CategoryOther, VolumeML: 700, Quantity: 2, Confidence: 0.5, IsTargetBrand: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeUnclassifiable(t *testing.T) {
	for _, raw := range []map[string]any{
		{},
		{"volumeMl": 500, "confidence": 0.99},
		{"brandName": "  ", "category": ""},
		{"brandName": nil, "category": nil},
	} {
		if _, err := Normalize(raw); !errors.Is(err, ErrUnclassifiable) {
			t.Fatalf("expected ErrUnclassifiable for %v, got %v", raw, err)
		}
	}
}

func TestParseJSON(t *testing.T) {
	raw := []byte("Here you go:\n```json\n{\"brandName\":\"Golden Hop\",\"category\":\"draft_beer\",\"volumeMl\":350,\"quantity\":1,\"confidence\":0.9,\"isTargetBrand\":true}\n```")
	obs, err := ParseJSON(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obs.BrandName != "Golden Hop" || obs.Category != model.CategoryDraftBeer || obs.Confidence != 0.9 {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestParseJSONClampsHugeNumbers(t *testing.T) {
	obs, err := ParseJSON([]byte(`{"brandName":"X","volumeMl":"1e30","quantity":99999999999999999999}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obs.VolumeML != MaxVolumeML || obs.Quantity != MaxQuantity {
		t.Fatalf("got volume=%d quantity=%d", obs.VolumeML, obs.Quantity)
	}
}

func TestParseJSONRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no idea", "[1,2,3]", "{not json}"} {
		if _, err := ParseJSON([]byte(raw)); !errors.Is(err, ErrUnclassifiable) {
			t.Fatalf("expected ErrUnclassifiable for %q, got %v", raw, err)
		}
	}
}
