package rules

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"drinkpoint-api/internal/model"
)

// File is the on-disk rules document. Sections that are omitted keep their defaults.
// Within points, a zero or missing scalar also keeps its default, so base points,
// thresholds and the volume and confidence multipliers cannot be zeroed from the file.
// Category multiplier keys must be exact category names.
type File struct {
	Points     *PointRules           `yaml:"points"`
	Badges     []BadgeSpec           `yaml:"badges"`
	Characters []CharacterDefinition `yaml:"characters"`
}

// BadgeSpec is the declarative form of a badge definition.
//
//	metric: total_points | total_consumptions | consecutive_days | unique_products |
//	        total_volume_ml | days_since_joined | weekly_rank
//	        activity_hour_between (value: [from, to]) | activity_category (value: water)
type BadgeSpec struct {
	ID          model.BadgeID `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Metric      string        `yaml:"metric"`
	Op          string        `yaml:"op"`
	Value       yaml.Node     `yaml:"value"`
}

// Build compiles the declarative badge into a definition.
func (s BadgeSpec) Build() (BadgeDefinition, error) {
	if s.ID == "" {
		return BadgeDefinition{}, fmt.Errorf("badge without id")
	}
	def := BadgeDefinition{ID: s.ID, Name: s.Name, Description: s.Description}
	if def.Name == "" {
		def.Name = string(s.ID)
	}

	switch s.Metric {
	case "activity_hour_between":
		var window []int
		if err := s.Value.Decode(&window); err != nil || len(window) != 2 {
			return BadgeDefinition{}, fmt.Errorf("badge %s: value must be [from, to]", s.ID)
		}
		cond, err := HourBetween(window[0], window[1])
		if err != nil {
			return BadgeDefinition{}, fmt.Errorf("badge %s: %w", s.ID, err)
		}
		def.Condition = cond
	case "activity_category":
		var category string
		if err := s.Value.Decode(&category); err != nil {
			return BadgeDefinition{}, fmt.Errorf("badge %s: value must be a category", s.ID)
		}
		c := model.ParseCategory(category)
		if string(c) != category {
			return BadgeDefinition{}, fmt.Errorf("badge %s: unknown category %q", s.ID, category)
		}
		def.Condition = HasCategory(c)
	default:
		var threshold float64
		if err := s.Value.Decode(&threshold); err != nil {
			return BadgeDefinition{}, fmt.Errorf("badge %s: value must be a number", s.ID)
		}
		cond, err := Threshold(s.Metric, s.Op, threshold)
		if err != nil {
			return BadgeDefinition{}, fmt.Errorf("badge %s: %w", s.ID, err)
		}
		def.Condition = cond
	}
	return def, nil
}

// Parse builds an engine from a rules document.
func Parse(data []byte, log *zap.Logger) (*Engine, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	points := DefaultPointRules()
	if f.Points != nil {
		merged, err := mergePoints(points, *f.Points)
		if err != nil {
			return nil, err
		}
		points = merged
	}

	badges := DefaultBadges()
	if len(f.Badges) > 0 {
		badges = make([]BadgeDefinition, 0, len(f.Badges))
		seen := make(map[model.BadgeID]struct{}, len(f.Badges))
		for _, bs := range f.Badges {
			def, err := bs.Build()
			if err != nil {
				return nil, err
			}
			if _, dup := seen[def.ID]; dup {
				return nil, fmt.Errorf("duplicate badge id %q", def.ID)
			}
			seen[def.ID] = struct{}{}
			badges = append(badges, def)
		}
	}

	characters := DefaultCharacters()
	if len(f.Characters) > 0 {
		characters = f.Characters
	}

	return NewEngine(points, badges, characters, log), nil
}

// LoadFile reads and parses a rules file.
func LoadFile(path string, log *zap.Logger) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data, log)
}

// mergePoints overlays the non-zero fields of override onto base.
func mergePoints(base, override PointRules) (PointRules, error) {
	if override.BasePoints > 0 {
		base.BasePoints = override.BasePoints
	}
	if len(override.Multipliers) > 0 {
		merged := make(map[model.Category]float64, len(base.Multipliers))
		for c, m := range base.Multipliers {
			merged[c] = m
		}
		for c, m := range override.Multipliers {
			if string(model.ParseCategory(string(c))) != string(c) {
				return PointRules{}, fmt.Errorf("points: unknown multiplier category %q", c)
			}
			if m < 0 {
				return PointRules{}, fmt.Errorf("points: multiplier for %s is negative", c)
			}
			merged[c] = m
		}
		base.Multipliers = merged
	}
	if override.VolumeThresholdML > 0 {
		base.VolumeThresholdML = override.VolumeThresholdML
	}
	if override.VolumeMultiplier > 0 {
		base.VolumeMultiplier = override.VolumeMultiplier
	}
	if override.ConfidenceThreshold > 0 {
		base.ConfidenceThreshold = override.ConfidenceThreshold
	}
	if override.ConfidenceMultiplier > 0 {
		base.ConfidenceMultiplier = override.ConfidenceMultiplier
	}
	return base, nil
}
