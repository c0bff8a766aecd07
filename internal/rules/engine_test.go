package rules

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"drinkpoint-api/internal/model"
)

func contains(ids []model.BadgeID, id model.BadgeID) bool {
	for _, got := range ids {
		if got == id {
			return true
		}
	}
	return false
}

func TestDefaultBadgeTable(t *testing.T) {
	badges := DefaultBadges()
	if len(badges) != 15 {
		t.Fatalf("expected 15 default badges, got %d", len(badges))
	}
	seen := map[model.BadgeID]bool{}
	for _, b := range badges {
		if seen[b.ID] {
			t.Fatalf("duplicate badge id %s", b.ID)
		}
		seen[b.ID] = true
		if b.Condition == nil {
			t.Fatalf("badge %s has no condition", b.ID)
		}
	}
}

func TestFirstDrink(t *testing.T) {
	e := NewDefaultEngine(nil)
	got := e.EvaluateBadges(model.UserStatsSnapshot{TotalConsumptions: 1}, nil)
	if !contains(got, "first_drink") {
		t.Fatalf("expected first_drink, got %v", got)
	}
}

func TestLegendThreshold(t *testing.T) {
	e := NewDefaultEngine(nil)
	if got := e.EvaluateBadges(model.UserStatsSnapshot{TotalPoints: 999}, nil); contains(got, "legend") {
		t.Fatalf("legend granted at 999: %v", got)
	}
	if got := e.EvaluateBadges(model.UserStatsSnapshot{TotalPoints: 1000}, nil); !contains(got, "legend") {
		t.Fatalf("legend not granted at 1000: %v", got)
	}
}

func TestEvaluateBadgesSkipsHeld(t *testing.T) {
	e := NewDefaultEngine(nil)
	stats := model.UserStatsSnapshot{
		TotalPoints:        2000,
		TotalConsumptions:  150,
		ConsecutiveDays:    10,
		UniqueProductCount: 20,
		TotalVolumeML:      50000,
		DaysSinceJoined:    365,
		RecentActivity: []model.ActivitySample{
			{Category: model.CategoryWater, Hour: 23},
			{Category: model.CategoryDraftBeer, Hour: 12},
		},
	}

	all := e.EvaluateBadges(stats, nil)
	if len(all) != 15 {
		t.Fatalf("expected every badge for a maxed snapshot, got %v", all)
	}

	held := []model.BadgeID{"first_drink", "legend", "hydrated"}
	got := e.EvaluateBadges(stats, held)
	for _, h := range held {
		if contains(got, h) {
			t.Fatalf("held badge %s returned again: %v", h, got)
		}
	}
	if len(got) != 12 {
		t.Fatalf("expected 12 new badges, got %d: %v", len(got), got)
	}
}

func TestEvaluateBadgesOrderFollowsTable(t *testing.T) {
	defs := []BadgeDefinition{
		{ID: "c", Condition: func(model.UserStatsSnapshot) bool { return true }},
		{ID: "a", Condition: func(model.UserStatsSnapshot) bool { return true }},
		{ID: "b", Condition: func(model.UserStatsSnapshot) bool { return false }},
		{ID: "d", Condition: func(model.UserStatsSnapshot) bool { return true }},
		{ID: "a", Condition: func(model.UserStatsSnapshot) bool { return true }},
	}
	e := NewEngine(DefaultPointRules(), defs, nil, nil)
	got := e.EvaluateBadges(model.UserStatsSnapshot{}, nil)
	want := []model.BadgeID{"c", "a", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPanickingConditionIsIsolated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defs := []BadgeDefinition{
		{ID: "before", Condition: func(model.UserStatsSnapshot) bool { return true }},
		{ID: "broken", Condition: func(s model.UserStatsSnapshot) bool { return *s.WeeklyRank == 1 }},
		{ID: "nil_condition"},
		{ID: "after", Condition: func(model.UserStatsSnapshot) bool { return true }},
	}
	e := NewEngine(DefaultPointRules(), defs, nil, zap.New(core))

	got := e.EvaluateBadges(model.UserStatsSnapshot{}, nil)
	want := []model.BadgeID{"before", "after"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	entries := logs.FilterField(zap.String("badge", "broken")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry for the broken badge, got %d", len(entries))
	}
}

func TestEvaluateBadgesMonotonic(t *testing.T) {
	e := NewDefaultEngine(nil)
	bump := map[string]func(*model.UserStatsSnapshot, int){
		"total_points":       func(s *model.UserStatsSnapshot, d int) { s.TotalPoints += int64(d) },
		"total_consumptions": func(s *model.UserStatsSnapshot, d int) { s.TotalConsumptions += int64(d) },
		"consecutive_days":   func(s *model.UserStatsSnapshot, d int) { s.ConsecutiveDays += d },
		"unique_products":    func(s *model.UserStatsSnapshot, d int) { s.UniqueProductCount += d },
		"total_volume_ml":    func(s *model.UserStatsSnapshot, d int) { s.TotalVolumeML += int64(d) * 100 },
		"days_since_joined":  func(s *model.UserStatsSnapshot, d int) { s.DaysSinceJoined += d },
	}

	for name, inc := range bump {
		t.Run(name, func(t *testing.T) {
			var stats model.UserStatsSnapshot
			prev := e.EvaluateBadges(stats, nil)
			for step := 0; step < 200; step++ {
				inc(&stats, 7)
				cur := e.EvaluateBadges(stats, nil)
				for _, id := range prev {
					if !contains(cur, id) {
						t.Fatalf("badge %s disappeared after increasing %s to %+v", id, name, stats)
					}
				}
				prev = cur
			}
		})
	}
}

func TestActivityBadges(t *testing.T) {
	e := NewDefaultEngine(nil)
	tests := []struct {
		sample model.ActivitySample
		want   []model.BadgeID
	}{
		{model.ActivitySample{Category: model.CategoryDraftBeer, Hour: 23}, []model.BadgeID{"night_owl"}},
		{model.ActivitySample{Category: model.CategoryDraftBeer, Hour: 3}, []model.BadgeID{"night_owl"}},
		{model.ActivitySample{Category: model.CategoryDraftBeer, Hour: 4}, nil},
		{model.ActivitySample{Category: model.CategorySour, Hour: 11}, []model.BadgeID{"day_drinker"}},
		{model.ActivitySample{Category: model.CategorySour, Hour: 15}, nil},
		{model.ActivitySample{Category: model.CategoryWater, Hour: 9}, []model.BadgeID{"hydrated"}},
	}
	for _, tt := range tests {
		got := e.EvaluateBadges(model.UserStatsSnapshot{RecentActivity: []model.ActivitySample{tt.sample}}, nil)
		if len(got) != len(tt.want) {
			t.Fatalf("sample %+v: got %v, want %v", tt.sample, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("sample %+v: got %v, want %v", tt.sample, got, tt.want)
			}
		}
	}
}

func TestUnlockCharacters(t *testing.T) {
	e := NewDefaultEngine(nil)

	got := e.UnlockCharacters(0, nil)
	if !reflect.DeepEqual(got, []model.CharacterID{"hop_sprite"}) {
		t.Fatalf("expected starter character, got %v", got)
	}

	got = e.UnlockCharacters(450, []model.CharacterID{"hop_sprite", "foam_knight"})
	want := []model.CharacterID{"citrus_fox", "juniper_owl"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
