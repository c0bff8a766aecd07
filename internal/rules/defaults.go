package rules

import "drinkpoint-api/internal/model"

// DefaultBadges returns the built-in badge table. Each call returns a fresh slice.
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{ID: "first_drink", Name: "First Sip", Description: "Log your first drink", Condition: mustThreshold("total_consumptions", 1)},
		{ID: "regular", Name: "Regular", Description: "Log 10 drinks", Condition: mustThreshold("total_consumptions", 10)},
		{ID: "centurion", Name: "Centurion", Description: "Log 100 drinks", Condition: mustThreshold("total_consumptions", 100)},
		{ID: "rising_star", Name: "Rising Star", Description: "Earn 100 points", Condition: mustThreshold("total_points", 100)},
		{ID: "high_roller", Name: "High Roller", Description: "Earn 500 points", Condition: mustThreshold("total_points", 500)},
		{ID: "legend", Name: "Legend", Description: "Earn 1000 points", Condition: mustThreshold("total_points", 1000)},
		{ID: "three_day_streak", Name: "Hat Trick", Description: "Drink on 3 consecutive days", Condition: mustThreshold("consecutive_days", 3)},
		{ID: "weekly_streak", Name: "Seven Nights", Description: "Drink on 7 consecutive days", Condition: mustThreshold("consecutive_days", 7)},
		{ID: "explorer", Name: "Explorer", Description: "Try 5 different products", Condition: mustThreshold("unique_products", 5)},
		{ID: "collector", Name: "Collector", Description: "Try 15 different products", Condition: mustThreshold("unique_products", 15)},
		{ID: "liter_club", Name: "Liter Club", Description: "Drink 10 liters in total", Condition: mustThreshold("total_volume_ml", 10000)},
		{ID: "veteran", Name: "Veteran", Description: "Stay with us for 100 days", Condition: mustThreshold("days_since_joined", 100)},
		{ID: "night_owl", Name: "Night Owl", Description: "Log a drink between 22:00 and 04:00", Condition: mustHourBetween(22, 4)},
		{ID: "day_drinker", Name: "Day Drinker", Description: "Log a drink between 11:00 and 15:00", Condition: mustHourBetween(11, 15)},
		{ID: "hydrated", Name: "Hydrated", Description: "Log a glass of water too", Condition: HasCategory(model.CategoryWater)},
	}
}

// DefaultCharacters returns the built-in collectible table ordered by requirement.
func DefaultCharacters() []CharacterDefinition {
	return []CharacterDefinition{
		{ID: "hop_sprite", Name: "Hop Sprite", Description: "Everyone starts with one", RequiredPoints: 0},
		{ID: "foam_knight", Name: "Foam Knight", RequiredPoints: 50},
		{ID: "citrus_fox", Name: "Citrus Fox", RequiredPoints: 200},
		{ID: "juniper_owl", Name: "Juniper Owl", RequiredPoints: 400},
		{ID: "barrel_bear", Name: "Barrel Bear", RequiredPoints: 800},
		{ID: "golden_tap", Name: "Golden Tap", RequiredPoints: 1500},
	}
}
