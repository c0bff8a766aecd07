package model

import "time"

// ActivitySample is the per-record breakdown used by time-of-day and category badges.
type ActivitySample struct {
	Category Category `json:"category"`
	Hour     int      `json:"hour"`
}

// UserStatsSnapshot is a read-only aggregate of a user's history taken at evaluation time.
type UserStatsSnapshot struct {
	TotalPoints        int64            `json:"total_points"`
	TotalConsumptions  int64            `json:"total_consumptions"`
	ConsecutiveDays    int              `json:"consecutive_days"`
	UniqueProductCount int              `json:"unique_product_count"`
	TotalVolumeML      int64            `json:"total_volume_ml"`
	DaysSinceJoined    int              `json:"days_since_joined"`
	WeeklyRank         *int             `json:"weekly_rank,omitempty"`
	RecentActivity     []ActivitySample `json:"recent_activity,omitempty"`
}

// BadgeID identifies a badge definition.
type BadgeID string

// BadgeGrant records a badge awarded to a user.
type BadgeGrant struct {
	BadgeID  BadgeID   `json:"badge_id"`
	EarnedAt time.Time `json:"earned_at"`
}

// CharacterID identifies a collectible character.
type CharacterID string

// CharacterUnlock records a character unlocked by a user.
type CharacterUnlock struct {
	CharacterID CharacterID `json:"character_id"`
	UnlockedAt  time.Time   `json:"unlocked_at"`
}

// LeaderboardEntry is one row of the weekly leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Points      int64  `json:"points"`
}
