package repository

import (
	"context"
	"errors"
	"time"

	"drinkpoint-api/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound is returned when a points update targets an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrInsufficientPoints is returned when a deduction would take a balance below zero.
	ErrInsufficientPoints = errors.New("insufficient points")
)

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// UserRepository defines user account access.
type UserRepository interface {
	// GetOrCreateUser returns the user with u.ID, inserting u first if it does not exist.
	GetOrCreateUser(ctx context.Context, u model.User) (*model.User, bool, error)

	GetUser(ctx context.Context, id string) (*model.User, error)

	// ListUsers pages users, optionally filtered by a display name or email substring.
	ListUsers(ctx context.Context, query string, page Page) ([]model.User, int64, error)

	UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
}

// CatalogRepository defines venue and product access.
type CatalogRepository interface {
	ListVenues(ctx context.Context, activeOnly bool) ([]model.Venue, error)
	GetVenue(ctx context.Context, id string) (*model.Venue, error)
	CreateVenue(ctx context.Context, v *model.Venue) error
	UpdateVenue(ctx context.Context, v *model.Venue) error
	DeleteVenue(ctx context.Context, id string) error

	ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	// MatchProduct finds the active product for a recognized brand. An empty
	// category matches any; ties prefer the given volume.
	MatchProduct(ctx context.Context, brand string, category model.Category, volumeML int) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) error
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// ConsumptionRepository defines consumption record access.
type ConsumptionRepository interface {
	// RecordConsumption inserts the record and credits its points to the user in one
	// transaction. It returns the user's new point total.
	RecordConsumption(ctx context.Context, rec *model.ConsumptionRecord) (int64, error)

	ListConsumptions(ctx context.Context, userID string, page Page) ([]model.ConsumptionRecord, int64, error)
}

// BadgeRepository defines badge and character ownership. Grants are never revoked.
type BadgeRepository interface {
	HeldBadges(ctx context.Context, userID string) ([]model.BadgeGrant, error)

	// GrantBadges stores the badges and returns those that were not held before.
	GrantBadges(ctx context.Context, userID string, ids []model.BadgeID, at time.Time) ([]model.BadgeID, error)

	HeldCharacters(ctx context.Context, userID string) ([]model.CharacterUnlock, error)

	// UnlockCharacters stores the characters and returns those that were not held before.
	UnlockCharacters(ctx context.Context, userID string, ids []model.CharacterID, at time.Time) ([]model.CharacterID, error)
}

// StatsRepository builds the aggregates the rule engine and leaderboard read.
type StatsRepository interface {
	Snapshot(ctx context.Context, userID string, now time.Time) (model.UserStatsSnapshot, error)
	WeeklyLeaderboard(ctx context.Context, now time.Time, limit int) ([]model.LeaderboardEntry, error)
}

// Totals is the headline row of the analytics dashboard.
type Totals struct {
	TotalUsers        int64
	ActiveUsers       int64
	TotalConsumptions int64
	TotalPoints       int64
}

// AnalyticsRepository defines the admin dashboard aggregates. Each method covers
// records consumed at or after since.
type AnalyticsRepository interface {
	Totals(ctx context.Context, since time.Time) (Totals, error)
	CategoryBreakdown(ctx context.Context, since time.Time) ([]model.CategoryCount, error)
	DailyCounts(ctx context.Context, since time.Time) ([]model.DailyCount, error)
	TopBrands(ctx context.Context, since time.Time, limit int) ([]model.BrandCount, error)
}

// Store is everything the services need from persistence.
type Store interface {
	UserRepository
	CatalogRepository
	ConsumptionRepository
	BadgeRepository
	StatsRepository
	AnalyticsRepository

	Ping(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

var _ Store = (*SQLStore)(nil)
