package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/rules"
	"drinkpoint-api/pkg/apierror"
)

// Profile is the caller's account summary.
type Profile struct {
	User           model.User              `json:"user"`
	Stats          model.UserStatsSnapshot `json:"stats"`
	BadgeCount     int                     `json:"badge_count"`
	CharacterCount int                     `json:"character_count"`
	NextCharacter  *CharacterView          `json:"next_character,omitempty"`
}

// ProfileService serves the signed-in user's own data and the public catalog.
type ProfileService struct {
	store       repository.Store
	rules       *rules.Holder
	leaderboard *LeaderboardScheduler
	log         *zap.Logger
	now         func() time.Time
}

// NewProfileService creates a profile service.
func NewProfileService(store repository.Store, rules *rules.Holder, leaderboard *LeaderboardScheduler, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{
		store:       store,
		rules:       rules,
		leaderboard: leaderboard,
		log:         log.Named("profile"),
		now:         time.Now,
	}
}

// EnsureUser provisions the account for an identity on its first authenticated call.
func (s *ProfileService) EnsureUser(ctx context.Context, id model.Identity) (*model.User, error) {
	name := strings.TrimSpace(id.DisplayName)
	if name == "" {
		name = strings.SplitN(id.Email, "@", 2)[0]
	}
	u, created, err := s.store.GetOrCreateUser(ctx, model.User{
		ID:          id.UserID,
		DisplayName: name,
		Email:       id.Email,
		Role:        model.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("user provisioned", zap.String("user_id", u.ID))
	}
	return u, nil
}

// Profile returns the user with a fresh stats snapshot.
func (s *ProfileService) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	badges, err := s.store.HeldBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	chars, err := s.store.HeldCharacters(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		User:           *u,
		Stats:          snap,
		BadgeCount:     len(badges),
		CharacterCount: len(chars),
	}
	for _, def := range s.rules.Load().Characters() {
		if def.RequiredPoints > u.TotalPoints {
			next := CharacterView{ID: def.ID, Name: def.Name, Description: def.Description, RequiredPoints: def.RequiredPoints}
			p.NextCharacter = &next
			break
		}
	}
	return p, nil
}

// Badges lists every badge in the active rule set with the user's earned state,
// followed by held badges no longer in the rule set.
func (s *ProfileService) Badges(ctx context.Context, userID string) ([]BadgeView, error) {
	held, err := s.store.HeldBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[model.BadgeID]time.Time, len(held))
	for _, g := range held {
		earned[g.BadgeID] = g.EarnedAt
	}

	engine := s.rules.Load()
	views := make([]BadgeView, 0, len(engine.Badges())+len(held))
	listed := make(map[model.BadgeID]struct{}, len(engine.Badges()))
	for _, def := range engine.Badges() {
		v := BadgeView{ID: def.ID, Name: def.Name, Description: def.Description}
		if at, ok := earned[def.ID]; ok {
			at := at
			v.Earned, v.EarnedAt = true, &at
		}
		listed[def.ID] = struct{}{}
		views = append(views, v)
	}
	for _, g := range held {
		if _, ok := listed[g.BadgeID]; ok {
			continue
		}
		at := g.EarnedAt
		views = append(views, BadgeView{ID: g.BadgeID, Name: string(g.BadgeID), Earned: true, EarnedAt: &at})
	}
	return views, nil
}

// Characters lists every character with the user's unlock state.
func (s *ProfileService) Characters(ctx context.Context, userID string) ([]CharacterView, error) {
	held, err := s.store.HeldCharacters(ctx, userID)
	if err != nil {
		return nil, err
	}
	unlocked := make(map[model.CharacterID]time.Time, len(held))
	for _, c := range held {
		unlocked[c.CharacterID] = c.UnlockedAt
	}

	defs := s.rules.Load().Characters()
	views := make([]CharacterView, 0, len(defs))
	for _, def := range defs {
		v := CharacterView{ID: def.ID, Name: def.Name, Description: def.Description, RequiredPoints: def.RequiredPoints}
		if at, ok := unlocked[def.ID]; ok {
			at := at
			v.Unlocked, v.UnlockedAt = true, &at
		}
		views = append(views, v)
	}
	return views, nil
}

// Consumptions pages the user's history, newest first.
func (s *ProfileService) Consumptions(ctx context.Context, userID string, page repository.Page) ([]model.ConsumptionRecord, int64, error) {
	return s.store.ListConsumptions(ctx, userID, page)
}

// Leaderboard returns the weekly leaderboard.
func (s *ProfileService) Leaderboard(ctx context.Context) (*WeeklyLeaderboard, error) {
	return s.leaderboard.Get(ctx)
}

// Venues lists active venues.
func (s *ProfileService) Venues(ctx context.Context) ([]model.Venue, error) {
	return s.store.ListVenues(ctx, true)
}

// Products lists active products for manual selection.
func (s *ProfileService) Products(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx, true)
}
