package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/rules"
)

// BadgeView is a badge as shown to the user.
type BadgeView struct {
	ID          model.BadgeID `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Earned      bool          `json:"earned"`
	EarnedAt    *time.Time    `json:"earned_at,omitempty"`
}

// CharacterView is a collectible character as shown to the user.
type CharacterView struct {
	ID             model.CharacterID `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	RequiredPoints int64             `json:"required_points"`
	Unlocked       bool              `json:"unlocked"`
	UnlockedAt     *time.Time        `json:"unlocked_at,omitempty"`
}

// ProgressResult is what one evaluation granted.
type ProgressResult struct {
	Snapshot      model.UserStatsSnapshot `json:"snapshot"`
	NewBadges     []BadgeView             `json:"new_badges"`
	NewCharacters []CharacterView         `json:"new_characters"`
}

// Progress evaluates badges and characters from a fresh stats snapshot and stores new grants.
type Progress struct {
	store   repository.Store
	rules   *rules.Holder
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewProgress creates an evaluator.
func NewProgress(store repository.Store, rules *rules.Holder, m *metrics.Metrics, log *zap.Logger) *Progress {
	if log == nil {
		log = zap.NewNop()
	}
	return &Progress{store: store, rules: rules, metrics: m, log: log.Named("progress")}
}

// Evaluate must run after the write that changed the user's stats has committed.
func (p *Progress) Evaluate(ctx context.Context, userID string, now time.Time) (*ProgressResult, error) {
	engine := p.rules.Load()

	snap, err := p.store.Snapshot(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	held, err := p.store.HeldBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	heldIDs := make([]model.BadgeID, len(held))
	for i, g := range held {
		heldIDs[i] = g.BadgeID
	}

	candidates := engine.EvaluateBadges(snap, heldIDs)
	granted, err := p.store.GrantBadges(ctx, userID, candidates, now)
	if err != nil {
		return nil, err
	}

	heldChars, err := p.store.HeldCharacters(ctx, userID)
	if err != nil {
		return nil, err
	}
	heldCharIDs := make([]model.CharacterID, len(heldChars))
	for i, c := range heldChars {
		heldCharIDs[i] = c.CharacterID
	}

	unlockable := engine.UnlockCharacters(snap.TotalPoints, heldCharIDs)
	unlocked, err := p.store.UnlockCharacters(ctx, userID, unlockable, now)
	if err != nil {
		return nil, err
	}

	res := &ProgressResult{
		Snapshot:      snap,
		NewBadges:     make([]BadgeView, 0, len(granted)),
		NewCharacters: make([]CharacterView, 0, len(unlocked)),
	}
	at := now.UTC()
	for _, id := range granted {
		v := badgeView(engine, id)
		v.Earned, v.EarnedAt = true, &at
		res.NewBadges = append(res.NewBadges, v)
		p.metrics.IncBadgeGranted(string(id))
	}
	for _, id := range unlocked {
		v := characterView(engine, id)
		v.Unlocked, v.UnlockedAt = true, &at
		res.NewCharacters = append(res.NewCharacters, v)
		p.metrics.IncCharacterUnlocked(string(id))
	}

	if len(granted) > 0 || len(unlocked) > 0 {
		p.log.Info("progress granted",
			zap.String("user_id", userID),
			zap.Any("badges", granted),
			zap.Any("characters", unlocked),
		)
	}
	return res, nil
}

func badgeView(engine *rules.Engine, id model.BadgeID) BadgeView {
	for _, def := range engine.Badges() {
		if def.ID == id {
			return BadgeView{ID: id, Name: def.Name, Description: def.Description}
		}
	}
	return BadgeView{ID: id, Name: string(id)}
}

func characterView(engine *rules.Engine, id model.CharacterID) CharacterView {
	for _, def := range engine.Characters() {
		if def.ID == id {
			return CharacterView{ID: id, Name: def.Name, Description: def.Description, RequiredPoints: def.RequiredPoints}
		}
	}
	return CharacterView{ID: id, Name: string(id)}
}
