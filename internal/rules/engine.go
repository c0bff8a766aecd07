package rules

import (
	"go.uber.org/zap"

	"drinkpoint-api/internal/model"
)

// BadgeDefinition pairs a badge id with the predicate that earns it.
type BadgeDefinition struct {
	ID          model.BadgeID
	Name        string
	Description string
	Condition   func(model.UserStatsSnapshot) bool
}

// CharacterDefinition is a collectible unlocked once the user's lifetime points reach
// RequiredPoints.
type CharacterDefinition struct {
	ID             model.CharacterID `yaml:"id" json:"id"`
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description" json:"description"`
	RequiredPoints int64             `yaml:"required_points" json:"required_points"`
}

// Engine evaluates awards, badges and character unlocks against an injected rule set.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	points     PointRules
	badges     []BadgeDefinition
	characters []CharacterDefinition
	log        *zap.Logger
}

// NewEngine creates an engine over the given tables. Order of badges and characters is
// the order results are reported in.
func NewEngine(points PointRules, badges []BadgeDefinition, characters []CharacterDefinition, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		points:     points,
		badges:     append([]BadgeDefinition(nil), badges...),
		characters: append([]CharacterDefinition(nil), characters...),
		log:        log,
	}
}

// NewDefaultEngine creates an engine over the built-in tables.
func NewDefaultEngine(log *zap.Logger) *Engine {
	return NewEngine(DefaultPointRules(), DefaultBadges(), DefaultCharacters(), log)
}

// Points returns the engine's point table.
func (e *Engine) Points() PointRules { return e.points }

// Badges returns a copy of the badge table.
func (e *Engine) Badges() []BadgeDefinition {
	return append([]BadgeDefinition(nil), e.badges...)
}

// Characters returns a copy of the character table.
func (e *Engine) Characters() []CharacterDefinition {
	return append([]CharacterDefinition(nil), e.characters...)
}

// ComputeAward scores one observation with the engine's point table.
func (e *Engine) ComputeAward(obs model.DrinkObservation) model.PointAward {
	return e.points.ComputeAward(obs)
}

// EvaluateBadges returns the ids whose condition holds for stats and that are not in
// alreadyHeld, in table order. It only ever proposes additions; persisting them is the
// caller's job. stats must be read after the triggering consumption was written.
func (e *Engine) EvaluateBadges(stats model.UserStatsSnapshot, alreadyHeld []model.BadgeID) []model.BadgeID {
	skip := make(map[model.BadgeID]struct{}, len(alreadyHeld)+len(e.badges))
	for _, id := range alreadyHeld {
		skip[id] = struct{}{}
	}

	earned := make([]model.BadgeID, 0)
	for _, def := range e.badges {
		if _, held := skip[def.ID]; held {
			continue
		}
		if e.holds(def, stats) {
			earned = append(earned, def.ID)
			skip[def.ID] = struct{}{}
		}
	}
	return earned
}

// holds runs one condition. A panicking condition counts as false so the rest of the
// table still gets evaluated.
func (e *Engine) holds(def BadgeDefinition, stats model.UserStatsSnapshot) (ok bool) {
	if def.Condition == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("badge condition failed",
				zap.String("badge", string(def.ID)),
				zap.Any("panic", r),
			)
			ok = false
		}
	}()
	return def.Condition(stats)
}

// UnlockCharacters returns characters whose point requirement is met and that are not
// already held, in table order.
func (e *Engine) UnlockCharacters(totalPoints int64, alreadyHeld []model.CharacterID) []model.CharacterID {
	skip := make(map[model.CharacterID]struct{}, len(alreadyHeld)+len(e.characters))
	for _, id := range alreadyHeld {
		skip[id] = struct{}{}
	}

	unlocked := make([]model.CharacterID, 0)
	for _, def := range e.characters {
		if _, held := skip[def.ID]; held {
			continue
		}
		if totalPoints >= def.RequiredPoints {
			unlocked = append(unlocked, def.ID)
			skip[def.ID] = struct{}{}
		}
	}
	return unlocked
}
