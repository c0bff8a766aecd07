package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
)

func (s *SQLStore) HeldBadges(ctx context.Context, userID string) ([]model.BadgeGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT badge_id, earned_at FROM user_badges WHERE user_id = ? ORDER BY earned_at ASC, badge_id ASC"), userID)
	if err != nil {
		return nil, errors.Wrap(err, "held badges")
	}
	defer rows.Close()

	grants := []model.BadgeGrant{}
	for rows.Next() {
		var (
			id string
			at int64
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, errors.Wrap(err, "scan badge")
		}
		grants = append(grants, model.BadgeGrant{BadgeID: model.BadgeID(id), EarnedAt: fromMillis(at)})
	}
	return grants, errors.Wrap(rows.Err(), "held badges")
}

// GrantBadges is idempotent: badges already held are skipped and not returned.
func (s *SQLStore) GrantBadges(ctx context.Context, userID string, ids []model.BadgeID, at time.Time) ([]model.BadgeID, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	inserted, err := s.insertOwned(ctx, "user_badges", "badge_id", "earned_at", userID, keys, at)
	if err != nil {
		return nil, errors.Wrap(err, "grant badges")
	}
	out := make([]model.BadgeID, len(inserted))
	for i, k := range inserted {
		out[i] = model.BadgeID(k)
	}
	return out, nil
}

func (s *SQLStore) HeldCharacters(ctx context.Context, userID string) ([]model.CharacterUnlock, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT character_id, unlocked_at FROM user_characters WHERE user_id = ? ORDER BY unlocked_at ASC, character_id ASC"), userID)
	if err != nil {
		return nil, errors.Wrap(err, "held characters")
	}
	defer rows.Close()

	unlocks := []model.CharacterUnlock{}
	for rows.Next() {
		var (
			id string
			at int64
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, errors.Wrap(err, "scan character")
		}
		unlocks = append(unlocks, model.CharacterUnlock{CharacterID: model.CharacterID(id), UnlockedAt: fromMillis(at)})
	}
	return unlocks, errors.Wrap(rows.Err(), "held characters")
}

// UnlockCharacters is idempotent like GrantBadges.
func (s *SQLStore) UnlockCharacters(ctx context.Context, userID string, ids []model.CharacterID, at time.Time) ([]model.CharacterID, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	inserted, err := s.insertOwned(ctx, "user_characters", "character_id", "unlocked_at", userID, keys, at)
	if err != nil {
		return nil, errors.Wrap(err, "unlock characters")
	}
	out := make([]model.CharacterID, len(inserted))
	for i, k := range inserted {
		out[i] = model.CharacterID(k)
	}
	return out, nil
}

// insertOwned inserts (user, key, at) rows with insert-ignore semantics and
// reports which keys were new.
func (s *SQLStore) insertOwned(ctx context.Context, tableName, keyColumn, timeColumn, userID string, keys []string, at time.Time) ([]string, error) {
	inserted := []string{}
	if len(keys) == 0 {
		return inserted, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := s.dialect.InsertIgnore(tableName, "user_id", keyColumn, timeColumn)
	ms := toMillis(at)
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		res, err := tx.ExecContext(ctx, query, userID, k, ms)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, k)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}
