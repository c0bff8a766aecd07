package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
)

const (
	weekWindow     = 7 * 24 * time.Hour
	activityWindow = 30 * 24 * time.Hour
	activityLimit  = 500
	streakLookback = 400
)

// Snapshot aggregates the user's history as of now. Call it after the write that
// triggered evaluation has committed so the new record is included.
// Adjustment records move the point total but do not count as consumptions.
func (s *SQLStore) Snapshot(ctx context.Context, userID string, now time.Time) (model.UserStatsSnapshot, error) {
	var snap model.UserStatsSnapshot

	var createdAt int64
	err := s.db.QueryRowContext(ctx, s.q("SELECT total_points, created_at FROM users WHERE id = ?"), userID).
		Scan(&snap.TotalPoints, &createdAt)
	if err == sql.ErrNoRows {
		return snap, ErrUserNotFound
	}
	if err != nil {
		return snap, errors.Wrap(err, "snapshot user")
	}
	snap.DaysSinceJoined = daysBetween(fromMillis(createdAt), now, s.loc)

	err = s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
		       COUNT(DISTINCT COALESCE(product_id, LOWER(brand_name))),
		       COALESCE(SUM(volume_ml * quantity), 0)
		FROM consumptions
		WHERE user_id = ? AND source <> ?`), userID, string(model.SourceAdjustment)).
		Scan(&snap.TotalConsumptions, &snap.UniqueProductCount, &snap.TotalVolumeML)
	if err != nil {
		return snap, errors.Wrap(err, "snapshot totals")
	}

	days, err := s.distinctDays(ctx, userID)
	if err != nil {
		return snap, err
	}
	snap.ConsecutiveDays = ConsecutiveDays(days, now.In(s.loc))

	rank, err := s.weeklyRank(ctx, userID, now)
	if err != nil {
		return snap, err
	}
	snap.WeeklyRank = rank

	snap.RecentActivity, err = s.recentActivity(ctx, userID, now)
	if err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *SQLStore) distinctDays(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT DISTINCT consumed_day FROM consumptions
		WHERE user_id = ? AND source <> ?
		ORDER BY consumed_day DESC
		LIMIT ?`), userID, string(model.SourceAdjustment), streakLookback)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot days")
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errors.Wrap(err, "scan day")
		}
		days = append(days, d)
	}
	return days, errors.Wrap(rows.Err(), "snapshot days")
}

// weeklyRank is 1 + the number of users with more points in the last seven days,
// or nil when the user earned nothing in that window.
func (s *SQLStore) weeklyRank(ctx context.Context, userID string, now time.Time) (*int, error) {
	since := toMillis(now.Add(-weekWindow))

	var points int64
	err := s.db.QueryRowContext(ctx,
		s.q("SELECT COALESCE(SUM(points), 0) FROM consumptions WHERE user_id = ? AND consumed_at >= ?"),
		userID, since,
	).Scan(&points)
	if err != nil {
		return nil, errors.Wrap(err, "weekly points")
	}
	if points <= 0 {
		return nil, nil
	}

	var ahead int
	err = s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM (
			SELECT c.user_id
			FROM consumptions c
			JOIN users u ON u.id = c.user_id
			WHERE c.consumed_at >= ? AND u.disabled = 0
			GROUP BY c.user_id
			HAVING SUM(c.points) > ?
		) ahead`), since, points).Scan(&ahead)
	if err != nil {
		return nil, errors.Wrap(err, "weekly rank")
	}
	rank := ahead + 1
	return &rank, nil
}

func (s *SQLStore) recentActivity(ctx context.Context, userID string, now time.Time) ([]model.ActivitySample, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT category, consumed_at FROM consumptions
		WHERE user_id = ? AND source <> ? AND consumed_at >= ?
		ORDER BY consumed_at DESC
		LIMIT ?`), userID, string(model.SourceAdjustment), toMillis(now.Add(-activityWindow)), activityLimit)
	if err != nil {
		return nil, errors.Wrap(err, "recent activity")
	}
	defer rows.Close()

	var samples []model.ActivitySample
	for rows.Next() {
		var (
			category string
			at       int64
		)
		if err := rows.Scan(&category, &at); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		samples = append(samples, model.ActivitySample{
			Category: model.ParseCategory(category),
			Hour:     time.UnixMilli(at).In(s.loc).Hour(),
		})
	}
	return samples, errors.Wrap(rows.Err(), "recent activity")
}

// WeeklyLeaderboard ranks users by points earned in the seven days before now.
// Ties share a rank and the next rank is skipped (1, 1, 3).
func (s *SQLStore) WeeklyLeaderboard(ctx context.Context, now time.Time, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT c.user_id, u.display_name, SUM(c.points) AS week_points
		FROM consumptions c
		JOIN users u ON u.id = c.user_id
		WHERE c.consumed_at >= ? AND u.disabled = 0
		GROUP BY c.user_id, u.display_name
		HAVING SUM(c.points) > 0
		ORDER BY week_points DESC, c.user_id ASC
		LIMIT ?`), toMillis(now.Add(-weekWindow)), limit)
	if err != nil {
		return nil, errors.Wrap(err, "weekly leaderboard")
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Points); err != nil {
			return nil, errors.Wrap(err, "scan leaderboard")
		}
		e.Rank = len(entries) + 1
		if n := len(entries); n > 0 && entries[n-1].Points == e.Points {
			e.Rank = entries[n-1].Rank
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "weekly leaderboard")
}

// ConsecutiveDays counts the run of consecutive calendar days in days (YYYY-MM-DD,
// newest first) ending today or yesterday. A run that ended earlier counts as zero.
func ConsecutiveDays(days []string, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	loc := today.Location()
	cursor := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	first, err := time.ParseInLocation("2006-01-02", days[0], loc)
	if err != nil {
		return 0
	}
	switch {
	case first.Equal(cursor):
	case first.Equal(cursor.AddDate(0, 0, -1)):
		cursor = first
	default:
		return 0
	}

	streak := 0
	for _, d := range days {
		day, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil || !day.Equal(cursor) {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

// daysBetween counts calendar days from joined to now in loc.
func daysBetween(joined, now time.Time, loc *time.Location) int {
	if joined.IsZero() {
		return 0
	}
	j := joined.In(loc)
	n := now.In(loc)
	start := time.Date(j.Year(), j.Month(), j.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	d := int(end.Sub(start).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
