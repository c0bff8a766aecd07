package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
)

// Totals counts users and non-adjustment activity since the given time.
func (s *SQLStore) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&t.TotalUsers); err != nil {
		return t, errors.Wrap(err, "count users")
	}
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(DISTINCT user_id), COUNT(*), COALESCE(SUM(points), 0)
		FROM consumptions
		WHERE consumed_at >= ? AND source <> ?`), toMillis(since), string(model.SourceAdjustment)).
		Scan(&t.ActiveUsers, &t.TotalConsumptions, &t.TotalPoints)
	return t, errors.Wrap(err, "analytics totals")
}

func (s *SQLStore) CategoryBreakdown(ctx context.Context, since time.Time) ([]model.CategoryCount, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT category, COUNT(*), COALESCE(SUM(points), 0)
		FROM consumptions
		WHERE consumed_at >= ? AND source <> ?
		GROUP BY category
		ORDER BY COUNT(*) DESC, category ASC`), toMillis(since), string(model.SourceAdjustment))
	if err != nil {
		return nil, errors.Wrap(err, "category breakdown")
	}
	defer rows.Close()

	out := []model.CategoryCount{}
	for rows.Next() {
		var (
			c        model.CategoryCount
			category string
		)
		if err := rows.Scan(&category, &c.Count, &c.Points); err != nil {
			return nil, errors.Wrap(err, "scan category")
		}
		c.Category = model.ParseCategory(category)
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "category breakdown")
}

// DailyCounts groups by the stored local calendar day. Days without records are omitted.
func (s *SQLStore) DailyCounts(ctx context.Context, since time.Time) ([]model.DailyCount, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT consumed_day, COUNT(*), COALESCE(SUM(points), 0)
		FROM consumptions
		WHERE consumed_day >= ? AND source <> ?
		GROUP BY consumed_day
		ORDER BY consumed_day ASC`), s.day(since), string(model.SourceAdjustment))
	if err != nil {
		return nil, errors.Wrap(err, "daily counts")
	}
	defer rows.Close()

	out := []model.DailyCount{}
	for rows.Next() {
		var d model.DailyCount
		if err := rows.Scan(&d.Day, &d.Count, &d.Points); err != nil {
			return nil, errors.Wrap(err, "scan day")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "daily counts")
}

func (s *SQLStore) TopBrands(ctx context.Context, since time.Time, limit int) ([]model.BrandCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT brand_name, COUNT(*)
		FROM consumptions
		WHERE consumed_at >= ? AND source <> ? AND brand_name <> ''
		GROUP BY brand_name
		ORDER BY COUNT(*) DESC, brand_name ASC
		LIMIT ?`), toMillis(since), string(model.SourceAdjustment), limit)
	if err != nil {
		return nil, errors.Wrap(err, "top brands")
	}
	defer rows.Close()

	out := []model.BrandCount{}
	for rows.Next() {
		var b model.BrandCount
		if err := rows.Scan(&b.BrandName, &b.Count); err != nil {
			return nil, errors.Wrap(err, "scan brand")
		}
		out = append(out, b)
	}
	return out, errors.Wrap(rows.Err(), "top brands")
}
