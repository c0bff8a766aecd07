package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
)

const consumptionColumns = "id, user_id, venue_id, product_id, brand_name, category, volume_ml, quantity, confidence, " +
	"is_target_brand, points, image_key, source, note, consumed_at"

// RecordConsumption credits rec.Points with an atomic increment and inserts the
// record in the same transaction. Negative points (admin deductions) fail with
// ErrInsufficientPoints instead of taking the balance below zero.
func (s *SQLStore) RecordConsumption(ctx context.Context, rec *model.ConsumptionRecord) (int64, error) {
	if rec.ID == 0 {
		return 0, errors.New("consumption id is required")
	}
	if rec.ConsumedAt.IsZero() {
		rec.ConsumedAt = s.now().UTC()
	}
	consumedAt := toMillis(rec.ConsumedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		s.q("UPDATE users SET total_points = total_points + ?, updated_at = ? WHERE id = ? AND total_points + ? >= 0"),
		rec.Points, toMillis(s.now()), rec.UserID, rec.Points,
	)
	if err != nil {
		return 0, errors.Wrap(err, "credit points")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		ok, err := s.exists(ctx, tx, "users", rec.UserID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrUserNotFound
		}
		if rec.Points < 0 {
			return 0, ErrInsufficientPoints
		}
		// MySQL reports zero affected rows for a no-op update (zero points, same millisecond).
	}

	_, err = tx.ExecContext(ctx,
		s.q("INSERT INTO consumptions ("+consumptionColumns+", consumed_day) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		rec.ID, rec.UserID, nullString(rec.VenueID), nullString(rec.ProductID), rec.BrandName, string(rec.Category),
		rec.VolumeML, rec.Quantity, rec.Confidence, boolInt(rec.IsTargetBrand), rec.Points, rec.ImageKey,
		string(rec.Source), rec.Note, consumedAt, s.day(rec.ConsumedAt),
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert consumption")
	}

	var total int64
	if err := tx.QueryRowContext(ctx, s.q("SELECT total_points FROM users WHERE id = ?"), rec.UserID).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "read total points")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit consumption")
	}
	return total, nil
}

func scanConsumption(row interface{ Scan(...interface{}) error }) (*model.ConsumptionRecord, error) {
	var (
		r                  model.ConsumptionRecord
		venueID, productID sql.NullString
		category, source   string
		consumedAt         int64
	)
	err := row.Scan(&r.ID, &r.UserID, &venueID, &productID, &r.BrandName, &category, &r.VolumeML, &r.Quantity,
		&r.Confidence, &r.IsTargetBrand, &r.Points, &r.ImageKey, &source, &r.Note, &consumedAt)
	if err != nil {
		return nil, err
	}
	r.VenueID = venueID.String
	r.ProductID = productID.String
	r.Category = model.ParseCategory(category)
	r.Source = model.Source(source)
	r.ConsumedAt = fromMillis(consumedAt)
	return &r, nil
}

// ListConsumptions returns the user's history, newest first.
func (s *SQLStore) ListConsumptions(ctx context.Context, userID string, page Page) ([]model.ConsumptionRecord, int64, error) {
	page = page.Normalize()

	var total int64
	if err := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM consumptions WHERE user_id = ?"), userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count consumptions")
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+consumptionColumns+" FROM consumptions WHERE user_id = ? ORDER BY consumed_at DESC, id DESC LIMIT ? OFFSET ?"),
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list consumptions")
	}
	defer rows.Close()

	records := make([]model.ConsumptionRecord, 0, page.Limit)
	for rows.Next() {
		r, err := scanConsumption(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan consumption")
		}
		records = append(records, *r)
	}
	return records, total, errors.Wrap(rows.Err(), "list consumptions")
}
