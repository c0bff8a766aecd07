package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"drinkpoint-api/internal/model"
	"drinkpoint-api/pkg/uid"
)

const (
	venueColumns   = "id, name, address, latitude, longitude, active, created_at"
	productColumns = "id, brand_name, display_name, category, volume_ml, is_target_brand, active, created_at"
)

func scanVenue(row interface{ Scan(...interface{}) error }) (*model.Venue, error) {
	var (
		v         model.Venue
		createdAt int64
	)
	if err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Latitude, &v.Longitude, &v.Active, &createdAt); err != nil {
		return nil, err
	}
	v.CreatedAt = fromMillis(createdAt)
	return &v, nil
}

func scanProduct(row interface{ Scan(...interface{}) error }) (*model.Product, error) {
	var (
		p         model.Product
		category  string
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.BrandName, &p.DisplayName, &category, &p.VolumeML, &p.IsTargetBrand, &p.Active, &createdAt); err != nil {
		return nil, err
	}
	p.Category = model.ParseCategory(category)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// ListVenues orders venues by name.
func (s *SQLStore) ListVenues(ctx context.Context, activeOnly bool) ([]model.Venue, error) {
	query := "SELECT " + venueColumns + " FROM venues"
	if activeOnly {
		query += " WHERE active = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY name ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list venues")
	}
	defer rows.Close()

	venues := []model.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan venue")
		}
		venues = append(venues, *v)
	}
	return venues, errors.Wrap(rows.Err(), "list venues")
}

func (s *SQLStore) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	v, err := scanVenue(s.db.QueryRowContext(ctx, s.q("SELECT "+venueColumns+" FROM venues WHERE id = ?"), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get venue")
	}
	return v, nil
}

// CreateVenue assigns an id and creation time when they are unset.
func (s *SQLStore) CreateVenue(ctx context.Context, v *model.Venue) error {
	if v.ID == "" {
		v.ID = uid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO venues ("+venueColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		v.ID, v.Name, v.Address, v.Latitude, v.Longitude, boolInt(v.Active), toMillis(v.CreatedAt),
	)
	return errors.Wrap(err, "create venue")
}

func (s *SQLStore) UpdateVenue(ctx context.Context, v *model.Venue) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE venues SET name = ?, address = ?, latitude = ?, longitude = ?, active = ? WHERE id = ?"),
		v.Name, v.Address, v.Latitude, v.Longitude, boolInt(v.Active), v.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update venue")
	}
	return s.checkUpdated(ctx, res, "venues", v.ID)
}

func (s *SQLStore) DeleteVenue(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "venues", id)
}

// ListProducts orders products by brand and display name.
func (s *SQLStore) ListProducts(ctx context.Context, activeOnly bool) ([]model.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE active = 1"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY brand_name ASC, display_name ASC")
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, *p)
	}
	return products, errors.Wrap(rows.Err(), "list products")
}

func (s *SQLStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, s.q("SELECT "+productColumns+" FROM products WHERE id = ?"), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

func (s *SQLStore) MatchProduct(ctx context.Context, brand string, category model.Category, volumeML int) (*model.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE active = 1 AND LOWER(brand_name) = LOWER(?)"
	args := []interface{}{strings.TrimSpace(brand)}
	if category != "" {
		query += " AND category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY CASE WHEN volume_ml = ? THEN 0 ELSE 1 END, created_at ASC, id ASC LIMIT 1"
	args = append(args, volumeML)

	p, err := scanProduct(s.db.QueryRowContext(ctx, s.q(query), args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "match product")
	}
	return p, nil
}

func (s *SQLStore) CreateProduct(ctx context.Context, p *model.Product) error {
	if p.ID == "" {
		p.ID = uid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		p.ID, p.BrandName, p.DisplayName, string(p.Category), p.VolumeML, boolInt(p.IsTargetBrand), boolInt(p.Active), toMillis(p.CreatedAt),
	)
	return errors.Wrap(err, "create product")
}

func (s *SQLStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE products SET brand_name = ?, display_name = ?, category = ?, volume_ml = ?, is_target_brand = ?, active = ? WHERE id = ?"),
		p.BrandName, p.DisplayName, string(p.Category), p.VolumeML, boolInt(p.IsTargetBrand), boolInt(p.Active), p.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	return s.checkUpdated(ctx, res, "products", p.ID)
}

func (s *SQLStore) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "products", id)
}

func (s *SQLStore) checkUpdated(ctx context.Context, res sql.Result, tableName, id string) error {
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	ok, err := s.exists(ctx, s.db, tableName, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) deleteByID(ctx context.Context, tableName, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM "+tableName+" WHERE id = ?"), id)
	if err != nil {
		return errors.Wrapf(err, "delete from %s", tableName)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
