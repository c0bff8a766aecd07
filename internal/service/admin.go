package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/uid"
)

const (
	maxAnalyticsDays = 90
	topBrandsLimit   = 10
	maxNameLength    = 64
)

// AdminService backs the operator API.
type AdminService struct {
	store    repository.Store
	progress *Progress
	ids      *uid.Generator
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

// NewAdminService creates an admin service. loc decides calendar days in analytics.
func NewAdminService(store repository.Store, progress *Progress, ids *uid.Generator, loc *time.Location, log *zap.Logger) *AdminService {
	if ids == nil {
		ids = uid.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{
		store:    store,
		progress: progress,
		ids:      ids,
		loc:      loc,
		log:      log.Named("admin"),
		now:      time.Now,
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound(what + " not found")
	}
	return err
}

// ListUsers pages users, highest points first.
func (s *AdminService) ListUsers(ctx context.Context, query string, page repository.Page) ([]model.User, int64, error) {
	return s.store.ListUsers(ctx, query, page)
}

func (s *AdminService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	return u, notFound(err, "user")
}

// UpdateUser changes display name, role or disabled state.
func (s *AdminService) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	var details []apierror.FieldError
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" || len([]rune(name)) > maxNameLength {
			details = append(details, apierror.FieldError{Field: "display_name", Message: "must be 1-64 characters"})
		}
		upd.DisplayName = &name
	}
	if upd.Role != nil && *upd.Role != model.RoleUser && *upd.Role != model.RoleAdmin {
		details = append(details, apierror.FieldError{Field: "role", Message: "must be user or admin"})
	}
	if len(details) > 0 {
		return nil, apierror.ValidationError("validation failed", details...)
	}

	u, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, notFound(err, "user")
	}
	s.log.Info("user updated", zap.String("user_id", id), zap.Any("update", upd))
	return u, nil
}

// AdjustmentResult is the outcome of a manual points adjustment.
type AdjustmentResult struct {
	Record        model.ConsumptionRecord `json:"record"`
	TotalPoints   int64                   `json:"total_points"`
	NewBadges     []BadgeView             `json:"new_badges"`
	NewCharacters []CharacterView         `json:"new_characters"`
}

// AdjustPoints credits or debits points. The change is stored as an adjustment
// record so it is audited alongside captures.
func (s *AdminService) AdjustPoints(ctx context.Context, userID string, delta int64, reason string) (*AdjustmentResult, error) {
	if delta == 0 {
		return nil, apierror.ValidationError("validation failed", apierror.FieldError{Field: "points", Message: "must not be zero"})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apierror.ValidationError("validation failed", apierror.FieldError{Field: "reason", Message: "is required"})
	}

	now := s.now()
	rec := model.ConsumptionRecord{
		ID:         s.ids.Next(),
		UserID:     userID,
		Category:   model.CategoryOther,
		Quantity:   1,
		Confidence: 1,
		Points:     delta,
		Source:     model.SourceAdjustment,
		Note:       reason,
		ConsumedAt: now.UTC(),
	}
	total, err := s.store.RecordConsumption(ctx, &rec)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return nil, apierror.NotFound("user not found")
	case errors.Is(err, repository.ErrInsufficientPoints):
		return nil, apierror.Conflict("adjustment would make the balance negative")
	case err != nil:
		return nil, err
	}

	s.log.Info("points adjusted",
		zap.String("user_id", userID),
		zap.Int64("delta", delta),
		zap.Int64("total_points", total),
		zap.String("reason", reason),
	)

	res := &AdjustmentResult{Record: rec, TotalPoints: total, NewBadges: []BadgeView{}, NewCharacters: []CharacterView{}}
	if progress, err := s.progress.Evaluate(ctx, userID, now); err != nil {
		s.log.Error("progress evaluation failed", zap.String("user_id", userID), zap.Error(err))
	} else {
		res.NewBadges = progress.NewBadges
		res.NewCharacters = progress.NewCharacters
	}
	return res, nil
}

// ListVenues lists all venues including inactive ones.
func (s *AdminService) ListVenues(ctx context.Context) ([]model.Venue, error) {
	return s.store.ListVenues(ctx, false)
}

func (s *AdminService) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	v, err := s.store.GetVenue(ctx, id)
	return v, notFound(err, "venue")
}

func validateVenue(v *model.Venue) error {
	v.Name = strings.TrimSpace(v.Name)
	var details []apierror.FieldError
	if v.Name == "" {
		details = append(details, apierror.FieldError{Field: "name", Message: "is required"})
	}
	if v.Latitude < -90 || v.Latitude > 90 {
		details = append(details, apierror.FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if v.Longitude < -180 || v.Longitude > 180 {
		details = append(details, apierror.FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	if len(details) > 0 {
		return apierror.ValidationError("validation failed", details...)
	}
	return nil
}

func (s *AdminService) CreateVenue(ctx context.Context, v *model.Venue) error {
	if err := validateVenue(v); err != nil {
		return err
	}
	v.ID = ""
	if err := s.store.CreateVenue(ctx, v); err != nil {
		return err
	}
	s.log.Info("venue created", zap.String("venue_id", v.ID), zap.String("name", v.Name))
	return nil
}

func (s *AdminService) UpdateVenue(ctx context.Context, v *model.Venue) error {
	if err := validateVenue(v); err != nil {
		return err
	}
	return notFound(s.store.UpdateVenue(ctx, v), "venue")
}

func (s *AdminService) DeleteVenue(ctx context.Context, id string) error {
	return notFound(s.store.DeleteVenue(ctx, id), "venue")
}

// ListProducts lists all products including inactive ones.
func (s *AdminService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx, false)
}

func (s *AdminService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	return p, notFound(err, "product")
}

func validateProduct(p *model.Product) error {
	p.BrandName = strings.TrimSpace(p.BrandName)
	var details []apierror.FieldError
	if p.BrandName == "" {
		details = append(details, apierror.FieldError{Field: "brand_name", Message: "is required"})
	}
	if !p.Category.Valid() {
		details = append(details, apierror.FieldError{Field: "category", Message: "unknown category"})
	}
	if p.VolumeML < 0 || p.VolumeML > 3000 {
		details = append(details, apierror.FieldError{Field: "volume_ml", Message: "must be between 0 and 3000"})
	}
	if len(details) > 0 {
		return apierror.ValidationError("validation failed", details...)
	}
	if p.DisplayName == "" {
		p.DisplayName = p.BrandName
	}
	return nil
}

func (s *AdminService) CreateProduct(ctx context.Context, p *model.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	p.ID = ""
	if err := s.store.CreateProduct(ctx, p); err != nil {
		return err
	}
	s.log.Info("product created", zap.String("product_id", p.ID), zap.String("brand", p.BrandName))
	return nil
}

func (s *AdminService) UpdateProduct(ctx context.Context, p *model.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return notFound(s.store.UpdateProduct(ctx, p), "product")
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	return notFound(s.store.DeleteProduct(ctx, id), "product")
}

// Analytics builds the dashboard for the last days calendar days, today included.
// The four aggregates run concurrently.
func (s *AdminService) Analytics(ctx context.Context, days int) (*model.Analytics, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxAnalyticsDays {
		days = maxAnalyticsDays
	}

	now := s.now().In(s.loc)
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, -(days - 1))

	var (
		totals repository.Totals
		cats   []model.CategoryCount
		daily  []model.DailyCount
		brands []model.BrandCount
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) (err error) {
		totals, err = s.store.Totals(ctx, since)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		cats, err = s.store.CategoryBreakdown(ctx, since)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		daily, err = s.store.DailyCounts(ctx, since)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		brands, err = s.store.TopBrands(ctx, since, topBrandsLimit)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, err
	}

	return &model.Analytics{
		TotalUsers:        totals.TotalUsers,
		ActiveUsers:       totals.ActiveUsers,
		TotalConsumptions: totals.TotalConsumptions,
		TotalPoints:       totals.TotalPoints,
		ByCategory:        cats,
		Daily:             fillDays(daily, since, days),
		TopBrands:         brands,
		GeneratedAt:       now.UTC(),
	}, nil
}

// fillDays returns one bucket per calendar day starting at since, with zeroes
// for days that had no records.
func fillDays(counts []model.DailyCount, since time.Time, days int) []model.DailyCount {
	byDay := make(map[string]model.DailyCount, len(counts))
	for _, c := range counts {
		byDay[c.Day] = c
	}
	out := make([]model.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		c, ok := byDay[day]
		if !ok {
			c = model.DailyCount{Day: day}
		}
		out = append(out, c)
	}
	return out
}
