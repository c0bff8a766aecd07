package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"drinkpoint-api/internal/classifier"
	"drinkpoint-api/internal/intake"
	"drinkpoint-api/internal/metrics"
	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
	"drinkpoint-api/internal/rules"
	"drinkpoint-api/internal/storage"
	"drinkpoint-api/pkg/apierror"
	"drinkpoint-api/pkg/uid"
)

// CaptureRequest is a photo submitted for classification.
type CaptureRequest struct {
	UserID      string
	VenueID     string
	Image       []byte
	ContentType string
}

// ManualRequest is a capture where the user picked the product from the catalog.
type ManualRequest struct {
	UserID    string `json:"-"`
	VenueID   string `json:"venue_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CaptureResult is the outcome of a capture.
type CaptureResult struct {
	Record        model.ConsumptionRecord `json:"record"`
	Observation   model.DrinkObservation  `json:"observation"`
	Award         model.PointAward        `json:"award"`
	TotalPoints   int64                   `json:"total_points"`
	ImageURL      string                  `json:"image_url,omitempty"`
	NewBadges     []BadgeView             `json:"new_badges"`
	NewCharacters []CharacterView         `json:"new_characters"`
}

// CaptureService turns photos and manual picks into scored consumption records.
type CaptureService struct {
	store      repository.Store
	classifier classifier.Classifier
	images     storage.ImageStore
	rules      *rules.Holder
	progress   *Progress
	ids        *uid.Generator
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// NewCaptureService creates a capture service.
func NewCaptureService(
	store repository.Store,
	cls classifier.Classifier,
	images storage.ImageStore,
	rules *rules.Holder,
	progress *Progress,
	ids *uid.Generator,
	m *metrics.Metrics,
	log *zap.Logger,
) *CaptureService {
	if log == nil {
		log = zap.NewNop()
	}
	if ids == nil {
		ids = uid.Default()
	}
	return &CaptureService{
		store:      store,
		classifier: cls,
		images:     images,
		rules:      rules,
		progress:   progress,
		ids:        ids,
		metrics:    m,
		log:        log.Named("capture"),
		now:        time.Now,
	}
}

// Capture uploads and classifies the photo concurrently, then scores and records it.
// An unreadable classification returns a 422 so the client can offer manual selection.
func (s *CaptureService) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if len(req.Image) == 0 {
		return nil, apierror.BadRequest("image is required")
	}
	if _, ok := storage.Extension(req.ContentType); !ok {
		return nil, apierror.BadRequest("unsupported image type " + strconv.Quote(req.ContentType))
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.checkVenue(ctx, req.VenueID); err != nil {
		return nil, err
	}

	now := s.now()
	id := s.ids.Next()
	key := storage.CaptureKey(now, id, req.ContentType)

	var (
		imageURL          string
		raw               []byte
		uploadErr, clsErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		imageURL, uploadErr = s.images.Put(gctx, key, req.ContentType, req.Image)
		return uploadErr
	})
	g.Go(func() error {
		raw, clsErr = s.classifier.Classify(gctx, classifier.ImageInput{Bytes: req.Image, ContentType: req.ContentType})
		return clsErr
	})
	if err := g.Wait(); err != nil {
		s.metrics.ObserveCapture(string(model.SourceVision), metrics.OutcomeFailed, 0)
		if clsErr != nil && !errors.Is(clsErr, context.Canceled) {
			s.log.Error("classification failed", zap.String("user_id", req.UserID), zap.Error(clsErr))
			s.discardImage(ctx, key)
			return nil, apierror.BadGateway("drink recognition is unavailable, please try again")
		}
		s.log.Error("image upload failed", zap.String("user_id", req.UserID), zap.String("key", key), zap.Error(uploadErr))
		return nil, apierror.BadGateway("image storage is unavailable, please try again")
	}

	obs, err := intake.ParseJSON(raw)
	if err != nil {
		s.metrics.ObserveCapture(string(model.SourceVision), metrics.OutcomeUnclassifiable, 0)
		s.log.Info("capture unclassifiable", zap.String("user_id", req.UserID), zap.String("key", key))
		s.discardImage(ctx, key)
		return nil, apierror.Unclassifiable("could not recognize the drink, please pick it from the list")
	}

	rec := model.ConsumptionRecord{
		ID:       id,
		UserID:   req.UserID,
		VenueID:  req.VenueID,
		ImageKey: key,
		Source:   model.SourceVision,
	}
	rec.ProductID = s.matchProduct(ctx, obs)
	res, err := s.settle(ctx, rec, obs, now)
	if err != nil {
		s.discardImage(ctx, key)
		return nil, err
	}
	res.ImageURL = imageURL
	return res, nil
}

// discardImage removes an upload that no record will reference.
func (s *CaptureService) discardImage(ctx context.Context, key string) {
	if err := s.images.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("orphaned capture image", zap.String("key", key), zap.Error(err))
	}
}

// matchProduct links a recognized drink to its catalog product so it counts as the
// same product as a manual pick. Lookup failures leave the record keyed on its brand.
func (s *CaptureService) matchProduct(ctx context.Context, obs model.DrinkObservation) string {
	if obs.BrandName == "" {
		return ""
	}
	category := obs.Category
	if category == model.CategoryOther {
		category = ""
	}
	p, err := s.store.MatchProduct(ctx, obs.BrandName, category, obs.VolumeML)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("product match failed", zap.String("brand", obs.BrandName), zap.Error(err))
		}
		return ""
	}
	return p.ID
}

// CaptureManual scores a product picked from the catalog with full confidence.
func (s *CaptureService) CaptureManual(ctx context.Context, req ManualRequest) (*CaptureResult, error) {
	if req.ProductID == "" {
		return nil, apierror.ValidationError("validation failed", apierror.FieldError{Field: "product_id", Message: "is required"})
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.checkVenue(ctx, req.VenueID); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, req.ProductID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !product.Active) {
		return nil, apierror.NotFound("product not found")
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"brandName":     product.BrandName,
		"category":      string(product.Category),
		"confidence":    1.0,
		"isTargetBrand": product.IsTargetBrand,
	}
	if product.VolumeML > 0 {
		fields["volumeMl"] = product.VolumeML
	}
	if req.Quantity > 0 {
		fields["quantity"] = req.Quantity
	}
	obs, err := intake.Normalize(fields)
	if err != nil {
		return nil, apierror.BadRequest("product has no brand or category")
	}

	now := s.now()
	rec := model.ConsumptionRecord{
		ID:        s.ids.Next(),
		UserID:    req.UserID,
		VenueID:   req.VenueID,
		ProductID: product.ID,
		Source:    model.SourceManual,
	}
	return s.settle(ctx, rec, obs, now)
}

// settle scores the observation, records it and evaluates progress. Progress
// failures are logged but do not fail the capture: the points are already
// committed and the next evaluation catches up.
func (s *CaptureService) settle(ctx context.Context, rec model.ConsumptionRecord, obs model.DrinkObservation, now time.Time) (*CaptureResult, error) {
	award := s.rules.Load().ComputeAward(obs)

	rec.BrandName = obs.BrandName
	rec.Category = obs.Category
	rec.VolumeML = obs.VolumeML
	rec.Quantity = obs.Quantity
	rec.Confidence = obs.Confidence
	rec.IsTargetBrand = obs.IsTargetBrand
	rec.Points = int64(award.FinalPoints)
	rec.ConsumedAt = now.UTC()

	total, err := s.store.RecordConsumption(ctx, &rec)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apierror.NotFound("user not found")
	}
	if err != nil {
		s.metrics.ObserveCapture(string(rec.Source), metrics.OutcomeFailed, 0)
		return nil, err
	}

	outcome := metrics.OutcomeAwarded
	if award.FinalPoints == 0 {
		outcome = metrics.OutcomeNoPoints
	}
	s.metrics.ObserveCapture(string(rec.Source), outcome, award.FinalPoints)

	res := &CaptureResult{
		Record:        rec,
		Observation:   obs,
		Award:         award,
		TotalPoints:   total,
		NewBadges:     []BadgeView{},
		NewCharacters: []CharacterView{},
	}

	progress, err := s.progress.Evaluate(ctx, rec.UserID, now)
	if err != nil {
		s.log.Error("progress evaluation failed", zap.String("user_id", rec.UserID), zap.Int64("record_id", rec.ID), zap.Error(err))
	} else {
		res.NewBadges = progress.NewBadges
		res.NewCharacters = progress.NewCharacters
	}

	s.log.Info("capture recorded",
		zap.String("user_id", rec.UserID),
		zap.Int64("record_id", rec.ID),
		zap.String("source", string(rec.Source)),
		zap.String("brand", rec.BrandName),
		zap.String("category", string(rec.Category)),
		zap.Int("points", award.FinalPoints),
		zap.Int64("total_points", total),
	)
	return res, nil
}

func (s *CaptureService) checkUser(ctx context.Context, userID string) error {
	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound("user not found")
	}
	if err != nil {
		return err
	}
	if u.Disabled {
		return apierror.Forbidden("account is disabled")
	}
	return nil
}

func (s *CaptureService) checkVenue(ctx context.Context, venueID string) error {
	if venueID == "" {
		return nil
	}
	v, err := s.store.GetVenue(ctx, venueID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !v.Active) {
		return apierror.ValidationError("validation failed", apierror.FieldError{Field: "venue_id", Message: "unknown venue"})
	}
	return err
}
