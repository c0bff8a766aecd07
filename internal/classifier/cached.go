package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/metrics"
)

const cacheKeyPrefix = "classifier:"

// CachedClassifier remembers answers by image digest so a re-submitted photo
// does not hit the upstream model twice. Cache failures fall through to the
// wrapped classifier.
type CachedClassifier struct {
	next    Classifier
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
}

var _ Classifier = (*CachedClassifier)(nil)

// NewCachedClassifier wraps next. A non-positive ttl disables caching.
func NewCachedClassifier(next Classifier, c cache.Cache, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *CachedClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedClassifier{next: next, cache: c, ttl: ttl, metrics: m, log: log.Named("classifier_cache")}
}

// Digest is the cache key suffix for an image.
func Digest(img ImageInput) string {
	h := sha256.New()
	if len(img.Bytes) > 0 {
		h.Write(img.Bytes)
	} else {
		h.Write([]byte(img.URL))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedClassifier) Classify(ctx context.Context, img ImageInput) ([]byte, error) {
	if c.cache == nil || c.ttl <= 0 || (len(img.Bytes) == 0 && img.URL == "") {
		return c.next.Classify(ctx, img)
	}

	key := cacheKeyPrefix + Digest(img)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		c.metrics.IncClassifierCacheHit()
		return raw, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("cache read failed", zap.Error(err))
	}

	raw, err := c.next.Classify(ctx, img)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.Error(err))
	}
	return raw, nil
}
