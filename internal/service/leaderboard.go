package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"drinkpoint-api/internal/cache"
	"drinkpoint-api/internal/model"
	"drinkpoint-api/internal/repository"
)

const (
	leaderboardKey     = "leaderboard:weekly"
	leaderboardLockKey = "leaderboard:weekly:lock"
)

// LeaderboardConfig holds configuration for the leaderboard scheduler.
type LeaderboardConfig struct {
	// RefreshInterval is how often the weekly leaderboard is recomputed.
	// Default: 1 minute
	RefreshInterval time.Duration

	// Size is the number of entries kept.
	// Default: 50
	Size int
}

// WeeklyLeaderboard is the cached leaderboard document.
type WeeklyLeaderboard struct {
	Entries     []model.LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// LeaderboardScheduler periodically recomputes the weekly leaderboard into the cache.
// With several instances sharing Redis only one of them refreshes per interval.
type LeaderboardScheduler struct {
	repo      repository.StatsRepository
	cache     cache.Cache
	config    LeaderboardConfig
	log       *zap.Logger
	now       func() time.Time
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewLeaderboardScheduler creates a new leaderboard scheduler.
func NewLeaderboardScheduler(repo repository.StatsRepository, c cache.Cache, config LeaderboardConfig, log *zap.Logger) *LeaderboardScheduler {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = time.Minute
	}
	if config.Size <= 0 {
		config.Size = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaderboardScheduler{
		repo:   repo,
		cache:  c,
		config: config,
		log:    log.Named("leaderboard"),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start begins the refresh loop. The first refresh runs immediately.
func (s *LeaderboardScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.RefreshInterval)
	s.mu.Unlock()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.config.RefreshInterval),
		zap.Int("size", s.config.Size),
	)

	go func() {
		s.runRefresh()
		s.run()
	}()
}

func (s *LeaderboardScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runRefresh()
		case <-s.stopCh:
			s.log.Info("scheduler stopped")
			return
		}
	}
}

func (s *LeaderboardScheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ok, err := s.cache.SetNX(ctx, leaderboardLockKey, []byte("1"), s.config.RefreshInterval/2)
	if err != nil {
		s.log.Warn("refresh lock failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	board, err := s.Refresh(ctx)
	if err != nil {
		s.log.Error("refresh failed", zap.Error(err))
		return
	}
	s.log.Debug("leaderboard refreshed", zap.Int("entries", len(board.Entries)))
}

// Refresh recomputes the leaderboard and stores it in the cache.
func (s *LeaderboardScheduler) Refresh(ctx context.Context) (*WeeklyLeaderboard, error) {
	now := s.now()
	entries, err := s.repo.WeeklyLeaderboard(ctx, now, s.config.Size)
	if err != nil {
		return nil, err
	}
	board := &WeeklyLeaderboard{Entries: entries, GeneratedAt: now.UTC()}

	data, err := json.Marshal(board)
	if err != nil {
		return nil, err
	}
	// Kept for a few intervals so a stalled refresher does not empty the board.
	if err := s.cache.Set(ctx, leaderboardKey, data, 5*s.config.RefreshInterval); err != nil {
		s.log.Warn("leaderboard cache write failed", zap.Error(err))
	}
	return board, nil
}

// Get serves the cached leaderboard, computing it on a miss.
func (s *LeaderboardScheduler) Get(ctx context.Context) (*WeeklyLeaderboard, error) {
	data, err := s.cache.Get(ctx, leaderboardKey)
	if err == nil {
		var board WeeklyLeaderboard
		if jsonErr := json.Unmarshal(data, &board); jsonErr == nil {
			return &board, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Warn("leaderboard cache read failed", zap.Error(err))
	}
	return s.Refresh(ctx)
}

// Stop stops the scheduler.
func (s *LeaderboardScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
