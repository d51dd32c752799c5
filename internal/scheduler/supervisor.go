// Package scheduler owns the task supervisor: one goroutine per feed, each
// sleeping until its own next-check-time and then running one poll cycle,
// plus a session-sweeper goroutine. Feeds are polled on independent
// schedules rather than in lockstep, so each task carries its own timer
// and its own cancellation.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"russet/internal/domain/entity"
	"russet/internal/observability/metrics"
	"russet/internal/service/feed"
)

// Updater is the subset of feed.Service the supervisor depends on.
type Updater interface {
	GetFeeds(ctx context.Context) ([]entity.Feed, error)
	LastFeedCheck(ctx context.Context, feedID string) (feed.CheckState, error)
	Update(ctx context.Context, feedID string, last feed.CheckState) (entity.FeedCheck, error)
}

// Sweeper is the subset of auth.Service the supervisor depends on.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type Supervisor struct {
	updater         Updater
	sweeper         Sweeper
	sweepInterval   time.Duration
	retryInterval   time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	rootCtx context.Context
	cancel  context.CancelFunc
}

// New builds a Supervisor. retryInterval is the delay before a polling
// task retries a feed whose Update call itself failed (an infrastructure
// error, not a fetch-classified outcome); callers pass the same default
// interval ordinary successful checks use.
func New(updater Updater, sweeper Sweeper, sweepInterval, retryInterval time.Duration) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		updater:       updater,
		sweeper:       sweeper,
		sweepInterval: sweepInterval,
		retryInterval: retryInterval,
		cancels:       make(map[string]context.CancelFunc),
		rootCtx:       ctx,
		cancel:        cancel,
	}
}

// Start seeds one polling task per existing feed and starts the sweeper.
// Feeds added afterward must be announced via SpawnFeedTask by the caller
// (the subscribe HTTP handler does this immediately after creating a Feed
// row). A feed added by the add-feed CLI command, which runs in its own
// process, gets a polling task only when the server next starts.
func (s *Supervisor) Start(ctx context.Context) error {
	feeds, err := s.updater.GetFeeds(ctx)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		s.SpawnFeedTask(f.ID)
	}
	metrics.UpdateFeedsTotal(len(feeds))
	s.SpawnSweeper()
	return nil
}

// SpawnFeedTask starts a polling goroutine for one feed, if one isn't
// already running for it.
func (s *Supervisor) SpawnFeedTask(feedID string) {
	s.mu.Lock()
	if _, exists := s.cancels[feedID]; exists {
		s.mu.Unlock()
		return
	}
	taskCtx, cancel := context.WithCancel(s.rootCtx)
	s.cancels[feedID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runFeedTask(taskCtx, feedID)
}

// CancelFeedTask stops the polling goroutine for a feed. Nothing calls
// this on the unsubscribe path today — a subscriber-less feed stays
// polled — but the supervisor supports it so the task set can always
// mirror live state.
func (s *Supervisor) CancelFeedTask(feedID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[feedID]
	if ok {
		delete(s.cancels, feedID)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *Supervisor) runFeedTask(ctx context.Context, feedID string) {
	defer s.wg.Done()

	last, err := s.updater.LastFeedCheck(ctx, feedID)
	if err != nil {
		slog.Error("scheduler: initial check state lookup failed", slog.String("feed_id", feedID), slog.Any("error", err))
		return
	}

	for {
		if !sleepUntil(ctx, last.CheckTime()) {
			return
		}

		start := time.Now()
		check, err := s.updater.Update(ctx, feedID, last)
		if err != nil {
			metrics.RecordFeedCheckError(feedID)
			slog.Error("scheduler: feed update failed, will retry",
				slog.String("feed_id", feedID), slog.Duration("retry_in", s.retryInterval), slog.Any("error", err))
			last = feed.NoCheck(time.Now().Add(s.retryInterval))
			continue
		}
		metrics.RecordFeedCheck(feedID, check.Status.String(), time.Since(start))
		slog.Info("scheduler: feed checked",
			slog.String("feed_id", feedID),
			slog.String("status", check.Status.String()),
			slog.Time("next_check", check.NextCheckTime))
		last = feed.FromCheck(check)
	}
}

// SpawnSweeper starts the periodic expired-session cleanup task.
func (s *Supervisor) SpawnSweeper() {
	s.mu.Lock()
	if _, exists := s.cancels["__sweeper"]; exists {
		s.mu.Unlock()
		return
	}
	taskCtx, cancel := context.WithCancel(s.rootCtx)
	s.cancels["__sweeper"] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runSweeper(taskCtx)
}

func (s *Supervisor) runSweeper(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	// Runs once immediately, before the first tick.
	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Supervisor) sweepOnce(ctx context.Context) {
	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		slog.Error("scheduler: session sweep failed", slog.Any("error", err))
		return
	}
	metrics.RecordSessionsSwept(n)
	if n > 0 {
		slog.Info("scheduler: swept expired sessions", slog.Int("count", n))
	}
}

// Shutdown cancels every running task and waits for them to return, bounded
// by ctx so a wedged task can't hang the process shutdown indefinitely.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sleepUntil blocks until t or ctx cancellation, returning false if the
// context was canceled first. A t already in the past returns immediately.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
