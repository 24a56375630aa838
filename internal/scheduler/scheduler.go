// Package scheduler drives the poll → fetch → process → write cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"newsingest/internal/config"
	"newsingest/internal/digest"
	"newsingest/internal/logger"
	"newsingest/internal/models"
	"newsingest/internal/normalizer"
	"newsingest/internal/stream"
)

// State names the phase the scheduler is currently in. The cycle is
// Idle → Fetching → Processing → Writing → Sleeping → Fetching …; there is
// no terminal state in normal operation.
type State string

// Scheduler states.
const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateProcessing State = "processing"
	StateWriting    State = "writing"
	StateSleeping   State = "sleeping"
)

// digestLimit caps how many articles the per-tick digest table shows.
const digestLimit = 20

// Pages is one tick's lazy sequence of raw article pages.
type Pages interface {
	Next(ctx context.Context) ([]models.RawArticle, error)
}

// FetchFunc starts a fresh paginated fetch for a poll window.
type FetchFunc func(window models.PollWindow) Pages

// Processor turns raw articles into validated canonical articles.
type Processor interface {
	Process(raws []models.RawArticle) normalizer.Result
}

// Writer submits articles to the stream backend.
type Writer interface {
	Ping(ctx context.Context) error
	Write(ctx context.Context, articles []models.Article) *stream.WriteReport
}

// Scheduler owns the poll loop. One tick runs to completion, including all
// of its retries, before the next tick's fetch begins.
type Scheduler struct {
	fetch     FetchFunc
	processor Processor
	writer    Writer
	logger    *logger.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration)
	cfg       config.SchedulerConfig
	maxTicks  int

	mu    sync.Mutex
	state State
}

// New creates a scheduler.
func New(cfg config.SchedulerConfig, fetch FetchFunc, processor Processor, writer Writer, log *logger.Logger) *Scheduler {
	return &Scheduler{
		fetch:     fetch,
		processor: processor,
		writer:    writer,
		logger:    log,
		now:       time.Now,
		sleep:     sleepCtx,
		cfg:       cfg,
		state:     StateIdle,
	}
}

// SetMaxTicks bounds the number of ticks; zero means run forever.
func (s *Scheduler) SetMaxTicks(n int) {
	s.maxTicks = n
}

// State returns the scheduler's current phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes the poll loop until the context is cancelled or the tick
// bound is reached. The backend connectivity check runs once up front and
// is the only failure that stops the run: if nothing can ever be written,
// polling the source is pointless. Every per-tick failure is logged and
// the loop moves on to Sleeping.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.writer.Ping(ctx); err != nil {
		return fmt.Errorf("backend connectivity check failed: %w", err)
	}

	s.logger.Info("starting poll loop",
		"interval", s.cfg.PollInterval(), "lookback", s.cfg.Lookback())

	for tick := 1; ; tick++ {
		s.runTick(ctx, tick)

		if s.maxTicks > 0 && tick >= s.maxTicks {
			s.logger.Info("reached tick bound, stopping", "ticks", tick)
			s.setState(StateIdle)

			return nil
		}

		s.setState(StateSleeping)
		s.sleep(ctx, s.cfg.PollInterval())

		if ctx.Err() != nil {
			s.logger.Info("stop requested, exiting poll loop")
			s.setState(StateIdle)

			return nil
		}
	}
}

// runTick executes one full cycle. In-flight work is drained, not
// abandoned: cancellation is only checked between phases, and the write
// phase is allowed to finish collecting its outcomes.
func (s *Scheduler) runTick(ctx context.Context, tick int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", "tick", tick, "panic", r)
		}
	}()

	log := s.logger.With("tick", tick)

	s.setState(StateFetching)

	window := models.NewPollWindow(s.now(), s.cfg.Lookback())
	log.Info("fetching articles",
		"from", window.From.UTC().Format(time.RFC3339),
		"to", window.To.UTC().Format(time.RFC3339))

	raws, fetchErr := drainPages(ctx, s.fetch(window))
	if fetchErr != nil {
		// A failed fetch still yields whatever pages arrived before it.
		log.Error("fetch ended early", "error", fetchErr, "articles", len(raws))
	}

	if len(raws) == 0 {
		log.Warn("no articles fetched")
		return
	}

	if ctx.Err() != nil {
		return
	}

	s.setState(StateProcessing)

	result := s.processor.Process(raws)
	log.Info("processed articles",
		"fetched", len(raws),
		"valid", len(result.Articles),
		"skipped", result.Skipped,
		"invalid", result.Invalid)

	for reason, count := range result.Reasons {
		log.Warn("records dropped during processing", "reason", reason, "count", count)
	}

	if len(result.Articles) == 0 {
		log.Warn("no valid articles after processing")
		return
	}

	log.Info("tick digest\n" + digest.Render(result.Articles, digestLimit))

	if ctx.Err() != nil {
		return
	}

	s.setState(StateWriting)

	report := s.writer.Write(ctx, result.Articles)
	log.Info("write completed",
		"submitted", report.Submitted,
		"succeeded", report.Succeeded,
		"retried", report.Retried,
		"dropped", report.Dropped)

	for _, drop := range report.Drops {
		log.Warn("record permanently dropped",
			"article_id", drop.ArticleID,
			"code", drop.Code,
			"message", drop.Message,
			"retries", drop.Retries)
	}
}

// drainPages walks the page iterator to exhaustion, returning everything
// fetched plus the error that ended the walk, if any.
func drainPages(ctx context.Context, pages Pages) ([]models.RawArticle, error) {
	var raws []models.RawArticle

	for {
		page, err := pages.Next(ctx)
		if err != nil {
			return raws, err
		}

		if page == nil {
			return raws, nil
		}

		raws = append(raws, page...)
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
