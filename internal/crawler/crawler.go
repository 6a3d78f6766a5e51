package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// Ledger is the slice of the store the crawler drives: work selection,
// status transitions, and document persistence. Each transition commits
// immediately after the record's documents commit, so an interrupted run
// is durable up to the last fully processed site.
type Ledger interface {
	ClaimPending(ctx context.Context, limit int) ([]store.PendingSite, error)
	ClaimFailed(ctx context.Context, limit int) ([]store.PendingSite, error)
	ResetFailedSites(ctx context.Context, brrtsNumbers []string) (int64, error)
	MarkDone(ctx context.Context, brrtsNumber string) error
	MarkFailed(ctx context.Context, brrtsNumber string) error
	InsertDocuments(ctx context.Context, brrtsNumber string, detailSeqNo int64, docs []store.Document) error
}

// Config holds the crawl loop settings.
type Config struct {
	BaseURL          string
	RequestDelay     time.Duration
	ProgressInterval int
}

// Effective claim size when the operator does not cap the run.
const unboundedClaim = 1 << 30

// Crawler runs the sequential fetch-parse-persist loop over claimed sites.
// One fetch is in flight at a time; the shared proxy's implicit rate limit
// is respected with a fixed delay between sites that is never shortened
// on failure.
type Crawler struct {
	fetcher Fetcher
	ledger  Ledger
	retry   *LinearRetryPolicy
	sleeper Sleeper
	cfg     Config
	logger  *zap.Logger
}

// Stats summarizes one crawl run.
type Stats struct {
	Processed int
	WithDocs  int
	Empty     int
	Failed    int
	Documents int
	Elapsed   time.Duration
}

// New builds a Crawler with a fresh run identifier.
func New(fetcher Fetcher, ledger Ledger, retry *LinearRetryPolicy, sleeper Sleeper, cfg Config, logger *zap.Logger) *Crawler {
	if retry == nil {
		retry = NewLinearRetryPolicy(0, 0)
	}
	if sleeper == nil {
		sleeper = NewTimerSleeper()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		ledger:  ledger,
		retry:   retry,
		sleeper: sleeper,
		cfg:     cfg,
		logger:  logger.With(zap.String("run_id", uuid.NewString())),
	}
}

// Run crawls pending sites, optionally capped at limit (0 = all).
func (c *Crawler) Run(ctx context.Context, limit int) (Stats, error) {
	sites, err := c.ledger.ClaimPending(ctx, claimLimit(limit))
	if err != nil {
		return Stats{}, err
	}
	return c.process(ctx, sites, "crawl")
}

// RetryFailed reruns previously failed sites. Only the claimed set is reset
// to pending: failed sites beyond the limit keep their marker for the next
// retry pass.
func (c *Crawler) RetryFailed(ctx context.Context, limit int) (Stats, error) {
	sites, err := c.ledger.ClaimFailed(ctx, claimLimit(limit))
	if err != nil {
		return Stats{}, err
	}
	names := make([]string, len(sites))
	for i, site := range sites {
		names[i] = site.BRRTSNumber
	}
	reset, err := c.ledger.ResetFailedSites(ctx, names)
	if err != nil {
		return Stats{}, err
	}
	c.logger.Info("failed sites reset to pending", zap.Int64("reset", reset))
	return c.process(ctx, sites, "retry")
}

func (c *Crawler) process(ctx context.Context, sites []store.PendingSite, label string) (Stats, error) {
	total := len(sites)
	if total == 0 {
		c.logger.Info("no sites to crawl", zap.String("label", label))
		return Stats{}, nil
	}
	c.logger.Info("crawl starting", zap.String("label", label), zap.Int("sites", total))

	var stats Stats
	start := time.Now()
	for i, site := range sites {
		// Cancellation between sites is always safe: the previous site's
		// documents and ledger transition are already committed.
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}

		c.processSite(ctx, site, &stats)
		stats.Processed++

		if stats.Processed%c.cfg.ProgressInterval == 0 || stats.Processed == total {
			c.logProgress(stats, total, time.Since(start))
		}
		if i < total-1 {
			c.sleeper.Pause(ctx, c.cfg.RequestDelay)
		}
	}

	stats.Elapsed = time.Since(start)
	c.logger.Info("crawl complete",
		zap.String("label", label),
		zap.Int("processed", stats.Processed),
		zap.Int("with_docs", stats.WithDocs),
		zap.Int("empty", stats.Empty),
		zap.Int("failed", stats.Failed),
		zap.Int("documents", stats.Documents),
		zap.Duration("elapsed", stats.Elapsed),
	)
	return stats, nil
}

// processSite runs the per-site state machine: pending -> done or failed.
// A failure here never aborts the loop; the record is marked and the loop
// advances.
func (c *Crawler) processSite(ctx context.Context, site store.PendingSite, stats *Stats) {
	result, err := c.fetchWithRetry(ctx, site.DetailSeqNo)

	switch {
	case err != nil:
		// Transport failure with retries exhausted.
		c.logger.Warn("site fetch failed",
			zap.String("brrts", site.BRRTSNumber),
			zap.Int64("dsn", site.DetailSeqNo),
			zap.Error(err))
		c.markFailed(ctx, site)
		stats.Failed++

	case result.Success:
		docs := ParseDocuments(result, c.cfg.BaseURL)
		if len(docs) > 0 {
			if err := c.ledger.InsertDocuments(ctx, site.BRRTSNumber, site.DetailSeqNo, docs); err != nil {
				c.logger.Error("persist documents failed",
					zap.String("brrts", site.BRRTSNumber), zap.Error(err))
				c.markFailed(ctx, site)
				stats.Failed++
				return
			}
			TotalDocuments.Add(float64(len(docs)))
			stats.Documents += len(docs)
			stats.WithDocs++
		} else {
			// Zero documents from successful content is a valid outcome.
			stats.Empty++
		}
		c.markDone(ctx, site)

	case result.Status >= 400 && result.Status < 500:
		// Upstream says there is nothing there for this site. Terminal,
		// but not a failure.
		c.logger.Debug("no detail content",
			zap.String("brrts", site.BRRTSNumber),
			zap.Int("status", result.Status))
		c.markDone(ctx, site)
		stats.Empty++

	default:
		// 5xx and anything else unexpected may be transient upstream
		// trouble; leave the site reachable for a retry pass.
		c.logger.Warn("unexpected proxy response",
			zap.String("brrts", site.BRRTSNumber),
			zap.Int("status", result.Status),
			zap.String("error", result.Error))
		c.markFailed(ctx, site)
		stats.Failed++
	}
}

// fetchWithRetry applies the retry policy around the proxy fetch. Delays
// grow linearly per attempt; exhaustion surfaces the last error to the
// caller.
func (c *Crawler) fetchWithRetry(ctx context.Context, detailSeqNo int64) (DetailResult, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts(); attempt++ {
		TotalFetches.Inc()
		result, err := c.fetcher.FetchDetail(ctx, detailSeqNo)
		if err == nil {
			return result, nil
		}
		TotalFetchErrors.Inc()
		lastErr = err

		if !c.retry.ShouldRetry(err, attempt) {
			break
		}
		TotalRetries.Inc()
		c.logger.Debug("retrying fetch",
			zap.Int64("dsn", detailSeqNo),
			zap.Int("attempt", attempt),
			zap.Error(err))
		c.sleeper.Pause(ctx, c.retry.Backoff(attempt))
	}
	return DetailResult{}, lastErr
}

func (c *Crawler) markDone(ctx context.Context, site store.PendingSite) {
	if err := c.ledger.MarkDone(ctx, site.BRRTSNumber); err != nil {
		c.logger.Error("mark done failed", zap.String("brrts", site.BRRTSNumber), zap.Error(err))
	}
}

func (c *Crawler) markFailed(ctx context.Context, site store.PendingSite) {
	if err := c.ledger.MarkFailed(ctx, site.BRRTSNumber); err != nil {
		c.logger.Error("mark failed failed", zap.String("brrts", site.BRRTSNumber), zap.Error(err))
	}
}

// logProgress reports throughput and a linear ETA from aggregate elapsed
// time.
func (c *Crawler) logProgress(stats Stats, total int, elapsed time.Duration) {
	rate := 0.0
	if elapsed > 0 {
		rate = float64(stats.Processed) / elapsed.Seconds()
	}
	var eta time.Duration
	if rate > 0 {
		eta = time.Duration(float64(total-stats.Processed)/rate) * time.Second
	}
	c.logger.Info("crawl progress",
		zap.Int("done", stats.Processed),
		zap.Int("total", total),
		zap.Int("with_docs", stats.WithDocs),
		zap.Int("empty", stats.Empty),
		zap.Int("failed", stats.Failed),
		zap.Int("documents", stats.Documents),
		zap.Float64("per_second", rate),
		zap.Duration("eta", eta),
	)
}

func claimLimit(limit int) int {
	if limit <= 0 {
		return unboundedClaim
	}
	return limit
}
