package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

type fetchOutcome struct {
	result DetailResult
	err    error
}

// fakeFetcher replays scripted outcomes per sequence number, consuming one
// outcome per call.
type fakeFetcher struct {
	script map[int64][]fetchOutcome
	calls  []int64
}

func (f *fakeFetcher) FetchDetail(_ context.Context, dsn int64) (DetailResult, error) {
	f.calls = append(f.calls, dsn)
	outcomes := f.script[dsn]
	if len(outcomes) == 0 {
		return DetailResult{}, errors.New("unscripted fetch")
	}
	next := outcomes[0]
	f.script[dsn] = outcomes[1:]
	return next.result, next.err
}

// fakeLedger is an in-memory stand-in for the store's ledger surface.
type fakeLedger struct {
	pending   []store.PendingSite
	failed    []store.PendingSite
	status    map[string]store.ScrapeStatus
	docs      map[string][]store.Document
	insertErr error
	resets    int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		status: make(map[string]store.ScrapeStatus),
		docs:   make(map[string][]store.Document),
	}
}

func (l *fakeLedger) addPending(brrts string, dsn int64) {
	l.pending = append(l.pending, store.PendingSite{BRRTSNumber: brrts, DetailSeqNo: dsn})
	l.status[brrts] = store.StatusPending
}

func (l *fakeLedger) addFailed(brrts string, dsn int64) {
	l.failed = append(l.failed, store.PendingSite{BRRTSNumber: brrts, DetailSeqNo: dsn})
	l.status[brrts] = store.StatusFailed
}

func capped(sites []store.PendingSite, limit int) []store.PendingSite {
	if limit < len(sites) {
		return sites[:limit]
	}
	return sites
}

func (l *fakeLedger) ClaimPending(_ context.Context, limit int) ([]store.PendingSite, error) {
	return capped(l.pending, limit), nil
}

func (l *fakeLedger) ClaimFailed(_ context.Context, limit int) ([]store.PendingSite, error) {
	return capped(l.failed, limit), nil
}

func (l *fakeLedger) ResetFailedSites(_ context.Context, brrtsNumbers []string) (int64, error) {
	var reset int64
	for _, brrts := range brrtsNumbers {
		if l.status[brrts] == store.StatusFailed {
			l.status[brrts] = store.StatusPending
			reset++
		}
	}
	l.resets += reset
	return reset, nil
}

func (l *fakeLedger) MarkDone(_ context.Context, brrts string) error {
	return l.transition(brrts, store.StatusDone)
}

func (l *fakeLedger) MarkFailed(_ context.Context, brrts string) error {
	return l.transition(brrts, store.StatusFailed)
}

func (l *fakeLedger) transition(brrts string, to store.ScrapeStatus) error {
	if l.status[brrts] != store.StatusPending {
		return store.ErrBadTransition
	}
	l.status[brrts] = to
	return nil
}

func (l *fakeLedger) InsertDocuments(_ context.Context, brrts string, _ int64, docs []store.Document) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	l.docs[brrts] = append(l.docs[brrts], docs...)
	return nil
}

// recordingSleeper captures requested delays without sleeping.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Pause(_ context.Context, delay time.Duration) {
	s.delays = append(s.delays, delay)
}

func newTestCrawler(fetcher Fetcher, ledger Ledger, sleeper Sleeper) *Crawler {
	return New(fetcher, ledger, NewLinearRetryPolicy(3, time.Second), sleeper, Config{
		BaseURL:          baseURL,
		RequestDelay:     100 * time.Millisecond,
		ProgressInterval: 2,
	}, nil)
}

func TestRunMixedOutcomes(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)
	ledger.addPending("02-11-000002", 2)
	ledger.addPending("02-11-000003", 3)

	transient := errors.New("connection reset")
	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: true, Status: 200, SiteFilesHTML: siteFilesFragment}}},
		2: {{result: DetailResult{Success: false, Status: 404}}},
		3: {{err: transient}, {err: transient}, {err: transient}},
	}}
	sleeper := &recordingSleeper{}

	stats, err := newTestCrawler(fetcher, ledger, sleeper).Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.WithDocs)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Documents)

	assert.Equal(t, store.StatusDone, ledger.status["02-11-000001"])
	assert.Equal(t, store.StatusDone, ledger.status["02-11-000002"])
	assert.Equal(t, store.StatusFailed, ledger.status["02-11-000003"])
	assert.Len(t, ledger.docs["02-11-000001"], 2)
	assert.Empty(t, ledger.docs["02-11-000003"])
}

func TestRunPausesBetweenSitesOnly(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)
	ledger.addPending("02-11-000002", 2)
	ledger.addPending("02-11-000003", 3)

	ok := fetchOutcome{result: DetailResult{Success: true, Status: 200}}
	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {ok}, 2: {ok}, 3: {ok},
	}}
	sleeper := &recordingSleeper{}

	stats, err := newTestCrawler(fetcher, ledger, sleeper).Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)

	// N sites take exactly N-1 inter-site delays; there is no trailing pause.
	require.Len(t, sleeper.delays, 2)
	for _, d := range sleeper.delays {
		assert.Equal(t, 100*time.Millisecond, d)
	}
}

func TestRunRetriesThenSucceeds(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {
			{err: errors.New("timeout")},
			{result: DetailResult{Success: true, Status: 200}},
		},
	}}
	sleeper := &recordingSleeper{}

	stats, err := newTestCrawler(fetcher, ledger, sleeper).Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Empty)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, store.StatusDone, ledger.status["02-11-000001"])
	assert.Len(t, fetcher.calls, 2)

	// The only recorded pause is the first backoff.
	require.Len(t, sleeper.delays, 1)
	assert.Equal(t, time.Second, sleeper.delays[0])
}

func TestRunExhaustsRetriesWithGrowingBackoff(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)

	transient := errors.New("connection reset")
	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{err: transient}, {err: transient}, {err: transient}},
	}}
	sleeper := &recordingSleeper{}

	stats, err := newTestCrawler(fetcher, ledger, sleeper).Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, store.StatusFailed, ledger.status["02-11-000001"])
	assert.Len(t, fetcher.calls, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestRunHonorsLimit(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)
	ledger.addPending("02-11-000002", 2)

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: true, Status: 200}}},
	}}

	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []int64{1}, fetcher.calls)
}

func TestRetryFailedResetsThenProcesses(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addFailed("02-11-000001", 1)

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: true, Status: 200}}},
	}}

	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).RetryFailed(context.Background(), 0)
	require.NoError(t, err)

	assert.EqualValues(t, 1, ledger.resets)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, store.StatusDone, ledger.status["02-11-000001"])
}

func TestRetryFailedWithLimitKeepsRestFailed(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addFailed("02-11-000001", 1)
	ledger.addFailed("02-11-000002", 2)

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: true, Status: 200}}},
	}}

	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).RetryFailed(context.Background(), 1)
	require.NoError(t, err)

	// Only the claimed site is reset and processed; the rest keep their
	// failure marker.
	assert.EqualValues(t, 1, ledger.resets)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, []int64{1}, fetcher.calls)
	assert.Equal(t, store.StatusDone, ledger.status["02-11-000001"])
	assert.Equal(t, store.StatusFailed, ledger.status["02-11-000002"])
}

func TestRunServerErrorMarksFailed(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)

	// An upstream 5xx may be a transient outage: the site must stay
	// reachable for a retry pass, unlike the terminal 4xx case.
	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: false, Status: 500, Error: "upstream unavailable"}}},
	}}

	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Empty)
	assert.Equal(t, store.StatusFailed, ledger.status["02-11-000001"])
}

func TestPersistErrorMarksFailed(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)
	ledger.insertErr = errors.New("disk full")

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{
		1: {{result: DetailResult{Success: true, Status: 200, SiteFilesHTML: siteFilesFragment}}},
	}}

	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Documents)
	assert.Equal(t, store.StatusFailed, ledger.status["02-11-000001"])
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ledger := newFakeLedger()
	ledger.addPending("02-11-000001", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{script: map[int64][]fetchOutcome{}}
	stats, err := newTestCrawler(fetcher, ledger, &recordingSleeper{}).Run(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Processed)
	assert.Empty(t, fetcher.calls)
	assert.Equal(t, store.StatusPending, ledger.status["02-11-000001"])
}
