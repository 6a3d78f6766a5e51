package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ClaimPending returns up to limit sites awaiting a document crawl,
// newest start date first so likely-active cases are prioritized. Sites
// without an internal sequence number cannot be fetched and are never
// claimed.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]PendingSite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT brrts_number, detail_seq_no
		FROM sites
		WHERE docs_scraped = 0 AND detail_seq_no IS NOT NULL
		ORDER BY start_date IS NULL, start_date DESC, detail_seq_no DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending sites: %w", err)
	}
	return scanPending(rows)
}

// ClaimFailed returns up to limit sites whose last crawl attempt failed.
func (s *Store) ClaimFailed(ctx context.Context, limit int) ([]PendingSite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT brrts_number, detail_seq_no
		FROM sites
		WHERE docs_scraped = -1 AND detail_seq_no IS NOT NULL
		ORDER BY detail_seq_no
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim failed sites: %w", err)
	}
	return scanPending(rows)
}

// MarkDone transitions a pending site to done and stamps the attempt time.
// Done is terminal; marking a site that is not pending is rejected.
func (s *Store) MarkDone(ctx context.Context, brrtsNumber string) error {
	return s.transition(ctx, brrtsNumber, StatusDone)
}

// MarkFailed transitions a pending site to failed and stamps the attempt time.
func (s *Store) MarkFailed(ctx context.Context, brrtsNumber string) error {
	return s.transition(ctx, brrtsNumber, StatusFailed)
}

func (s *Store) transition(ctx context.Context, brrtsNumber string, to ScrapeStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sites SET docs_scraped = ?, docs_scraped_at = CURRENT_TIMESTAMP
		WHERE brrts_number = ? AND docs_scraped = 0`, int(to), brrtsNumber)
	if err != nil {
		return fmt.Errorf("mark site %s: %w", brrtsNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark site %s: %w", brrtsNumber, err)
	}
	if n == 0 {
		return fmt.Errorf("mark site %s: %w", brrtsNumber, ErrBadTransition)
	}
	return nil
}

// ResetFailedSites moves the named sites back to pending so a retry pass
// can reprocess them. Only sites currently failed are touched; the guard
// keeps done terminal. Returns the number of sites reset.
func (s *Store) ResetFailedSites(ctx context.Context, brrtsNumbers []string) (int64, error) {
	if len(brrtsNumbers) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin failed reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"UPDATE sites SET docs_scraped = 0 WHERE brrts_number = ? AND docs_scraped = -1")
	if err != nil {
		return 0, fmt.Errorf("prepare failed reset: %w", err)
	}
	defer stmt.Close()

	var reset int64
	for _, brrts := range brrtsNumbers {
		res, err := stmt.ExecContext(ctx, brrts)
		if err != nil {
			return 0, fmt.Errorf("reset site %s: %w", brrts, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reset site %s: %w", brrts, err)
		}
		reset += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit failed reset: %w", err)
	}
	return reset, nil
}

// Progress aggregates ledger state across all crawlable sites.
func (s *Store) Progress(ctx context.Context) (CrawlProgress, error) {
	var p CrawlProgress
	scalars := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM sites WHERE detail_seq_no IS NOT NULL", &p.Total},
		{"SELECT COUNT(*) FROM sites WHERE docs_scraped = 1", &p.Done},
		{"SELECT COUNT(*) FROM sites WHERE docs_scraped = -1", &p.Failed},
		{"SELECT COUNT(*) FROM sites WHERE docs_scraped = 0 AND detail_seq_no IS NOT NULL", &p.Pending},
		{"SELECT COUNT(*) FROM documents", &p.TotalDocuments},
		{"SELECT COUNT(DISTINCT brrts_number) FROM documents", &p.SitesWithDocs},
	}
	for _, q := range scalars {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return CrawlProgress{}, fmt.Errorf("crawl progress: %w", err)
		}
	}
	return p, nil
}

func scanPending(rows *sql.Rows) ([]PendingSite, error) {
	defer rows.Close()
	var sites []PendingSite
	for rows.Next() {
		var site PendingSite
		if err := rows.Scan(&site.BRRTSNumber, &site.DetailSeqNo); err != nil {
			return nil, fmt.Errorf("scan claimed site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
