package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const upsertSiteSQL = `
INSERT OR REPLACE INTO sites (
    brrts_number, detail_seq_no, site_id,
    activity_name, activity_type, act_code, status,
    county, county_code, address, municipality, zip_code,
    region, fid_number, location_name,
    start_date, end_date, last_action, activity_comment,
    latitude, longitude, source_url,
    pecfa_flag, drycleaner_flag, co_contamination_flag,
    npl_flag, derf_flag, pfas_flag, sediments_flag, petrol_ust_flag
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// UpsertSites writes one batch of site rows inside a single transaction.
// Replacing an existing row resets its ledger state, which is what a
// destructive re-import wants.
func (s *Store) UpsertSites(ctx context.Context, sites []Site) error {
	if len(sites) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin site batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSiteSQL)
	if err != nil {
		return fmt.Errorf("prepare site upsert: %w", err)
	}
	defer stmt.Close()

	for _, site := range sites {
		_, err := stmt.ExecContext(ctx,
			site.BRRTSNumber, site.DetailSeqNo, site.SiteID,
			site.ActivityName, site.ActivityType, site.ActCode, site.Status,
			site.County, site.CountyCode, site.Address, site.Municipality, site.ZipCode,
			site.Region, site.FIDNumber, site.LocationName,
			site.StartDate, site.EndDate, site.LastAction, site.ActivityComment,
			site.Latitude, site.Longitude, site.SourceURL,
			site.Flags.PECFA, site.Flags.Drycleaner, site.Flags.CoContamination,
			site.Flags.NPL, site.Flags.DERF, site.Flags.PFAS,
			site.Flags.Sediments, site.Flags.PetrolUST,
		)
		if err != nil {
			return fmt.Errorf("upsert site %s: %w", site.BRRTSNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit site batch: %w", err)
	}
	return nil
}

// InsertActions appends one batch of action rows. Duplicates are allowed;
// the importer always rebuilds from scratch.
func (s *Store) InsertActions(ctx context.Context, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin action batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO actions (brrts_number, detail_seq_no, action_date,
		                     action_code, action_name, action_desc, action_comment)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare action insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range actions {
		if _, err := stmt.ExecContext(ctx,
			a.BRRTSNumber, a.DetailSeqNo, a.ActionDate,
			a.ActionCode, a.ActionName, a.ActionDesc, a.ActionComment,
		); err != nil {
			return fmt.Errorf("insert action for %s: %w", a.BRRTSNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit action batch: %w", err)
	}
	return nil
}

// InsertSubstances appends one batch of substance rows.
func (s *Store) InsertSubstances(ctx context.Context, substances []Substance) error {
	if len(substances) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin substance batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO substances (brrts_number, detail_seq_no, substance_name,
		                        released_amount, released_unit)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare substance insert: %w", err)
	}
	defer stmt.Close()

	for _, sub := range substances {
		if _, err := stmt.ExecContext(ctx,
			sub.BRRTSNumber, sub.DetailSeqNo, sub.SubstanceName,
			sub.ReleasedAmount, sub.ReleasedUnit,
		); err != nil {
			return fmt.Errorf("insert substance for %s: %w", sub.BRRTSNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit substance batch: %w", err)
	}
	return nil
}

// ApplyRoles fills the role-derived name fields. COALESCE keeps any value
// already present, so the first-occurrence-wins rule the importer applies
// upstream is preserved across batches.
func (s *Store) ApplyRoles(ctx context.Context, roles []RoleAssignment) error {
	if len(roles) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin role batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE sites SET
		    project_manager = COALESCE(?, project_manager),
		    responsible_party = COALESCE(?, responsible_party)
		WHERE brrts_number = ?`)
	if err != nil {
		return fmt.Errorf("prepare role update: %w", err)
	}
	defer stmt.Close()

	for _, r := range roles {
		if _, err := stmt.ExecContext(ctx, r.ProjectManager, r.ResponsibleParty, r.BRRTSNumber); err != nil {
			return fmt.Errorf("apply roles for %s: %w", r.BRRTSNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit role batch: %w", err)
	}
	return nil
}

// RefreshCounts recomputes the per-site action and substance counts by
// aggregation. Counts are never maintained incrementally, so this stays
// correct under re-import.
func (s *Store) RefreshCounts(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sites SET action_count = (
		    SELECT COUNT(*) FROM actions WHERE actions.brrts_number = sites.brrts_number
		)`); err != nil {
		return fmt.Errorf("refresh action counts: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE sites SET substance_count = (
		    SELECT COUNT(*) FROM substances WHERE substances.brrts_number = sites.brrts_number
		)`); err != nil {
		return fmt.Errorf("refresh substance counts: %w", err)
	}
	return nil
}

// GetSite loads one site by its BRRTS display number.
func (s *Store) GetSite(ctx context.Context, brrtsNumber string) (Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT brrts_number, detail_seq_no, site_id,
		       activity_name, activity_type, act_code, status,
		       county, county_code, address, municipality, zip_code,
		       region, fid_number, location_name,
		       start_date, end_date, last_action, activity_comment,
		       latitude, longitude, source_url,
		       project_manager, responsible_party,
		       action_count, substance_count, document_count,
		       pecfa_flag, drycleaner_flag, co_contamination_flag,
		       npl_flag, derf_flag, pfas_flag, sediments_flag, petrol_ust_flag
		FROM sites WHERE brrts_number = ?`, brrtsNumber)

	var site Site
	err := row.Scan(
		&site.BRRTSNumber, &site.DetailSeqNo, &site.SiteID,
		&site.ActivityName, &site.ActivityType, &site.ActCode, &site.Status,
		&site.County, &site.CountyCode, &site.Address, &site.Municipality, &site.ZipCode,
		&site.Region, &site.FIDNumber, &site.LocationName,
		&site.StartDate, &site.EndDate, &site.LastAction, &site.ActivityComment,
		&site.Latitude, &site.Longitude, &site.SourceURL,
		&site.ProjectManager, &site.ResponsibleParty,
		&site.ActionCount, &site.SubstanceCount, &site.DocumentCount,
		&site.Flags.PECFA, &site.Flags.Drycleaner, &site.Flags.CoContamination,
		&site.Flags.NPL, &site.Flags.DERF, &site.Flags.PFAS,
		&site.Flags.Sediments, &site.Flags.PetrolUST,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Site{}, ErrNotFound
	}
	if err != nil {
		return Site{}, fmt.Errorf("get site %s: %w", brrtsNumber, err)
	}
	return site, nil
}

// SiteActions returns a site's actions, newest first.
func (s *Store) SiteActions(ctx context.Context, brrtsNumber string) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brrts_number, detail_seq_no, action_date,
		       action_code, action_name, action_desc, action_comment
		FROM actions WHERE brrts_number = ?
		ORDER BY action_date DESC, id DESC`, brrtsNumber)
	if err != nil {
		return nil, fmt.Errorf("list actions for %s: %w", brrtsNumber, err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(&a.ID, &a.BRRTSNumber, &a.DetailSeqNo, &a.ActionDate,
			&a.ActionCode, &a.ActionName, &a.ActionDesc, &a.ActionComment); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// SiteSubstances returns a site's substances ordered by name.
func (s *Store) SiteSubstances(ctx context.Context, brrtsNumber string) ([]Substance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brrts_number, detail_seq_no, substance_name, released_amount, released_unit
		FROM substances WHERE brrts_number = ?
		ORDER BY substance_name`, brrtsNumber)
	if err != nil {
		return nil, fmt.Errorf("list substances for %s: %w", brrtsNumber, err)
	}
	defer rows.Close()

	var substances []Substance
	for rows.Next() {
		var sub Substance
		if err := rows.Scan(&sub.ID, &sub.BRRTSNumber, &sub.DetailSeqNo,
			&sub.SubstanceName, &sub.ReleasedAmount, &sub.ReleasedUnit); err != nil {
			return nil, fmt.Errorf("scan substance row: %w", err)
		}
		substances = append(substances, sub)
	}
	return substances, rows.Err()
}

// SiteStats returns store-wide aggregates for dashboards.
func (s *Store) SiteStats(ctx context.Context) (Stats, error) {
	var stats Stats
	scalars := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM sites", &stats.TotalSites},
		{"SELECT COUNT(*) FROM sites WHERE status = 'OPEN'", &stats.OpenSites},
		{"SELECT COUNT(*) FROM sites WHERE status = 'CLOSED'", &stats.ClosedSites},
		{"SELECT COUNT(*) FROM sites WHERE pfas_flag = 1", &stats.PFASSites},
		{"SELECT COUNT(*) FROM actions", &stats.TotalActions},
		{"SELECT COUNT(*) FROM substances", &stats.TotalSubstances},
		{"SELECT COUNT(*) FROM documents", &stats.TotalDocuments},
	}
	for _, q := range scalars {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("site stats: %w", err)
		}
	}
	return stats, nil
}
