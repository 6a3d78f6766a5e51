// Package importer streams the bulk tab-delimited extracts into the store.
// The primary extract is read first to build the sequence-number join map;
// child extracts reference sites only through that map.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// Extract file names inside the data directory.
const (
	sitesFile      = "facility-activity.txt"
	rolesFile      = "who.txt"
	actionsFile    = "actions.txt"
	substancesFile = "substances.txt"
)

// Role descriptions recognized in the who extract.
const (
	roleProjectManager   = "DNR Project Manager"
	roleResponsibleParty = "Responsible Party"
)

// Config controls one import run.
type Config struct {
	DataDir   string
	BaseURL   string
	BatchSize int
}

// Importer performs the destructive full rebuild of the store from the
// bulk extracts. It runs single-threaded: the primary extract and its
// join map must be complete before any child extract is read.
type Importer struct {
	store  *store.Store
	cfg    Config
	logger *zap.Logger
}

// Summary reports what one run loaded.
type Summary struct {
	Sites              int
	Actions            int
	ActionsSkipped     int
	Substances         int
	SubstancesSkipped  int
	ProjectManagers    int
	ResponsibleParties int
	MalformedRows      int
	Elapsed            time.Duration
}

// New builds an Importer writing to a freshly created store.
func New(st *store.Store, cfg Config, logger *zap.Logger) *Importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: st, cfg: cfg, logger: logger}
}

// Run loads all extracts in dependency order and recomputes derived counts.
func (im *Importer) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	seqMap, err := im.importSites(ctx, &sum)
	if err != nil {
		return sum, err
	}
	im.logger.Info("sites imported", zap.Int("sites", sum.Sites))

	if err := im.importRoles(ctx, seqMap, &sum); err != nil {
		return sum, err
	}
	if err := im.importActions(ctx, seqMap, &sum); err != nil {
		return sum, err
	}
	if err := im.importSubstances(ctx, seqMap, &sum); err != nil {
		return sum, err
	}

	if err := im.store.RefreshCounts(ctx); err != nil {
		return sum, fmt.Errorf("refresh counts: %w", err)
	}

	sum.Elapsed = time.Since(start)
	im.logger.Info("import complete",
		zap.Int("sites", sum.Sites),
		zap.Int("actions", sum.Actions),
		zap.Int("actions_skipped", sum.ActionsSkipped),
		zap.Int("substances", sum.Substances),
		zap.Int("substances_skipped", sum.SubstancesSkipped),
		zap.Int("project_managers", sum.ProjectManagers),
		zap.Int("responsible_parties", sum.ResponsibleParties),
		zap.Int("malformed_rows", sum.MalformedRows),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// importSites streams the primary extract, upserting sites in batches while
// building the sequence-number to display-number join map in one pass.
func (im *Importer) importSites(ctx context.Context, sum *Summary) (map[string]string, error) {
	f, r, err := im.openExtract(sitesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seqMap := make(map[string]string)
	batch := make([]store.Site, 0, im.cfg.BatchSize)

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", sitesFile, err)
		}

		brrts := clean(row.Get("activity_display_number"))
		if !brrts.Valid {
			continue
		}

		site := im.buildSite(brrts.String, row, sum)
		// Child extracts carry the sequence number verbatim, so the map is
		// keyed by the raw trimmed string rather than the parsed integer.
		if dsnRaw := trimmed(row.Get("detail_seq_no")); dsnRaw != "" && site.DetailSeqNo.Valid {
			seqMap[dsnRaw] = brrts.String
		}
		batch = append(batch, site)
		sum.Sites++

		if len(batch) >= im.cfg.BatchSize {
			if err := im.store.UpsertSites(ctx, batch); err != nil {
				return nil, fmt.Errorf("upsert site batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := im.store.UpsertSites(ctx, batch); err != nil {
		return nil, fmt.Errorf("upsert site batch: %w", err)
	}
	return seqMap, nil
}

func (im *Importer) buildSite(brrts string, row tsvRow, sum *Summary) store.Site {
	dsn, ok := nullInt(row.Get("detail_seq_no"))
	if !ok {
		sum.MalformedRows++
		im.logger.Warn("unparseable sequence number",
			zap.String("brrts", brrts), zap.Int("line", row.Line()))
	}
	siteID, ok := nullInt(row.Get("site_id"))
	if !ok {
		sum.MalformedRows++
	}
	lat, ok := nullFloat(row.Get("ll_lat_dd_amt"))
	if !ok {
		sum.MalformedRows++
	}
	long, ok := nullFloat(row.Get("ll_long_dd_amt"))
	if !ok {
		sum.MalformedRows++
	}

	var sourceURL sql.NullString
	if dsn.Valid {
		sourceURL = sql.NullString{
			String: fmt.Sprintf("%s/rrbotw/botw-activity-detail?dsn=%d", im.cfg.BaseURL, dsn.Int64),
			Valid:  true,
		}
	}

	return store.Site{
		BRRTSNumber:     brrts,
		DetailSeqNo:     dsn,
		SiteID:          siteID,
		ActivityName:    clean(row.Get("activity_name")),
		ActivityType:    clean(row.Get("activity_type")),
		ActCode:         clean(row.Get("act_code")),
		Status:          clean(row.Get("status")),
		County:          clean(row.Get("county_name")),
		CountyCode:      clean(row.Get("county")),
		Address:         clean(row.Get("address")),
		Municipality:    clean(row.Get("muni")),
		ZipCode:         clean(row.Get("zip")),
		Region:          clean(row.Get("region")),
		FIDNumber:       clean(row.Get("fid")),
		LocationName:    clean(row.Get("location_name")),
		StartDate:       clean(row.Get("start_date")),
		EndDate:         clean(row.Get("end_date")),
		LastAction:      clean(row.Get("last_action")),
		ActivityComment: clean(row.Get("activity_comment")),
		Latitude:        lat,
		Longitude:       long,
		SourceURL:       sourceURL,
		Flags: store.SiteFlags{
			PECFA:           flagValue(row.Get("pecfa_eligible_flag")),
			Drycleaner:      flagValue(row.Get("drycleaner_flag")),
			CoContamination: flagValue(row.Get("co_contamination_flag")),
			NPL:             flagValue(row.Get("npl_flag")),
			DERF:            flagValue(row.Get("derf_flag")),
			PFAS:            flagValue(row.Get("pfas_flag")),
			Sediments:       flagValue(row.Get("sediments_flag")),
			PetrolUST:       flagValue(row.Get("petrol_ust_flag")),
		},
	}
}

// importRoles extracts manager and responsible-party names. Only the first
// occurrence of each (site, role) pair wins; later duplicates are ignored.
func (im *Importer) importRoles(ctx context.Context, seqMap map[string]string, sum *Summary) error {
	f, r, err := im.openExtract(rolesFile)
	if err != nil {
		return err
	}
	defer f.Close()

	pm := make(map[string]string)
	rp := make(map[string]string)

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", rolesFile, err)
		}

		brrts, ok := seqMap[trimmed(row.Get("detail_seq_no"))]
		if !ok {
			continue
		}
		name := clean(row.Get("full_name"))
		if !name.Valid {
			continue
		}

		switch trimmed(row.Get("role_desc")) {
		case roleProjectManager:
			if _, seen := pm[brrts]; !seen {
				pm[brrts] = name.String
			}
		case roleResponsibleParty:
			if _, seen := rp[brrts]; !seen {
				rp[brrts] = name.String
			}
		}
	}

	assignments := mergeRoles(pm, rp)
	for start := 0; start < len(assignments); start += im.cfg.BatchSize {
		end := min(start+im.cfg.BatchSize, len(assignments))
		if err := im.store.ApplyRoles(ctx, assignments[start:end]); err != nil {
			return fmt.Errorf("apply role batch: %w", err)
		}
	}
	sum.ProjectManagers = len(pm)
	sum.ResponsibleParties = len(rp)
	im.logger.Info("roles imported",
		zap.Int("project_managers", len(pm)),
		zap.Int("responsible_parties", len(rp)))
	return nil
}

func mergeRoles(pm, rp map[string]string) []store.RoleAssignment {
	keys := make(map[string]struct{}, len(pm)+len(rp))
	for b := range pm {
		keys[b] = struct{}{}
	}
	for b := range rp {
		keys[b] = struct{}{}
	}
	assignments := make([]store.RoleAssignment, 0, len(keys))
	for b := range keys {
		assignments = append(assignments, store.RoleAssignment{
			BRRTSNumber:      b,
			ProjectManager:   clean(pm[b]),
			ResponsibleParty: clean(rp[b]),
		})
	}
	return assignments
}

// importActions streams the actions extract, resolving each row through the
// join map. Rows referencing unknown sequence numbers are counted and
// skipped; child extracts may cover records outside the primary extract.
func (im *Importer) importActions(ctx context.Context, seqMap map[string]string, sum *Summary) error {
	f, r, err := im.openExtract(actionsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	batch := make([]store.Action, 0, im.cfg.BatchSize)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", actionsFile, err)
		}

		dsnRaw := trimmed(row.Get("detail_seq_no"))
		brrts, ok := seqMap[dsnRaw]
		if !ok {
			sum.ActionsSkipped++
			continue
		}
		dsn, _ := nullInt(dsnRaw)

		batch = append(batch, store.Action{
			BRRTSNumber:   brrts,
			DetailSeqNo:   dsn,
			ActionDate:    clean(row.Get("action_date")),
			ActionCode:    clean(row.Get("action_code")),
			ActionName:    clean(row.Get("action_name")),
			ActionDesc:    clean(row.Get("action_desc")),
			ActionComment: clean(row.Get("action_comment")),
		})
		sum.Actions++

		if len(batch) >= im.cfg.BatchSize {
			if err := im.store.InsertActions(ctx, batch); err != nil {
				return fmt.Errorf("insert action batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := im.store.InsertActions(ctx, batch); err != nil {
		return fmt.Errorf("insert action batch: %w", err)
	}
	im.logger.Info("actions imported",
		zap.Int("actions", sum.Actions), zap.Int("skipped", sum.ActionsSkipped))
	return nil
}

// importSubstances streams the substances extract through the join map.
func (im *Importer) importSubstances(ctx context.Context, seqMap map[string]string, sum *Summary) error {
	f, r, err := im.openExtract(substancesFile)
	if err != nil {
		return err
	}
	defer f.Close()

	batch := make([]store.Substance, 0, im.cfg.BatchSize)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", substancesFile, err)
		}

		dsnRaw := trimmed(row.Get("detail_seq_no"))
		brrts, ok := seqMap[dsnRaw]
		if !ok {
			sum.SubstancesSkipped++
			continue
		}
		dsn, _ := nullInt(dsnRaw)

		batch = append(batch, store.Substance{
			BRRTSNumber:    brrts,
			DetailSeqNo:    dsn,
			SubstanceName:  clean(row.Get("substance_desc")),
			ReleasedAmount: clean(row.Get("spill_released_amt")),
			ReleasedUnit:   clean(row.Get("spill_released_unit_code")),
		})
		sum.Substances++

		if len(batch) >= im.cfg.BatchSize {
			if err := im.store.InsertSubstances(ctx, batch); err != nil {
				return fmt.Errorf("insert substance batch: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := im.store.InsertSubstances(ctx, batch); err != nil {
		return fmt.Errorf("insert substance batch: %w", err)
	}
	im.logger.Info("substances imported",
		zap.Int("substances", sum.Substances), zap.Int("skipped", sum.SubstancesSkipped))
	return nil
}

// openExtract opens one extract file. An unreadable extract is fatal for
// the whole run, unlike per-row parse problems.
func (im *Importer) openExtract(name string) (*os.File, *tsvReader, error) {
	path := filepath.Join(im.cfg.DataDir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open extract %s: %w", path, err)
	}
	r, err := newTSVReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("parse extract %s: %w", path, err)
	}
	return f, r, nil
}

func trimmed(s string) string {
	if ns := clean(s); ns.Valid {
		return ns.String
	}
	return ""
}
