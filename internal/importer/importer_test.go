package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

const sitesExtract = "activity_display_number\tdetail_seq_no\tactivity_name\tstatus\tstart_date\tpfas_flag\tll_lat_dd_amt\tll_long_dd_amt\n" +
	"02-30-000101\t9001\tFormer Dry Cleaner\tOPEN\t2020-03-01\tY\t43.0731\t-89.4012\n" +
	"03-41-000202\t9002\tOld Fuel Depot\tCLOSED\t2015-07-19\tN\t\t\n" +
	"04-52-000303\t\tNo Detail Page Site\tOPEN\t\t\t\t\n" +
	"\t9004\tBlank Display Number\tOPEN\t\t\t\t\n"

const rolesExtract = "detail_seq_no\trole_desc\tfull_name\n" +
	"9001\tDNR Project Manager\tAlex Hartman\n" +
	"9001\tDNR Project Manager\tLater Duplicate\n" +
	"9001\tResponsible Party\tAcme Cleaners LLC\n" +
	"9002\tResponsible Party\tDepot Holdings\n" +
	"9002\tConsultant\tIgnored Role\n" +
	"9999\tDNR Project Manager\tUnknown Site\n"

const actionsExtract = "detail_seq_no\taction_date\taction_code\taction_name\n" +
	"9001\t2020-04-01\tSSCR\tSite Screening\n" +
	"9001\t2021-09-12\tCLOS\tCase Closure Request\n" +
	"9999\t2020-01-01\tXXXX\tOrphan Action\n"

const substancesExtract = "detail_seq_no\tsubstance_desc\tspill_released_amt\tspill_released_unit_code\n" +
	"9001\tTetrachloroethylene\t\t\n" +
	"9002\tDiesel\t250\tGAL\n" +
	"9999\tOrphan Substance\t\t\n"

func writeExtracts(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		sitesFile:      sitesExtract,
		rolesFile:      rolesExtract,
		actionsFile:    actionsExtract,
		substancesFile: substancesExtract,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func runImport(t *testing.T, dataDir string) (*store.Store, Summary) {
	t.Helper()
	st, err := store.Create(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	imp := New(st, Config{
		DataDir: dataDir,
		BaseURL: "https://apps.dnr.wi.gov",
	}, nil)
	sum, err := imp.Run(context.Background())
	require.NoError(t, err)
	return st, sum
}

func TestRunLoadsAllExtracts(t *testing.T) {
	dir := t.TempDir()
	writeExtracts(t, dir)
	st, sum := runImport(t, dir)
	ctx := context.Background()

	assert.Equal(t, 3, sum.Sites)
	assert.Equal(t, 2, sum.Actions)
	assert.Equal(t, 1, sum.ActionsSkipped)
	assert.Equal(t, 2, sum.Substances)
	assert.Equal(t, 1, sum.SubstancesSkipped)
	assert.Equal(t, 1, sum.ProjectManagers)
	assert.Equal(t, 2, sum.ResponsibleParties)

	site, err := st.GetSite(ctx, "02-30-000101")
	require.NoError(t, err)
	assert.Equal(t, "Former Dry Cleaner", site.ActivityName.String)
	assert.True(t, site.Flags.PFAS)
	require.True(t, site.Latitude.Valid)
	assert.InDelta(t, 43.0731, site.Latitude.Float64, 1e-6)
	assert.Equal(t, "https://apps.dnr.wi.gov/rrbotw/botw-activity-detail?dsn=9001", site.SourceURL.String)
	assert.EqualValues(t, 2, site.ActionCount)
	assert.EqualValues(t, 1, site.SubstanceCount)

	// First occurrence of each role wins.
	assert.Equal(t, "Alex Hartman", site.ProjectManager.String)
	assert.Equal(t, "Acme Cleaners LLC", site.ResponsibleParty.String)

	closed, err := st.GetSite(ctx, "03-41-000202")
	require.NoError(t, err)
	assert.False(t, closed.Flags.PFAS)
	assert.False(t, closed.Latitude.Valid)
	assert.False(t, closed.ProjectManager.Valid)
	assert.Equal(t, "Depot Holdings", closed.ResponsibleParty.String)

	// A site without a detail sequence number still imports but carries no
	// source URL and is never crawlable.
	noDetail, err := st.GetSite(ctx, "04-52-000303")
	require.NoError(t, err)
	assert.False(t, noDetail.DetailSeqNo.Valid)
	assert.False(t, noDetail.SourceURL.Valid)

	pending, err := st.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRunIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	writeExtracts(t, dir)

	_, first := runImport(t, dir)
	_, second := runImport(t, dir)
	assert.Equal(t, first.Sites, second.Sites)
	assert.Equal(t, first.Actions, second.Actions)
	assert.Equal(t, first.Substances, second.Substances)
}

func TestRunCountsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	writeExtracts(t, dir)
	bad := "activity_display_number\tdetail_seq_no\tll_lat_dd_amt\tll_long_dd_amt\n" +
		"02-30-000101\tnot-a-number\tbogus\t-89.4\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, sitesFile), []byte(bad), 0o644))

	st, sum := runImport(t, dir)
	assert.Equal(t, 1, sum.Sites)
	assert.Equal(t, 2, sum.MalformedRows)

	site, err := st.GetSite(context.Background(), "02-30-000101")
	require.NoError(t, err)
	assert.False(t, site.DetailSeqNo.Valid)
	assert.False(t, site.Latitude.Valid)
	require.True(t, site.Longitude.Valid)
}

func TestRunMissingExtractFatal(t *testing.T) {
	dir := t.TempDir()
	writeExtracts(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, rolesFile)))

	st, err := store.Create(filepath.Join(t.TempDir(), "import.db"))
	require.NoError(t, err)
	defer st.Close()

	imp := New(st, Config{DataDir: dir}, nil)
	_, err = imp.Run(context.Background())
	require.Error(t, err)
}

func TestTSVReaderByColumnName(t *testing.T) {
	r, err := newTSVReader(strings.NewReader("b\ta\n2\t1\n3\n"))
	require.NoError(t, err)

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "1", row.Get("a"))
	assert.Equal(t, "2", row.Get("b"))
	assert.Equal(t, "", row.Get("missing"))
	assert.Equal(t, 2, row.Line())

	// Short rows return "" for the truncated columns.
	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "3", row.Get("b"))
	assert.Equal(t, "", row.Get("a"))
}
