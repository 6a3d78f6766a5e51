package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedSite(t *testing.T, st *Store, brrts string, dsn int64, startDate string) {
	t.Helper()
	site := Site{BRRTSNumber: brrts}
	if dsn != 0 {
		site.DetailSeqNo = sql.NullInt64{Int64: dsn, Valid: true}
	}
	if startDate != "" {
		site.StartDate = sql.NullString{String: startDate, Valid: true}
	}
	require.NoError(t, st.UpsertSites(context.Background(), []Site{site}))
}

func TestCreateReplacesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rebuild.db")

	st, err := Create(path)
	require.NoError(t, err)
	seedSite(t, st, "02-11-000001", 100, "")
	require.NoError(t, st.Close())

	st, err = Create(path)
	require.NoError(t, err)
	defer st.Close()

	_, err = st.GetSite(context.Background(), "02-11-000001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertSiteReplacesRow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedSite(t, st, "02-11-000001", 100, "2020-01-01")
	require.NoError(t, st.UpsertSites(ctx, []Site{{
		BRRTSNumber: "02-11-000001",
		DetailSeqNo: sql.NullInt64{Int64: 200, Valid: true},
		Status:      sql.NullString{String: "CLOSED", Valid: true},
	}}))

	site, err := st.GetSite(ctx, "02-11-000001")
	require.NoError(t, err)
	require.EqualValues(t, 200, site.DetailSeqNo.Int64)
	require.Equal(t, "CLOSED", site.Status.String)
	require.False(t, site.StartDate.Valid)
}

func TestApplyRolesKeepsExistingNames(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedSite(t, st, "02-11-000001", 100, "")

	require.NoError(t, st.ApplyRoles(ctx, []RoleAssignment{{
		BRRTSNumber:    "02-11-000001",
		ProjectManager: sql.NullString{String: "First Manager", Valid: true},
	}}))
	require.NoError(t, st.ApplyRoles(ctx, []RoleAssignment{{
		BRRTSNumber:      "02-11-000001",
		ProjectManager:   sql.NullString{String: "Second Manager", Valid: true},
		ResponsibleParty: sql.NullString{String: "Some Party", Valid: true},
	}}))

	site, err := st.GetSite(ctx, "02-11-000001")
	require.NoError(t, err)
	require.Equal(t, "First Manager", site.ProjectManager.String)
	require.Equal(t, "Some Party", site.ResponsibleParty.String)
}

func TestRefreshCountsAggregates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedSite(t, st, "02-11-000001", 100, "")
	seedSite(t, st, "02-11-000002", 101, "")

	require.NoError(t, st.InsertActions(ctx, []Action{
		{BRRTSNumber: "02-11-000001"},
		{BRRTSNumber: "02-11-000001"},
	}))
	require.NoError(t, st.InsertSubstances(ctx, []Substance{
		{BRRTSNumber: "02-11-000001"},
	}))
	require.NoError(t, st.RefreshCounts(ctx))

	site, err := st.GetSite(ctx, "02-11-000001")
	require.NoError(t, err)
	require.EqualValues(t, 2, site.ActionCount)
	require.EqualValues(t, 1, site.SubstanceCount)

	other, err := st.GetSite(ctx, "02-11-000002")
	require.NoError(t, err)
	require.Zero(t, other.ActionCount)
	require.Zero(t, other.SubstanceCount)
}
