package store

import (
	"database/sql"
)

// ScrapeStatus is the per-site document crawl ledger state.
type ScrapeStatus int

// Ledger states persisted in sites.docs_scraped. Allowed transitions are
// pending->done, pending->failed, and failed->pending; done is terminal.
const (
	StatusFailed  ScrapeStatus = -1
	StatusPending ScrapeStatus = 0
	StatusDone    ScrapeStatus = 1
)

// Site is one tracked contaminated-site case, keyed by its stable BRRTS
// display number. DetailSeqNo is the extract-local join key used during
// ingestion; it is not guaranteed stable across extract generations.
type Site struct {
	BRRTSNumber     string
	DetailSeqNo     sql.NullInt64
	SiteID          sql.NullInt64
	ActivityName    sql.NullString
	ActivityType    sql.NullString
	ActCode         sql.NullString
	Status          sql.NullString
	County          sql.NullString
	CountyCode      sql.NullString
	Address         sql.NullString
	Municipality    sql.NullString
	ZipCode         sql.NullString
	Region          sql.NullString
	FIDNumber       sql.NullString
	LocationName    sql.NullString
	StartDate       sql.NullString
	EndDate         sql.NullString
	LastAction      sql.NullString
	ActivityComment sql.NullString
	Latitude        sql.NullFloat64
	Longitude       sql.NullFloat64
	SourceURL       sql.NullString
	Flags           SiteFlags

	// Role-derived fields sourced from the who extract.
	ProjectManager   sql.NullString
	ResponsibleParty sql.NullString

	// Derived counts, recomputed by aggregation after bulk mutation.
	ActionCount    int64
	SubstanceCount int64
	DocumentCount  int64
}

// SiteFlags holds the eight independent program flags from the bulk extract.
type SiteFlags struct {
	PECFA           bool
	Drycleaner      bool
	CoContamination bool
	NPL             bool
	DERF            bool
	PFAS            bool
	Sediments       bool
	PetrolUST       bool
}

// Action is a child of Site, ordered by date then insertion order.
// Duplicates are permitted; the importer rebuilds fully rather than
// deduping incrementally.
type Action struct {
	ID            int64
	BRRTSNumber   string
	DetailSeqNo   sql.NullInt64
	ActionDate    sql.NullString
	ActionCode    sql.NullString
	ActionName    sql.NullString
	ActionDesc    sql.NullString
	ActionComment sql.NullString
}

// Substance is a child of Site.
type Substance struct {
	ID             int64
	BRRTSNumber    string
	DetailSeqNo    sql.NullInt64
	SubstanceName  sql.NullString
	ReleasedAmount sql.NullString
	ReleasedUnit   sql.NullString
}

// RoleAssignment carries the first-seen manager and responsible party
// names for one site.
type RoleAssignment struct {
	BRRTSNumber      string
	ProjectManager   sql.NullString
	ResponsibleParty sql.NullString
}

// Document is a crawled document reference. DocSeqNo is the source system's
// document sequence number, or a synthetic identifier derived from the URL
// for external links.
type Document struct {
	ID               int64
	DocSeqNo         int64
	Title            sql.NullString
	DocumentDate     sql.NullString
	DocumentType     sql.NullString
	DocumentURL      string
	DocumentCategory sql.NullString
	ActionCode       sql.NullString
	ActionName       sql.NullString
	Comment          sql.NullString
}

// PendingSite identifies one claimable unit of crawl work.
type PendingSite struct {
	BRRTSNumber string
	DetailSeqNo int64
}

// Note is an operator-entered qualification note for a site.
// CreatedAt carries the engine's CURRENT_TIMESTAMP text verbatim.
type Note struct {
	ID          int64
	BRRTSNumber string
	Text        string
	CreatedAt   string
}

// CrawlProgress aggregates ledger state for the status command.
type CrawlProgress struct {
	Total          int64
	Done           int64
	Failed         int64
	Pending        int64
	TotalDocuments int64
	SitesWithDocs  int64
}

// Percent returns the completed fraction of crawlable sites, 0-100.
func (p CrawlProgress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// AvgDocsPerSite returns documents found per completed site.
func (p CrawlProgress) AvgDocsPerSite() float64 {
	if p.Done == 0 {
		return 0
	}
	return float64(p.TotalDocuments) / float64(p.Done)
}

// Stats aggregates store-wide counts for dashboards.
type Stats struct {
	TotalSites      int64
	OpenSites       int64
	ClosedSites     int64
	PFASSites       int64
	TotalActions    int64
	TotalSubstances int64
	TotalDocuments  int64
}
