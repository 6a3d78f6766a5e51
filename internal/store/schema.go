package store

// schema is applied on every open; all statements are idempotent.
// Foreign keys are declarative only: ingestion order may transiently
// reference a site that has not been inserted yet, so referential
// integrity is enforced by the importer/crawler, not the engine.
const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS sites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    brrts_number TEXT UNIQUE NOT NULL,
    detail_seq_no INTEGER,
    site_id INTEGER,
    activity_name TEXT,
    activity_type TEXT,
    act_code TEXT,
    status TEXT,
    county TEXT,
    county_code TEXT,
    address TEXT,
    municipality TEXT,
    zip_code TEXT,
    region TEXT,
    fid_number TEXT,
    location_name TEXT,
    start_date TEXT,
    end_date TEXT,
    last_action TEXT,
    activity_comment TEXT,
    latitude REAL,
    longitude REAL,
    project_manager TEXT,
    responsible_party TEXT,
    action_count INTEGER DEFAULT 0,
    substance_count INTEGER DEFAULT 0,
    document_count INTEGER DEFAULT 0,
    source_url TEXT,
    pecfa_flag INTEGER DEFAULT 0,
    drycleaner_flag INTEGER DEFAULT 0,
    co_contamination_flag INTEGER DEFAULT 0,
    npl_flag INTEGER DEFAULT 0,
    derf_flag INTEGER DEFAULT 0,
    pfas_flag INTEGER DEFAULT 0,
    sediments_flag INTEGER DEFAULT 0,
    petrol_ust_flag INTEGER DEFAULT 0,
    docs_scraped INTEGER DEFAULT 0,
    docs_scraped_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sites_brrts ON sites(brrts_number);
CREATE INDEX IF NOT EXISTS idx_sites_dsn ON sites(detail_seq_no);
CREATE INDEX IF NOT EXISTS idx_sites_type ON sites(activity_type);
CREATE INDEX IF NOT EXISTS idx_sites_status ON sites(status);
CREATE INDEX IF NOT EXISTS idx_sites_county ON sites(county);
CREATE INDEX IF NOT EXISTS idx_sites_docs_scraped ON sites(docs_scraped);

CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    brrts_number TEXT NOT NULL,
    detail_seq_no INTEGER,
    action_date TEXT,
    action_code TEXT,
    action_name TEXT,
    action_desc TEXT,
    action_comment TEXT,
    FOREIGN KEY (brrts_number) REFERENCES sites(brrts_number)
);

CREATE INDEX IF NOT EXISTS idx_actions_brrts ON actions(brrts_number);

CREATE TABLE IF NOT EXISTS substances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    brrts_number TEXT NOT NULL,
    detail_seq_no INTEGER,
    substance_name TEXT,
    released_amount TEXT,
    released_unit TEXT,
    FOREIGN KEY (brrts_number) REFERENCES sites(brrts_number)
);

CREATE INDEX IF NOT EXISTS idx_substances_brrts ON substances(brrts_number);

CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    brrts_number TEXT NOT NULL,
    detail_seq_no INTEGER,
    doc_seq_no INTEGER UNIQUE,
    title TEXT,
    document_date TEXT,
    document_type TEXT,
    document_url TEXT,
    document_category TEXT,
    action_code TEXT,
    action_name TEXT,
    comment TEXT,
    scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (brrts_number) REFERENCES sites(brrts_number)
);

CREATE INDEX IF NOT EXISTS idx_documents_brrts ON documents(brrts_number);
CREATE INDEX IF NOT EXISTS idx_documents_doc_seq ON documents(doc_seq_no);

CREATE TABLE IF NOT EXISTS document_review_selections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL,
    brrts_number TEXT NOT NULL,
    selected_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(document_id)
);

CREATE TABLE IF NOT EXISTS site_qualification_notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    brrts_number TEXT NOT NULL,
    note_text TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`
