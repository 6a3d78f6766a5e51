package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertDocuments upserts one site's parsed documents and reconciles the
// site's stored document count with the true row count. Inserts are keyed
// by doc_seq_no, so re-crawling a site never duplicates documents; rows
// from earlier crawls that are not re-discovered are kept.
func (s *Store) InsertDocuments(ctx context.Context, brrtsNumber string, detailSeqNo int64, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO documents
		    (brrts_number, detail_seq_no, doc_seq_no, title,
		     document_date, document_type, document_url,
		     document_category, action_code, action_name, comment)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx,
			brrtsNumber, detailSeqNo, d.DocSeqNo, d.Title,
			d.DocumentDate, d.DocumentType, d.DocumentURL,
			d.DocumentCategory, d.ActionCode, d.ActionName, d.Comment,
		); err != nil {
			return fmt.Errorf("insert document %d for %s: %w", d.DocSeqNo, brrtsNumber, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sites SET document_count = (
		    SELECT COUNT(*) FROM documents WHERE documents.brrts_number = sites.brrts_number
		) WHERE brrts_number = ?`, brrtsNumber); err != nil {
		return fmt.Errorf("reconcile document count for %s: %w", brrtsNumber, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document insert: %w", err)
	}
	return nil
}

// SiteDocuments returns a site's documents, newest first.
func (s *Store) SiteDocuments(ctx context.Context, brrtsNumber string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_seq_no, title, document_date, document_type, document_url,
		       document_category, action_code, action_name, comment
		FROM documents WHERE brrts_number = ?
		ORDER BY document_date DESC, id DESC`, brrtsNumber)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", brrtsNumber, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.DocSeqNo, &d.Title, &d.DocumentDate, &d.DocumentType,
			&d.DocumentURL, &d.DocumentCategory, &d.ActionCode, &d.ActionName, &d.Comment); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ToggleSelection flips the review mark on one document and reports the new
// state. Selection state is independent of crawl state.
func (s *Store) ToggleSelection(ctx context.Context, documentID int64, brrtsNumber string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin selection toggle: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM document_review_selections WHERE document_id = ?", documentID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO document_review_selections (document_id, brrts_number) VALUES (?, ?)",
			documentID, brrtsNumber); err != nil {
			return false, fmt.Errorf("insert selection: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit selection toggle: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("check selection: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_review_selections WHERE document_id = ?", documentID); err != nil {
			return false, fmt.Errorf("delete selection: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit selection toggle: %w", err)
		}
		return false, nil
	}
}

// SelectionIDs returns the IDs of documents currently marked for review
// on one site.
func (s *Store) SelectionIDs(ctx context.Context, brrtsNumber string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT document_id FROM document_review_selections WHERE brrts_number = ?", brrtsNumber)
	if err != nil {
		return nil, fmt.Errorf("list selections for %s: %w", brrtsNumber, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan selection row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddNote records a qualification note for a site and returns it.
func (s *Store) AddNote(ctx context.Context, brrtsNumber, text string) (Note, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO site_qualification_notes (brrts_number, note_text) VALUES (?, ?)",
		brrtsNumber, text)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Note{}, fmt.Errorf("note id: %w", err)
	}

	var note Note
	err = s.db.QueryRowContext(ctx,
		"SELECT id, brrts_number, note_text, created_at FROM site_qualification_notes WHERE id = ?",
		id).Scan(&note.ID, &note.BRRTSNumber, &note.Text, &note.CreatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("load note: %w", err)
	}
	return note, nil
}

// SiteNotes returns a site's notes, newest first.
func (s *Store) SiteNotes(ctx context.Context, brrtsNumber string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brrts_number, note_text, created_at
		FROM site_qualification_notes
		WHERE brrts_number = ? ORDER BY created_at DESC, id DESC`, brrtsNumber)
	if err != nil {
		return nil, fmt.Errorf("list notes for %s: %w", brrtsNumber, err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.BRRTSNumber, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note row: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
