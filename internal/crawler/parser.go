package crawler

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jdcarver/brrts-pipeline/internal/store"
)

// Fragments shorter than this cannot contain a link and are skipped.
const minFragmentBytes = 10

var docSeqNoPattern = regexp.MustCompile(`docSeqNo=(\d+)`)

// Extensions that mark a plain link as a document worth capturing.
var documentExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".csv"}

// Document categories derived from the fragment a link appeared in.
const (
	categorySiteFile       = "Site File"
	categoryAdditionalLink = "Additional Link"
	categoryActionDocument = "Action Document"
)

// ParseDocuments scans the three detail fragments independently and merges
// the results. Canonical links are deduplicated by their document sequence
// number; a number seen in more than one fragment is kept once, first
// fragment wins. Other links that look like documents by extension become
// external documents keyed by a synthetic identifier hashed from the URL.
func ParseDocuments(result DetailResult, baseURL string) []store.Document {
	fragments := []struct {
		html     string
		category string
	}{
		{result.SiteFilesHTML, categorySiteFile},
		{result.AdditionalHTML, categoryAdditionalLink},
		{result.ActionsHTML, categoryActionDocument},
	}

	seen := make(map[int64]struct{})
	var docs []store.Document
	for _, frag := range fragments {
		if len(frag.html) < minFragmentBytes {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(frag.html))
		if err != nil {
			continue
		}
		docs = append(docs, parseCanonicalLinks(doc, baseURL, frag.category, seen)...)
		docs = append(docs, parseExternalLinks(doc, baseURL, frag.category, seen)...)
	}
	return docs
}

// parseCanonicalLinks captures download-document links. Metadata is read
// positionally from the link's enclosing table row: cell 1 is the
// description, cell 2 the filename. Cell 0 holds the download icon.
func parseCanonicalLinks(doc *goquery.Document, baseURL, category string, seen map[int64]struct{}) []store.Document {
	var docs []store.Document
	doc.Find(`a[href*="download-document"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		m := docSeqNoPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		seqNo, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		if _, dup := seen[seqNo]; dup {
			return
		}
		seen[seqNo] = struct{}{}

		docURL, ok := absoluteURL(baseURL, href)
		if !ok {
			docURL = baseURL + "/rrbotw/" + href
		}

		d := store.Document{
			DocSeqNo:         seqNo,
			DocumentURL:      docURL,
			DocumentCategory: nullable(category),
		}
		if cells := rowCells(link); cells != nil {
			d.Title = nullable(cellText(cells, 1))
			d.DocumentType = nullable(cellText(cells, 2))
			if category == categoryActionDocument {
				d.ActionName = nullable(cellText(cells, 3))
			}
		} else {
			d.Title = nullable(strings.TrimSpace(link.Text()))
		}
		docs = append(docs, d)
	})
	return docs
}

// parseExternalLinks captures any remaining link whose path resembles a
// document by file extension. The synthetic sequence number is derived
// from the URL, so the same external link is never inserted twice across
// crawl runs.
func parseExternalLinks(doc *goquery.Document, baseURL, category string, seen map[int64]struct{}) []store.Document {
	var docs []store.Document
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if href == "" || strings.Contains(href, "download-document") {
			return
		}
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript") {
			return
		}
		if !looksLikeDocument(href) {
			return
		}
		docURL, ok := absoluteURL(baseURL, href)
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}

		seqNo := syntheticSeqNo(docURL)
		if _, dup := seen[seqNo]; dup {
			return
		}
		seen[seqNo] = struct{}{}

		d := store.Document{
			DocSeqNo:         seqNo,
			Title:            nullable(title),
			DocumentType:     nullable("External Link"),
			DocumentURL:      docURL,
			DocumentCategory: nullable(category),
		}
		if cells := rowCells(link); cells != nil {
			d.DocumentDate = nullable(cellText(cells, 1))
		}
		docs = append(docs, d)
	})
	return docs
}

// syntheticSeqNo derives a stable positive identifier for links carrying
// no native document sequence number.
func syntheticSeqNo(rawURL string) int64 {
	sum := sha256.Sum256([]byte(rawURL))
	return int64(binary.BigEndian.Uint64(sum[:8]) & 0x7FFFFFFF)
}

func looksLikeDocument(href string) bool {
	lower := strings.ToLower(href)
	for _, ext := range documentExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// absoluteURL resolves a fragment href against the source system's base.
// Relative paths without a leading slash are left for the caller to decide.
func absoluteURL(baseURL, href string) (string, bool) {
	switch {
	case strings.HasPrefix(href, "/"):
		return baseURL + href, true
	case strings.HasPrefix(href, "http"):
		return href, true
	default:
		return "", false
	}
}

// rowCells walks up to the link's enclosing table row and returns its
// cells, or nil when the link is not inside a row.
func rowCells(link *goquery.Selection) *goquery.Selection {
	row := link.Closest("tr")
	if row.Length() == 0 {
		return nil
	}
	return row.Find("td")
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
