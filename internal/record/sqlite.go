package record

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// LoadSQLite reads a snapshot from a SQLite Record Store export. The
// database is opened read-only: this system never writes back to the
// Record Store.
//
// Expected tables:
//
//	series(id TEXT PRIMARY KEY, name TEXT, status TEXT)
//	releases(series_id TEXT, version TEXT, date TEXT, security INTEGER,
//	         disclosures TEXT /* JSON array */, summary TEXT)
//	disclosures(id TEXT PRIMARY KEY, severity TEXT, score TEXT,
//	            affected TEXT /* JSON array */, fixed_in TEXT /* JSON array */,
//	            published TEXT, summary TEXT)
//	meta(key TEXT PRIMARY KEY, value TEXT)  -- key "captured_at"
func LoadSQLite(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &SourceError{Code: ErrSourceNotFound, Message: "snapshot database not found", Locus: path}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &SourceError{Code: ErrSourceNotFound, Message: err.Error(), Locus: path}
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return nil, &SourceError{Code: ErrSourceNotFound, Message: err.Error(), Locus: path}
	}
	// Single reader; the snapshot is immutable, but a busy timeout keeps us
	// robust against an exporter still holding the write lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}

	snap := &Snapshot{}

	var capturedAt string
	err = db.QueryRow(`SELECT value FROM meta WHERE key = 'captured_at'`).Scan(&capturedAt)
	if err != nil {
		return nil, &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("meta captured_at: %v", err), Locus: path}
	}
	snap.CapturedAt, err = parseInstant(capturedAt)
	if err != nil || snap.CapturedAt.IsZero() {
		return nil, &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("meta captured_at %q is not a valid instant", capturedAt), Locus: path}
	}

	if err := loadSeriesRows(db, path, snap); err != nil {
		return nil, err
	}
	if err := loadDisclosureRows(db, path, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadSeriesRows(db *sql.DB, path string, snap *Snapshot) error {
	rows, err := db.Query(`SELECT id, name, status FROM series ORDER BY id`)
	if err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}
	defer rows.Close()

	var all []Series
	for rows.Next() {
		var s Series
		if err := rows.Scan(&s.ID, &s.Name, &s.Status); err != nil {
			return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
		}
		if !ValidStatuses[s.Status] {
			return &SourceError{
				Code:    ErrSourceSchema,
				Message: fmt.Sprintf("series %s: invalid status %q", s.ID, s.Status),
				Locus:   path,
			}
		}
		all = append(all, s)
	}
	if err := rows.Err(); err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}

	for i := range all {
		if err := loadReleaseRows(db, path, &all[i]); err != nil {
			return err
		}
	}
	snap.Series = all
	return nil
}

func loadReleaseRows(db *sql.DB, path string, series *Series) error {
	rows, err := db.Query(`
		SELECT version, date, security, disclosures, summary
		FROM releases WHERE series_id = ? ORDER BY date, version
	`, series.ID)
	if err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r              Release
			date, discJSON string
			summary        sql.NullString
		)
		if err := rows.Scan(&r.Version, &date, &r.Security, &discJSON, &summary); err != nil {
			return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
		}
		r.Date, err = parseInstant(date)
		if err != nil {
			return &SourceError{
				Code:    ErrSourceParse,
				Message: fmt.Sprintf("series %s release %s: date: %v", series.ID, r.Version, err),
				Locus:   path,
			}
		}
		if err := decodeJSONList(discJSON, &r.Disclosures); err != nil {
			return &SourceError{
				Code:    ErrSourceParse,
				Message: fmt.Sprintf("series %s release %s: disclosures: %v", series.ID, r.Version, err),
				Locus:   path,
			}
		}
		r.Summary = summary.String
		series.Releases = append(series.Releases, r)
	}
	return rows.Err()
}

func loadDisclosureRows(db *sql.DB, path string, snap *Snapshot) error {
	rows, err := db.Query(`
		SELECT id, severity, score, affected, fixed_in, published, summary
		FROM disclosures ORDER BY id
	`)
	if err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d                          Disclosure
			affected, fixedIn, publish string
			score, summary             sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Severity, &score, &affected, &fixedIn, &publish, &summary); err != nil {
			return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
		}
		if !ValidSeverities[d.Severity] {
			return &SourceError{
				Code:    ErrSourceSchema,
				Message: fmt.Sprintf("disclosure %s: invalid severity %q", d.ID, d.Severity),
				Locus:   path,
			}
		}
		d.Score = score.String
		d.Summary = summary.String
		if err := decodeJSONList(affected, &d.Affected); err != nil {
			return &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("disclosure %s: affected: %v", d.ID, err), Locus: path}
		}
		if err := decodeJSONList(fixedIn, &d.FixedIn); err != nil {
			return &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("disclosure %s: fixed_in: %v", d.ID, err), Locus: path}
		}
		d.Published, err = parseInstant(publish)
		if err != nil {
			return &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("disclosure %s: published: %v", d.ID, err), Locus: path}
		}
		snap.Disclosures = append(snap.Disclosures, d)
	}
	return rows.Err()
}

// decodeJSONList parses a JSON array column; empty and NULL-equivalent
// values decode to nil.
func decodeJSONList(raw string, dst *[]string) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}
