package record

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Snapshot is one immutable Record Store capture. Every compilation cycle
// reads exactly one snapshot; CapturedAt is the compilation instant stamped
// into branch-frequency resources (never wall clock, so compilation is
// deterministic).
type Snapshot struct {
	CapturedAt  time.Time
	Series      []Series
	Disclosures []Disclosure
}

// Series is a major line of releases sharing a compatibility contract.
type Series struct {
	ID       string
	Name     string
	Status   string // "active", "maintenance", "eol"
	Releases []Release
}

// Release is one published unit within a series.
type Release struct {
	Version     string
	Date        time.Time // zero means missing in the source (fatal at compile)
	Security    bool
	Disclosures []string // disclosure IDs relevant to this release
	Summary     string
}

// Disclosure is a structured vulnerability record. Score is a decimal
// string, never a float: the canonical JSON profile forbids floats and the
// score is an opaque fact, not an arithmetic operand.
type Disclosure struct {
	ID        string
	Severity  string
	Score     string
	Affected  []string
	FixedIn   []string
	Published time.Time
	Summary   string
}

// ValidStatuses is the closed set of series statuses.
var ValidStatuses = map[string]bool{
	"active":      true,
	"maintenance": true,
	"eol":         true,
}

// ValidSeverities is the closed set of disclosure severities. The YAML path
// enforces it through the CUE schema; the SQLite path checks it directly so
// both formats reject the same vocabulary violations.
var ValidSeverities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// SemVer parses the release version. Version strings in the Record Store
// are semver with an optional "v" prefix.
func (r Release) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", r.Version, err)
	}
	return v, nil
}

// DisclosureByID returns a lookup map over the snapshot's disclosures.
func (s *Snapshot) DisclosureByID() map[string]Disclosure {
	m := make(map[string]Disclosure, len(s.Disclosures))
	for _, d := range s.Disclosures {
		m[d.ID] = d
	}
	return m
}

// SeriesByID returns a lookup map over the snapshot's series.
func (s *Snapshot) SeriesByID() map[string]Series {
	m := make(map[string]Series, len(s.Series))
	for _, sr := range s.Series {
		m[sr.ID] = sr
	}
	return m
}

// SourceError is a source defect: missing or contradictory Record Store
// data detected while loading a snapshot. All source defects are fatal and
// block publication.
type SourceError struct {
	Code    string // L0xx
	Message string
	Locus   string // file path, or table/row locus for SQLite sources
}

// Source defect codes (L001-L099).
const (
	ErrSourceNotFound = "L001" // snapshot file/database missing
	ErrSourceParse    = "L002" // malformed snapshot
	ErrSourceSchema   = "L003" // snapshot rejected by the CUE schema
	ErrSourceFormat   = "L004" // unrecognized snapshot format
)

func (e *SourceError) Error() string {
	if e.Locus != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Locus, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}
