package record

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Wire shapes for YAML snapshots. Dates travel as strings so that a missing
// or malformed date is distinguishable from the zero time.
type yamlSnapshot struct {
	CapturedAt  string           `yaml:"captured_at"`
	Series      []yamlSeries     `yaml:"series"`
	Disclosures []yamlDisclosure `yaml:"disclosures"`
}

type yamlSeries struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Status   string        `yaml:"status"`
	Releases []yamlRelease `yaml:"releases"`
}

type yamlRelease struct {
	Version     string   `yaml:"version"`
	Date        string   `yaml:"date"`
	Security    bool     `yaml:"security"`
	Disclosures []string `yaml:"disclosures"`
	Summary     string   `yaml:"summary"`
}

type yamlDisclosure struct {
	ID        string   `yaml:"id"`
	Severity  string   `yaml:"severity"`
	Score     string   `yaml:"score"`
	Affected  []string `yaml:"affected"`
	FixedIn   []string `yaml:"fixed_in"`
	Published string   `yaml:"published"`
	Summary   string   `yaml:"summary"`
}

// LoadYAML reads a YAML snapshot, gates it through the CUE schema, and
// decodes it into a Snapshot.
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &SourceError{Code: ErrSourceNotFound, Message: "snapshot not found", Locus: path}
		}
		return nil, &SourceError{Code: ErrSourceNotFound, Message: err.Error(), Locus: path}
	}

	if err := validateAgainstSchema(path, data); err != nil {
		return nil, err
	}

	var wire yamlSnapshot
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: path}
	}

	return wire.toSnapshot(path)
}

func (w *yamlSnapshot) toSnapshot(locus string) (*Snapshot, error) {
	capturedAt, err := parseInstant(w.CapturedAt)
	if err != nil {
		return nil, &SourceError{Code: ErrSourceParse, Message: fmt.Sprintf("captured_at: %v", err), Locus: locus}
	}
	if capturedAt.IsZero() {
		return nil, &SourceError{Code: ErrSourceParse, Message: "captured_at is required", Locus: locus}
	}

	snap := &Snapshot{CapturedAt: capturedAt}

	for _, ws := range w.Series {
		series := Series{ID: ws.ID, Name: ws.Name, Status: ws.Status}
		for _, wr := range ws.Releases {
			date, err := parseInstant(wr.Date)
			if err != nil {
				return nil, &SourceError{
					Code:    ErrSourceParse,
					Message: fmt.Sprintf("series %s release %s: date: %v", ws.ID, wr.Version, err),
					Locus:   locus,
				}
			}
			series.Releases = append(series.Releases, Release{
				Version:     wr.Version,
				Date:        date,
				Security:    wr.Security,
				Disclosures: wr.Disclosures,
				Summary:     wr.Summary,
			})
		}
		snap.Series = append(snap.Series, series)
	}

	for _, wd := range w.Disclosures {
		published, err := parseInstant(wd.Published)
		if err != nil {
			return nil, &SourceError{
				Code:    ErrSourceParse,
				Message: fmt.Sprintf("disclosure %s: published: %v", wd.ID, err),
				Locus:   locus,
			}
		}
		snap.Disclosures = append(snap.Disclosures, Disclosure{
			ID:        wd.ID,
			Severity:  wd.Severity,
			Score:     wd.Score,
			Affected:  wd.Affected,
			FixedIn:   wd.FixedIn,
			Published: published,
			Summary:   wd.Summary,
		})
	}

	return snap, nil
}

// parseInstant accepts a date ("2006-01-02") or an RFC 3339 timestamp.
// The empty string maps to the zero time: absence is represented, not
// guessed, and the compiler decides whether absence is fatal.
func parseInstant(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a date or RFC 3339 timestamp: %q", s)
	}
	return t.UTC(), nil
}
