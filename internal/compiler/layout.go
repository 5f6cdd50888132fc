package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/stele/internal/record"
)

// Canonical addresses of the fixed roots.
const (
	RootPath     = "/index.json"
	TimelinePath = "/timeline/index.json"
	ManifestPath = "/manifest.json"
	ViewportPath = "/viewport.json"
)

// SeriesIndexPath returns the address of a series-index.
func SeriesIndexPath(seriesID string) string {
	return fmt.Sprintf("/series/%s/index.json", seriesID)
}

// ReleasePath returns the address of a release-detail.
func ReleasePath(seriesID, version string) string {
	return fmt.Sprintf("/series/%s/%s.json", seriesID, version)
}

// PeriodPath returns the address of a per-year period-index.
func PeriodPath(year int) string {
	return fmt.Sprintf("/timeline/%d/index.json", year)
}

// InstantPath returns the address of a per-month instant-index.
func InstantPath(year int, month time.Month) string {
	return fmt.Sprintf("/timeline/%d/%02d.json", year, int(month))
}

// ReleaseRef is the linker's view of one release: its address plus the
// (date, version-ordinal) key used for "latest" and "prev" tie-breaks.
type ReleaseRef struct {
	SeriesID string
	Version  string
	SemVer   *semver.Version
	Path     string
	Date     time.Time
	Security bool
	Ordinal  int // 1-based position in series order
}

// Less orders refs by (date, version-ordinal), the wormhole tie-break key.
func (r ReleaseRef) Less(other ReleaseRef) bool {
	if !r.Date.Equal(other.Date) {
		return r.Date.Before(other.Date)
	}
	return r.SemVer.LessThan(other.SemVer)
}

// SeriesLayout carries one series' ordered releases.
type SeriesLayout struct {
	ID        string
	IndexPath string
	Releases  []ReleaseRef // ascending (date, version-ordinal)
}

// Latest returns the maximum release, or nil for an empty series.
func (s SeriesLayout) Latest() *ReleaseRef {
	if len(s.Releases) == 0 {
		return nil
	}
	return &s.Releases[len(s.Releases)-1]
}

// LatestSecurity returns the maximum release with the security flag set.
func (s SeriesLayout) LatestSecurity() *ReleaseRef {
	for i := len(s.Releases) - 1; i >= 0; i-- {
		if s.Releases[i].Security {
			return &s.Releases[i]
		}
	}
	return nil
}

// MonthRef is the linker's view of one emitted instant-index bucket.
type MonthRef struct {
	Year     int
	Month    time.Month
	Path     string
	Security bool // bucket contains at least one security event
}

// YearLayout carries one year's emitted month buckets, ascending.
type YearLayout struct {
	Year   int
	Path   string
	Months []MonthRef
}

// Layout is the compile metadata handed to the link resolver and viewport
// generator: ordered release and bucket refs that would otherwise have to
// be re-derived from the tree.
type Layout struct {
	Series []SeriesLayout // sorted by series ID
	Years  []YearLayout   // ascending
}

// AllMonths returns every emitted month bucket across years, ascending.
func (l *Layout) AllMonths() []MonthRef {
	var out []MonthRef
	for _, y := range l.Years {
		out = append(out, y.Months...)
	}
	return out
}

// SeriesByID returns the layout for one series, or nil.
func (l *Layout) SeriesByID(id string) *SeriesLayout {
	for i := range l.Series {
		if l.Series[i].ID == id {
			return &l.Series[i]
		}
	}
	return nil
}

// orderedReleases parses and sorts a series' releases by the
// (date, version-ordinal) key and assigns ordinals. Versions are assumed
// parseable; preflight has already rejected snapshots where they are not.
func orderedReleases(series record.Series) []ReleaseRef {
	refs := make([]ReleaseRef, 0, len(series.Releases))
	for _, rel := range series.Releases {
		v, err := rel.SemVer()
		if err != nil {
			// Unreachable after preflight; keep the defect visible if a
			// caller skips it.
			panic(fmt.Sprintf("orderedReleases before preflight: %v", err))
		}
		refs = append(refs, ReleaseRef{
			SeriesID: series.ID,
			Version:  rel.Version,
			SemVer:   v,
			Path:     ReleasePath(series.ID, rel.Version),
			Date:     rel.Date,
			Security: rel.Security,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	for i := range refs {
		refs[i].Ordinal = i + 1
	}
	return refs
}
