package viewport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stele/internal/compiler"
	"github.com/roach88/stele/internal/record"
	"github.com/roach88/stele/internal/resource"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func twoSeriesSnapshot() *record.Snapshot {
	return &record.Snapshot{
		CapturedAt: day(2026, time.August, 1),
		Series: []record.Series{
			{
				ID:     "1.x",
				Name:   "Stele 1",
				Status: "eol",
				Releases: []record.Release{
					{Version: "1.4.0", Date: day(2024, time.June, 1)},
					{Version: "1.4.1", Date: day(2024, time.July, 9), Security: true, Disclosures: []string{"D-0"}},
				},
			},
			{
				ID:     "2.x",
				Name:   "Stele 2",
				Status: "active",
				Releases: []record.Release{
					{Version: "2.0.0", Date: day(2026, time.January, 10)},
					{Version: "2.1.0", Date: day(2026, time.May, 2)},
				},
			},
		},
		Disclosures: []record.Disclosure{
			{ID: "D-0", Severity: "medium", Published: day(2024, time.July, 9)},
		},
	}
}

func generate(t *testing.T, snap *record.Snapshot) *resource.Document {
	t.Helper()
	tree, layout, err := compiler.Compile(context.Background(), snap, "cycle-1")
	require.NoError(t, err)
	require.NoError(t, Generate(tree, layout, snap))
	doc := tree.Get(compiler.ViewportPath)
	require.NotNil(t, doc)
	return doc
}

func TestGenerateStabilityContract(t *testing.T) {
	doc := generate(t, twoSeriesSnapshot())

	assert.Equal(t, "unstable", doc.Facts["stability"])
	assert.Equal(t, Disclaimer, doc.Facts["disclaimer"])
	assert.Equal(t, "2026-08-01T00:00:00Z", doc.Facts["generated_at"])
}

func TestGenerateWindowSkipsEOLSeries(t *testing.T) {
	doc := generate(t, twoSeriesSnapshot())

	require.Len(t, doc.Embedded["series"], 1)
	entry := doc.Embedded["series"][0]
	assert.Equal(t, "2.x", entry["series"])
	assert.Equal(t, "active", entry["status"])
	assert.Equal(t, "2.1.0", entry["latest_version"])
	assert.Equal(t, "/series/2.x/index.json", entry["href"])
	assert.Equal(t, "/series/2.x/2.1.0.json", entry["latest_href"])
	assert.Equal(t, 1, doc.Facts["window"])
}

func TestGenerateGlobalWormholes(t *testing.T) {
	doc := generate(t, twoSeriesSnapshot())

	assert.Equal(t, "/series/2.x/2.1.0.json", doc.Links[resource.RelLatest].Href)
	// The only security release lives in the EOL series; the global
	// wormhole still reaches it even though the window omits the series.
	assert.Equal(t, "/series/1.x/1.4.1.json", doc.Links[resource.RelLatestSec].Href)
	assert.Equal(t, "/timeline/2026/05.json", doc.Links[resource.RelReleaseMonth].Href)
}

func TestGenerateEmptySnapshot(t *testing.T) {
	snap := &record.Snapshot{CapturedAt: day(2026, time.August, 1)}
	doc := generate(t, snap)

	assert.Equal(t, 0, doc.Facts["window"])
	_, hasLatest := doc.Links[resource.RelLatest]
	assert.False(t, hasLatest)
	_, hasMonth := doc.Links[resource.RelReleaseMonth]
	assert.False(t, hasMonth)
}
