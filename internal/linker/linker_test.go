package linker

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

func snapshotFiveReleases() *record.Snapshot {
	return &record.Snapshot{
		CapturedAt: day(2026, time.August, 1),
		Series: []record.Series{
			{
				ID:     "2.x",
				Name:   "Stele 2",
				Status: "active",
				Releases: []record.Release{
					{Version: "2.0.0", Date: day(2026, time.January, 10)},
					{Version: "2.0.1", Date: day(2026, time.February, 14)},
					{Version: "2.0.2", Date: day(2026, time.March, 3), Security: true, Disclosures: []string{"D-1"}},
					{Version: "2.0.3", Date: day(2026, time.April, 20)},
					{Version: "2.0.4", Date: day(2026, time.May, 11)},
				},
			},
		},
		Disclosures: []record.Disclosure{
			{ID: "D-1", Severity: "high", Published: day(2026, time.March, 3)},
		},
	}
}

func compileAndLink(t *testing.T, snap *record.Snapshot, cycleID string) (*resource.Tree, *compiler.Layout) {
	t.Helper()
	tree, layout, err := compiler.Compile(context.Background(), snap, cycleID)
	require.NoError(t, err)
	require.NoError(t, Resolve(tree, layout))
	return tree, layout
}

func href(t *testing.T, doc *resource.Document, rel string) string {
	t.Helper()
	link, ok := doc.Links[rel]
	require.True(t, ok, "%s has no %q link", doc.Path, rel)
	return link.Href
}

func TestResolveRootIndexLinks(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	root := tree.Get("/index.json")
	assert.Equal(t, "/index.json", href(t, root, resource.RelSelf))
	assert.Equal(t, "/timeline/index.json", href(t, root, resource.RelTimeline))
	assert.Equal(t, "/manifest.json", href(t, root, resource.RelManifest))
	assert.Equal(t, "/series/2.x/index.json", href(t, root, "series-2.x"))
}

func TestResolveManifestSchemaExitNodes(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	manifest := tree.Get("/manifest.json")
	assert.Equal(t, "/viewport.json", href(t, manifest, resource.RelViewport))

	schema := manifest.Links["schema-release-detail"]
	assert.Equal(t, "https://stele.dev/schema/release-detail/v1", schema.Href)
	assert.Equal(t, "application/schema+json", schema.Type)
}

func TestResolveSeriesWormholes(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	index := tree.Get("/series/2.x/index.json")
	assert.Equal(t, "/series/2.x/2.0.4.json", href(t, index, resource.RelLatest))
	assert.Equal(t, "/series/2.x/2.0.2.json", href(t, index, resource.RelLatestSec))
}

func TestResolveReleaseChains(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	first := tree.Get("/series/2.x/2.0.0.json")
	_, hasPrev := first.Links[resource.RelPrev]
	assert.False(t, hasPrev, "earliest release has no prev")
	_, hasMajor := first.Links[resource.RelReleaseMajor]
	assert.False(t, hasMajor, "series opener does not link to itself")

	fourth := tree.Get("/series/2.x/2.0.3.json")
	assert.Equal(t, "/series/2.x/2.0.2.json", href(t, fourth, resource.RelPrev))
	assert.Equal(t, "/series/2.x/2.0.2.json", href(t, fourth, resource.RelPrevSec))
	assert.Equal(t, "/series/2.x/2.0.0.json", href(t, fourth, resource.RelReleaseMajor))

	second := tree.Get("/series/2.x/2.0.1.json")
	_, hasPrevSec := second.Links[resource.RelPrevSec]
	assert.False(t, hasPrevSec, "no earlier security release exists")
}

func TestResolveLeavesCarryNoForwardRelations(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	for _, path := range tree.Paths() {
		doc := tree.Get(path)
		if doc.Kind.Frequency() != resource.FreqLeaf {
			continue
		}
		for rel := range doc.Links {
			assert.NotContains(t, rel, "next", "%s carries forward relation %s", path, rel)
			assert.NotEqual(t, resource.RelLatest, rel, "%s: latest on a leaf would mutate", path)
			assert.NotEqual(t, resource.RelReleaseMonth, rel,
				"%s: release-month appears only once the bucket exists", path)
		}
	}
}

func TestResolveTimelineChains(t *testing.T) {
	tree, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	timeline := tree.Get("/timeline/index.json")
	assert.Equal(t, "/timeline/2026/index.json", href(t, timeline, "year-2026"))

	period := tree.Get("/timeline/2026/index.json")
	assert.Equal(t, "/timeline/2026/03.json", href(t, period, "month-03"))

	april := tree.Get("/timeline/2026/04.json")
	assert.Equal(t, "/timeline/2026/03.json", href(t, april, resource.RelPrev))
	assert.Equal(t, "/timeline/2026/03.json", href(t, april, resource.RelPrevSec))

	january := tree.Get("/timeline/2026/01.json")
	_, hasPrev := january.Links[resource.RelPrev]
	assert.False(t, hasPrev)
}

func TestResolveTimelinePrevCrossesYears(t *testing.T) {
	snap := snapshotFiveReleases()
	snap.Series[0].Releases = append([]record.Release{
		{Version: "1.9.0", Date: day(2025, time.December, 1)},
	}, snap.Series[0].Releases...)

	tree, _ := compileAndLink(t, snap, "cycle-1")

	january := tree.Get("/timeline/2026/01.json")
	assert.Equal(t, "/timeline/2025/12.json", href(t, january, resource.RelPrev))
}

// Appending a sixth release must leave every existing release-detail
// byte-identical; only branch and root resources change.
func TestAppendOnlyEvolution(t *testing.T) {
	tree1, _ := compileAndLink(t, snapshotFiveReleases(), "cycle-1")

	grown := snapshotFiveReleases()
	grown.Series[0].Releases = append(grown.Series[0].Releases,
		record.Release{Version: "2.0.5", Date: day(2026, time.June, 2)})
	tree2, _ := compileAndLink(t, grown, "cycle-2")

	for _, version := range []string{"2.0.0", "2.0.1", "2.0.2", "2.0.3", "2.0.4"} {
		path := "/series/2.x/" + version + ".json"
		b1, err := tree1.Get(path).MarshalCanonical()
		require.NoError(t, err)
		b2, err := tree2.Get(path).MarshalCanonical()
		require.NoError(t, err)
		assert.Equal(t, string(b1), string(b2), "published leaf %s mutated", path)
	}

	sixth := tree2.Get("/series/2.x/2.0.5.json")
	require.NotNil(t, sixth)
	assert.Equal(t, "/series/2.x/2.0.4.json", href(t, sixth, resource.RelPrev))
	assert.Equal(t, "/series/2.x/2.0.2.json", href(t, sixth, resource.RelPrevSec))

	index := tree2.Get("/series/2.x/index.json")
	assert.Equal(t, "/series/2.x/2.0.5.json", href(t, index, resource.RelLatest))
	assert.Equal(t, "/series/2.x/2.0.2.json", href(t, index, resource.RelLatestSec),
		"latest-security unchanged by a non-security release")
	assert.Equal(t, "2.0.5", index.Facts["latest_version"])
}

func TestResolveMissingDocumentIsError(t *testing.T) {
	snap := snapshotFiveReleases()
	tree, layout, err := compiler.Compile(context.Background(), snap, "cycle-1")
	require.NoError(t, err)

	// Simulate a compiler bug by removing a layout-named document.
	broken := resource.NewTree("cycle-1")
	for _, p := range tree.Paths() {
		if p == "/series/2.x/2.0.3.json" {
			continue
		}
		require.NoError(t, broken.Add(tree.Get(p)))
	}

	err = Resolve(broken, layout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2.0.3")
}
