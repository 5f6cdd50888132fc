package compiler

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/stele/internal/record"
	"github.com/roach88/stele/internal/resource"
)

// monthKey identifies one time bucket.
type monthKey struct {
	year  int
	month time.Month
}

func (k monthKey) before(other monthKey) bool {
	if k.year != other.year {
		return k.year < other.year
	}
	return k.month < other.month
}

// bucketEvents holds the events of one month: releases dated in it and
// disclosures published in it.
type bucketEvents struct {
	releases    []ReleaseRef
	disclosures []record.Disclosure
}

func (b *bucketEvents) hasSecurity() bool {
	for _, r := range b.releases {
		if r.Security {
			return true
		}
	}
	return len(b.disclosures) > 0
}

// Compile builds the complete resource tree and its layout from a snapshot.
// cycleID tags every document for the same-cycle wormhole rule; it has no
// effect on serialized bytes.
//
// Fails with a DefectList if the snapshot has source defects; no partial
// tree is ever returned.
func Compile(ctx context.Context, snap *record.Snapshot, cycleID string) (*resource.Tree, *Layout, error) {
	if defects := Preflight(snap); len(defects) > 0 {
		return nil, nil, defects
	}

	layout, buckets := buildLayout(snap)
	disclosures := snap.DisclosureByID()

	// Per-series and per-year shards are independent: disjoint output paths,
	// no shared mutable state, joined only at the merge barrier.
	shards := make([]*resource.Tree, len(layout.Series)+len(layout.Years))
	g, ctx := errgroup.WithContext(ctx)

	for i, sl := range layout.Series {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shard, err := buildSeriesShard(snap, sl, disclosures, cycleID)
			if err != nil {
				return err
			}
			shards[i] = shard
			return nil
		})
	}
	for i, yl := range layout.Years {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shard, err := buildYearShard(snap, yl, buckets, cycleID)
			if err != nil {
				return err
			}
			shards[len(layout.Series)+i] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	tree := resource.NewTree(cycleID)
	for _, shard := range shards {
		if err := tree.Merge(shard); err != nil {
			return nil, nil, err
		}
	}
	if err := addRoots(tree, snap, layout); err != nil {
		return nil, nil, err
	}
	return tree, layout, nil
}

// buildLayout derives the ordered series and month-bucket structure.
// A month bucket is emitted only for complete months (strictly before the
// snapshot's capture month) that contain at least one event, so instant
// leaves never need mutation and the prev chain skips empty months.
func buildLayout(snap *record.Snapshot) (*Layout, map[monthKey]*bucketEvents) {
	layout := &Layout{}
	buckets := make(map[monthKey]*bucketEvents)
	captureKey := monthKey{snap.CapturedAt.Year(), snap.CapturedAt.Month()}

	eventsAt := func(k monthKey) *bucketEvents {
		if buckets[k] == nil {
			buckets[k] = &bucketEvents{}
		}
		return buckets[k]
	}

	for _, series := range snap.Series {
		refs := orderedReleases(series)
		layout.Series = append(layout.Series, SeriesLayout{
			ID:        series.ID,
			IndexPath: SeriesIndexPath(series.ID),
			Releases:  refs,
		})
		for _, ref := range refs {
			k := monthKey{ref.Date.Year(), ref.Date.Month()}
			if k.before(captureKey) {
				eventsAt(k).releases = append(eventsAt(k).releases, ref)
			}
		}
	}
	sort.Slice(layout.Series, func(i, j int) bool { return layout.Series[i].ID < layout.Series[j].ID })

	for _, d := range snap.Disclosures {
		if d.Published.IsZero() {
			continue
		}
		k := monthKey{d.Published.Year(), d.Published.Month()}
		if k.before(captureKey) {
			eventsAt(k).disclosures = append(eventsAt(k).disclosures, d)
		}
	}

	keys := make([]monthKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].before(keys[j]) })

	years := make(map[int]*YearLayout)
	var yearOrder []int
	for _, k := range keys {
		y := years[k.year]
		if y == nil {
			y = &YearLayout{Year: k.year, Path: PeriodPath(k.year)}
			years[k.year] = y
			yearOrder = append(yearOrder, k.year)
		}
		y.Months = append(y.Months, MonthRef{
			Year:     k.year,
			Month:    k.month,
			Path:     InstantPath(k.year, k.month),
			Security: buckets[k].hasSecurity(),
		})
	}
	sort.Ints(yearOrder)
	for _, y := range yearOrder {
		layout.Years = append(layout.Years, *years[y])
	}
	return layout, buckets
}

// buildSeriesShard emits one series-index plus one frozen release-detail
// per release.
func buildSeriesShard(snap *record.Snapshot, sl SeriesLayout, disclosures map[string]record.Disclosure, cycleID string) (*resource.Tree, error) {
	shard := resource.NewTree(cycleID)
	series := snap.SeriesByID()[sl.ID]

	index := resource.NewDocument(sl.IndexPath, resource.KindSeriesIndex, cycleID)
	index.SetFact("series", resource.FreqLeaf, sl.ID)
	index.SetRootFact("name", "series:"+sl.ID+":name", series.Name)
	index.SetRootFact("status", "series:"+sl.ID+":status", series.Status)
	index.SetFact("release_count", resource.FreqBranch, len(sl.Releases))
	if latest := sl.Latest(); latest != nil {
		index.SetFact("latest_version", resource.FreqBranch, latest.Version)
	}
	index.SetFact("generated_at", resource.FreqBranch, snap.CapturedAt.Format(time.RFC3339))

	byVersion := make(map[string]record.Release, len(series.Releases))
	for _, rel := range series.Releases {
		byVersion[rel.Version] = rel
	}

	for _, ref := range sl.Releases {
		rel := byVersion[ref.Version]

		detail := resource.NewDocument(ref.Path, resource.KindReleaseDetail, cycleID)
		detail.SetFact("series", resource.FreqLeaf, sl.ID)
		detail.SetFact("version", resource.FreqLeaf, ref.Version)
		detail.SetFact("ordinal", resource.FreqLeaf, ref.Ordinal)
		detail.SetFact("released", resource.FreqLeaf, ref.Date.Format("2006-01-02"))
		detail.SetFact("security", resource.FreqLeaf, ref.Security)
		detail.SetFact("disclosures", resource.FreqLeaf, stringList(rel.Disclosures))
		if rel.Summary != "" {
			detail.SetFact("summary", resource.FreqLeaf, rel.Summary)
		}
		for _, id := range rel.Disclosures {
			detail.Embed("disclosures", disclosureCopy(disclosures[id]))
		}
		if err := shard.Add(detail); err != nil {
			return nil, err
		}

		// Denormalized per-release summary, captured at the same instant as
		// the detail it mirrors.
		index.Embed("releases", map[string]any{
			"version":     ref.Version,
			"released":    ref.Date.Format("2006-01-02"),
			"security":    ref.Security,
			"disclosures": stringList(rel.Disclosures),
			"href":        ref.Path,
		})
	}

	if err := shard.Add(index); err != nil {
		return nil, err
	}
	return shard, nil
}

// buildYearShard emits one period-index plus one frozen instant-index per
// emitted month bucket.
func buildYearShard(snap *record.Snapshot, yl YearLayout, buckets map[monthKey]*bucketEvents, cycleID string) (*resource.Tree, error) {
	shard := resource.NewTree(cycleID)

	period := resource.NewDocument(yl.Path, resource.KindPeriodIndex, cycleID)
	period.SetFact("year", resource.FreqLeaf, yl.Year)
	period.SetFact("generated_at", resource.FreqBranch, snap.CapturedAt.Format(time.RFC3339))

	yearReleases, yearSecurity := 0, 0
	for _, m := range yl.Months {
		events := buckets[monthKey{m.Year, m.Month}]

		instant := resource.NewDocument(m.Path, resource.KindInstantIndex, cycleID)
		instant.SetFact("year", resource.FreqLeaf, m.Year)
		instant.SetFact("month", resource.FreqLeaf, int(m.Month))
		instant.SetFact("release_count", resource.FreqLeaf, len(events.releases))
		instant.SetFact("security", resource.FreqLeaf, events.hasSecurity())

		secCount := 0
		for _, ref := range events.releases {
			if ref.Security {
				secCount++
			}
			instant.Embed("releases", map[string]any{
				"series":   ref.SeriesID,
				"version":  ref.Version,
				"released": ref.Date.Format("2006-01-02"),
				"security": ref.Security,
				"href":     ref.Path,
			})
		}
		instant.SetFact("security_count", resource.FreqLeaf, secCount)
		for _, d := range events.disclosures {
			instant.Embed("disclosures", disclosureCopy(d))
		}
		if err := shard.Add(instant); err != nil {
			return nil, err
		}

		period.Embed("months", map[string]any{
			"month":          int(m.Month),
			"release_count":  len(events.releases),
			"security_count": secCount,
			"security":       events.hasSecurity(),
			"href":           m.Path,
		})
		yearReleases += len(events.releases)
		yearSecurity += secCount
	}

	period.SetFact("release_count", resource.FreqBranch, yearReleases)
	period.SetFact("security_count", resource.FreqBranch, yearSecurity)

	if err := shard.Add(period); err != nil {
		return nil, err
	}
	return shard, nil
}

// addRoots emits the root-index, timeline-root and manifest. These are
// rebuilt every cycle but carry only root-frequency (or immutable) facts.
func addRoots(tree *resource.Tree, snap *record.Snapshot, layout *Layout) error {
	root := resource.NewDocument(RootPath, resource.KindRootIndex, tree.CycleID)
	ids := make([]any, 0, len(layout.Series))
	for _, sl := range layout.Series {
		ids = append(ids, sl.ID)
	}
	root.SetRootFact("series", "root:series", ids)
	root.SetRootFact("series_count", "root:series_count", len(layout.Series))
	if err := tree.Add(root); err != nil {
		return err
	}

	timeline := resource.NewDocument(TimelinePath, resource.KindTimelineRoot, tree.CycleID)
	years := make([]any, 0, len(layout.Years))
	for _, yl := range layout.Years {
		years = append(years, yl.Year)
	}
	timeline.SetRootFact("years", "timeline:years", years)
	if len(layout.Years) > 0 {
		timeline.SetRootFact("first_year", "timeline:first_year", layout.Years[0].Year)
	}
	if err := tree.Add(timeline); err != nil {
		return err
	}

	manifest := resource.NewDocument(ManifestPath, resource.KindManifest, tree.CycleID)
	manifest.SetFact("generated_at", resource.FreqBranch, snap.CapturedAt.Format(time.RFC3339))
	return tree.Add(manifest)
}

// disclosureCopy builds the inline form of a vulnerability record. The
// internal schema of a disclosure is opaque to the rest of the graph; this
// is the only place its shape is spelled out.
func disclosureCopy(d record.Disclosure) map[string]any {
	out := map[string]any{
		"id":       d.ID,
		"severity": d.Severity,
	}
	if d.Score != "" {
		out["score"] = d.Score
	}
	if len(d.Affected) > 0 {
		out["affected"] = stringList(d.Affected)
	}
	if len(d.FixedIn) > 0 {
		out["fixed_in"] = stringList(d.FixedIn)
	}
	if !d.Published.IsZero() {
		out["published"] = d.Published.Format("2006-01-02")
	}
	if d.Summary != "" {
		out["summary"] = d.Summary
	}
	return out
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
