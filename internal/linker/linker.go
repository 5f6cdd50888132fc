package linker

import (
	"fmt"

	"github.com/roach88/stele/internal/compiler"
	"github.com/roach88/stele/internal/resource"
)

// Resolve fills in the link sections of every document in the tree.
// The tree must contain every path the layout names; a miss is a compiler
// bug, not a source defect.
func Resolve(tree *resource.Tree, layout *compiler.Layout) error {
	if err := linkRoots(tree, layout); err != nil {
		return err
	}
	for _, sl := range layout.Series {
		if err := linkSeries(tree, sl); err != nil {
			return err
		}
	}
	return linkTimeline(tree, layout)
}

func get(tree *resource.Tree, path string) (*resource.Document, error) {
	d := tree.Get(path)
	if d == nil {
		return nil, fmt.Errorf("linker: no document at %q", path)
	}
	return d, nil
}

func linkRoots(tree *resource.Tree, layout *compiler.Layout) error {
	root, err := get(tree, compiler.RootPath)
	if err != nil {
		return err
	}
	root.SetLink(resource.RelSelf, resource.Link{Href: compiler.RootPath})
	root.SetLink(resource.RelTimeline, resource.Link{Href: compiler.TimelinePath})
	root.SetLink(resource.RelManifest, resource.Link{Href: compiler.ManifestPath})
	for _, sl := range layout.Series {
		root.SetLink("series-"+sl.ID, resource.Link{Href: sl.IndexPath})
	}

	manifest, err := get(tree, compiler.ManifestPath)
	if err != nil {
		return err
	}
	manifest.SetLink(resource.RelSelf, resource.Link{Href: compiler.ManifestPath})
	manifest.SetLink(resource.RelRoot, resource.Link{Href: compiler.RootPath})
	manifest.SetLink(resource.RelViewport, resource.Link{
		Href:  compiler.ViewportPath,
		Title: "Fast index (unstable, no compatibility guarantee)",
	})
	// Schema references are exit nodes: external addresses whose payloads
	// this system does not define.
	for _, kind := range resource.Kinds {
		manifest.SetLink("schema-"+string(kind), resource.Link{
			Href: kind.SchemaRef(),
			Type: "application/schema+json",
		})
	}
	return nil
}

func linkSeries(tree *resource.Tree, sl compiler.SeriesLayout) error {
	index, err := get(tree, sl.IndexPath)
	if err != nil {
		return err
	}
	index.SetLink(resource.RelSelf, resource.Link{Href: sl.IndexPath})
	index.SetLink(resource.RelRoot, resource.Link{Href: compiler.RootPath})
	if latest := sl.Latest(); latest != nil {
		index.SetLink(resource.RelLatest, resource.Link{Href: latest.Path, Title: "Latest release"})
	}
	if latestSec := sl.LatestSecurity(); latestSec != nil {
		index.SetLink(resource.RelLatestSec, resource.Link{Href: latestSec.Path, Title: "Latest security release"})
	}

	for i, ref := range sl.Releases {
		detail, err := get(tree, ref.Path)
		if err != nil {
			return err
		}
		detail.SetLink(resource.RelSelf, resource.Link{Href: ref.Path})
		detail.SetLink(resource.RelSeries, resource.Link{Href: sl.IndexPath})

		if i > 0 {
			detail.SetLink(resource.RelPrev, resource.Link{Href: sl.Releases[i-1].Path})
		}
		if prevSec := previousSecurity(sl.Releases[:i]); prevSec != nil {
			detail.SetLink(resource.RelPrevSec, resource.Link{Href: prevSec.Path})
		}

		if major := &sl.Releases[0]; major.Path != ref.Path {
			detail.SetLink(resource.RelReleaseMajor, resource.Link{Href: major.Path})
		}
		// No release-month here: a release compiled during its own month
		// would gain that link once the month's bucket exists, changing
		// published leaf bytes. The relation lives on the viewport instead.
	}
	return nil
}

func linkTimeline(tree *resource.Tree, layout *compiler.Layout) error {
	timeline, err := get(tree, compiler.TimelinePath)
	if err != nil {
		return err
	}
	timeline.SetLink(resource.RelSelf, resource.Link{Href: compiler.TimelinePath})
	timeline.SetLink(resource.RelRoot, resource.Link{Href: compiler.RootPath})
	for _, yl := range layout.Years {
		timeline.SetLink(fmt.Sprintf("year-%d", yl.Year), resource.Link{Href: yl.Path})
	}

	months := layout.AllMonths()
	for i, m := range months {
		instant, err := get(tree, m.Path)
		if err != nil {
			return err
		}
		instant.SetLink(resource.RelSelf, resource.Link{Href: m.Path})
		instant.SetLink(resource.RelPeriod, resource.Link{Href: compiler.PeriodPath(m.Year)})

		// prev crosses year boundaries: the chain is over buckets, not
		// over a single period-index.
		if i > 0 {
			instant.SetLink(resource.RelPrev, resource.Link{Href: months[i-1].Path})
		}
		for j := i - 1; j >= 0; j-- {
			if months[j].Security {
				instant.SetLink(resource.RelPrevSec, resource.Link{Href: months[j].Path})
				break
			}
		}
	}

	for _, yl := range layout.Years {
		period, err := get(tree, yl.Path)
		if err != nil {
			return err
		}
		period.SetLink(resource.RelSelf, resource.Link{Href: yl.Path})
		period.SetLink(resource.RelTimeline, resource.Link{Href: compiler.TimelinePath})
		for _, m := range yl.Months {
			period.SetLink(fmt.Sprintf("month-%02d", int(m.Month)), resource.Link{Href: m.Path})
		}
	}
	return nil
}

// previousSecurity returns the maximum earlier release with the security
// flag set, or nil. earlier is already in ascending (date, ordinal) order.
func previousSecurity(earlier []compiler.ReleaseRef) *compiler.ReleaseRef {
	for i := len(earlier) - 1; i >= 0; i-- {
		if earlier[i].Security {
			return &earlier[i]
		}
	}
	return nil
}
