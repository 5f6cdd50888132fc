// Package viewport builds the fast index: one bounded resource that
// denormalizes the most operationally relevant slice of the graph (latest
// release per currently active series, global latest, most recent complete
// month). It is regenerated every cycle and explicitly unstable: it may
// carry root-adjacent facts that change faster than their home resources,
// but it must never be the sole source of any fact - everything here is
// independently derivable through the compliant tree.
package viewport

import (
	"time"

	"github.com/roach88/stele/internal/compiler"
	"github.com/roach88/stele/internal/record"
	"github.com/roach88/stele/internal/resource"
)

// Disclaimer is the stability wording carried verbatim in the document, so
// consumers that never read interface docs still see it.
const Disclaimer = "unstable fast index; fields and shape may change without notice, use the linked canonical resources for anything durable"

// Generate appends the viewport document to the tree.
func Generate(tree *resource.Tree, layout *compiler.Layout, snap *record.Snapshot) error {
	doc := resource.NewDocument(compiler.ViewportPath, resource.KindViewport, tree.CycleID)
	doc.SetFact("stability", resource.FreqBranch, "unstable")
	doc.SetFact("disclaimer", resource.FreqBranch, Disclaimer)
	doc.SetFact("generated_at", resource.FreqBranch, snap.CapturedAt.Format(time.RFC3339))

	doc.SetLink(resource.RelSelf, resource.Link{Href: compiler.ViewportPath})
	doc.SetLink(resource.RelRoot, resource.Link{Href: compiler.RootPath})

	statuses := make(map[string]string, len(snap.Series))
	for _, s := range snap.Series {
		statuses[s.ID] = s.Status
	}

	var globalLatest, globalLatestSec *compiler.ReleaseRef
	entries := 0
	for _, sl := range layout.Series {
		latest := sl.Latest()
		if latest == nil {
			continue
		}
		if globalLatest == nil || globalLatest.Less(*latest) {
			globalLatest = latest
		}
		if sec := sl.LatestSecurity(); sec != nil {
			if globalLatestSec == nil || globalLatestSec.Less(*sec) {
				globalLatestSec = sec
			}
		}

		// The window covers series still receiving releases; EOL series
		// stay reachable through the compliant tree only.
		if statuses[sl.ID] == "eol" {
			continue
		}
		doc.Embed("series", map[string]any{
			"series":         sl.ID,
			"status":         statuses[sl.ID],
			"latest_version": latest.Version,
			"href":           sl.IndexPath,
			"latest_href":    latest.Path,
		})
		entries++
	}
	doc.SetFact("window", resource.FreqBranch, entries)

	if globalLatest != nil {
		doc.SetLink(resource.RelLatest, resource.Link{Href: globalLatest.Path, Title: "Most recent release overall"})
	}
	if globalLatestSec != nil {
		doc.SetLink(resource.RelLatestSec, resource.Link{Href: globalLatestSec.Path, Title: "Most recent security release overall"})
	}
	if months := layout.AllMonths(); len(months) > 0 {
		doc.SetLink(resource.RelReleaseMonth, resource.Link{
			Href:  months[len(months)-1].Path,
			Title: "Most recent complete month",
		})
	}

	return tree.Add(doc)
}
