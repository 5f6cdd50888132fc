package compiler

import (
	"fmt"

	"github.com/roach88/stele/internal/record"
)

// Preflight scans the snapshot for source defects before any resource is
// built. All defects are collected (not fail-fast) so one run reports the
// full repair list; any defect blocks compilation.
func Preflight(snap *record.Snapshot) DefectList {
	var defects DefectList

	disclosures := snap.DisclosureByID()
	seenSeries := make(map[string]bool)

	for _, series := range snap.Series {
		if seenSeries[series.ID] {
			defects = append(defects, SourceDefect{
				Code:    ErrDuplicateIdentity,
				Subject: "series/" + series.ID,
				Message: "duplicate series ID",
			})
			continue
		}
		seenSeries[series.ID] = true

		seenVersions := make(map[string]bool)
		for _, rel := range series.Releases {
			subject := fmt.Sprintf("series/%s/release/%s", series.ID, rel.Version)

			if seenVersions[rel.Version] {
				defects = append(defects, SourceDefect{
					Code:    ErrDuplicateIdentity,
					Subject: subject,
					Message: "duplicate version within series",
				})
			}
			seenVersions[rel.Version] = true

			if _, err := rel.SemVer(); err != nil {
				defects = append(defects, SourceDefect{
					Code:    ErrBadVersion,
					Subject: subject,
					Message: err.Error(),
				})
			}

			if rel.Date.IsZero() {
				defects = append(defects, SourceDefect{
					Code:    ErrMissingDate,
					Subject: subject,
					Message: "release has no recorded date; refusing to guess a placement",
				})
			} else if rel.Date.After(snap.CapturedAt) {
				defects = append(defects, SourceDefect{
					Code:    ErrFutureDate,
					Subject: subject,
					Message: fmt.Sprintf("release dated %s, after snapshot capture %s",
						rel.Date.Format("2006-01-02"), snap.CapturedAt.Format("2006-01-02")),
				})
			}

			for _, id := range rel.Disclosures {
				if _, ok := disclosures[id]; !ok {
					defects = append(defects, SourceDefect{
						Code:    ErrUnknownDisclosure,
						Subject: subject,
						Message: fmt.Sprintf("references unknown disclosure %q", id),
					})
				}
			}
		}
	}

	seenDisclosures := make(map[string]bool)
	for _, d := range snap.Disclosures {
		subject := "disclosure/" + d.ID
		if seenDisclosures[d.ID] {
			defects = append(defects, SourceDefect{
				Code:    ErrDuplicateIdentity,
				Subject: subject,
				Message: "duplicate disclosure ID",
			})
		}
		seenDisclosures[d.ID] = true

		if d.Severity == "" {
			defects = append(defects, SourceDefect{
				Code:    ErrMissingSeverity,
				Subject: subject,
				Message: "disclosure has no severity",
			})
		}
		if !d.Published.IsZero() && d.Published.After(snap.CapturedAt) {
			defects = append(defects, SourceDefect{
				Code:    ErrFutureDate,
				Subject: subject,
				Message: fmt.Sprintf("published %s, after snapshot capture %s",
					d.Published.Format("2006-01-02"), snap.CapturedAt.Format("2006-01-02")),
			})
		}
	}

	return defects
}
