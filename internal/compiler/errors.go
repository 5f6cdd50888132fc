package compiler

import "fmt"

// Source defect codes (C100-C199). Any of these aborts the cycle before a
// single resource is written; partial or inferred data must never reach a
// leaf resource.
const (
	ErrMissingDate        = "C101" // release has no recorded date
	ErrUnknownDisclosure  = "C102" // release references a disclosure the snapshot does not define
	ErrDuplicateIdentity  = "C103" // duplicate series ID, (series, version) pair, or disclosure ID
	ErrBadVersion         = "C104" // release version does not parse as semver
	ErrMissingSeverity    = "C105" // disclosure has no severity
	ErrFutureDate         = "C106" // release or disclosure dated after the snapshot capture instant
)

// SourceDefect reports one contradictory or missing piece of Record Store
// data, keyed by the record that carries it.
type SourceDefect struct {
	Code    string `json:"code"`
	Subject string `json:"subject"` // e.g. "series/s1/release/1.3.0"
	Message string `json:"message"`
}

func (d SourceDefect) Error() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Subject, d.Message)
}

// DefectList aggregates every defect found by the preflight scan so a
// single run reports all problems, not just the first.
type DefectList []SourceDefect

func (l DefectList) Error() string {
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more source defects)", l[0].Error(), len(l)-1)
}
