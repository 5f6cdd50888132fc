package record

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// snapshotSchema is the CUE gate every loaded snapshot must pass before
// compilation. It checks shape and closed vocabularies; semantic gaps that
// need cross-record context (missing dates, unknown disclosure references)
// are left to the compiler so they can be reported per release.
//
// Dates are optional here on purpose: a release without a date must reach
// the compiler, which fails loudly with the release's identity instead of
// a schema position.
const snapshotSchema = `
#Release: {
	version:      string & !=""
	date?:        string
	security?:    bool
	disclosures?: [...string]
	summary?:     string
}

#Series: {
	id:       string & !=""
	name?:    string
	status:   "active" | "maintenance" | "eol"
	releases: [...#Release]
}

#Disclosure: {
	id:         string & !=""
	severity:   "low" | "medium" | "high" | "critical"
	score?:     string
	affected?:  [...string]
	fixed_in?:  [...string]
	published?: string
	summary?:   string
}

captured_at:  string & !=""
series:       [...#Series]
disclosures?: [...#Disclosure]
`

// validateAgainstSchema unifies raw YAML snapshot bytes with the embedded
// CUE schema. Any violation is a source defect (L003).
func validateAgainstSchema(filename string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(snapshotSchema)
	if err := schema.Err(); err != nil {
		// The schema is a compile-time constant; failing to compile it is a
		// programming error, not a source defect.
		return fmt.Errorf("internal: snapshot schema does not compile: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: filename}
	}

	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return &SourceError{Code: ErrSourceParse, Message: err.Error(), Locus: filename}
	}

	// Concrete so that a missing required field (captured_at, series) is an
	// error here rather than an incomplete value that slips through.
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SourceError{Code: ErrSourceSchema, Message: err.Error(), Locus: filename}
	}
	return nil
}
