package record

import (
	"path/filepath"
	"strings"
)

// Load reads a snapshot, dispatching on file extension.
func Load(path string) (*Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(path)
	default:
		return nil, &SourceError{
			Code:    ErrSourceFormat,
			Message: "unrecognized snapshot format (want .yaml/.yml or .db/.sqlite)",
			Locus:   path,
		}
	}
}
