package costmodel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTrace reads a YAML trace fixture:
//
//	name: cold-walk
//	turns:
//	  - fetches:
//	      - {path: /index.json, size: 410}
//	  - fetches:
//	      - {path: /series/s1/index.json, size: 1900}
func LoadTrace(path string) (Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Trace{}, fmt.Errorf("load trace: %w", err)
	}
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return Trace{}, fmt.Errorf("load trace %s: %w", path, err)
	}
	for i, t := range tr.Turns {
		for j, f := range t.Fetches {
			if f.Size < 0 {
				return Trace{}, fmt.Errorf("load trace %s: turn %d fetch %d has negative size", path, i+1, j+1)
			}
		}
	}
	return tr, nil
}
