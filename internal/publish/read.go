package publish

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/stele/internal/resource"
)

// LoadTree reconstructs an in-memory tree from a published directory so the
// validator can be re-run against what is actually on disk.
//
// Two pieces of compile-time metadata do not survive serialization: fact
// frequency classes (facts default to their document's class) and cycle
// identity (every loaded document gets the same synthetic cycle, which is
// correct - a published tree is by construction one atomic pass). The
// placement checks that need compiler tagging run at compile time; the
// structural, link and denormalization checks all run from disk.
func LoadTree(dir string) (*resource.Tree, error) {
	files, err := ReadBytes(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("load tree: no documents under %s", dir)
	}

	tree := resource.NewTree("published")
	for path, raw := range files {
		doc, err := decodeDocument(path, raw)
		if err != nil {
			return nil, fmt.Errorf("load tree: %s: %w", path, err)
		}
		if err := tree.Add(doc); err != nil {
			return nil, fmt.Errorf("load tree: %w", err)
		}
	}
	return tree, nil
}

func decodeDocument(path string, raw []byte) (*resource.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}

	schema, _ := payload[resource.SectionSchema].(string)
	kind, err := kindFromSchema(schema)
	if err != nil {
		return nil, err
	}

	doc := resource.NewDocument(path, kind, "published")
	for name, value := range payload {
		switch name {
		case resource.SectionSchema:
			continue
		case resource.SectionLinks:
			links, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("_links is not an object")
			}
			for rel, entry := range links {
				l, err := decodeLink(entry)
				if err != nil {
					return nil, fmt.Errorf("_links.%s: %w", rel, err)
				}
				doc.SetLink(rel, l)
			}
		case resource.SectionEmbedded:
			embedded, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("_embedded is not an object")
			}
			for coll, items := range embedded {
				list, ok := items.([]any)
				if !ok {
					return nil, fmt.Errorf("_embedded.%s is not an array", coll)
				}
				for i, item := range list {
					copyMap, ok := item.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("_embedded.%s[%d] is not an object", coll, i)
					}
					normalized, err := normalizeValue(copyMap)
					if err != nil {
						return nil, fmt.Errorf("_embedded.%s[%d]: %w", coll, i, err)
					}
					doc.Embed(coll, normalized.(map[string]any))
				}
			}
		default:
			normalized, err := normalizeValue(value)
			if err != nil {
				return nil, fmt.Errorf("fact %s: %w", name, err)
			}
			doc.SetFact(name, kind.Frequency(), normalized)
		}
	}
	return doc, nil
}

func decodeLink(entry any) (resource.Link, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return resource.Link{}, fmt.Errorf("not an object")
	}
	l := resource.Link{}
	l.Href, _ = m["href"].(string)
	l.Title, _ = m["title"].(string)
	l.Type, _ = m["type"].(string)
	if l.Href == "" {
		return resource.Link{}, fmt.Errorf("missing href")
	}
	return l, nil
}

// normalizeValue converts decoded JSON into the canonical value profile:
// json.Number becomes int64, and non-integer numbers or nulls are rejected,
// mirroring the marshal-side bans.
func normalizeValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %q", val.String())
		}
		return n, nil
	case string, bool:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalizeValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalizeValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func kindFromSchema(schema string) (resource.Kind, error) {
	for _, k := range resource.Kinds {
		if k.SchemaRef() == schema {
			return k, nil
		}
	}
	if schema == "" {
		return "", fmt.Errorf("document has no _schema field")
	}
	return "", fmt.Errorf("unknown schema reference %q", schema)
}
