package resource

import (
	"fmt"
	"sort"
)

// Reserved top-level sections of a document. Everything else is a fact.
const (
	SectionSchema   = "_schema"
	SectionLinks    = "_links"
	SectionEmbedded = "_embedded"
)

// Link is a named, directed edge to another resource.
type Link struct {
	Href  string
	Title string
	Type  string
}

// Document is one addressable resource in the compiled tree: a set of flat
// facts plus the reserved link and embedded sections.
//
// Path is the canonical address relative to the tree root (e.g.
// "/series/s1/index.json"). CycleID identifies the compilation pass that
// produced the document; it is carried in memory for the same-cycle wormhole
// check and
// never serialized (leaf bytes must be identical across cycles).
type Document struct {
	Path    string
	Kind    Kind
	CycleID string

	// Facts maps flat snake_case names to values. Values are restricted to
	// the canonical JSON profile: string, int64/int, bool, []any,
	// map[string]any. No floats, no nulls.
	Facts map[string]any

	// FactClass records the frequency class of each fact for placement
	// validation. Not serialized. A fact absent from this map defaults to
	// the document's own frequency class.
	FactClass map[string]Frequency

	// FactID maps root-frequency fact names to their tree-wide identity
	// (e.g. "series:s1:name"). The validator uses these to enforce that a
	// root fact lives in exactly one resource. Not serialized.
	FactID map[string]string

	Links    map[string]Link
	Embedded map[string][]map[string]any
}

// NewDocument creates an empty document of the given kind at path.
func NewDocument(path string, kind Kind, cycleID string) *Document {
	return &Document{
		Path:      path,
		Kind:      kind,
		CycleID:   cycleID,
		Facts:     make(map[string]any),
		FactClass: make(map[string]Frequency),
		Links:     make(map[string]Link),
	}
}

// SetFact records a fact value with an explicit frequency class.
func (d *Document) SetFact(name string, class Frequency, value any) {
	d.Facts[name] = value
	d.FactClass[name] = class
}

// SetRootFact records a root-frequency fact together with its tree-wide
// identity, which must have exactly one home across the published tree.
func (d *Document) SetRootFact(name, factID string, value any) {
	d.SetFact(name, FreqRoot, value)
	if d.FactID == nil {
		d.FactID = make(map[string]string)
	}
	d.FactID[name] = factID
}

// ClassOf returns the frequency class of a fact, defaulting to the
// document's own class when the compiler did not tag it.
func (d *Document) ClassOf(name string) Frequency {
	if c, ok := d.FactClass[name]; ok {
		return c
	}
	return d.Kind.Frequency()
}

// SetLink records a link relation.
func (d *Document) SetLink(rel string, l Link) {
	d.Links[rel] = l
}

// Embed appends an inline child copy to the named embedded collection.
func (d *Document) Embed(collection string, copy map[string]any) {
	if d.Embedded == nil {
		d.Embedded = make(map[string][]map[string]any)
	}
	d.Embedded[collection] = append(d.Embedded[collection], copy)
}

// Payload assembles the serializable form of the document: all facts at the
// top level plus the reserved _schema, _links and _embedded sections.
// Returns an error if a fact name collides with a reserved section or the
// document violates its kind's capability set.
func (d *Document) Payload() (map[string]any, error) {
	caps := d.Kind.Capabilities()
	if !d.Kind.Valid() {
		return nil, fmt.Errorf("document %s: invalid kind %q", d.Path, d.Kind)
	}
	if len(d.Embedded) > 0 && !caps.HasEmbedded {
		return nil, fmt.Errorf("document %s: kind %s does not permit embedded resources", d.Path, d.Kind)
	}

	out := make(map[string]any, len(d.Facts)+3)
	for name, v := range d.Facts {
		switch name {
		case SectionSchema, SectionLinks, SectionEmbedded:
			return nil, fmt.Errorf("document %s: fact name %q collides with reserved section", d.Path, name)
		}
		out[name] = v
	}
	out[SectionSchema] = d.Kind.SchemaRef()

	if len(d.Links) > 0 {
		links := make(map[string]any, len(d.Links))
		for rel, l := range d.Links {
			entry := map[string]any{"href": l.Href}
			if l.Title != "" {
				entry["title"] = l.Title
			}
			if l.Type != "" {
				entry["type"] = l.Type
			}
			links[rel] = entry
		}
		out[SectionLinks] = links
	}

	if len(d.Embedded) > 0 {
		embedded := make(map[string]any, len(d.Embedded))
		for coll, copies := range d.Embedded {
			items := make([]any, len(copies))
			for i, c := range copies {
				items[i] = c
			}
			embedded[coll] = items
		}
		out[SectionEmbedded] = embedded
	}

	return out, nil
}

// MarshalCanonical serializes the document to canonical JSON bytes.
// This is the only serialization the publisher writes to disk.
func (d *Document) MarshalCanonical() ([]byte, error) {
	payload, err := d.Payload()
	if err != nil {
		return nil, err
	}
	b, err := MarshalCanonical(payload)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", d.Path, err)
	}
	return b, nil
}

// Tree is one compiled resource set, keyed by canonical path.
// All documents in a tree share one CycleID.
type Tree struct {
	CycleID string
	docs    map[string]*Document
}

// NewTree creates an empty tree for the given compilation cycle.
func NewTree(cycleID string) *Tree {
	return &Tree{CycleID: cycleID, docs: make(map[string]*Document)}
}

// Add inserts a document, rejecting duplicate paths. Duplicate paths are a
// compiler bug, not a source defect, so this is an error rather than a
// validator diagnostic.
func (t *Tree) Add(d *Document) error {
	if _, ok := t.docs[d.Path]; ok {
		return fmt.Errorf("duplicate resource path %q", d.Path)
	}
	d.CycleID = t.CycleID
	t.docs[d.Path] = d
	return nil
}

// Get returns the document at path, or nil.
func (t *Tree) Get(path string) *Document {
	return t.docs[path]
}

// Len returns the number of documents in the tree.
func (t *Tree) Len() int {
	return len(t.docs)
}

// Paths returns every document path in lexical order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.docs))
	for p := range t.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge moves every document from other into t. Used at the compile barrier
// to join per-series and per-period shards; shards write disjoint paths, so
// a collision here is a compiler bug.
func (t *Tree) Merge(other *Tree) error {
	for _, p := range other.Paths() {
		if err := t.Add(other.docs[p]); err != nil {
			return err
		}
	}
	return nil
}
