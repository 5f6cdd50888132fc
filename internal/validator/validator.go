package validator

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/stele/internal/resource"
)

// Diagnostic codes (V100-V199).
const (
	ErrCapability    = "V100" // invalid kind or capability-set violation
	ErrRootPlacement = "V101" // root fact in more than one resource, or wormhole targeting a root resource
	ErrEmbeddedDrift = "V102" // denormalized copy differs from the authoritative value
	ErrWormholeCycle = "V103" // wormhole target neither immutable nor same-cycle
	ErrLeafMutation  = "V104" // leaf bytes differ from the previously published tree
	ErrReferential   = "V105" // resources disagree about series/release existence
	ErrDanglingLink  = "V106" // link target not present in the tree
	ErrDirection     = "V107" // backward relation on a non-leaf, or a forward relation from a leaf
	ErrPlacement     = "V108" // fact placed in a resource of slower frequency class than the fact
	ErrSoleSource    = "V110" // viewport fact not derivable from the compliant tree
)

// Diagnostic is one invariant violation.
type Diagnostic struct {
	Code    string `json:"code"`
	Path    string `json:"path"`           // resource path
	Fact    string `json:"fact,omitempty"` // fact or relation name
	Message string `json:"message"`
}

func (d Diagnostic) Error() string {
	if d.Fact != "" {
		return fmt.Sprintf("[%s] %s %s: %s", d.Code, d.Path, d.Fact, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Path, d.Message)
}

// Validate scans the whole tree and returns every violation found.
// previous, when non-nil, maps resource paths to the bytes of the currently
// published tree; leaf paths present in both must be byte-identical.
//
// The scan collects all diagnostics rather than failing fast, so one run
// reports the complete violation list in deterministic order.
func Validate(tree *resource.Tree, previous map[string][]byte) []Diagnostic {
	v := &pass{tree: tree, previous: previous}

	for _, path := range tree.Paths() {
		doc := tree.Get(path)
		v.checkCapabilities(doc)
		v.checkPlacement(doc)
		v.checkLinks(doc)
		v.checkEmbedded(doc)
		v.checkLeafBytes(doc)
	}
	v.checkRootFacts()
	v.checkReferential()
	v.checkDisclosureCopies()
	return v.diags
}

type pass struct {
	tree     *resource.Tree
	previous map[string][]byte
	diags    []Diagnostic
}

func (v *pass) report(code, path, fact, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{
		Code:    code,
		Path:    path,
		Fact:    fact,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *pass) checkCapabilities(doc *resource.Document) {
	if !doc.Kind.Valid() {
		v.report(ErrCapability, doc.Path, "", "unknown resource kind %q", doc.Kind)
		return
	}
	caps := doc.Kind.Capabilities()
	if len(doc.Links) > 0 && !caps.HasLinks {
		v.report(ErrCapability, doc.Path, "", "kind %s does not permit links", doc.Kind)
	}
	if len(doc.Embedded) > 0 && !caps.HasEmbedded {
		v.report(ErrCapability, doc.Path, "", "kind %s does not permit embedded resources", doc.Kind)
	}
	if _, err := doc.Payload(); err != nil {
		v.report(ErrCapability, doc.Path, "", "%v", err)
	}
}

// checkPlacement enforces the frequency-class rule: a resource never
// carries a fact that mutates faster than the resource itself. The viewport
// is the documented exception.
func (v *pass) checkPlacement(doc *resource.Document) {
	if doc.Kind == resource.KindViewport {
		return
	}
	docFreq := doc.Kind.Frequency()
	for _, name := range sortedKeys(doc.Facts) {
		if class := doc.ClassOf(name); class.Faster(docFreq) {
			v.report(ErrPlacement, doc.Path, name,
				"%s-frequency fact placed in %s-frequency resource", class, docFreq)
		}
	}
}

func (v *pass) checkLinks(doc *resource.Document) {
	isLeaf := doc.Kind.Frequency() == resource.FreqLeaf
	for _, rel := range sortedKeys(doc.Links) {
		link := doc.Links[rel]

		if rel == "next" || strings.HasPrefix(rel, "next-") {
			v.report(ErrDirection, doc.Path, rel,
				"forward relations are forbidden: a successor added later would mutate this document")
		}
		if resource.IsBackward(rel) && !isLeaf {
			v.report(ErrDirection, doc.Path, rel, "backward chain relation on non-leaf kind %s", doc.Kind)
		}

		if !strings.HasPrefix(link.Href, "/") {
			continue // exit node: external payload, not this system's schema
		}
		target := v.tree.Get(link.Href)
		if target == nil {
			v.report(ErrDanglingLink, doc.Path, rel, "target %q does not exist", link.Href)
			continue
		}
		if resource.IsWormhole(rel) {
			if target.Kind.Frequency() == resource.FreqRoot {
				v.report(ErrRootPlacement, doc.Path, rel,
					"wormhole targets root-frequency resource %q", link.Href)
			}
			if target.Kind.Frequency() != resource.FreqLeaf && target.CycleID != doc.CycleID {
				v.report(ErrWormholeCycle, doc.Path, rel,
					"target %q is mutable and from a different compilation cycle", link.Href)
			}
		}
	}
}

// checkEmbedded verifies that every denormalized copy with an href exactly
// matches the authoritative facts of the resource it mirrors. For the
// viewport this doubles as the sole-source check: a viewport value absent
// from the target resource has no compliant derivation.
func (v *pass) checkEmbedded(doc *resource.Document) {
	for _, coll := range sortedKeys(doc.Embedded) {
		for i, copy := range doc.Embedded[coll] {
			href, ok := copy["href"].(string)
			if !ok {
				continue // identity-grouped copies handled by checkDisclosureCopies
			}
			target := v.tree.Get(href)
			if target == nil {
				v.report(ErrDanglingLink, doc.Path, fmt.Sprintf("%s[%d]", coll, i),
					"embedded copy references missing resource %q", href)
				continue
			}
			for _, key := range sortedKeys(copy) {
				if key == "href" || strings.HasSuffix(key, "_href") {
					continue
				}
				authoritative, exists := target.Facts[key]
				if !exists {
					code := ErrEmbeddedDrift
					if doc.Kind == resource.KindViewport {
						code = ErrSoleSource
					}
					v.report(code, doc.Path, fmt.Sprintf("%s[%d].%s", coll, i, key),
						"no authoritative value in %q", href)
					continue
				}
				if !canonicalEqual(copy[key], authoritative) {
					v.report(ErrEmbeddedDrift, doc.Path, fmt.Sprintf("%s[%d].%s", coll, i, key),
						"copy differs from authoritative value in %q", href)
				}
			}
		}
	}
}

// checkLeafBytes enforces leaf immutability against the previously published
// tree: a leaf path present in both must serialize to identical bytes.
func (v *pass) checkLeafBytes(doc *resource.Document) {
	if v.previous == nil || doc.Kind.Frequency() != resource.FreqLeaf {
		return
	}
	prior, ok := v.previous[doc.Path]
	if !ok {
		return
	}
	current, err := doc.MarshalCanonical()
	if err != nil {
		v.report(ErrCapability, doc.Path, "", "cannot serialize: %v", err)
		return
	}
	if !bytes.Equal(prior, current) {
		v.report(ErrLeafMutation, doc.Path, "",
			"leaf output differs from previously published bytes")
	}
}

// checkRootFacts enforces the one-home rule: each root-frequency fact identity
// appears in exactly one resource tree-wide. The viewport is exempt by
// contract (its root-adjacent copies are the documented trade-off).
func (v *pass) checkRootFacts() {
	seen := make(map[string]string) // fact identity -> first path
	for _, path := range v.tree.Paths() {
		doc := v.tree.Get(path)
		if doc.Kind == resource.KindViewport {
			continue
		}
		for _, name := range sortedKeys(doc.Facts) {
			if doc.ClassOf(name) != resource.FreqRoot {
				continue
			}
			id := doc.FactID[name]
			if id == "" {
				id = path + ":" + name
			}
			if first, dup := seen[id]; dup {
				v.report(ErrRootPlacement, path, name,
					"root fact %q already placed in %q", id, first)
				continue
			}
			seen[id] = path
		}
	}
}

// checkReferential enforces referential agreement: no two resources reachable from
// the root disagree about the existence of a series or release.
func (v *pass) checkReferential() {
	root := v.tree.Get("/index.json")
	if root == nil {
		v.report(ErrReferential, "/index.json", "", "tree has no root-index")
		return
	}

	listed, _ := root.Facts["series"].([]any)
	listedSet := make(map[string]bool, len(listed))
	for _, id := range listed {
		s, _ := id.(string)
		listedSet[s] = true
		indexPath := fmt.Sprintf("/series/%s/index.json", s)
		if v.tree.Get(indexPath) == nil {
			v.report(ErrReferential, root.Path, "series",
				"lists series %q but %q does not exist", s, indexPath)
		}
	}

	for _, path := range v.tree.Paths() {
		doc := v.tree.Get(path)
		switch doc.Kind {
		case resource.KindSeriesIndex:
			id, _ := doc.Facts["series"].(string)
			if !listedSet[id] {
				v.report(ErrReferential, path, "series",
					"series %q exists but the root-index does not list it", id)
			}
			v.checkSeriesReleases(doc)
		case resource.KindReleaseDetail:
			id, _ := doc.Facts["series"].(string)
			index := v.tree.Get(fmt.Sprintf("/series/%s/index.json", id))
			if index == nil {
				v.report(ErrReferential, path, "series",
					"release belongs to series %q which has no series-index", id)
			}
		}
	}
}

// checkSeriesReleases verifies the series-index's release listing agrees
// exactly with the release-detail documents present in the tree.
func (v *pass) checkSeriesReleases(index *resource.Document) {
	id, _ := index.Facts["series"].(string)
	prefix := fmt.Sprintf("/series/%s/", id)

	listed := make(map[string]bool)
	for _, copy := range index.Embedded["releases"] {
		if href, ok := copy["href"].(string); ok {
			listed[href] = true
		}
	}

	for _, path := range v.tree.Paths() {
		doc := v.tree.Get(path)
		if doc.Kind != resource.KindReleaseDetail || !strings.HasPrefix(path, prefix) {
			continue
		}
		if !listed[path] {
			v.report(ErrReferential, index.Path, "releases",
				"release-detail %q exists but is not listed", path)
		}
		delete(listed, path)
	}
	for _, href := range sortedKeys(listed) {
		v.report(ErrReferential, index.Path, "releases",
			"lists release %q but no release-detail exists", href)
	}
}

// checkDisclosureCopies groups href-less embedded copies by their "id" key
// across the tree; all copies of one record must be verbatim identical
// (the same-instant rule for leaf-class denormalization).
func (v *pass) checkDisclosureCopies() {
	first := make(map[string][]byte)
	firstPath := make(map[string]string)
	for _, path := range v.tree.Paths() {
		doc := v.tree.Get(path)
		for _, coll := range sortedKeys(doc.Embedded) {
			for i, copy := range doc.Embedded[coll] {
				if _, hasHref := copy["href"]; hasHref {
					continue
				}
				id, ok := copy["id"].(string)
				if !ok {
					continue
				}
				b, err := resource.MarshalCanonical(copy)
				if err != nil {
					v.report(ErrCapability, path, fmt.Sprintf("%s[%d]", coll, i), "%v", err)
					continue
				}
				if prior, seen := first[id]; seen {
					if !bytes.Equal(prior, b) {
						v.report(ErrEmbeddedDrift, path, fmt.Sprintf("%s[%d]", coll, i),
							"copy of %q differs from the copy in %q", id, firstPath[id])
					}
					continue
				}
				first[id] = b
				firstPath[id] = path
			}
		}
	}
}

func canonicalEqual(a, b any) bool {
	ab, err := resource.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := resource.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// sortedKeys fixes the scan order over any string-keyed map so diagnostics
// come out deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
