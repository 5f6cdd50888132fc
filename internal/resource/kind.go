package resource

// Frequency is the expected mutation rate of a fact or resource.
// Placement rules key off this: root changes ~1-2x/year, branch changes
// every compilation cycle, leaf is immutable once published.
type Frequency string

const (
	FreqRoot   Frequency = "root"
	FreqBranch Frequency = "branch"
	FreqLeaf   Frequency = "leaf"
)

// Faster reports whether f mutates more often than other.
// Ordering: leaf < root < branch is NOT the ordering; the mutation-rate
// ordering is root < branch, with leaf frozen (never mutates after publish).
func (f Frequency) Faster(other Frequency) bool {
	return freqRate(f) > freqRate(other)
}

func freqRate(f Frequency) int {
	switch f {
	case FreqLeaf:
		return 0 // frozen
	case FreqRoot:
		return 1
	case FreqBranch:
		return 2
	}
	return 3
}

// Kind is the closed set of resource variants in the published tree.
type Kind string

const (
	KindRootIndex     Kind = "root-index"
	KindSeriesIndex   Kind = "series-index"
	KindReleaseDetail Kind = "release-detail"
	KindTimelineRoot  Kind = "timeline-root"
	KindPeriodIndex   Kind = "period-index"
	KindInstantIndex  Kind = "instant-index"
	KindManifest      Kind = "manifest"
	KindViewport      Kind = "viewport"
)

// Kinds lists every valid kind, in tree order.
var Kinds = []Kind{
	KindRootIndex,
	KindSeriesIndex,
	KindReleaseDetail,
	KindTimelineRoot,
	KindPeriodIndex,
	KindInstantIndex,
	KindManifest,
	KindViewport,
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindRootIndex, KindSeriesIndex, KindReleaseDetail, KindTimelineRoot,
		KindPeriodIndex, KindInstantIndex, KindManifest, KindViewport:
		return true
	}
	return false
}

// Frequency returns the frequency class of resources of this kind.
// The viewport is classed branch: it is regenerated every cycle and its
// invariant exemptions are handled explicitly by the validator, not by
// giving it a class of its own.
func (k Kind) Frequency() Frequency {
	switch k {
	case KindRootIndex, KindTimelineRoot:
		return FreqRoot
	case KindReleaseDetail, KindInstantIndex:
		return FreqLeaf
	default:
		return FreqBranch
	}
}

// Capabilities is the capability set of a kind: which reserved sections a
// document of that kind may carry. Dynamic shape-checking is replaced by
// this closed table.
type Capabilities struct {
	HasLinks    bool
	HasEmbedded bool
	HasManifest bool
}

// Capabilities returns the capability set for the kind.
func (k Kind) Capabilities() Capabilities {
	switch k {
	case KindRootIndex:
		return Capabilities{HasLinks: true, HasManifest: true}
	case KindSeriesIndex:
		return Capabilities{HasLinks: true, HasEmbedded: true}
	case KindReleaseDetail:
		return Capabilities{HasLinks: true, HasEmbedded: true}
	case KindTimelineRoot:
		return Capabilities{HasLinks: true}
	case KindPeriodIndex:
		return Capabilities{HasLinks: true, HasEmbedded: true}
	case KindInstantIndex:
		return Capabilities{HasLinks: true, HasEmbedded: true}
	case KindManifest:
		return Capabilities{HasLinks: true, HasManifest: true}
	case KindViewport:
		return Capabilities{HasLinks: true, HasEmbedded: true}
	}
	return Capabilities{}
}

// SchemaRef returns the self-description schema reference carried in every
// document's _schema field.
func (k Kind) SchemaRef() string {
	return "https://stele.dev/schema/" + string(k) + "/v1"
}

// Link relation vocabulary. Relation names are hyphenated to keep them
// visually distinct from snake_case fact names.
const (
	RelSelf         = "self"
	RelRoot         = "root"
	RelSeries       = "series"
	RelTimeline     = "timeline"
	RelPeriod       = "period"
	RelManifest     = "manifest"
	RelViewport     = "viewport"
	RelLatest       = "latest"
	RelLatestSec    = "latest-security"
	RelPrev         = "prev"
	RelPrevSec      = "prev-security"
	RelReleaseMonth = "release-month"
	RelReleaseMajor = "release-major"
)

// wormholeRelations are the shortcut relations whose targets must satisfy
// the same-cycle rule (target immutable, or same compilation cycle as the
// origin).
var wormholeRelations = map[string]bool{
	RelLatest:       true,
	RelLatestSec:    true,
	RelPrev:         true,
	RelPrevSec:      true,
	RelReleaseMonth: true,
	RelReleaseMajor: true,
}

// IsWormhole reports whether rel is a wormhole relation (as opposed to a
// canonical self reference or structural parent/child navigation).
func IsWormhole(rel string) bool {
	return wormholeRelations[rel]
}

// IsBackward reports whether rel is a backward-chain relation, which may
// only be attached to leaf resources: a backward edge on a mutable resource
// would change its bytes whenever the chain grows.
func IsBackward(rel string) bool {
	return rel == RelPrev || rel == RelPrevSec
}
