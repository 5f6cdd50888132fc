// Package costmodel estimates what a bounded-budget, sequential consumer
// pays to walk the graph. It is an offline regression tool for the
// compiler's placement and sizing decisions; nothing here runs at serving
// time.
//
// For a trace of turns t=1..n with fetched sizes f_t and running context
// c_t = f_1 + ... + f_t:
//
//	cumulative = sum of c_t  (content fetched early is paid for on every
//	                          later turn, not just once)
//	attention  = sum of c_t^2 (cubic-order attention proxy)
//
// Two composable rewrites are modeled: load ordering (defer large content
// to the final turns) and turn collapsing (fetch more per turn). Neither
// may ever increase either cost.
package costmodel

import "sort"

// Fetch is one resource retrieval within a turn.
type Fetch struct {
	Path string `yaml:"path"`
	Size int64  `yaml:"size"`
}

// Turn groups the fetches performed in one consumer turn.
type Turn struct {
	Fetches []Fetch `yaml:"fetches"`
}

// Bytes returns the total size fetched in the turn.
func (t Turn) Bytes() int64 {
	var n int64
	for _, f := range t.Fetches {
		n += f.Size
	}
	return n
}

// Trace is an ordered multi-turn retrieval.
type Trace struct {
	Name  string `yaml:"name"`
	Turns []Turn `yaml:"turns"`
}

// TotalBytes returns the bytes fetched across all turns.
func (tr Trace) TotalBytes() int64 {
	var n int64
	for _, t := range tr.Turns {
		n += t.Bytes()
	}
	return n
}

// Cost is the estimate for one trace.
type Cost struct {
	Contexts   []int64 `json:"contexts"`   // context size at each turn
	Cumulative int64   `json:"cumulative"` // sum of per-turn context sizes
	Attention  int64   `json:"attention"`  // sum of squared context sizes
}

// Final returns the context size after the last turn (the trace's total
// bytes), zero for an empty trace.
func (c Cost) Final() int64 {
	if len(c.Contexts) == 0 {
		return 0
	}
	return c.Contexts[len(c.Contexts)-1]
}

// Estimate computes the cost of a trace.
func Estimate(tr Trace) Cost {
	cost := Cost{Contexts: make([]int64, len(tr.Turns))}
	var ctx int64
	for i, t := range tr.Turns {
		ctx += t.Bytes()
		cost.Contexts[i] = ctx
		cost.Cumulative += ctx
		cost.Attention += ctx * ctx
	}
	return cost
}

// FrontLoadSmall rewrites a trace so the smallest fetches come first and
// the largest land in the final turns, preserving the turn structure
// (same number of turns, same fetch count per turn). Minimizes the number
// of turns that pay for large content.
func FrontLoadSmall(tr Trace) Trace {
	flat := make([]Fetch, 0)
	for _, t := range tr.Turns {
		flat = append(flat, t.Fetches...)
	}
	// Stable so equal-size fetches keep their original order.
	sort.SliceStable(flat, func(i, j int) bool { return flat[i].Size < flat[j].Size })

	out := Trace{Name: tr.Name, Turns: make([]Turn, len(tr.Turns))}
	k := 0
	for i, t := range tr.Turns {
		n := len(t.Fetches)
		out.Turns[i] = Turn{Fetches: append([]Fetch(nil), flat[k:k+n]...)}
		k += n
	}
	return out
}

// Collapse rewrites a trace into a single turn carrying every fetch.
// Strictly cheaper than any multi-turn spread of the same bytes: the
// running-context multiplier is paid once.
func Collapse(tr Trace) Trace {
	var all []Fetch
	for _, t := range tr.Turns {
		all = append(all, t.Fetches...)
	}
	if len(all) == 0 {
		return Trace{Name: tr.Name}
	}
	return Trace{Name: tr.Name, Turns: []Turn{{Fetches: all}}}
}

// Report bundles the estimate for a trace with its two rewrites, for
// regression comparisons and CLI output.
type Report struct {
	Trace       string `json:"trace"`
	TurnCount   int    `json:"turn_count"`
	TotalBytes  int64  `json:"total_bytes"`
	Cost        Cost   `json:"cost"`
	FrontLoaded Cost   `json:"front_loaded"`
	Collapsed   Cost   `json:"collapsed"`
}

// Analyze builds the full report for a trace.
func Analyze(tr Trace) Report {
	return Report{
		Trace:       tr.Name,
		TurnCount:   len(tr.Turns),
		TotalBytes:  tr.TotalBytes(),
		Cost:        Estimate(tr),
		FrontLoaded: Estimate(FrontLoadSmall(tr)),
		Collapsed:   Estimate(Collapse(tr)),
	}
}
