// Package validator is the publication gate: a total scan over a compiled
// tree that checks every data-model invariant before anything is swapped
// into the published location. It reports one diagnostic per violation,
// keyed by resource path and fact name, and any diagnostic fails the build.
// It repairs nothing.
//
// This is the most safety-critical package in the system: a systemic miss
// here reintroduces exactly the cache-incoherency failure mode the resource
// placement rules exist to eliminate.
package validator
