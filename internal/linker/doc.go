// Package linker computes every link relation for a compiled tree: the
// canonical self reference, structural parent/child navigation, and the
// wormhole shortcuts (latest, latest-security, prev, prev-security,
// release-month, release-major).
//
// Direction rule: backward chains (prev, prev-security) attach only to leaf
// resources, and there is deliberately no forward relation from a leaf - a
// leaf's successor may not exist at compile time and adding it later would
// mutate a published immutable document. The oldest resource in a chain
// simply omits its prev relation.
package linker
