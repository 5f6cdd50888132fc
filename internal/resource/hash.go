package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing. The version suffix allows a future
// algorithm migration without colliding with old hashes.
const (
	domainDocument = "stele/document/v1"
	domainTree     = "stele/tree/v1"
)

// hashWithDomain computes SHA-256 over domain + 0x00 + data. The null
// separator removes domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the content-addressed identity of a document,
// computed over its canonical bytes. Stable across compilation cycles for
// unchanged content, which is what the leaf-immutability check relies on.
func (d *Document) ContentHash() (string, error) {
	b, err := d.MarshalCanonical()
	if err != nil {
		return "", err
	}
	return hashWithDomain(domainDocument, b), nil
}

// Hash returns the identity of a whole tree: the hash of every document's
// path and content hash, in lexical path order.
func (t *Tree) Hash() (string, error) {
	var acc []byte
	for _, p := range t.Paths() {
		dh, err := t.docs[p].ContentHash()
		if err != nil {
			return "", fmt.Errorf("tree hash: %w", err)
		}
		acc = append(acc, p...)
		acc = append(acc, 0x00)
		acc = append(acc, dh...)
		acc = append(acc, 0x0A)
	}
	return hashWithDomain(domainTree, acc), nil
}
