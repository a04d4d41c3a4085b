package treeio

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/mutree/internal/mutree"
)

// DomainTree prefixes tree hashes. The version suffix allows the encoding
// to change without colliding with old hashes.
const DomainTree = "mutree/tree/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Canonical returns the canonical JSON of t, uids included.
func Canonical(t *mutree.Tree) ([]byte, error) {
	return MarshalCanonical(canonicalDoc(FromTree(t)))
}

// Hash identifies t by content: same shape, payloads, uids and names give
// the same hash. Two runs with the same seed must agree on it.
func Hash(t *mutree.Tree) (string, error) {
	data, err := Canonical(t)
	if err != nil {
		return "", fmt.Errorf("hash tree: %w", err)
	}
	return hashWithDomain(DomainTree, data), nil
}

func canonicalDoc(d Document) map[string]any {
	names := make([]any, len(d.Mutations))
	for i, n := range d.Mutations {
		names[i] = n
	}
	return map[string]any{
		"version":   d.Version,
		"mutations": names,
		"limits": map[string]any{
			"max_losses":              d.Limits.MaxLosses,
			"max_losses_per_mutation": d.Limits.MaxLossesPerMutation,
		},
		"root": canonicalNode(d.Root),
	}
}

func canonicalNode(n Node) map[string]any {
	children := make([]any, len(n.Children))
	for i, c := range n.Children {
		children[i] = canonicalNode(c)
	}
	return map[string]any{
		"name":        n.Name,
		"mutation_id": n.MutationID,
		"loss":        n.Loss,
		"children":    children,
		"uid":         n.UID,
	}
}
