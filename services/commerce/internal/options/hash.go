package options

import (
	"encoding/hex"
	"encoding/json"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// EmptyHash identifies a line with no selected options. It can never collide with a hex digest.
const EmptyHash = "none"

type canonicalPair struct {
	Name  string `json:"n"`
	Label string `json:"l"`
}

func Hash(selected []Selected) string {
	if len(selected) == 0 {
		return EmptyHash
	}
	sorted := slices.Clone(selected)
	sortSelected(sorted)

	pairs := make([]canonicalPair, len(sorted))
	for i, s := range sorted {
		pairs[i] = canonicalPair{Name: s.Name, Label: s.Label}
	}
	data, _ := json.Marshal(pairs)

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type Resolved struct {
	Selected  []Selected
	Hash      string
	UnitPrice int64
}

// Resolve runs selection matching, pricing and hashing in one step.
func Resolve(schema []Option, selections []Selection, basePrice int64) (Resolved, error) {
	selected, err := Match(schema, selections)
	if err != nil {
		return Resolved{}, err
	}
	price, err := UnitPrice(basePrice, selected)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Selected: selected, Hash: Hash(selected), UnitPrice: price}, nil
}
