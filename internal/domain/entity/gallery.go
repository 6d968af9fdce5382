package entity

import "time"

// ChainResult is the tagged outcome of querying a single chain.
type ChainResult struct {
	Chain  ChainEndpoint
	Tokens []TokenRecord
	Err    error
}

// DiscoveryResult is the merged outcome of querying all chains.
type DiscoveryResult struct {
	Tokens      []TokenRecord `json:"tokens"`
	ChainErrors []ChainError  `json:"chainErrors,omitempty"`
}

// Gallery is the fully resolved token list for one address.
type Gallery struct {
	Address     string        `json:"address"`
	Tokens      []TokenRecord `json:"tokens"`
	ChainErrors []ChainError  `json:"chainErrors,omitempty"`
	ResolvedAt  time.Time     `json:"resolvedAt"`
}

// OwnedOnly returns a copy of the gallery without tokens that were transferred away.
func (g Gallery) OwnedOnly() Gallery {
	owned := make([]TokenRecord, 0, len(g.Tokens))
	for _, t := range g.Tokens {
		if t.Owned {
			owned = append(owned, t)
		}
	}
	g.Tokens = owned
	return g
}

// GalleryState is an immutable snapshot of the interactive gallery.
// Epoch increases on every address change; results from older epochs are dropped.
type GalleryState struct {
	Address     string        `json:"address"`
	Epoch       uint64        `json:"epoch"`
	Tokens      []TokenRecord `json:"tokens"`
	ChainErrors []ChainError  `json:"chainErrors,omitempty"`
	Loading     bool          `json:"loading"`
	Error       string        `json:"error,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
