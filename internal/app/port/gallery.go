package port

import (
	"context"

	"nifty/internal/domain/entity"
)

// DiscoveryService enumerates the tokens an address has received on every chain.
type DiscoveryService interface {
	Discover(ctx context.Context, address string) (*entity.DiscoveryResult, error)
}

// ResolutionService attaches metadata to discovered tokens. It never fails as a whole:
// per-token problems degrade that token to placeholder metadata.
type ResolutionService interface {
	Resolve(ctx context.Context, tokens []entity.TokenRecord) []entity.TokenRecord
}

// GalleryService defines the interface for building NFT galleries.
type GalleryService interface {
	// Query validates the address, discovers its tokens and resolves their metadata.
	Query(ctx context.Context, address string) (*entity.Gallery, error)

	// SetAddress switches the interactive gallery to a new address and starts
	// loading it in the background. The returned state is the new snapshot.
	SetAddress(address string) entity.GalleryState

	// State returns the current snapshot of the interactive gallery.
	State() entity.GalleryState

	// Chains lists the chains queried by the service.
	Chains() []entity.ChainEndpoint

	// Close cancels background runs and waits for them to finish.
	Close()
}
