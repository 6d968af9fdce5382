package port

import (
	"context"

	"nifty/internal/domain/entity"
)

// ContractReader reads NFT contract state on a single chain.
type ContractReader interface {
	// TokenURIs resolves tokenURI(tokenId) for every request in one round trip.
	// A failure of the whole call is returned as error; per-request failures are
	// reported on the individual results.
	TokenURIs(ctx context.Context, requests []entity.TokenURIRequest) ([]entity.TokenURIResult, error)

	// Definition returns the chain this reader is bound to.
	Definition() entity.ChainEndpoint
}

// ChainDefinitionProvider defines the interface for providing chain endpoints.
type ChainDefinitionProvider interface {
	// GetAllChains returns the supported chains in their fixed display order.
	GetAllChains() []entity.ChainEndpoint

	// GetChainByIdentifier returns a chain by identifier (e.g. "polygon").
	GetChainByIdentifier(identifier string) (entity.ChainEndpoint, bool)
}

// ContractReaderProvider hands out contract readers per chain.
type ContractReaderProvider interface {
	GetReader(chain entity.ChainEndpoint) (ContractReader, error)
}
