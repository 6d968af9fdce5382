package port

import (
	"context"

	"nifty/internal/domain/entity"
)

// ExplorerClient queries an Etherscan-compatible explorer API.
type ExplorerClient interface {
	// GetNFTTransfers returns the NFT transfer events touching address, oldest first.
	GetNFTTransfers(ctx context.Context, chain entity.ChainEndpoint, address string) ([]entity.TransferEvent, error)
}

// MetadataFetcher downloads token metadata documents.
type MetadataFetcher interface {
	FetchDocument(ctx context.Context, url string) (map[string]interface{}, error)
}
