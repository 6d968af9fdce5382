package service

import (
	"context"
	"errors"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"
	"nifty/internal/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// DiscoveryServiceImpl implements port.DiscoveryService.
type DiscoveryServiceImpl struct {
	chainProvider       port.ChainDefinitionProvider
	explorer            port.ExplorerClient
	logger              port.Logger
	maxConcurrentChains int
	abortOnChainError   bool
}

// NewDiscoveryService creates a new instance of DiscoveryServiceImpl.
func NewDiscoveryService(
	cp port.ChainDefinitionProvider,
	explorer port.ExplorerClient,
	l port.Logger,
	cfg *configloader.Config,
) port.DiscoveryService {
	maxChains := cfg.Discovery.MaxConcurrentChains
	if maxChains <= 0 {
		maxChains = 1
	}
	return &DiscoveryServiceImpl{
		chainProvider:       cp,
		explorer:            explorer,
		logger:              l,
		maxConcurrentChains: maxChains,
		abortOnChainError:   cfg.Discovery.AbortOnChainError,
	}
}

// Discover queries every chain for NFT transfers touching address and merges the
// per-chain token lists in chain order. With abortOnChainError the first failing
// chain fails the whole discovery; otherwise failures are reported per chain.
func (s *DiscoveryServiceImpl) Discover(ctx context.Context, address string) (*entity.DiscoveryResult, error) {
	chains := s.chainProvider.GetAllChains()
	results := make([]entity.ChainResult, len(chains))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxConcurrentChains)

	for i, chain := range chains {
		eg.Go(func() error {
			results[i] = s.discoverChain(egCtx, chain, address)
			if results[i].Err != nil && s.abortOnChainError {
				return results[i].Err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		s.logger.Error("Discovery aborted", "address", address, "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := &entity.DiscoveryResult{Tokens: make([]entity.TokenRecord, 0)}
	for _, r := range results {
		if r.Err != nil {
			merged.ChainErrors = append(merged.ChainErrors, entity.ChainError{
				Chain:   r.Chain.Name,
				ChainID: r.Chain.ChainID,
				Message: r.Err.Error(),
			})
			continue
		}
		merged.Tokens = append(merged.Tokens, r.Tokens...)
	}

	s.logger.Info("Discovery finished",
		"address", address,
		"chains", len(chains),
		"tokens", len(merged.Tokens),
		"failed_chains", len(merged.ChainErrors))
	return merged, nil
}

func (s *DiscoveryServiceImpl) discoverChain(ctx context.Context, chain entity.ChainEndpoint, address string) entity.ChainResult {
	events, err := s.explorer.GetNFTTransfers(ctx, chain, address)
	if err != nil {
		var extErr *entity.ExternalServiceError
		if !errors.As(err, &extErr) {
			err = &entity.ExternalServiceError{Chain: chain.Name, Err: err}
		}
		s.logger.Warn("Failed to query explorer", "chain", chain.Name, "error", err)
		return entity.ChainResult{Chain: chain, Err: err}
	}

	tokens := DedupeTransfers(chain, address, events)
	s.logger.Debug("Chain discovered", "chain", chain.Name, "events", len(events), "tokens", len(tokens))
	return entity.ChainResult{Chain: chain, Tokens: tokens}
}

// DedupeTransfers folds transfer events into one record per (contract, token id), in order of
// first appearance. Later events for the same token only update ownership, so with events
// sorted oldest first a token is owned iff its most recent transfer went to address.
func DedupeTransfers(chain entity.ChainEndpoint, address string, events []entity.TransferEvent) []entity.TokenRecord {
	tokens := make([]entity.TokenRecord, 0, len(events))
	index := make(map[entity.TokenKey]int, len(events))

	for _, ev := range events {
		owned := utils.SameAddress(ev.To, address)
		key := entity.NewTokenKey(ev.ContractAddress, ev.TokenID)
		if i, seen := index[key]; seen {
			tokens[i].Owned = owned
			continue
		}
		index[key] = len(tokens)
		tokens = append(tokens, entity.TokenRecord{
			Chain:           chain,
			ContractAddress: ev.ContractAddress,
			TokenID:         ev.TokenID,
			TokenName:       ev.TokenName,
			TokenSymbol:     ev.TokenSymbol,
			Owned:           owned,
			Stage:           entity.StagePending,
		})
	}
	return tokens
}
