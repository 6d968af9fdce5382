package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nifty/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transfer(contract, tokenID, to string) entity.TransferEvent {
	return entity.TransferEvent{ContractAddress: contract, TokenID: tokenID, To: to, TokenName: "Name" + tokenID, TokenSymbol: "SYM"}
}

func TestDedupeTransfers(t *testing.T) {
	events := []entity.TransferEvent{
		transfer(contractOne, "5", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
		transfer(contractTwo, "1", otherAddress),
		transfer(contractOne, "5", otherAddress),
		transfer(contractTwo, "1", ownerAddress),
		transfer(contractOne, "6", ownerAddress),
	}

	tokens := DedupeTransfers(ethereum, ownerAddress, events)
	require.Len(t, tokens, 3)

	assert.Equal(t, contractOne, tokens[0].ContractAddress)
	assert.Equal(t, "5", tokens[0].TokenID)
	assert.False(t, tokens[0].Owned, "later transfer away wins")
	assert.Equal(t, "Name5", tokens[0].TokenName)

	assert.Equal(t, contractTwo, tokens[1].ContractAddress)
	assert.True(t, tokens[1].Owned, "later transfer in wins")

	assert.Equal(t, "6", tokens[2].TokenID)
	assert.True(t, tokens[2].Owned)

	for _, tok := range tokens {
		assert.Equal(t, ethereum, tok.Chain)
		assert.Equal(t, entity.StagePending, tok.Stage)
		assert.Nil(t, tok.Metadata)
	}
}

func TestDedupeTransfersContractCase(t *testing.T) {
	tokens := DedupeTransfers(ethereum, ownerAddress, []entity.TransferEvent{
		transfer("0x00000000000000000000000000000000000000AB", "1", ownerAddress),
		transfer("0x00000000000000000000000000000000000000ab", "1", otherAddress),
	})
	require.Len(t, tokens, 1)
	assert.False(t, tokens[0].Owned)
}

func TestDiscoverMergesInChainOrder(t *testing.T) {
	explorer := &fakeExplorer{
		events: map[string][]entity.TransferEvent{
			"ethereum": {transfer(contractOne, "1", ownerAddress)},
			"polygon":  {transfer(contractTwo, "2", ownerAddress), transfer(contractTwo, "3", otherAddress)},
			"bsc":      {transfer(contractOne, "1", ownerAddress)},
		},
		before: func(_ context.Context, chain entity.ChainEndpoint) {
			// the first chain answers last
			if chain.Identifier == "ethereum" {
				time.Sleep(30 * time.Millisecond)
			}
		},
	}
	svc := NewDiscoveryService(fakeChainProvider{chains: []entity.ChainEndpoint{ethereum, polygon, bsc}}, explorer, nopLogger{}, testConfig())

	result, err := svc.Discover(context.Background(), ownerAddress)
	require.NoError(t, err)
	assert.Empty(t, result.ChainErrors)
	require.Len(t, result.Tokens, 4)

	assert.Equal(t, "ethereum", result.Tokens[0].Chain.Identifier)
	assert.Equal(t, "polygon", result.Tokens[1].Chain.Identifier)
	assert.Equal(t, "polygon", result.Tokens[2].Chain.Identifier)
	assert.False(t, result.Tokens[2].Owned)
	// same contract and id on another chain is a distinct token
	assert.Equal(t, "bsc", result.Tokens[3].Chain.Identifier)
	assert.Equal(t, contractOne, result.Tokens[3].ContractAddress)

	assert.Equal(t, 3, explorer.Calls(), "exactly one explorer request per chain")
}

func TestDiscoverReportsFailedChains(t *testing.T) {
	explorer := &fakeExplorer{
		events: map[string][]entity.TransferEvent{
			"ethereum": {transfer(contractOne, "1", ownerAddress)},
			"bsc":      {transfer(contractTwo, "9", ownerAddress)},
		},
		errs: map[string]error{
			"polygon": &entity.ExternalServiceError{Chain: "Polygon", Err: errors.New("explorer result is not an array")},
		},
	}
	svc := NewDiscoveryService(fakeChainProvider{chains: []entity.ChainEndpoint{ethereum, polygon, bsc}}, explorer, nopLogger{}, testConfig())

	result, err := svc.Discover(context.Background(), ownerAddress)
	require.NoError(t, err)
	require.Len(t, result.Tokens, 2)
	assert.Equal(t, "ethereum", result.Tokens[0].Chain.Identifier)
	assert.Equal(t, "bsc", result.Tokens[1].Chain.Identifier)

	require.Len(t, result.ChainErrors, 1)
	assert.Equal(t, "Polygon", result.ChainErrors[0].Chain)
	assert.Equal(t, uint64(137), result.ChainErrors[0].ChainID)
	assert.Contains(t, result.ChainErrors[0].Message, "not an array")
}

func TestDiscoverAbortOnChainError(t *testing.T) {
	explorer := &fakeExplorer{
		events: map[string][]entity.TransferEvent{
			"ethereum": {transfer(contractOne, "1", ownerAddress)},
			"bsc":      {transfer(contractTwo, "9", ownerAddress)},
		},
		errs: map[string]error{"polygon": errors.New("explorer result is not an array")},
	}
	cfg := testConfig()
	cfg.Discovery.AbortOnChainError = true
	svc := NewDiscoveryService(fakeChainProvider{chains: []entity.ChainEndpoint{ethereum, polygon, bsc}}, explorer, nopLogger{}, cfg)

	result, err := svc.Discover(context.Background(), ownerAddress)
	require.Error(t, err)
	assert.Nil(t, result, "no partial results")
	assert.ErrorIs(t, err, entity.ErrExternalService)

	var extErr *entity.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "Polygon", extErr.Chain)
}

func TestDiscoverCancelled(t *testing.T) {
	explorer := &fakeExplorer{}
	svc := NewDiscoveryService(fakeChainProvider{chains: []entity.ChainEndpoint{ethereum}}, explorer, nopLogger{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Discover(ctx, ownerAddress)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverNoChains(t *testing.T) {
	svc := NewDiscoveryService(fakeChainProvider{}, &fakeExplorer{}, nopLogger{}, testConfig())
	result, err := svc.Discover(context.Background(), ownerAddress)
	require.NoError(t, err)
	assert.NotNil(t, result.Tokens)
	assert.Empty(t, result.Tokens)
}
