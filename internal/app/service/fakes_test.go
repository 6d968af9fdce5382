package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"
)

const (
	ownerAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	otherAddress = "0x000000000000000000000000000000000000dEaD"
	contractOne  = "0x0000000000000000000000000000000000000001"
	contractTwo  = "0x0000000000000000000000000000000000000002"
)

var (
	ethereum = entity.ChainEndpoint{ChainID: 1, Name: "Ethereum", Identifier: "ethereum", ExplorerHost: "api.etherscan.io"}
	polygon  = entity.ChainEndpoint{ChainID: 137, Name: "Polygon", Identifier: "polygon", ExplorerHost: "api.polygonscan.com"}
	bsc      = entity.ChainEndpoint{ChainID: 56, Name: "BSC", Identifier: "bsc", ExplorerHost: "api.bscscan.com"}
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func testConfig() *configloader.Config {
	return &configloader.Config{
		RPC:        configloader.RPCConfig{BatchSize: 50},
		IPFS:       configloader.IPFSConfig{GatewayHost: "cloudflare-ipfs.com"},
		Discovery:  configloader.DiscoveryConfig{MaxConcurrentChains: 6, TimeoutSeconds: 5},
		Resolution: configloader.ResolutionConfig{MaxConcurrentTokens: 4, TimeoutSeconds: 5},
	}
}

type fakeChainProvider struct {
	chains []entity.ChainEndpoint
}

func (p fakeChainProvider) GetAllChains() []entity.ChainEndpoint {
	return append([]entity.ChainEndpoint(nil), p.chains...)
}

func (p fakeChainProvider) GetChainByIdentifier(id string) (entity.ChainEndpoint, bool) {
	for _, c := range p.chains {
		if c.Identifier == id {
			return c, true
		}
	}
	return entity.ChainEndpoint{}, false
}

// fakeExplorer serves canned transfer events per chain identifier.
type fakeExplorer struct {
	events map[string][]entity.TransferEvent
	errs   map[string]error
	// before runs ahead of every response, e.g. to delay a chain
	before func(ctx context.Context, chain entity.ChainEndpoint)
	calls  int32
}

func (f *fakeExplorer) GetNFTTransfers(ctx context.Context, chain entity.ChainEndpoint, address string) ([]entity.TransferEvent, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.before != nil {
		f.before(ctx, chain)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.errs[chain.Identifier]; err != nil {
		return nil, err
	}
	return f.events[chain.Identifier], nil
}

func (f *fakeExplorer) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

// fakeReader answers tokenURI lookups from a map keyed by "contract:id".
type fakeReader struct {
	chain    entity.ChainEndpoint
	uris     map[string]string
	failing  map[string]error
	batchErr error

	mu      sync.Mutex
	batches [][]entity.TokenURIRequest
}

func (r *fakeReader) TokenURIs(_ context.Context, requests []entity.TokenURIRequest) ([]entity.TokenURIResult, error) {
	r.mu.Lock()
	r.batches = append(r.batches, requests)
	r.mu.Unlock()
	if r.batchErr != nil {
		return nil, r.batchErr
	}
	results := make([]entity.TokenURIResult, len(requests))
	for i, req := range requests {
		key := strings.ToLower(req.ContractAddress) + ":" + req.TokenID
		results[i] = entity.TokenURIResult{RequestID: req.ID, ContractAddress: req.ContractAddress, TokenID: req.TokenID}
		if err := r.failing[key]; err != nil {
			results[i].Error = err
			continue
		}
		results[i].URI = r.uris[key]
	}
	return results, nil
}

func (r *fakeReader) Definition() entity.ChainEndpoint { return r.chain }

func (r *fakeReader) Batches() [][]entity.TokenURIRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

type fakeReaderProvider struct {
	readers map[string]*fakeReader
}

func (p fakeReaderProvider) GetReader(chain entity.ChainEndpoint) (port.ContractReader, error) {
	r, ok := p.readers[chain.Identifier]
	if !ok {
		return nil, errors.New("no reader for " + chain.Identifier)
	}
	return r, nil
}

// fakeFetcher serves metadata documents by URL.
type fakeFetcher struct {
	docs  map[string]map[string]interface{}
	mu    sync.Mutex
	urls  []string
	calls int32
}

func (f *fakeFetcher) FetchDocument(_ context.Context, url string) (map[string]interface{}, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	doc, ok := f.docs[url]
	if !ok {
		return nil, errors.New("metadata request failed with status 404")
	}
	return doc, nil
}

func (f *fakeFetcher) Calls() int { return int(atomic.LoadInt32(&f.calls)) }
