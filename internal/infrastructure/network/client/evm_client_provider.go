package client

import (
	"fmt"
	"sync"
	"time"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"
)

// readerFactory builds a reader for a chain; swapped in tests.
type readerFactory func(chain entity.ChainEndpoint, connectionTimeout, rpcCallTimeout time.Duration) (port.ContractReader, error)

func dialEVMClient(chain entity.ChainEndpoint, connectionTimeout, rpcCallTimeout time.Duration) (port.ContractReader, error) {
	return NewEVMClient(chain, connectionTimeout, rpcCallTimeout)
}

// evmClientProvider implements the port.ContractReaderProvider interface.
type evmClientProvider struct {
	clients           map[string]port.ContractReader
	mu                sync.Mutex
	loggerInfo        func(msg string, args ...any)
	loggerError       func(msg string, args ...any)
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	newReader         readerFactory
}

// NewEVMClientProvider creates a new EVMClientProvider.
func NewEVMClientProvider(
	cfg *configloader.Config,
	loggerInfo func(msg string, args ...any),
	loggerError func(msg string, args ...any),
) port.ContractReaderProvider {
	return &evmClientProvider{
		clients:           make(map[string]port.ContractReader),
		loggerInfo:        loggerInfo,
		loggerError:       loggerError,
		connectionTimeout: time.Duration(cfg.RPC.ConnectionTimeoutSeconds) * time.Second,
		rpcCallTimeout:    time.Duration(cfg.RPC.CallTimeoutSeconds) * time.Second,
		newReader:         dialEVMClient,
	}
}

// GetReader retrieves a contract reader for the given chain.
// Readers are cached per chain to avoid reconnecting repeatedly; failed dials are not cached.
func (p *evmClientProvider) GetReader(chain entity.ChainEndpoint) (port.ContractReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if reader, exists := p.clients[chain.Identifier]; exists {
		return reader, nil
	}

	p.loggerInfo("Creating new EVM client", "chain", chain.Name, "rpc_primary", chain.RPCURL)
	reader, err := p.newReader(chain, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.loggerError("Failed to create EVM client", "chain", chain.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", chain.Name, err)
	}

	p.clients[chain.Identifier] = reader
	p.loggerInfo("Successfully created and cached new EVM client", "chain", chain.Name)
	return reader, nil
}

// Close closes every cached client.
func (p *evmClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, reader := range p.clients {
		if c, ok := reader.(interface{ Close() }); ok {
			c.Close()
		}
		delete(p.clients, id)
	}
}
