package networkdefinition

import (
	"fmt"
	"strings"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
)

// ChainDefinitionProvider provides the chains galleries are built from.
type ChainDefinitionProvider struct {
	logger       port.Logger
	activeChains []entity.ChainEndpoint
}

// Predefined chain endpoints.
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.ChainEndpoint{
		ChainID:          1,
		Name:             "Ethereum",
		Identifier:       "ethereum",
		ExplorerHost:     "api.etherscan.io",
		RPCURL:           "https://ethereum-rpc.publicnode.com",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/eth", "https://ethereum.publicnode.com"},
		BlockExplorerURL: "https://etherscan.io",
	}
	Polygon = entity.ChainEndpoint{
		ChainID:          137,
		Name:             "Polygon",
		Identifier:       "polygon",
		ExplorerHost:     "api.polygonscan.com",
		RPCURL:           "https://polygon-rpc.com",
		FallbackRPCURLs:  []string{"https://rpc.ankr.com/polygon", "https://polygon.publicnode.com"},
		BlockExplorerURL: "https://polygonscan.com",
	}
	Arbitrum = entity.ChainEndpoint{
		ChainID:          42161,
		Name:             "Arbitrum",
		Identifier:       "arbitrum",
		ExplorerHost:     "api.arbiscan.io",
		RPCURL:           "https://arb1.arbitrum.io/rpc",
		FallbackRPCURLs:  []string{"https://arbitrum.llamarpc.com", "https://arbitrum.publicnode.com"},
		BlockExplorerURL: "https://arbiscan.io",
	}
	Avalanche = entity.ChainEndpoint{
		ChainID:          43114,
		Name:             "Avalanche",
		Identifier:       "avalanche",
		ExplorerHost:     "api.snowtrace.io",
		RPCURL:           "https://api.avax.network/ext/bc/C/rpc",
		FallbackRPCURLs:  []string{"https://avalanche.public-rpc.com", "https://rpc.ankr.com/avalanche"},
		BlockExplorerURL: "https://snowtrace.io",
	}
	Fantom = entity.ChainEndpoint{
		ChainID:          250,
		Name:             "Fantom",
		Identifier:       "fantom",
		ExplorerHost:     "api.ftmscan.com",
		RPCURL:           "https://rpc.ftm.tools/",
		FallbackRPCURLs:  []string{"https://fantom.publicnode.com", "https://rpc.ankr.com/fantom"},
		BlockExplorerURL: "https://ftmscan.com",
	}
	BSC = entity.ChainEndpoint{
		ChainID:          56,
		Name:             "BSC",
		Identifier:       "bsc",
		ExplorerHost:     "api.bscscan.com",
		RPCURL:           "https://bsc-dataseed.binance.org",
		FallbackRPCURLs:  []string{"https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
		BlockExplorerURL: "https://bscscan.com",
	}
)

// orderedDefinitions is the fixed query and display order.
var orderedDefinitions = []entity.ChainEndpoint{Ethereum, Polygon, Arbitrum, Avalanche, Fantom, BSC}

// ChainOverride replaces parts of a predefined chain. Empty fields keep the default.
type ChainOverride struct {
	ExplorerHost    string
	RPCURL          string
	FallbackRPCURLs []string
}

// NewChainDefinitionProvider creates a provider for the predefined chains.
// enabled restricts the set by identifier (empty means all); order is never changed.
func NewChainDefinitionProvider(log port.Logger, enabled []string, overrides map[string]ChainOverride) *ChainDefinitionProvider {
	p := &ChainDefinitionProvider{
		logger:       log,
		activeChains: make([]entity.ChainEndpoint, 0, len(orderedDefinitions)),
	}

	enabledSet := make(map[string]struct{}, len(enabled))
	for _, id := range enabled {
		id = strings.ToLower(strings.TrimSpace(id))
		if !isKnown(id) {
			p.logger.Warn(fmt.Sprintf("Chain '%s' is enabled in configuration but has no definition. Skipping.", id))
			continue
		}
		enabledSet[id] = struct{}{}
	}

	for _, def := range orderedDefinitions {
		if len(enabled) > 0 {
			if _, ok := enabledSet[def.Identifier]; !ok {
				continue
			}
		}
		if o, ok := overrides[def.Identifier]; ok {
			def = applyOverride(def, o)
			p.logger.Debug("Applied chain override", "chain", def.Identifier, "rpc_primary", def.RPCURL, "explorer", def.ExplorerHost)
		}
		def.FallbackRPCURLs = append([]string(nil), def.FallbackRPCURLs...)
		p.activeChains = append(p.activeChains, def)
	}

	for id := range overrides {
		if !isKnown(id) {
			p.logger.Warn(fmt.Sprintf("Override for unknown chain '%s' ignored.", id))
		}
	}

	if len(p.activeChains) == 0 {
		p.logger.Warn("No chains are active. Galleries will be empty.")
	} else {
		p.logger.Info(fmt.Sprintf("ChainDefinitionProvider initialized. Active chains: %d", len(p.activeChains)))
		for _, c := range p.activeChains {
			p.logger.Debug(fmt.Sprintf("  - Active chain: %s (ID: %s, ChainID: %d, explorer: %s)", c.Name, c.Identifier, c.ChainID, c.ExplorerHost))
		}
	}
	return p
}

// GetAllChains returns the active chains in fixed order.
func (p *ChainDefinitionProvider) GetAllChains() []entity.ChainEndpoint {
	if p == nil {
		return []entity.ChainEndpoint{}
	}
	out := make([]entity.ChainEndpoint, len(p.activeChains))
	copy(out, p.activeChains)
	return out
}

// GetChainByIdentifier returns an active chain by its identifier.
func (p *ChainDefinitionProvider) GetChainByIdentifier(identifier string) (entity.ChainEndpoint, bool) {
	if p == nil {
		return entity.ChainEndpoint{}, false
	}
	for _, c := range p.activeChains {
		if c.Identifier == identifier {
			return c, true
		}
	}
	return entity.ChainEndpoint{}, false
}

func applyOverride(def entity.ChainEndpoint, o ChainOverride) entity.ChainEndpoint {
	if o.ExplorerHost != "" {
		def.ExplorerHost = o.ExplorerHost
	}
	if o.RPCURL != "" {
		def.RPCURL = o.RPCURL
	}
	if o.FallbackRPCURLs != nil {
		def.FallbackRPCURLs = o.FallbackRPCURLs
	}
	return def
}

func isKnown(identifier string) bool {
	for _, def := range orderedDefinitions {
		if def.Identifier == identifier {
			return true
		}
	}
	return false
}

var _ port.ChainDefinitionProvider = (*ChainDefinitionProvider)(nil)
