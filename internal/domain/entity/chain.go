package entity

// ChainEndpoint holds the static description of one supported chain: where its
// explorer API lives and which RPC endpoint answers contract reads.
type ChainEndpoint struct {
	ChainID          uint64   `json:"chainId" yaml:"chainId"`
	Name             string   `json:"name" yaml:"name"`
	Identifier       string   `json:"identifier" yaml:"identifier"` // e.g. "ethereum", "bsc"
	ExplorerHost     string   `json:"explorerHost" yaml:"explorerHost"`
	RPCURL           string   `json:"rpcUrl" yaml:"rpcUrl"`
	FallbackRPCURLs  []string `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
	BlockExplorerURL string   `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}

// RPCURLs returns the primary RPC URL followed by the fallbacks.
func (c ChainEndpoint) RPCURLs() []string {
	urls := make([]string, 0, 1+len(c.FallbackRPCURLs))
	if c.RPCURL != "" {
		urls = append(urls, c.RPCURL)
	}
	return append(urls, c.FallbackRPCURLs...)
}
