package configloader

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-specific configurations.
type ServerConfig struct {
	Port                   string `yaml:"port"`
	GinMode                string `yaml:"ginMode"`
	ReadTimeoutSeconds     int    `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds    int    `yaml:"writeTimeoutSeconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdownTimeoutSeconds"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ExplorerConfig holds Etherscan-compatible explorer API configurations.
type ExplorerConfig struct {
	Scheme               string            `yaml:"scheme"`
	RequestTimeoutMillis int64             `yaml:"requestTimeoutMillis"`
	APIKeys              map[string]string `yaml:"apiKeys"` // chain identifier -> key
	RequestsPerSecond    float64           `yaml:"requestsPerSecond"`
	Burst                int               `yaml:"burst"`
}

// RPCConfig holds JSON-RPC client configurations.
type RPCConfig struct {
	ConnectionTimeoutSeconds int `yaml:"connectionTimeoutSeconds"`
	CallTimeoutSeconds       int `yaml:"callTimeoutSeconds"`
	BatchSize                int `yaml:"batchSize"`
}

// IPFSConfig holds the gateway used for content-addressed pointers.
type IPFSConfig struct {
	GatewayHost string `yaml:"gatewayHost"`
}

// ChainOverrideConfig replaces endpoints of a predefined chain.
type ChainOverrideConfig struct {
	ExplorerHost    string   `yaml:"explorerHost"`
	RPCURL          string   `yaml:"rpcURL"`
	FallbackRPCURLs []string `yaml:"fallbackRpcURLs"`
}

// ChainsConfig selects and adjusts the predefined chains.
type ChainsConfig struct {
	Enabled   []string                       `yaml:"enabled"`
	Overrides map[string]ChainOverrideConfig `yaml:"overrides"`
}

// DiscoveryConfig holds token discovery configurations.
type DiscoveryConfig struct {
	MaxConcurrentChains int  `yaml:"maxConcurrentChains"`
	AbortOnChainError   bool `yaml:"abortOnChainError"`
	TimeoutSeconds      int  `yaml:"timeoutSeconds"`
}

// ResolutionConfig holds metadata resolution configurations.
type ResolutionConfig struct {
	MaxConcurrentTokens int `yaml:"maxConcurrentTokens"`
	TimeoutSeconds      int `yaml:"timeoutSeconds"`
}

// MetadataConfig holds metadata HTTP client configurations.
type MetadataConfig struct {
	RequestTimeoutMillis int64 `yaml:"requestTimeoutMillis"`
	MaxRedirects         int   `yaml:"maxRedirects"`
	MaxBodyBytes         int   `yaml:"maxBodyBytes"`
	InitialRetryMillis   int64 `yaml:"initialRetryMillis"`
	MaxRetryElapsedMs    int64 `yaml:"maxRetryElapsedMs"`
}

// CacheConfig holds cache TTLs.
type CacheConfig struct {
	GalleryTTLMinutes  int `yaml:"galleryTTLMinutes"`
	MetadataTTLMinutes int `yaml:"metadataTTLMinutes"`
}

// SwaggerConfig controls the API docs route.
type SwaggerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	SpecFile string `yaml:"specFile"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Explorer   ExplorerConfig   `yaml:"explorer"`
	RPC        RPCConfig        `yaml:"rpc"`
	IPFS       IPFSConfig       `yaml:"ipfs"`
	Chains     ChainsConfig     `yaml:"chains"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Metadata   MetadataConfig   `yaml:"metadata"`
	Cache      CacheConfig      `yaml:"cache"`
	Swagger    SwaggerConfig    `yaml:"swagger"`
}

// explorerKeyEnvPrefix lets API keys come from the environment, e.g. EXPLORER_API_KEY_ETHEREUM.
const explorerKeyEnvPrefix = "EXPLORER_API_KEY_"

// Load reads the YAML configuration file from the given path, unmarshals it and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	applyDefaults(&cfg, logrus.WithField("component", "configloader"))
	applyEnv(&cfg, os.Environ())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations no default can repair.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Explorer.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("explorer.scheme must be http or https, got %q", c.Explorer.Scheme)
	}
	if c.Explorer.RequestsPerSecond < 0 {
		return fmt.Errorf("explorer.requestsPerSecond must not be negative")
	}
	if query := c.Discovery.TimeoutSeconds + c.Resolution.TimeoutSeconds; c.Server.WriteTimeoutSeconds < query {
		return fmt.Errorf("server.writeTimeoutSeconds (%d) must cover discovery.timeoutSeconds + resolution.timeoutSeconds (%d)",
			c.Server.WriteTimeoutSeconds, query)
	}
	for id, o := range c.Chains.Overrides {
		if o.RPCURL != "" && !strings.HasPrefix(o.RPCURL, "http") && !strings.HasPrefix(o.RPCURL, "ws") {
			return fmt.Errorf("chains.overrides.%s.rpcURL must be an http(s) or ws(s) URL", id)
		}
	}
	return nil
}

const writeTimeoutSlackSeconds = 10

func applyDefaults(cfg *Config, log *logrus.Entry) {
	notice := func(key string, value any) {
		log.WithField("key", key).WithField("value", value).Debug("Config value not set, using default")
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
		notice("server.port", cfg.Server.Port)
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.ShutdownTimeoutSeconds <= 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		notice("logging.level", cfg.Logging.Level)
	}

	if cfg.Explorer.Scheme == "" {
		cfg.Explorer.Scheme = "https"
	}
	if cfg.Explorer.RequestTimeoutMillis <= 0 {
		cfg.Explorer.RequestTimeoutMillis = 15000
		notice("explorer.requestTimeoutMillis", cfg.Explorer.RequestTimeoutMillis)
	}
	if cfg.Explorer.RequestsPerSecond == 0 {
		// free explorer tiers allow 5 calls per second
		cfg.Explorer.RequestsPerSecond = 5
		notice("explorer.requestsPerSecond", cfg.Explorer.RequestsPerSecond)
	}
	if cfg.Explorer.Burst <= 0 {
		cfg.Explorer.Burst = 1
	}
	if cfg.Explorer.APIKeys == nil {
		cfg.Explorer.APIKeys = map[string]string{}
	}

	if cfg.RPC.ConnectionTimeoutSeconds <= 0 {
		cfg.RPC.ConnectionTimeoutSeconds = 10
	}
	if cfg.RPC.CallTimeoutSeconds <= 0 {
		cfg.RPC.CallTimeoutSeconds = 20
		notice("rpc.callTimeoutSeconds", cfg.RPC.CallTimeoutSeconds)
	}
	if cfg.RPC.BatchSize <= 0 {
		cfg.RPC.BatchSize = 50
		notice("rpc.batchSize", cfg.RPC.BatchSize)
	}

	if cfg.IPFS.GatewayHost == "" {
		cfg.IPFS.GatewayHost = "cloudflare-ipfs.com"
		notice("ipfs.gatewayHost", cfg.IPFS.GatewayHost)
	}

	if cfg.Discovery.MaxConcurrentChains <= 0 {
		cfg.Discovery.MaxConcurrentChains = 6
	}
	if cfg.Discovery.TimeoutSeconds <= 0 {
		cfg.Discovery.TimeoutSeconds = 60
	}

	if cfg.Resolution.MaxConcurrentTokens <= 0 {
		cfg.Resolution.MaxConcurrentTokens = 16
		notice("resolution.maxConcurrentTokens", cfg.Resolution.MaxConcurrentTokens)
	}
	if cfg.Resolution.TimeoutSeconds <= 0 {
		cfg.Resolution.TimeoutSeconds = 120
	}

	if cfg.Server.WriteTimeoutSeconds <= 0 {
		// a cold synchronous query may use up both stage timeouts before responding
		cfg.Server.WriteTimeoutSeconds = cfg.Discovery.TimeoutSeconds + cfg.Resolution.TimeoutSeconds + writeTimeoutSlackSeconds
		notice("server.writeTimeoutSeconds", cfg.Server.WriteTimeoutSeconds)
	}

	if cfg.Metadata.RequestTimeoutMillis <= 0 {
		cfg.Metadata.RequestTimeoutMillis = 15000
	}
	if cfg.Metadata.MaxRedirects <= 0 {
		cfg.Metadata.MaxRedirects = 5
	}
	if cfg.Metadata.MaxBodyBytes <= 0 {
		cfg.Metadata.MaxBodyBytes = 2 << 20
	}
	if cfg.Metadata.InitialRetryMillis <= 0 {
		cfg.Metadata.InitialRetryMillis = 500
	}
	if cfg.Metadata.MaxRetryElapsedMs <= 0 {
		cfg.Metadata.MaxRetryElapsedMs = 20000
	}

	if cfg.Cache.GalleryTTLMinutes <= 0 {
		cfg.Cache.GalleryTTLMinutes = 5
	}
	if cfg.Cache.MetadataTTLMinutes <= 0 {
		cfg.Cache.MetadataTTLMinutes = 60
	}

	if cfg.Swagger.Path == "" {
		cfg.Swagger.Path = "/swagger"
	}
	if cfg.Swagger.SpecFile == "" {
		cfg.Swagger.SpecFile = "docs/swagger.yaml"
	}
}

// applyEnv fills explorer API keys from EXPLORER_API_KEY_<CHAIN> variables. Keys in the file win.
func applyEnv(cfg *Config, environ []string) {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		chain, ok := strings.CutPrefix(name, explorerKeyEnvPrefix)
		if !ok || chain == "" {
			continue
		}
		chain = strings.ToLower(chain)
		if _, exists := cfg.Explorer.APIKeys[chain]; !exists {
			cfg.Explorer.APIKeys[chain] = value
		}
	}
}
