package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	wire "nifty/internal/entity"
	"nifty/internal/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errResultNotArray = errors.New("explorer result is not an array")

// ExplorerClientConfig configures the explorer client.
type ExplorerClientConfig struct {
	// Scheme is "https" in production; tests point it at plain http servers.
	Scheme  string
	Timeout time.Duration
	// APIKeys maps chain identifiers to explorer API keys.
	APIKeys map[string]string
	// RequestsPerSecond throttles each chain independently. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// explorerClientImpl is the fasthttp implementation of port.ExplorerClient.
type explorerClientImpl struct {
	client *fasthttp.Client
	cfg    ExplorerClientConfig
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewExplorerClient creates a new Etherscan-compatible explorer client.
func NewExplorerClient(cfg ExplorerClientConfig, logger *zap.Logger) port.ExplorerClient {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &explorerClientImpl{
		client:   &fasthttp.Client{Name: "nifty"},
		cfg:      cfg,
		logger:   logger.Named("ExplorerClient"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetNFTTransfers implements port.ExplorerClient. Every failure is returned as *entity.ExternalServiceError.
func (c *explorerClientImpl) GetNFTTransfers(ctx context.Context, chain entity.ChainEndpoint, address string) ([]entity.TransferEvent, error) {
	events, err := c.getNFTTransfers(ctx, chain, address)
	if err != nil {
		metrics.ExplorerRequests.WithLabelValues(chain.Identifier, metrics.OutcomeError).Inc()
		return nil, &entity.ExternalServiceError{Chain: chain.Name, Err: err}
	}
	metrics.ExplorerRequests.WithLabelValues(chain.Identifier, metrics.OutcomeSuccess).Inc()
	return events, nil
}

func (c *explorerClientImpl) getNFTTransfers(ctx context.Context, chain entity.ChainEndpoint, address string) ([]entity.TransferEvent, error) {
	if chain.ExplorerHost == "" {
		return nil, fmt.Errorf("chain %s has no explorer host", chain.Name)
	}
	if limiter := c.limiter(chain.Identifier); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestURL := c.requestURL(chain, address)
	c.logger.Debug("Requesting NFT transfers from explorer",
		zap.String("chain", chain.Name),
		zap.String("address", address))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to explorer", zap.String("chain", chain.Name), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", chain.ExplorerHost, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.cfg.Timeout); err != nil {
			c.logger.Error("Failed to execute request to explorer (with default timeout)", zap.String("chain", chain.Name), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", chain.ExplorerHost, err)
		}
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Explorer API request failed",
			zap.String("chain", chain.Name),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("explorer %s responded with status %d", chain.ExplorerHost, resp.StatusCode())
	}

	var envelope wire.ExplorerResponse
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		c.logger.Error("Failed to unmarshal explorer response",
			zap.String("chain", chain.Name),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal explorer response from %s: %w", chain.ExplorerHost, err)
	}

	// On errors (rate limits, invalid key, ...) explorers put a message string into result.
	trimmed := bytes.TrimSpace(envelope.Result)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.logger.Warn("Explorer returned a non-array result",
			zap.String("chain", chain.Name),
			zap.String("status", envelope.Status),
			zap.String("message", envelope.Message),
			zap.ByteString("result", trimmed))
		return nil, fmt.Errorf("%w: %s %s", errResultNotArray, envelope.Message, string(trimmed))
	}

	var transfers []wire.ExplorerNFTTransfer
	if err := json.Unmarshal(trimmed, &transfers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal explorer transfers from %s: %w", chain.ExplorerHost, err)
	}

	events := make([]entity.TransferEvent, 0, len(transfers))
	for _, t := range transfers {
		events = append(events, entity.TransferEvent{
			BlockNumber:     t.BlockNumber,
			TimeStamp:       t.TimeStamp,
			Hash:            t.Hash,
			From:            t.From,
			To:              t.To,
			ContractAddress: t.ContractAddress,
			TokenID:         t.TokenID,
			TokenName:       t.TokenName,
			TokenSymbol:     t.TokenSymbol,
		})
	}

	c.logger.Debug("Received NFT transfers from explorer",
		zap.String("chain", chain.Name),
		zap.Int("count", len(events)))
	return events, nil
}

func (c *explorerClientImpl) requestURL(chain entity.ChainEndpoint, address string) string {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("module", "account")
	args.Set("action", "tokennfttx")
	args.Set("address", address)
	args.Set("sort", "asc")
	if key := c.cfg.APIKeys[chain.Identifier]; key != "" {
		args.Set("apikey", key)
	}
	return fmt.Sprintf("%s://%s/api?%s", c.cfg.Scheme, strings.TrimRight(chain.ExplorerHost, "/"), args.String())
}

func (c *explorerClientImpl) limiter(chain string) *rate.Limiter {
	if c.cfg.RequestsPerSecond <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[chain]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), c.cfg.Burst)
		c.limiters[chain] = l
	}
	return l
}
