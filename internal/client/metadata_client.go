package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nifty/internal/app/port"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ErrRateLimited is returned when the metadata host kept answering 429 until retries ran out.
var ErrRateLimited = errors.New("metadata host rate limited the request")

// MetadataClientConfig configures the metadata client.
type MetadataClientConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int

	// Retry policy for 429 responses.
	InitialRetryInterval time.Duration
	MaxRetryInterval     time.Duration
	MaxRetryElapsed      time.Duration

	// CacheTTL keeps fetched documents by URL. Zero disables caching.
	CacheTTL time.Duration
}

type metadataClientImpl struct {
	client *fasthttp.Client
	cfg    MetadataClientConfig
	cache  *cache.Cache
	logger *zap.Logger
}

// NewMetadataClient creates a fasthttp based port.MetadataFetcher.
func NewMetadataClient(cfg MetadataClientConfig, logger *zap.Logger) port.MetadataFetcher {
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.InitialRetryInterval <= 0 {
		cfg.InitialRetryInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetryInterval <= 0 {
		cfg.MaxRetryInterval = 10 * time.Second
	}
	// backoff treats a zero MaxElapsedTime as "retry forever"
	if cfg.MaxRetryElapsed <= 0 {
		cfg.MaxRetryElapsed = 30 * time.Second
	}
	c := &metadataClientImpl{
		client: &fasthttp.Client{
			Name:                "nifty",
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxResponseBodySize: cfg.MaxBodyBytes,
		},
		cfg:    cfg,
		logger: logger.Named("MetadataClient"),
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

// FetchDocument implements port.MetadataFetcher. The body must be a JSON object.
func (c *metadataClientImpl) FetchDocument(ctx context.Context, url string) (map[string]interface{}, error) {
	if c.cache != nil {
		if cached, found := c.cache.Get(url); found {
			c.logger.Debug("Metadata document served from cache", zap.String("url", url))
			return cached.(map[string]interface{}), nil
		}
	}

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata from %s: %w", url, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("metadata from %s is not a JSON object", url)
	}

	if c.cache != nil {
		c.cache.SetDefault(url, doc)
	}
	return doc, nil
}

func (c *metadataClientImpl) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		status, respBody, err := c.do(ctx, url)
		if err != nil {
			return backoff.Permanent(err)
		}

		if status == fasthttp.StatusTooManyRequests {
			c.logger.Warn("Rate limited, retrying with backoff", zap.String("url", url))
			return ErrRateLimited
		}
		if status != fasthttp.StatusOK {
			return backoff.Permanent(fmt.Errorf("metadata request to %s failed with status %d", url, status))
		}

		body = respBody
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialRetryInterval
	b.MaxInterval = c.cfg.MaxRetryInterval
	b.MaxElapsedTime = c.cfg.MaxRetryElapsed
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		c.logger.Debug("Metadata request failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return body, nil
}

type fetchResult struct {
	status int
	body   []byte
	err    error
}

// do runs one GET with redirects. DoRedirects takes no context, so the request runs
// in its own goroutine and do returns as soon as ctx is done; the abandoned request
// still ends within the client's read timeout.
func (c *metadataClientImpl) do(ctx context.Context, url string) (int, []byte, error) {
	done := make(chan fetchResult, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		defer fasthttp.ReleaseRequest(req)
		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Accept", "application/json")

		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseResponse(resp)

		if err := c.client.DoRedirects(req, resp, c.cfg.MaxRedirects); err != nil {
			done <- fetchResult{err: fmt.Errorf("failed to execute request to %s: %w", url, err)}
			return
		}
		// resp is released on return
		done <- fetchResult{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...)}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, fmt.Errorf("metadata request to %s abandoned: %w", url, ctx.Err())
	case r := <-done:
		return r.status, r.body, r.err
	}
}
