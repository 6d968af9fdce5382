package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"nifty/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func newTestExplorer(t *testing.T, handler http.HandlerFunc) (*explorerClientImpl, entity.ChainEndpoint) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewExplorerClient(ExplorerClientConfig{
		Scheme:  "http",
		Timeout: 2 * time.Second,
		APIKeys: map[string]string{"ethereum": "KEY"},
	}, zap.NewNop()).(*explorerClientImpl)

	chain := entity.ChainEndpoint{
		ChainID:      1,
		Name:         "Ethereum",
		Identifier:   "ethereum",
		ExplorerHost: srv.Listener.Addr().String(),
	}
	return c, chain
}

func TestGetNFTTransfers(t *testing.T) {
	var query atomic.Value
	c, chain := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		assert.Equal(t, "/api", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"blockNumber":"1","contractAddress":"0xabc","to":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed","tokenID":"5","tokenName":"Art","tokenSymbol":"ART"},
			{"blockNumber":"2","contractAddress":"0xabc","to":"0xdead","tokenID":"5","tokenName":"Art","tokenSymbol":"ART"}
		]}`))
	})

	events, err := c.GetNFTTransfers(context.Background(), chain, testAddress)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "0xabc", events[0].ContractAddress)
	assert.Equal(t, "5", events[0].TokenID)
	assert.Equal(t, "Art", events[0].TokenName)
	assert.Equal(t, "ART", events[0].TokenSymbol)
	assert.Equal(t, "0xdead", events[1].To)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"account"}, q["module"])
	assert.Equal(t, []string{"tokennfttx"}, q["action"])
	assert.Equal(t, []string{testAddress}, q["address"])
	assert.Equal(t, []string{"asc"}, q["sort"])
	assert.Equal(t, []string{"KEY"}, q["apikey"])
}

func TestGetNFTTransfersEmptyResult(t *testing.T) {
	c, chain := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"No transactions found","result":[]}`))
	})

	events, err := c.GetNFTTransfers(context.Background(), chain, testAddress)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetNFTTransfersNonArrayResult(t *testing.T) {
	var calls int32
	c, chain := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
	})

	_, err := c.GetNFTTransfers(context.Background(), chain, testAddress)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrExternalService))
	assert.True(t, errors.Is(err, errResultNotArray))

	var extErr *entity.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "Ethereum", extErr.Chain)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "non-array results are not retried")
}

func TestGetNFTTransfersHTTPError(t *testing.T) {
	c, chain := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetNFTTransfers(context.Background(), chain, testAddress)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrExternalService)
}

func TestGetNFTTransfersMalformedBody(t *testing.T) {
	c, chain := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.GetNFTTransfers(context.Background(), chain, testAddress)
	assert.ErrorIs(t, err, entity.ErrExternalService)
}

func TestRequestURLWithoutAPIKey(t *testing.T) {
	c := NewExplorerClient(ExplorerClientConfig{}, zap.NewNop()).(*explorerClientImpl)
	chain := entity.ChainEndpoint{Identifier: "polygon", ExplorerHost: "api.polygonscan.com"}

	assert.Equal(t,
		"https://api.polygonscan.com/api?module=account&action=tokennfttx&address="+testAddress+"&sort=asc",
		c.requestURL(chain, testAddress))
}

func TestLimiterPerChain(t *testing.T) {
	c := NewExplorerClient(ExplorerClientConfig{RequestsPerSecond: 5}, zap.NewNop()).(*explorerClientImpl)
	a := c.limiter("ethereum")
	require.NotNil(t, a)
	assert.Same(t, a, c.limiter("ethereum"))
	assert.NotSame(t, a, c.limiter("bsc"))

	disabled := NewExplorerClient(ExplorerClientConfig{}, zap.NewNop()).(*explorerClientImpl)
	assert.Nil(t, disabled.limiter("ethereum"))
}
