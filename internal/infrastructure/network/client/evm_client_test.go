package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"
	"nifty/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contractA = "0x00000000000000000000000000000000000000aa"
	contractB = "0x00000000000000000000000000000000000000bb"
)

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// fakeEthService answers eth_call for tokenURI like a node would.
type fakeEthService struct {
	uris     map[string]string // "contract:id" -> uri
	reverted map[string]bool   // contract -> revert every call
	calls    int32
}

func (s *fakeEthService) Call(args callArgs, block string) (hexutil.Bytes, error) {
	atomic.AddInt32(&s.calls, 1)
	contract := strings.ToLower(args.To.Hex())
	if s.reverted[contract] {
		return nil, errors.New("execution reverted")
	}
	method := parsedERC721ABI.Methods["tokenURI"]
	if len(args.Data) < 4 || !bytes.Equal(args.Data[:4], method.ID) {
		return nil, errors.New("unknown selector")
	}
	in, err := method.Inputs.Unpack(args.Data[4:])
	if err != nil {
		return nil, err
	}
	id := in[0].(*big.Int)
	uri, ok := s.uris[fmt.Sprintf("%s:%s", contract, id.String())]
	if !ok {
		return hexutil.Bytes{}, nil
	}
	out, err := method.Outputs.Pack(uri)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newTestEVMClient(t *testing.T, svc *fakeEthService) *EVMClient {
	t.Helper()
	initParsedERC721ABI()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	t.Cleanup(server.Stop)

	c := NewEVMClientWithRPC(entity.ChainEndpoint{Name: "Ethereum", Identifier: "ethereum"}, rpc.DialInProc(server), 5*time.Second)
	t.Cleanup(c.Close)
	return c
}

func TestTokenURIs(t *testing.T) {
	svc := &fakeEthService{
		uris: map[string]string{
			contractA + ":5": "ipfs://Qm123/5.json",
			contractA + ":6": "https://example.com/6",
		},
		reverted: map[string]bool{contractB: true},
	}
	c := newTestEVMClient(t, svc)

	results, err := c.TokenURIs(context.Background(), []entity.TokenURIRequest{
		{ID: "0", ContractAddress: contractA, TokenID: "5"},
		{ID: "1", ContractAddress: contractB, TokenID: "1"},
		{ID: "2", ContractAddress: contractA, TokenID: "6"},
		{ID: "3", ContractAddress: contractA, TokenID: "7"},
		{ID: "4", ContractAddress: "not-an-address", TokenID: "1"},
		{ID: "5", ContractAddress: contractA, TokenID: "abc"},
	})
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.Equal(t, "0", results[0].RequestID)
	assert.NoError(t, results[0].Error)
	assert.Equal(t, "ipfs://Qm123/5.json", results[0].URI)

	assert.Error(t, results[1].Error, "reverted call fails only its own element")
	assert.Empty(t, results[1].URI)

	assert.NoError(t, results[2].Error)
	assert.Equal(t, "https://example.com/6", results[2].URI)

	assert.ErrorIs(t, results[3].Error, ErrEmptyCallResult)
	assert.Error(t, results[4].Error)
	assert.Error(t, results[5].Error)

	// invalid requests never reach the node
	assert.Equal(t, int32(4), atomic.LoadInt32(&svc.calls))
}

func TestTokenURIsEmpty(t *testing.T) {
	c := newTestEVMClient(t, &fakeEthService{})
	results, err := c.TokenURIs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

type stubReader struct{ chain entity.ChainEndpoint }

func (s stubReader) TokenURIs(context.Context, []entity.TokenURIRequest) ([]entity.TokenURIResult, error) {
	return nil, nil
}
func (s stubReader) Definition() entity.ChainEndpoint { return s.chain }

func TestProviderCachesReaders(t *testing.T) {
	cfg := &configloader.Config{RPC: configloader.RPCConfig{ConnectionTimeoutSeconds: 1, CallTimeoutSeconds: 1}}
	nop := func(string, ...any) {}
	p := NewEVMClientProvider(cfg, nop, nop).(*evmClientProvider)

	var dials int32
	p.newReader = func(chain entity.ChainEndpoint, _, _ time.Duration) (port.ContractReader, error) {
		atomic.AddInt32(&dials, 1)
		if chain.Identifier == "broken" {
			return nil, errors.New("dial failed")
		}
		return stubReader{chain: chain}, nil
	}

	eth := entity.ChainEndpoint{Name: "Ethereum", Identifier: "ethereum"}
	r1, err := p.GetReader(eth)
	require.NoError(t, err)
	r2, err := p.GetReader(eth)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, eth, r1.Definition())

	_, err = p.GetReader(entity.ChainEndpoint{Name: "Broken", Identifier: "broken"})
	assert.Error(t, err)
	_, err = p.GetReader(entity.ChainEndpoint{Name: "Broken", Identifier: "broken"})
	assert.Error(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&dials))
}

func TestNewEVMClientWithoutEndpoints(t *testing.T) {
	_, err := NewEVMClient(entity.ChainEndpoint{Name: "Nowhere"}, time.Second, time.Second)
	assert.Error(t, err)
}
