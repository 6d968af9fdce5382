package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"nifty/internal/app/port"
	"nifty/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrEmptyCallResult is reported when eth_call returns no data, e.g. for
// addresses without code or contracts that do not implement tokenURI.
var ErrEmptyCallResult = errors.New("empty eth_call result")

// EVMClient implements the port.ContractReader interface for EVM-compatible chains.
type EVMClient struct {
	ethClient      *ethclient.Client
	chain          entity.ChainEndpoint
	rpcCallTimeout time.Duration
}

// ERC721 metadata ABI minimal part for tokenURI
const erc721MetadataABI = `[{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC721ABI  abi.ABI
	parsedERC721Once sync.Once
)

func initParsedERC721ABI() {
	parsedERC721Once.Do(func() {
		var err error
		parsedERC721ABI, err = abi.JSON(strings.NewReader(erc721MetadataABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC721 metadata ABI: %v", err))
		}
		if _, ok := parsedERC721ABI.Methods["tokenURI"]; !ok {
			panic("tokenURI method not found in parsed ERC721 metadata ABI")
		}
	})
}

// NewEVMClient dials the chain's RPC endpoints in order and returns a reader for the first one that answers.
func NewEVMClient(chain entity.ChainEndpoint, connectionTimeout time.Duration, rpcCallTimeout time.Duration) (*EVMClient, error) {
	initParsedERC721ABI()
	rpcURLs := chain.RPCURLs()
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC endpoints configured for chain %s", chain.Name)
	}

	var lastErr error
	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			return &EVMClient{ethClient: client, chain: chain, rpcCallTimeout: rpcCallTimeout}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for chain %s: %w", chain.Name, lastErr)
}

// NewEVMClientWithRPC wraps an already connected RPC client.
func NewEVMClientWithRPC(chain entity.ChainEndpoint, rpcClient *rpc.Client, rpcCallTimeout time.Duration) *EVMClient {
	initParsedERC721ABI()
	return &EVMClient{ethClient: ethclient.NewClient(rpcClient), chain: chain, rpcCallTimeout: rpcCallTimeout}
}

// TokenURIs fetches tokenURI(tokenId) for every request using one JSON-RPC batch.
func (c *EVMClient) TokenURIs(ctx context.Context, requests []entity.TokenURIRequest) ([]entity.TokenURIResult, error) {
	if len(requests) == 0 {
		return []entity.TokenURIResult{}, nil
	}

	batchElems := make([]rpc.BatchElem, 0, len(requests))
	elemIndex := make([]int, 0, len(requests)) // batch position -> request position
	results := make([]entity.TokenURIResult, len(requests))

	for i, reqItem := range requests {
		results[i] = entity.TokenURIResult{
			RequestID:       reqItem.ID,
			ContractAddress: reqItem.ContractAddress,
			TokenID:         reqItem.TokenID,
		}

		if !common.IsHexAddress(reqItem.ContractAddress) {
			results[i].Error = fmt.Errorf("invalid contract address %q", reqItem.ContractAddress)
			continue
		}
		tokenID, ok := new(big.Int).SetString(reqItem.TokenID, 10)
		if !ok || tokenID.Sign() < 0 {
			results[i].Error = fmt.Errorf("invalid token id %q", reqItem.TokenID)
			continue
		}
		callData, err := parsedERC721ABI.Pack("tokenURI", tokenID)
		if err != nil {
			results[i].Error = fmt.Errorf("failed to pack tokenURI call for token %s: %w", reqItem.TokenID, err)
			continue
		}

		callArgs := map[string]interface{}{
			"to":   common.HexToAddress(reqItem.ContractAddress),
			"data": hexutil.Bytes(callData),
		}
		batchElems = append(batchElems, rpc.BatchElem{
			Method: "eth_call",
			Args:   []interface{}{callArgs, "latest"},
			Result: new(hexutil.Bytes),
		})
		elemIndex = append(elemIndex, i)
	}

	if len(batchElems) == 0 {
		return results, nil
	}

	rawRPCClient := c.ethClient.Client()

	rpcCallCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	if err := rawRPCClient.BatchCallContext(rpcCallCtx, batchElems); err != nil {
		return results, fmt.Errorf("RPC batch call failed on %s: %w", c.chain.Name, err)
	}

	for j, elem := range batchElems {
		i := elemIndex[j]
		if elem.Error != nil {
			results[i].Error = fmt.Errorf("tokenURI call failed for %s #%s: %w",
				requests[i].ContractAddress, requests[i].TokenID, elem.Error)
			continue
		}

		result, ok := elem.Result.(*hexutil.Bytes)
		if !ok || result == nil || len(*result) == 0 {
			results[i].Error = fmt.Errorf("tokenURI call for %s #%s: %w",
				requests[i].ContractAddress, requests[i].TokenID, ErrEmptyCallResult)
			continue
		}

		unpacked, err := parsedERC721ABI.Unpack("tokenURI", *result)
		if err != nil {
			results[i].Error = fmt.Errorf("failed to unpack tokenURI result for %s #%s: %w. Raw: %s",
				requests[i].ContractAddress, requests[i].TokenID, err, hexutil.Encode(*result))
			continue
		}
		if len(unpacked) == 0 {
			results[i].Error = fmt.Errorf("tokenURI unpack returned no data for %s #%s", requests[i].ContractAddress, requests[i].TokenID)
			continue
		}
		uri, ok := unpacked[0].(string)
		if !ok {
			results[i].Error = fmt.Errorf("failed to assert unpacked tokenURI result to string. Got: %T", unpacked[0])
			continue
		}
		results[i].URI = uri
	}
	return results, nil
}

// Definition returns the chain this client is bound to.
func (c *EVMClient) Definition() entity.ChainEndpoint {
	return c.chain
}

// Close releases the underlying RPC connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

var _ port.ContractReader = (*EVMClient)(nil)
