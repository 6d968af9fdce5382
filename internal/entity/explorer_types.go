package entity

import jsoniter "github.com/json-iterator/go"

// ExplorerResponse is the envelope returned by Etherscan-compatible explorer APIs.
// Result is an array on success and a string (error text) otherwise, so it is kept raw.
type ExplorerResponse struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
}

// ExplorerNFTTransfer is one element of a tokennfttx result.
type ExplorerNFTTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	ContractAddress string `json:"contractAddress"`
	To              string `json:"to"`
	TokenID         string `json:"tokenID"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
}
