package entity

// TokenURIRequest represents a single tokenURI lookup in a batch.
type TokenURIRequest struct {
	ID              string
	ContractAddress string
	TokenID         string
}

// TokenURIResult represents the result of a single tokenURI lookup from a batch.
type TokenURIResult struct {
	RequestID       string
	ContractAddress string
	TokenID         string
	URI             string
	Error           error
}
