package entity

import "strings"

// TransferEvent is one NFT transfer as reported by an explorer API.
type TransferEvent struct {
	BlockNumber     string
	TimeStamp       string
	Hash            string
	From            string
	To              string
	ContractAddress string
	TokenID         string
	TokenName       string
	TokenSymbol     string
}

// TokenKey identifies a token within a single chain.
type TokenKey struct {
	ContractAddress string
	TokenID         string
}

// NewTokenKey builds a key. Contract addresses are compared case-insensitively.
func NewTokenKey(contractAddress, tokenID string) TokenKey {
	return TokenKey{ContractAddress: strings.ToLower(contractAddress), TokenID: tokenID}
}

// ResolutionStage tracks how far metadata resolution got for a token.
type ResolutionStage string

const (
	StagePending         ResolutionStage = "pending"
	StagePointerResolved ResolutionStage = "pointer_resolved"
	StagePointerMissing  ResolutionStage = "pointer_missing"
	StageMetadataFetched ResolutionStage = "metadata_fetched"
	StageMetadataDefault ResolutionStage = "metadata_default"
	StageImageNormalized ResolutionStage = "image_normalized"
)

const (
	DefaultMetadataName        = "Unknown"
	DefaultMetadataDescription = "N/A"
)

// Metadata is the descriptive document of a token.
type Metadata struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Image         *string `json:"image"`
	AnimationURL  string  `json:"animationUrl,omitempty"`
	ImageMimeType string  `json:"imageMimeType,omitempty"`

	Raw map[string]interface{} `json:"raw,omitempty"`
}

// DefaultMetadata is the placeholder used whenever resolution fails.
func DefaultMetadata() Metadata {
	return Metadata{
		Name:        DefaultMetadataName,
		Description: DefaultMetadataDescription,
	}
}

// MetadataFromDocument picks the known fields out of a raw JSON document and keeps
// the document itself in Raw. Fields of the wrong type are ignored.
func MetadataFromDocument(doc map[string]interface{}) Metadata {
	m := Metadata{Raw: doc}
	if n, ok := doc["name"].(string); ok {
		m.Name = n
	}
	if d, ok := doc["description"].(string); ok {
		m.Description = d
	}
	if i, ok := doc["image"].(string); ok && i != "" {
		m.Image = &i
	}
	if a, ok := doc["animation_url"].(string); ok {
		m.AnimationURL = a
	}
	return m
}

// TokenRecord is a discovered token on one chain together with its resolved metadata.
type TokenRecord struct {
	Chain           ChainEndpoint   `json:"chain"`
	ContractAddress string          `json:"contractAddress"`
	TokenID         string          `json:"tokenId"`
	TokenName       string          `json:"tokenName"`
	TokenSymbol     string          `json:"tokenSymbol"`
	Owned           bool            `json:"owned"`
	Metadata        *Metadata       `json:"metadata"`
	MetadataPointer string          `json:"metadataPointer,omitempty"`
	MetadataFetched bool            `json:"metadataFetched"`
	Stage           ResolutionStage `json:"stage,omitempty"`
	ResolutionError string          `json:"resolutionError,omitempty"`
}

// Key returns the per-chain identity of the record.
func (r TokenRecord) Key() TokenKey {
	return NewTokenKey(r.ContractAddress, r.TokenID)
}
