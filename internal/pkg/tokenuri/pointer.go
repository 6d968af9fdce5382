// Package tokenuri parses token metadata pointers and rewrites content-addressed
// pointers to HTTP gateway URLs.
package tokenuri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// IPFSScheme marks a content-addressed pointer.
	IPFSScheme = "ipfs://"
	// InlineJSONPrefix marks a self-contained base64 JSON document.
	InlineJSONPrefix = "data:application/json;base64,"
	// DefaultGatewayHost is the public gateway used to fetch content-addressed data.
	DefaultGatewayHost = "cloudflare-ipfs.com"

	dataScheme = "data:"
)

// ErrEmptyPointer is returned for blank pointers.
var ErrEmptyPointer = errors.New("empty pointer")

// Kind tells how a pointer is dereferenced.
type Kind int

const (
	KindHTTP Kind = iota
	KindContentAddressed
	KindInlineData
)

func (k Kind) String() string {
	switch k {
	case KindContentAddressed:
		return "content_addressed"
	case KindInlineData:
		return "inline_data"
	default:
		return "http"
	}
}

// Pointer is a parsed metadata or asset pointer.
// Exactly one of CID (content addressed), Data (inline) or URL (http) is meaningful.
type Pointer struct {
	Kind      Kind
	Raw       string
	CID       string // path after ipfs://, e.g. "Qm123/5.json"
	Data      []byte
	MediaType string
	URL       string
}

// Parse classifies raw. Anything that is neither content addressed nor inline data
// is treated as an HTTP(S) URL.
func Parse(raw string) (Pointer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Pointer{}, ErrEmptyPointer
	}

	if cid, ok := strings.CutPrefix(raw, IPFSScheme); ok {
		// ipfs://ipfs/<cid> shows up in the wild
		cid = strings.TrimPrefix(cid, "ipfs/")
		if cid == "" {
			return Pointer{}, fmt.Errorf("content-addressed pointer %q has no CID", raw)
		}
		return Pointer{Kind: KindContentAddressed, Raw: raw, CID: cid}, nil
	}

	if strings.HasPrefix(raw, dataScheme) {
		data, mediaType, err := decodeDataURI(raw)
		if err != nil {
			return Pointer{}, err
		}
		return Pointer{Kind: KindInlineData, Raw: raw, Data: data, MediaType: mediaType}, nil
	}

	return Pointer{Kind: KindHTTP, Raw: raw, URL: raw}, nil
}

// FetchURL returns the HTTP URL to download the pointed-to content from.
// It is empty for inline data.
func (p Pointer) FetchURL(gatewayHost string) string {
	switch p.Kind {
	case KindContentAddressed:
		return gatewayURL(gatewayHost, p.CID)
	case KindHTTP:
		return p.URL
	default:
		return ""
	}
}

// IsJSON reports whether inline data declares or looks like a JSON document.
func (p Pointer) IsJSON() bool {
	return strings.HasPrefix(p.MediaType, "application/json") || strings.HasSuffix(strings.SplitN(p.MediaType, ";", 2)[0], "+json")
}

// Rewrite maps a content-addressed pointer to its gateway URL and leaves every other
// pointer untouched. Rewrite(Rewrite(x)) == Rewrite(x).
func Rewrite(gatewayHost, raw string) string {
	cid, ok := strings.CutPrefix(raw, IPFSScheme)
	if !ok {
		return raw
	}
	cid = strings.TrimPrefix(cid, "ipfs/")
	return gatewayURL(gatewayHost, cid)
}

// ExpandTemplate substitutes the ERC-1155 {id} placeholder with the token id
// as 64 lowercase hex digits.
func ExpandTemplate(raw, tokenID string) string {
	if !strings.Contains(raw, "{id}") {
		return raw
	}
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return raw
	}
	return strings.ReplaceAll(raw, "{id}", fmt.Sprintf("%064x", id))
}

// MediaType returns the media type of an inline data pointer, or "" for any other pointer.
func MediaType(raw string) string {
	p, err := Parse(raw)
	if err != nil || p.Kind != KindInlineData {
		return ""
	}
	return p.MediaType
}

func gatewayURL(gatewayHost, cid string) string {
	if gatewayHost == "" {
		gatewayHost = DefaultGatewayHost
	}
	return "https://" + strings.TrimSuffix(gatewayHost, "/") + "/ipfs/" + cid
}

// decodeDataURI decodes an RFC 2397 data URI. A missing media type is sniffed from the payload.
func decodeDataURI(raw string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, dataScheme), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing ','")
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		decoded, err := decodeBase64(payload)
		if err != nil {
			return nil, "", fmt.Errorf("invalid data URI: failed to decode base64: %w", err)
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			unescaped = payload
		}
		data = []byte(unescaped)
	}

	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}
	return data, mediaType, nil
}

// decodeBase64 accepts padded and unpadded standard encodings.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
