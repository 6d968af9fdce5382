package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nifty/internal/domain/entity"
)

// ValidateAddress checks an EVM address and returns its EIP-55 checksummed form.
// The 0x prefix is optional. All-lowercase and all-uppercase input is accepted as is;
// mixed-case input must carry a valid checksum.
func ValidateAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	body := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(body) != 2*common.AddressLength || !isHex(body) {
		return "", fmt.Errorf("%w: %q is not a 20-byte hex address", entity.ErrInvalidAddress, address)
	}

	checksummed := common.HexToAddress(body).Hex()
	if hasMixedCase(body) && "0x"+body != checksummed {
		return "", fmt.Errorf("%w: bad checksum for %q", entity.ErrInvalidAddress, address)
	}
	return checksummed, nil
}

// SameAddress reports whether two hex addresses are equal, ignoring case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func hasMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
