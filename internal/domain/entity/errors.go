package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress is returned when the queried address fails format or checksum validation.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrExternalService is matched by every ExternalServiceError.
	ErrExternalService = errors.New("external service error")
)

// ExternalServiceError reports a failed explorer query for one chain.
type ExternalServiceError struct {
	Chain string
	Err   error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("explorer query for %s failed: %v", e.Chain, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrExternalService) hold for any ExternalServiceError.
func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// ChainError represents a chain that could not be queried during discovery.
type ChainError struct {
	Chain   string `json:"chain"`
	ChainID uint64 `json:"chainId"`
	Message string `json:"message"`
}
