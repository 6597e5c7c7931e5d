package domain

import "github.com/pkg/errors"

var (
	// ErrNetwork the listing endpoint could not be reached or timed out.
	ErrNetwork = errors.New("p2p endpoint unreachable")
	// ErrMalformedResponse the listing endpoint answered with an unexpected shape.
	ErrMalformedResponse = errors.New("malformed p2p response")
	// ErrInsufficientData no prices left after filtering and trimming.
	ErrInsufficientData = errors.New("insufficient price data")
)
