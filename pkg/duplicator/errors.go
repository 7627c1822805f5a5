package duplicator

import "errors"

var (
	// ErrGatewayUnavailable is returned when a dispatch finds no healthy
	// gateway. Fatal to the call, not to the process.
	ErrGatewayUnavailable = errors.New("no healthy gateways available")

	// ErrNoLegsPlaced is returned by Ledger.Create when every leg failed.
	ErrNoLegsPlaced = errors.New("no legs placed successfully")

	ErrOrderNotFound   = errors.New("logical order not found")
	ErrGatewayNotFound = errors.New("gateway not found")
	ErrInvalidIntent   = errors.New("invalid order intent")
)
