package domain

import "errors"

// Steady-state errors are contained at the task that produced them: a venue
// adapter swallows connection and protocol errors, the quote engine aborts a
// single cycle on hydration or execution errors, and the arbitrage engine
// aborts a single evaluation on upstream query errors. Only ErrConfig is
// fatal, and only before any task has started.
var (
	ErrConnection    = errors.New("venue connection failed")
	ErrProtocol      = errors.New("malformed venue message")
	ErrHydration     = errors.New("chain state hydration failed")
	ErrExecution     = errors.New("simulated call failed")
	ErrUpstreamQuery = errors.New("upstream query failed")
	ErrConfig        = errors.New("invalid configuration")
)
