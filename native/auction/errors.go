package auction

import "errors"

var (
	// Validation errors.
	ErrInvalidPeriod     = errors.New("auction: invalid auction period")
	ErrItemNotOwned      = errors.New("auction: item not owned by seller")
	ErrInvalidToken      = errors.New("auction: unsupported payment token")
	ErrInvalidAmount     = errors.New("auction: amount must be positive")
	ErrPriceBounds       = errors.New("auction: minimum price exceeds buy price")
	ErrBelowMinPrice     = errors.New("auction: minimum price not met")
	ErrAboveBuyPrice     = errors.New("auction: payment exceeds the buying price")
	ErrBidTooLow         = errors.New("auction: there is a higher bid placed")
	ErrInsufficientFunds = errors.New("auction: insufficient balance")

	// Authorization errors.
	ErrNotAccount    = errors.New("auction: address is not an account component")
	ErrBadgeMismatch = errors.New("auction: invalid seller badge")
	ErrBadgeSpent    = errors.New("auction: seller badge already burned")

	// Temporal errors.
	ErrAuctionExpired    = errors.New("auction: auction has expired")
	ErrAuctionInProgress = errors.New("auction: auction is still in progress")
	ErrCancelAfterExpiry = errors.New("auction: auction has ended")

	// Existence errors.
	ErrAuctionNotFound = errors.New("auction: auction does not exist")
	ErrAuctionExists   = errors.New("auction: item is already under auction")

	// Invariant errors. A terminal entry keeps its (drained) escrow records in
	// the registry forever, so late mutating calls must be detected explicitly
	// rather than silently re-settled.
	ErrAuctionSettled = errors.New("auction: auction already settled")
)
