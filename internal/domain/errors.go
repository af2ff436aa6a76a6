package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAuctionNotFound = fmt.Errorf("auction %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// Bid validation errors, checked in this order.
var (
	ErrAuctionExpired = errors.New("auction has expired")
	ErrAuctionClosed  = errors.New("auction is closed")
	ErrBidTooLow      = errors.New("bid amount too low")
)

var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrInvalidPage    = errors.New("invalid page")
)

var (
	// ErrVersionConflict is returned by the store when a version-checked write
	// finds a different version than the one it was given. It is recoverable.
	ErrVersionConflict = errors.New("auction version conflict")
	// ErrConcurrencyExhausted is returned once every retry lost its
	// compare-and-swap. It is not the bidder's fault.
	ErrConcurrencyExhausted = errors.New("concurrent modification, retries exhausted")
)

var (
	ErrModificationForbidden = errors.New("auction can't be modified because it contains bidders")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
)

// Kind codes exposed at the API boundary.
const (
	KindNotFound              = "not_found"
	KindExpired               = "auction_expired"
	KindClosed                = "auction_closed"
	KindBidTooLow             = "bid_too_low"
	KindConcurrencyExhausted  = "concurrency_exhausted"
	KindModificationForbidden = "modification_forbidden"
	KindUnauthorized          = "unauthorized"
	KindForbidden             = "forbidden"
	KindInvalid               = "invalid_request"
	KindInternal              = "internal"
)

// ErrorKind classifies err into one of the stable kind codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuctionExpired):
		return KindExpired
	case errors.Is(err, ErrAuctionClosed):
		return KindClosed
	case errors.Is(err, ErrBidTooLow):
		return KindBidTooLow
	case errors.Is(err, ErrConcurrencyExhausted):
		return KindConcurrencyExhausted
	case errors.Is(err, ErrModificationForbidden):
		return KindModificationForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidBid), errors.Is(err, ErrInvalidAuction), errors.Is(err, ErrInvalidPage):
		return KindInvalid
	default:
		return KindInternal
	}
}

// RequireRole fails with ErrForbidden unless p holds role.
func RequireRole(p Principal, role string) error {
	if !p.HasRole(role) {
		return fmt.Errorf("%w: user %q lacks role %q", ErrForbidden, p.Username, role)
	}
	return nil
}
