package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// maxMoney is the smallest amount that no longer fits the money columns.
var maxMoney = decimal.New(1, MoneyPrecision-MoneyScale)

// ValidateAmount checks that amount is a positive money value with at most
// MoneyScale fractional digits that fits the money columns.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount %s must be greater than zero", ErrInvalidBid, amount)
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidBid, amount, MoneyScale)
	}
	if amount.GreaterThanOrEqual(maxMoney) {
		return fmt.Errorf("%w: amount %s must be less than %s", ErrInvalidBid, amount, maxMoney)
	}
	return nil
}

// ValidateBid checks amount against the current state of the auction.
// The first failing condition wins: expiration, then status, then amount.
func (a *Auction) ValidateBid(amount decimal.Decimal, now time.Time, policy FirstBidPolicy) error {
	if a.IsExpired(now) {
		return fmt.Errorf("%w: bids on auction %d can't be made since it expired at %s",
			ErrAuctionExpired, a.ID, a.ExpirationTime.Format(time.RFC3339))
	}
	if a.Status == AuctionClosed {
		return fmt.Errorf("%w: bids on auction %d can't be made since it is closed", ErrAuctionClosed, a.ID)
	}

	if a.HighestBid.Valid {
		if amount.LessThanOrEqual(a.HighestBid.Decimal) {
			return fmt.Errorf("%w: bid amount %s must be higher than the current highest bid %s",
				ErrBidTooLow, amount.StringFixed(MoneyScale), a.HighestBid.Decimal.StringFixed(MoneyScale))
		}
		return nil
	}

	if policy != FirstBidAnyPositive && amount.LessThan(a.StartingPrice) {
		return fmt.Errorf("%w: bid amount %s must be at least the starting price %s",
			ErrBidTooLow, amount.StringFixed(MoneyScale), a.StartingPrice.StringFixed(MoneyScale))
	}
	return nil
}

// ApplyBid records userID as the highest bidder with amount.
func (a *Auction) ApplyBid(userID int64, amount decimal.Decimal, at time.Time) {
	bidder := userID
	a.HighestBid = decimal.NewNullDecimal(amount)
	a.HighestBidder = &bidder
	a.UpdatedAt = at
}

// Validate checks a new auction before it is stored.
func (d AuctionDraft) Validate(now time.Time) error {
	if d.Title == "" {
		return fmt.Errorf("%w: title is mandatory", ErrInvalidAuction)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: description is mandatory", ErrInvalidAuction)
	}
	if err := validatePrice(d.StartingPrice); err != nil {
		return err
	}
	if d.ExpirationTime.IsZero() {
		return fmt.Errorf("%w: expiration time is mandatory", ErrInvalidAuction)
	}
	if !d.ExpirationTime.After(now) {
		return fmt.Errorf("%w: expiration time must be in the future", ErrInvalidAuction)
	}
	return nil
}

// Apply merges u into a. It refuses any change once the auction has bids,
// whichever fields u carries.
func (u AuctionUpdate) Apply(a *Auction, now time.Time) error {
	if a.HasBids() {
		return fmt.Errorf("%w: auction %d", ErrModificationForbidden, a.ID)
	}

	if u.Title != nil {
		if *u.Title == "" {
			return fmt.Errorf("%w: title can't be blank", ErrInvalidAuction)
		}
		a.Title = *u.Title
	}
	if u.Description != nil {
		if *u.Description == "" {
			return fmt.Errorf("%w: description can't be blank", ErrInvalidAuction)
		}
		a.Description = *u.Description
	}
	if u.StartingPrice != nil {
		if err := validatePrice(*u.StartingPrice); err != nil {
			return err
		}
		a.StartingPrice = *u.StartingPrice
	}
	if u.ExpirationTime != nil {
		if !u.ExpirationTime.After(now) {
			return fmt.Errorf("%w: expiration time must be in the future", ErrInvalidAuction)
		}
		a.ExpirationTime = *u.ExpirationTime
	}
	if u.Status != nil {
		if !u.Status.IsValid() {
			return fmt.Errorf("%w: status must be either OPEN or CLOSED", ErrInvalidAuction)
		}
		if a.Status == AuctionClosed && *u.Status != AuctionClosed {
			return fmt.Errorf("%w: auction %d is closed and can't be reopened", ErrInvalidAuction, a.ID)
		}
		a.Status = *u.Status
	}

	a.UpdatedAt = now
	return nil
}

func validatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return fmt.Errorf("%w: starting price must be greater than zero", ErrInvalidAuction)
	}
	if !p.Equal(p.Round(MoneyScale)) {
		return fmt.Errorf("%w: starting price has more than %d decimal places", ErrInvalidAuction, MoneyScale)
	}
	if p.GreaterThanOrEqual(maxMoney) {
		return fmt.Errorf("%w: starting price must be less than %s", ErrInvalidAuction, maxMoney)
	}
	return nil
}
