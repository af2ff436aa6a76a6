package services

import (
	"context"
	"errors"
	"fmt"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"

	"github.com/shopspring/decimal"
)

const DefaultMaxAttempts = 3

// attemptResult tags the outcome of one read-validate-write round.
type attemptResult int

const (
	attemptCommitted attemptResult = iota
	attemptConflict
	attemptRejected
)

// BidService accepts bids under optimistic concurrency. Each attempt reads
// the auction afresh, validates against it and writes the bid together with
// the version-checked auction update.
type BidService struct {
	auctionRepo    domain.AuctionRepository
	bidRepo        domain.BidRepository
	userRepo       domain.UserRepository
	txManager      domain.TransactionManager
	clock          domain.Clock
	maxAttempts    int
	firstBidPolicy domain.FirstBidPolicy
	log            logger.Logger
}

func NewBidService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	userRepo domain.UserRepository,
	txManager domain.TransactionManager,
	clock domain.Clock,
	maxAttempts int,
	firstBidPolicy domain.FirstBidPolicy,
	log logger.Logger,
) *BidService {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if !firstBidPolicy.IsValid() {
		firstBidPolicy = domain.FirstBidAtLeastStartingPrice
	}
	return &BidService{
		auctionRepo:    auctionRepo,
		bidRepo:        bidRepo,
		userRepo:       userRepo,
		txManager:      txManager,
		clock:          clock,
		maxAttempts:    maxAttempts,
		firstBidPolicy: firstBidPolicy,
		log:            log,
	}
}

// PlaceBid places a bid of amount on auctionID for the given bidder.
func (s *BidService) PlaceBid(ctx context.Context, bidder domain.Principal, auctionID int64, amount decimal.Decimal) (*domain.Bid, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetUser(ctx, bidder.UserID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		bid, result, err := s.attempt(ctx, user, auctionID, amount)
		switch result {
		case attemptCommitted:
			s.log.Info("Bid accepted",
				"auction_id", auctionID, "user_id", user.ID, "amount", amount.StringFixed(domain.MoneyScale),
				"attempt", attempt)
			return bid, nil
		case attemptRejected:
			if errors.Is(err, domain.ErrNotFound) || isBidRejection(err) {
				s.log.Info("Bid rejected", "auction_id", auctionID, "user_id", user.ID, "reason", err.Error())
			} else {
				s.log.Error("Failed to place bid", "auction_id", auctionID, "user_id", user.ID, "error", err)
			}
			return nil, err
		case attemptConflict:
			s.log.Warn("Bid lost version race, retrying",
				"auction_id", auctionID, "user_id", user.ID, "attempt", attempt, "max_attempts", s.maxAttempts)
		}
	}

	return nil, fmt.Errorf("%w: auction %d after %d attempts", domain.ErrConcurrencyExhausted, auctionID, s.maxAttempts)
}

func (s *BidService) attempt(ctx context.Context, user *domain.User, auctionID int64, amount decimal.Decimal) (*domain.Bid, attemptResult, error) {
	auction, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, attemptRejected, err
	}

	now := s.clock.Now()
	if err := auction.ValidateBid(amount, now, s.firstBidPolicy); err != nil {
		return nil, attemptRejected, err
	}

	bid := &domain.Bid{
		AuctionID: auction.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Amount:    amount,
		BidTime:   now,
	}

	err = s.txManager.WithinTransaction(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Bids().SaveBid(ctx, bid); err != nil {
			return err
		}
		auction.ApplyBid(user.ID, amount, now)
		return uow.Auctions().UpdateAuction(ctx, auction)
	})
	switch {
	case err == nil:
		return bid, attemptCommitted, nil
	case errors.Is(err, domain.ErrVersionConflict):
		return nil, attemptConflict, err
	default:
		return nil, attemptRejected, err
	}
}

// GetBids lists the accepted bids of an auction in commit order.
func (s *BidService) GetBids(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	if _, err := s.auctionRepo.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.bidRepo.GetBidsForAuction(ctx, auctionID)
}

func isBidRejection(err error) bool {
	return errors.Is(err, domain.ErrAuctionExpired) ||
		errors.Is(err, domain.ErrAuctionClosed) ||
		errors.Is(err, domain.ErrBidTooLow)
}
