package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// AuctionManager serves the administration and read paths. Role checks are
// made by the caller before reaching it.
type AuctionManager struct {
	auctionRepo domain.AuctionRepository
	clock       domain.Clock
	maxAttempts int
	log         logger.Logger
}

func NewAuctionManager(auctionRepo domain.AuctionRepository, clock domain.Clock, maxAttempts int, log logger.Logger) *AuctionManager {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &AuctionManager{
		auctionRepo: auctionRepo,
		clock:       clock,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, draft domain.AuctionDraft) (*domain.Auction, error) {
	now := am.clock.Now()
	if err := draft.Validate(now); err != nil {
		return nil, err
	}

	auction := &domain.Auction{
		Version:        1,
		Title:          draft.Title,
		Description:    draft.Description,
		StartingPrice:  draft.StartingPrice,
		ExpirationTime: draft.ExpirationTime,
		Status:         domain.AuctionOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := am.auctionRepo.CreateAuction(ctx, auction); err != nil {
		am.log.Error("Failed to create auction", "error", err)
		return nil, err
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "expires_at", auction.ExpirationTime)
	return auction, nil
}

// UpdateAuction applies a partial update. It is refused as a whole once the
// auction has bids, and is retried on a fresh read when a concurrent write
// wins the version check.
func (am *AuctionManager) UpdateAuction(ctx context.Context, auctionID int64, update domain.AuctionUpdate) (*domain.Auction, error) {
	for attempt := 1; attempt <= am.maxAttempts; attempt++ {
		auction, err := am.auctionRepo.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}

		if err := update.Apply(auction, am.clock.Now()); err != nil {
			am.log.Info("Auction update rejected", "auction_id", auctionID, "reason", err.Error())
			return nil, err
		}

		err = am.auctionRepo.UpdateAuction(ctx, auction)
		if err == nil {
			am.log.Info("Auction updated", "auction_id", auctionID, "version", auction.Version)
			return auction, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			am.log.Error("Failed to update auction", "auction_id", auctionID, "error", err)
			return nil, err
		}
		am.log.Warn("Auction update lost version race, retrying", "auction_id", auctionID, "attempt", attempt)
	}

	return nil, fmt.Errorf("%w: auction %d after %d attempts", domain.ErrConcurrencyExhausted, auctionID, am.maxAttempts)
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	return am.auctionRepo.GetAuction(ctx, auctionID)
}

// ListAuctions returns one page of auctions ordered by ID. Out of range
// arguments fall back to the defaults, except a page whose offset does not
// fit in an int.
func (am *AuctionManager) ListAuctions(ctx context.Context, page, size int) (*domain.AuctionPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page > (math.MaxInt-size)/size {
		return nil, fmt.Errorf("%w: page %d is out of range", domain.ErrInvalidPage, page)
	}

	total, err := am.auctionRepo.CountAuctions(ctx)
	if err != nil {
		return nil, err
	}
	auctions, err := am.auctionRepo.ListAuctions(ctx, size, page*size)
	if err != nil {
		return nil, err
	}

	return &domain.AuctionPage{
		Auctions: auctions,
		Page:     page,
		Size:     size,
		Total:    total,
	}, nil
}
