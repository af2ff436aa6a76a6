package services

import (
	"context"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"
)

const DefaultSweepBatchSize = 100

// Sweeper closes auctions whose expiration time has passed.
type Sweeper struct {
	auctionRepo domain.AuctionRepository
	clock       domain.Clock
	batchSize   int
	log         logger.Logger
}

func NewSweeper(auctionRepo domain.AuctionRepository, clock domain.Clock, batchSize int, log logger.Logger) *Sweeper {
	if batchSize < 1 {
		batchSize = DefaultSweepBatchSize
	}
	return &Sweeper{
		auctionRepo: auctionRepo,
		clock:       clock,
		batchSize:   batchSize,
		log:         log,
	}
}

// CloseExpiredAuctions walks the open, expired auctions in ID order one batch
// at a time and closes each of them. A failure on one auction is logged and
// the sweep moves on; the next run picks it up again. Only a failure to read
// a batch stops the run.
func (s *Sweeper) CloseExpiredAuctions(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var (
		closed  int
		failed  int
		afterID int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		batch, err := s.auctionRepo.FindExpiredAuctions(ctx, now, afterID, s.batchSize)
		if err != nil {
			s.log.Error("Failed to load expired auctions", "after_id", afterID, "error", err)
			return closed, err
		}
		if len(batch) == 0 {
			break
		}

		for _, auction := range batch {
			afterID = auction.ID

			ok, err := s.auctionRepo.CloseAuction(ctx, auction.ID, now)
			if err != nil {
				failed++
				s.log.Error("Failed to close auction", "auction_id", auction.ID, "error", err)
				continue
			}
			if ok {
				closed++
				s.log.Debug("Auction closed", "auction_id", auction.ID)
			}
		}
	}

	s.log.Info("Expired auctions sweep finished", "closed", closed, "failed", failed)
	return closed, nil
}
