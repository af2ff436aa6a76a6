package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"auction-platform/internal/domain"
)

// AuctionRepository is bound either to the store or to one transaction.
type AuctionRepository struct {
	s  *Store
	tx *txn
}

func (r *AuctionRepository) rlock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *AuctionRepository) lock() func() {
	if r.tx != nil {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *AuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.lock()()

	r.s.lastAuctionID++
	auction.ID = r.s.lastAuctionID
	if auction.Version == 0 {
		auction.Version = 1
	}
	r.s.storeAuction(r.tx, auction.Clone())
	return nil
}

func (r *AuctionRepository) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.rlock()()

	a, ok := r.s.lookupAuction(r.tx, auctionID)
	if !ok {
		return nil, notFound(domain.ErrAuctionNotFound, auctionID)
	}
	return r.s.present(a), nil
}

func (r *AuctionRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer r.lock()()

	current, ok := r.s.lookupAuction(r.tx, auction.ID)
	if !ok || current.Version != auction.Version {
		return fmt.Errorf("%w: auction %d at version %d", domain.ErrVersionConflict, auction.ID, auction.Version)
	}

	next := auction.Clone()
	next.Version++
	next.HighestBidderName = ""
	r.s.storeAuction(r.tx, next)
	auction.Version = next.Version
	return nil
}

func (r *AuctionRepository) CloseAuction(ctx context.Context, auctionID int64, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer r.lock()()

	current, ok := r.s.lookupAuction(r.tx, auctionID)
	if !ok || current.Status == domain.AuctionClosed {
		return false, nil
	}

	next := current.Clone()
	next.Status = domain.AuctionClosed
	next.UpdatedAt = at
	next.Version++
	r.s.storeAuction(r.tx, next)
	return true, nil
}

func (r *AuctionRepository) FindExpiredAuctions(ctx context.Context, before time.Time, afterID int64, limit int) ([]*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.rlock()()

	var out []*domain.Auction
	for _, id := range r.s.sortedAuctionIDs(r.tx) {
		if id <= afterID {
			continue
		}
		a, _ := r.s.lookupAuction(r.tx, id)
		if a.Status == domain.AuctionClosed || !a.ExpirationTime.Before(before) {
			continue
		}
		out = append(out, r.s.present(a))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *AuctionRepository) ListAuctions(ctx context.Context, limit, offset int) ([]*domain.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer r.rlock()()

	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", domain.ErrInvalidPage, limit, offset)
	}

	ids := r.s.sortedAuctionIDs(r.tx)
	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*domain.Auction, 0, len(ids))
	for _, id := range ids {
		a, _ := r.s.lookupAuction(r.tx, id)
		out = append(out, r.s.present(a))
	}
	return out, nil
}

func (r *AuctionRepository) CountAuctions(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer r.rlock()()

	return int64(len(r.s.sortedAuctionIDs(r.tx))), nil
}

type BidRepository struct {
	s  *Store
	tx *txn
}

func (r *BidRepository) SaveBid(ctx context.Context, bid *domain.Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx == nil {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}

	if _, ok := r.s.lookupAuction(r.tx, bid.AuctionID); !ok {
		return notFound(domain.ErrAuctionNotFound, bid.AuctionID)
	}
	if _, ok := r.s.users[bid.UserID]; !ok {
		return notFound(domain.ErrUserNotFound, bid.UserID)
	}

	r.s.lastBidID++
	bid.ID = r.s.lastBidID
	stored := *bid
	stored.Username = ""
	if r.tx != nil {
		r.tx.bids = append(r.tx.bids, &stored)
		return nil
	}
	r.s.bids[bid.AuctionID] = append(r.s.bids[bid.AuctionID], &stored)
	return nil
}

// GetBidsForAuction returns the bids of an auction, oldest first. Inside a
// transaction it includes the bids saved by that transaction.
func (r *BidRepository) GetBidsForAuction(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.tx == nil {
		r.s.mu.RLock()
		defer r.s.mu.RUnlock()
	}

	stored := r.s.bids[auctionID]
	if r.tx != nil {
		stored = append(stored[:len(stored):len(stored)], r.tx.pendingBids(auctionID)...)
	}
	out := make([]*domain.Bid, 0, len(stored))
	for _, b := range stored {
		c := *b
		if u, ok := r.s.users[b.UserID]; ok {
			c.Username = u.Username
		}
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BidTime.Equal(out[j].BidTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].BidTime.Before(out[j].BidTime)
	})
	return out, nil
}

type UserRepository struct {
	s *Store
}

func (r *UserRepository) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, notFound(domain.ErrUserNotFound, userID)
	}
	return copyUser(u), nil
}

func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := findUserByName(r.s.users, username)
	if !ok {
		return nil, fmt.Errorf("%w: username %q", domain.ErrUserNotFound, username)
	}
	return copyUser(u), nil
}
