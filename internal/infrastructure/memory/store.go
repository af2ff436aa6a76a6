// Package memory is a process-local store used for development and tests.
// Transactions serialize on one mutex, so version conflicts only arise
// between a read outside a transaction and the write inside it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"auction-platform/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	auctions map[int64]*domain.Auction
	bids     map[int64][]*domain.Bid
	users    map[int64]*domain.User

	lastAuctionID int64
	lastBidID     int64
	lastUserID    int64
}

func NewStore() *Store {
	return &Store{
		auctions: make(map[int64]*domain.Auction),
		bids:     make(map[int64][]*domain.Bid),
		users:    make(map[int64]*domain.User),
	}
}

// NewSeededStore returns a store holding the same default accounts the
// MySQL schema seeds.
func NewSeededStore(now time.Time) *Store {
	s := NewStore()
	s.AddUser(&domain.User{
		ID: 1, Username: "admin", Email: "admin@example.com", FullName: "Admin User",
		Roles: []string{domain.RoleAdmin, domain.RoleUser}, CreatedAt: now,
	})
	s.AddUser(&domain.User{
		ID: 2, Username: "johndoe", Email: "john@example.com", FullName: "John Doe",
		Roles: []string{domain.RoleUser}, CreatedAt: now,
	})
	return s
}

// AddUser registers a user. A zero ID is assigned the next free one.
func (s *Store) AddUser(u *domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.lastUserID + 1
	}
	if u.ID > s.lastUserID {
		s.lastUserID = u.ID
	}
	s.users[u.ID] = copyUser(u)
	return u
}

func (s *Store) Auctions() *AuctionRepository {
	return &AuctionRepository{s: s}
}

func (s *Store) Bids() *BidRepository {
	return &BidRepository{s: s}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{s: s}
}

// WithinTransaction holds the write lock for the whole of fn and applies the
// buffered writes only when fn succeeds.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txn{
		auctions: make(map[int64]*domain.Auction),
	}
	if err := fn(ctx, &unitOfWork{s: s, tx: tx}); err != nil {
		return err
	}

	for id, a := range tx.auctions {
		s.auctions[id] = a
	}
	for _, b := range tx.bids {
		s.bids[b.AuctionID] = append(s.bids[b.AuctionID], b)
	}
	return nil
}

// txn buffers the writes of one transaction.
type txn struct {
	auctions map[int64]*domain.Auction
	bids     []*domain.Bid
}

func (tx *txn) pendingBids(auctionID int64) []*domain.Bid {
	var out []*domain.Bid
	for _, b := range tx.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out
}

type unitOfWork struct {
	s  *Store
	tx *txn
}

func (u *unitOfWork) Auctions() domain.AuctionRepository {
	return &AuctionRepository{s: u.s, tx: u.tx}
}

func (u *unitOfWork) Bids() domain.BidRepository {
	return &BidRepository{s: u.s, tx: u.tx}
}

// The helpers below expect s.mu to be held.

func (s *Store) lookupAuction(tx *txn, id int64) (*domain.Auction, bool) {
	if tx != nil {
		if a, ok := tx.auctions[id]; ok {
			return a, true
		}
	}
	a, ok := s.auctions[id]
	return a, ok
}

func (s *Store) storeAuction(tx *txn, a *domain.Auction) {
	if tx != nil {
		tx.auctions[a.ID] = a
		return
	}
	s.auctions[a.ID] = a
}

// present returns a detached copy with read-only fields filled in.
func (s *Store) present(a *domain.Auction) *domain.Auction {
	c := a.Clone()
	c.HighestBidderName = ""
	if c.HighestBidder != nil {
		if u, ok := s.users[*c.HighestBidder]; ok {
			c.HighestBidderName = u.Username
		}
	}
	return c
}

func (s *Store) sortedAuctionIDs(tx *txn) []int64 {
	ids := make([]int64, 0, len(s.auctions))
	for id := range s.auctions {
		ids = append(ids, id)
	}
	if tx != nil {
		for id := range tx.auctions {
			if _, ok := s.auctions[id]; !ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func notFound(kind error, id int64) error {
	return fmt.Errorf("%w: id %d", kind, id)
}

func findUserByName(users map[int64]*domain.User, username string) (*domain.User, bool) {
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return nil, false
}
