package domain

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks auction-platform/internal/domain AuctionRepository,BidRepository,UserRepository,UnitOfWork,TransactionManager,LeaderElection,Clock

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	// CreateAuction stores a new auction and sets its ID and initial version.
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID int64) (*Auction, error)
	// UpdateAuction persists auction if the stored version still equals
	// auction.Version, then increments auction.Version. A stale version
	// yields ErrVersionConflict.
	UpdateAuction(ctx context.Context, auction *Auction) error
	// CloseAuction sets the status to CLOSED. It reports false when the
	// auction was already closed.
	CloseAuction(ctx context.Context, auctionID int64, at time.Time) (bool, error)
	// FindExpiredAuctions returns up to limit open auctions that expired
	// before the given time and whose ID is greater than afterID, by ID.
	FindExpiredAuctions(ctx context.Context, before time.Time, afterID int64, limit int) ([]*Auction, error)
	ListAuctions(ctx context.Context, limit, offset int) ([]*Auction, error)
	CountAuctions(ctx context.Context) (int64, error)
}

type BidRepository interface {
	SaveBid(ctx context.Context, bid *Bid) error
	GetBidsForAuction(ctx context.Context, auctionID int64) ([]*Bid, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// UnitOfWork exposes repositories bound to one transaction.
type UnitOfWork interface {
	Auctions() AuctionRepository
	Bids() BidRepository
}

type TransactionManager interface {
	// WithinTransaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

type Clock interface {
	Now() time.Time
}
