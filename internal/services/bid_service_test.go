package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-platform/internal/domain"
	"auction-platform/internal/domain/mocks"
	"auction-platform/internal/infrastructure/memory"
	"auction-platform/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryBidService(store *memory.Store, clock domain.Clock, maxAttempts int, policy domain.FirstBidPolicy) *BidService {
	return NewBidService(store.Auctions(), store.Bids(), store.Users(), store, clock, maxAttempts, policy, logger.NewNop())
}

func TestBidService_PlaceBid(t *testing.T) {
	tests := []struct {
		name          string
		startingPrice string
		highestBid    string
		expiresIn     time.Duration
		closed        bool
		policy        domain.FirstBidPolicy
		auctionID     int64
		bidder        domain.Principal
		amount        string
		expectedError error
		expectedHigh  string
	}{
		{
			name:          "first_bid_at_starting_price",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			amount:        "150.00",
			expectedHigh:  "150.00",
		},
		{
			name:          "first_bid_below_starting_price",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			amount:        "149.99",
			expectedError: domain.ErrBidTooLow,
		},
		{
			name:          "first_bid_below_starting_price_any_positive_policy",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			policy:        domain.FirstBidAnyPositive,
			amount:        "1.00",
			expectedHigh:  "1.00",
		},
		{
			name:          "tie_with_highest_bid",
			startingPrice: "150.00",
			highestBid:    "250.00",
			expiresIn:     time.Hour,
			amount:        "250.00",
			expectedError: domain.ErrBidTooLow,
		},
		{
			name:          "one_cent_above_highest_bid",
			startingPrice: "150.00",
			highestBid:    "250.00",
			expiresIn:     time.Hour,
			amount:        "250.01",
			expectedHigh:  "250.01",
		},
		{
			name:          "expired_one_second_ago",
			startingPrice: "150.00",
			expiresIn:     -time.Second,
			amount:        "1000000.00",
			expectedError: domain.ErrAuctionExpired,
		},
		{
			name:          "expired_wins_over_closed",
			startingPrice: "150.00",
			expiresIn:     -time.Second,
			closed:        true,
			amount:        "1000.00",
			expectedError: domain.ErrAuctionExpired,
		},
		{
			name:          "closed_before_expiry",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			closed:        true,
			amount:        "1000.00",
			expectedError: domain.ErrAuctionClosed,
		},
		{
			name:          "unknown_auction",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			auctionID:     404,
			amount:        "200.00",
			expectedError: domain.ErrAuctionNotFound,
		},
		{
			name:          "unknown_bidder",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			bidder:        domain.Principal{UserID: 77, Username: "ghost"},
			amount:        "200.00",
			expectedError: domain.ErrUserNotFound,
		},
		{
			name:          "zero_amount",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			amount:        "0",
			expectedError: domain.ErrInvalidBid,
		},
		{
			name:          "too_many_decimals",
			startingPrice: "150.00",
			expiresIn:     time.Hour,
			amount:        "200.001",
			expectedError: domain.ErrInvalidBid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewSeededStore(baseTime)
			clock := newFakeClock(baseTime)
			auction := seedAuction(t, store, tt.startingPrice, tt.highestBid, baseTime.Add(tt.expiresIn))
			if tt.closed {
				_, err := store.Auctions().CloseAuction(ctx, auction.ID, baseTime)
				require.NoError(t, err)
			}
			before, err := store.Auctions().GetAuction(ctx, auction.ID)
			require.NoError(t, err)

			policy := tt.policy
			if policy == "" {
				policy = domain.FirstBidAtLeastStartingPrice
			}
			bidder := tt.bidder
			if bidder.UserID == 0 {
				bidder = johnPrincipal
			}
			auctionID := tt.auctionID
			if auctionID == 0 {
				auctionID = auction.ID
			}

			service := newMemoryBidService(store, clock, DefaultMaxAttempts, policy)
			bid, err := service.PlaceBid(ctx, bidder, auctionID, money(tt.amount))

			after, getErr := store.Auctions().GetAuction(ctx, auction.ID)
			require.NoError(t, getErr)
			bids, bidsErr := store.Bids().GetBidsForAuction(ctx, auction.ID)
			require.NoError(t, bidsErr)

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				require.Nil(t, bid)
				require.Empty(t, bids)
				require.Equal(t, before, after)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, bid)
			require.Equal(t, baseTime, bid.BidTime)
			require.Equal(t, "johndoe", bid.Username)
			require.Len(t, bids, 1)
			require.True(t, after.HighestBid.Decimal.Equal(money(tt.expectedHigh)))
			require.Equal(t, int64(2), *after.HighestBidder)
			require.Equal(t, "johndoe", after.HighestBidderName)
			require.Equal(t, before.Version+1, after.Version)
		})
	}
}

func TestBidService_SequentialIncreasingBids(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeededStore(baseTime)
	auction := seedAuction(t, store, "100.00", "", baseTime.Add(time.Hour))
	service := newMemoryBidService(store, newFakeClock(baseTime), DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice)

	const n = 25
	for i := 0; i < n; i++ {
		_, err := service.PlaceBid(ctx, johnPrincipal, auction.ID, decimal.NewFromInt(int64(100+i)))
		require.NoError(t, err)
	}

	bids, err := service.GetBids(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, n)

	stored, err := store.Auctions().GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.HighestBid.Decimal.Equal(decimal.NewFromInt(100+n-1)))
}

func TestBidService_ConcurrentBidsKeepMaximum(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeededStore(baseTime)
	auction := seedAuction(t, store, "100.00", "", baseTime.Add(time.Hour))

	const n = 40
	// Every losing attempt is caused by another bid committing, so n attempts
	// are always enough to end in either a commit or a rejection.
	service := newMemoryBidService(store, newFakeClock(baseTime), n, domain.FirstBidAtLeastStartingPrice)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		tooLow     int
		unexpected []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		amount := decimal.NewFromInt(int64(100 + i))
		go func() {
			defer wg.Done()
			<-start
			_, err := service.PlaceBid(ctx, johnPrincipal, auction.ID, amount)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrBidTooLow):
				tooLow++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, unexpected)
	require.Equal(t, n, accepted+tooLow)

	bids, err := store.Bids().GetBidsForAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, accepted)

	stored, err := store.Auctions().GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.True(t, stored.HighestBid.Decimal.Equal(decimal.NewFromInt(100+n-1)))

	// accepted bids form a strictly increasing sequence
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount))
	}
}

func TestBidService_RetryAfterConflict(t *testing.T) {
	conflict := fmt.Errorf("%w: auction 1 at version 1", domain.ErrVersionConflict)

	tests := []struct {
		name          string
		amount        string
		expectedError error
		expectWrite   bool
	}{
		{
			name:        "revalidated_and_accepted",
			amount:      "250.00",
			expectWrite: true,
		},
		{
			name:          "revalidated_and_too_low",
			amount:        "180.00",
			expectedError: domain.ErrBidTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			auctionRepo := mocks.NewMockAuctionRepository(ctrl)
			txAuctionRepo := mocks.NewMockAuctionRepository(ctrl)
			bidRepo := mocks.NewMockBidRepository(ctrl)
			userRepo := mocks.NewMockUserRepository(ctrl)
			txManager := mocks.NewMockTransactionManager(ctrl)
			uow := mocks.NewMockUnitOfWork(ctrl)
			clock := mocks.NewMockClock(ctrl)

			fresh := &domain.Auction{
				ID: 1, Version: 1, Status: domain.AuctionOpen,
				StartingPrice: money("150.00"), ExpirationTime: baseTime.Add(time.Hour),
			}
			// writer A committed 200.00 between B's first read and write
			afterA := fresh.Clone()
			afterA.ApplyBid(1, money("200.00"), baseTime)
			afterA.Version = 2

			clock.EXPECT().Now().Return(baseTime).AnyTimes()
			userRepo.EXPECT().GetUser(gomock.Any(), int64(2)).
				Return(&domain.User{ID: 2, Username: "johndoe"}, nil)
			gomock.InOrder(
				auctionRepo.EXPECT().GetAuction(gomock.Any(), int64(1)).Return(fresh.Clone(), nil),
				auctionRepo.EXPECT().GetAuction(gomock.Any(), int64(1)).Return(afterA.Clone(), nil),
			)
			txManager.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).Return(conflict)
			if tt.expectWrite {
				txManager.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, fn func(context.Context, domain.UnitOfWork) error) error {
						return fn(ctx, uow)
					})
				uow.EXPECT().Bids().Return(bidRepo)
				uow.EXPECT().Auctions().Return(txAuctionRepo)
				bidRepo.EXPECT().SaveBid(gomock.Any(), gomock.Any()).Return(nil)
				txAuctionRepo.EXPECT().UpdateAuction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, a *domain.Auction) error {
						require.Equal(t, int64(2), a.Version)
						require.True(t, a.HighestBid.Decimal.Equal(money(tt.amount)))
						return nil
					})
			}

			service := NewBidService(auctionRepo, bidRepo, userRepo, txManager, clock,
				DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice, logger.NewNop())
			bid, err := service.PlaceBid(context.Background(), johnPrincipal, 1, money(tt.amount))

			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				require.Nil(t, bid)
				return
			}
			require.NoError(t, err)
			require.True(t, bid.Amount.Equal(money(tt.amount)))
		})
	}
}

func TestBidService_ConcurrencyExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auctionRepo := mocks.NewMockAuctionRepository(ctrl)
	userRepo := mocks.NewMockUserRepository(ctrl)
	txManager := mocks.NewMockTransactionManager(ctrl)
	clock := mocks.NewMockClock(ctrl)
	log, logs := observedLogger()

	auction := &domain.Auction{
		ID: 1, Version: 1, Status: domain.AuctionOpen,
		StartingPrice: money("100.00"), ExpirationTime: baseTime.Add(time.Hour),
	}

	clock.EXPECT().Now().Return(baseTime).Times(DefaultMaxAttempts)
	userRepo.EXPECT().GetUser(gomock.Any(), int64(2)).Return(&domain.User{ID: 2, Username: "johndoe"}, nil)
	auctionRepo.EXPECT().GetAuction(gomock.Any(), int64(1)).
		DoAndReturn(func(context.Context, int64) (*domain.Auction, error) { return auction.Clone(), nil }).
		Times(DefaultMaxAttempts)
	txManager.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).
		Return(domain.ErrVersionConflict).
		Times(DefaultMaxAttempts)

	service := NewBidService(auctionRepo, nil, userRepo, txManager, clock,
		DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice, log)
	_, err := service.PlaceBid(context.Background(), johnPrincipal, 1, money("120.00"))

	require.ErrorIs(t, err, domain.ErrConcurrencyExhausted)
	require.NotErrorIs(t, err, domain.ErrBidTooLow)
	require.Equal(t, domain.KindConcurrencyExhausted, domain.ErrorKind(err))
	require.Equal(t, DefaultMaxAttempts, logs.FilterMessage("Bid lost version race, retrying").Len())
}

func TestBidService_StoreFailureIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auctionRepo := mocks.NewMockAuctionRepository(ctrl)
	userRepo := mocks.NewMockUserRepository(ctrl)
	txManager := mocks.NewMockTransactionManager(ctrl)
	log, logs := observedLogger()

	userRepo.EXPECT().GetUser(gomock.Any(), int64(2)).Return(&domain.User{ID: 2, Username: "johndoe"}, nil)
	auctionRepo.EXPECT().GetAuction(gomock.Any(), int64(1)).Return(&domain.Auction{
		ID: 1, Version: 1, Status: domain.AuctionOpen,
		StartingPrice: money("100.00"), ExpirationTime: baseTime.Add(time.Hour),
	}, nil)
	txManager.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

	service := NewBidService(auctionRepo, nil, userRepo, txManager, newFakeClock(baseTime),
		DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice, log)
	_, err := service.PlaceBid(context.Background(), johnPrincipal, 1, money("120.00"))

	require.Error(t, err)
	require.Equal(t, domain.KindInternal, domain.ErrorKind(err))
	require.Equal(t, 1, logs.FilterMessage("Failed to place bid").Len())
}

func TestBidService_GetBids(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeededStore(baseTime)
	auction := seedAuction(t, store, "10.00", "", baseTime.Add(time.Hour))
	clock := newFakeClock(baseTime)
	service := newMemoryBidService(store, clock, DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice)

	_, err := service.PlaceBid(ctx, johnPrincipal, auction.ID, money("10.00"))
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = service.PlaceBid(ctx, adminPrincipal, auction.ID, money("11.50"))
	require.NoError(t, err)

	bids, err := service.GetBids(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "johndoe", bids[0].Username)
	assert.Equal(t, "admin", bids[1].Username)
	assert.True(t, bids[1].BidTime.After(bids[0].BidTime))

	_, err = service.GetBids(ctx, 404)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBidService_AuctionClosedBetweenReadAndWrite(t *testing.T) {
	tests := []struct {
		name          string
		interleave    func(t *testing.T, ctx context.Context, store *memory.Store, clock *fakeClock)
		expectedError error
	}{
		{
			name: "closed_by_sweep",
			interleave: func(t *testing.T, ctx context.Context, store *memory.Store, clock *fakeClock) {
				clock.Advance(2 * time.Minute)
				closed, err := NewSweeper(store.Auctions(), clock, DefaultSweepBatchSize, logger.NewNop()).CloseExpiredAuctions(ctx)
				require.NoError(t, err)
				require.Equal(t, 1, closed)
			},
			expectedError: domain.ErrAuctionExpired,
		},
		{
			name: "closed_by_admin",
			interleave: func(t *testing.T, ctx context.Context, store *memory.Store, clock *fakeClock) {
				status := domain.AuctionClosed
				manager := NewAuctionManager(store.Auctions(), clock, DefaultMaxAttempts, logger.NewNop())
				_, err := manager.UpdateAuction(ctx, 1, domain.AuctionUpdate{Status: &status})
				require.NoError(t, err)
			},
			expectedError: domain.ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			store := memory.NewSeededStore(baseTime)
			clock := newFakeClock(baseTime)
			auction := seedAuction(t, store, "100.00", "", baseTime.Add(time.Minute))
			require.Equal(t, int64(1), auction.ID)

			txManager := mocks.NewMockTransactionManager(ctrl)
			txManager.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, fn func(context.Context, domain.UnitOfWork) error) error {
					tt.interleave(t, ctx, store, clock)
					return store.WithinTransaction(ctx, fn)
				}).Times(1)

			log, logs := observedLogger()
			service := NewBidService(store.Auctions(), store.Bids(), store.Users(), txManager, clock,
				DefaultMaxAttempts, domain.FirstBidAtLeastStartingPrice, log)

			bid, err := service.PlaceBid(ctx, johnPrincipal, auction.ID, money("150.00"))
			require.ErrorIs(t, err, tt.expectedError)
			require.Nil(t, bid)
			require.Equal(t, 1, logs.FilterMessage("Bid lost version race, retrying").Len())

			bids, err := store.Bids().GetBidsForAuction(ctx, auction.ID)
			require.NoError(t, err)
			require.Empty(t, bids)

			stored, err := store.Auctions().GetAuction(ctx, auction.ID)
			require.NoError(t, err)
			require.Equal(t, domain.AuctionClosed, stored.Status)
			require.False(t, stored.HighestBid.Valid)
		})
	}
}
