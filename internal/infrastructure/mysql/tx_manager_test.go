package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-platform/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTxManager_CommitsBidAndAuctionTogether(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTxManager(db)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bids").
		WithArgs(int64(1), int64(2), sqlmock.AnyArg(), now).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("UPDATE auctions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bidder := int64(2)
	err := txm.WithinTransaction(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		bid := &domain.Bid{AuctionID: 1, UserID: 2, Amount: decimal.RequireFromString("150.00"), BidTime: now}
		if err := uow.Bids().SaveBid(ctx, bid); err != nil {
			return err
		}
		require.Equal(t, int64(9), bid.ID)
		return uow.Auctions().UpdateAuction(ctx, &domain.Auction{
			ID: 1, Version: 1, Status: domain.AuctionOpen,
			HighestBid: decimal.NewNullDecimal(bid.Amount), HighestBidder: &bidder,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollsBackOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTxManager(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bids").WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("UPDATE auctions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := txm.WithinTransaction(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		if err := uow.Bids().SaveBid(ctx, &domain.Bid{AuctionID: 1, UserID: 2}); err != nil {
			return err
		}
		return uow.Auctions().UpdateAuction(ctx, &domain.Auction{ID: 1, Version: 1})
	})
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)
	txm := NewTxManager(db)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := txm.WithinTransaction(context.Background(), func(ctx context.Context, uow domain.UnitOfWork) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}
