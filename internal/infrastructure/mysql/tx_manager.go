package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"auction-platform/internal/domain"
)

// TxManager runs units of work inside a single database transaction.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback()

	if err := fn(ctx, &unitOfWork{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translateError(err))
	}
	return nil
}

type unitOfWork struct {
	tx *sql.Tx
}

func (u *unitOfWork) Auctions() domain.AuctionRepository {
	return &MySQLAuctionRepository{db: u.tx}
}

func (u *unitOfWork) Bids() domain.BidRepository {
	return &MySQLBidRepository{db: u.tx}
}
