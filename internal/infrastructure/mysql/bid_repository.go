package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"auction-platform/internal/domain"
)

type MySQLBidRepository struct {
	db querier
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

func (r *MySQLBidRepository) SaveBid(ctx context.Context, bid *domain.Bid) error {
	query := `
        INSERT INTO bids (auction_id, user_id, amount, bid_time)
        VALUES (?, ?, ?, ?)
    `
	res, err := r.db.ExecContext(ctx, query, bid.AuctionID, bid.UserID, bid.Amount, bid.BidTime)
	if err != nil {
		return fmt.Errorf("insert bid: %w", translateError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	bid.ID = id
	return nil
}

// GetBidsForAuction returns the accepted bids of an auction, oldest first.
func (r *MySQLBidRepository) GetBidsForAuction(ctx context.Context, auctionID int64) ([]*domain.Bid, error) {
	query := `
        SELECT b.id, b.auction_id, b.user_id, COALESCE(u.username, ''), b.amount, b.bid_time
        FROM bids b
        LEFT JOIN users u ON u.id = b.user_id
        WHERE b.auction_id = ?
        ORDER BY b.bid_time ASC, b.id ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %d: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID, &bid.Username,
			&bid.Amount, &bid.BidTime)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
