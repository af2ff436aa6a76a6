package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-platform/internal/domain"

	"github.com/shopspring/decimal"
)

const auctionColumns = `
        a.id, a.version, a.title, a.description, a.starting_price, a.expiration_time,
        a.status, a.highest_bid, a.highest_bidder_id, COALESCE(u.username, ''),
        a.created_at, a.updated_at`

const auctionFrom = `
        FROM auctions a
        LEFT JOIN users u ON u.id = a.highest_bidder_id`

type MySQLAuctionRepository struct {
	db querier
}

func NewMySQLAuctionRepository(db *sql.DB) *MySQLAuctionRepository {
	return &MySQLAuctionRepository{db: db}
}

func (r *MySQLAuctionRepository) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (version, title, description, starting_price, expiration_time,
                              status, highest_bid, highest_bidder_id, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	if auction.Version == 0 {
		auction.Version = 1
	}
	res, err := r.db.ExecContext(ctx, query,
		auction.Version, auction.Title, auction.Description, auction.StartingPrice,
		auction.ExpirationTime, string(auction.Status), auction.HighestBid,
		nullableID(auction.HighestBidder), auction.CreatedAt, auction.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert auction: %w", translateError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	auction.ID = id
	return nil
}

func (r *MySQLAuctionRepository) GetAuction(ctx context.Context, auctionID int64) (*domain.Auction, error) {
	query := `SELECT` + auctionColumns + auctionFrom + `
        WHERE a.id = ?`

	auction, err := scanAuction(r.db.QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", domain.ErrAuctionNotFound, auctionID)
		}
		return nil, fmt.Errorf("get auction %d: %w", auctionID, err)
	}
	return auction, nil
}

func (r *MySQLAuctionRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
           SET title = ?, description = ?, starting_price = ?, expiration_time = ?, status = ?,
               highest_bid = ?, highest_bidder_id = ?, updated_at = ?, version = version + 1
         WHERE id = ? AND version = ?
    `
	res, err := r.db.ExecContext(ctx, query,
		auction.Title, auction.Description, auction.StartingPrice, auction.ExpirationTime,
		string(auction.Status), auction.HighestBid, nullableID(auction.HighestBidder),
		auction.UpdatedAt, auction.ID, auction.Version)
	if err != nil {
		return fmt.Errorf("update auction %d: %w", auction.ID, translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update auction %d: %w", auction.ID, err)
	}
	// A missing row also lands here; the caller re-reads and gets not found.
	if n == 0 {
		return fmt.Errorf("%w: auction %d at version %d", domain.ErrVersionConflict, auction.ID, auction.Version)
	}

	auction.Version++
	return nil
}

func (r *MySQLAuctionRepository) CloseAuction(ctx context.Context, auctionID int64, at time.Time) (bool, error) {
	query := `
        UPDATE auctions
           SET status = ?, updated_at = ?, version = version + 1
         WHERE id = ? AND status <> ?
    `
	res, err := r.db.ExecContext(ctx, query,
		string(domain.AuctionClosed), at, auctionID, string(domain.AuctionClosed))
	if err != nil {
		return false, fmt.Errorf("close auction %d: %w", auctionID, translateError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close auction %d: %w", auctionID, err)
	}
	return n > 0, nil
}

func (r *MySQLAuctionRepository) FindExpiredAuctions(ctx context.Context, before time.Time, afterID int64, limit int) ([]*domain.Auction, error) {
	query := `SELECT` + auctionColumns + auctionFrom + `
        WHERE a.expiration_time < ? AND a.status <> ? AND a.id > ?
        ORDER BY a.id ASC
        LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, before, string(domain.AuctionClosed), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired auctions: %w", err)
	}
	return collectAuctions(rows)
}

func (r *MySQLAuctionRepository) ListAuctions(ctx context.Context, limit, offset int) ([]*domain.Auction, error) {
	query := `SELECT` + auctionColumns + auctionFrom + `
        ORDER BY a.id ASC
        LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return collectAuctions(rows)
}

func (r *MySQLAuctionRepository) CountAuctions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuction(row rowScanner) (*domain.Auction, error) {
	var (
		auction    domain.Auction
		status     string
		highestBid decimal.NullDecimal
		bidderID   sql.NullInt64
	)

	err := row.Scan(
		&auction.ID, &auction.Version, &auction.Title, &auction.Description,
		&auction.StartingPrice, &auction.ExpirationTime, &status, &highestBid,
		&bidderID, &auction.HighestBidderName, &auction.CreatedAt, &auction.UpdatedAt)
	if err != nil {
		return nil, err
	}

	auction.Status = domain.AuctionStatus(status)
	auction.HighestBid = highestBid
	if bidderID.Valid {
		id := bidderID.Int64
		auction.HighestBidder = &id
	}
	return &auction, nil
}

func collectAuctions(rows *sql.Rows) ([]*domain.Auction, error) {
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
