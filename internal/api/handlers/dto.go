package handlers

import (
	"time"

	"auction-platform/internal/domain"

	"github.com/shopspring/decimal"
)

type CreateAuctionRequest struct {
	Title          string           `json:"title" validate:"required,max=255"`
	Description    string           `json:"description" validate:"required,max=2000"`
	StartingPrice  *decimal.Decimal `json:"starting_price" validate:"required"`
	ExpirationTime *time.Time       `json:"expiration_time" validate:"required"`
}

func (r CreateAuctionRequest) toDraft() domain.AuctionDraft {
	return domain.AuctionDraft{
		Title:          r.Title,
		Description:    r.Description,
		StartingPrice:  *r.StartingPrice,
		ExpirationTime: r.ExpirationTime.UTC(),
	}
}

// UpdateAuctionRequest only changes the fields that are present.
type UpdateAuctionRequest struct {
	Title          *string          `json:"title" validate:"omitempty,max=255"`
	Description    *string          `json:"description" validate:"omitempty,max=2000"`
	StartingPrice  *decimal.Decimal `json:"starting_price"`
	ExpirationTime *time.Time       `json:"expiration_time"`
	Status         *string          `json:"status"`
}

func (r UpdateAuctionRequest) toUpdate() domain.AuctionUpdate {
	update := domain.AuctionUpdate{
		Title:         r.Title,
		Description:   r.Description,
		StartingPrice: r.StartingPrice,
	}
	if r.ExpirationTime != nil {
		t := r.ExpirationTime.UTC()
		update.ExpirationTime = &t
	}
	if r.Status != nil {
		// invalid values are rejected by the domain
		status, _ := domain.ParseAuctionStatus(*r.Status)
		update.Status = &status
	}
	return update
}

type PlaceBidRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required"`
}

type AuctionResponse struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	StartingPrice  string    `json:"starting_price"`
	ExpirationTime time.Time `json:"expiration_time"`
	Status         string    `json:"status"`
	HighestBid     *string   `json:"highest_bid"`
	HighestBidder  *string   `json:"highest_bidder"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newAuctionResponse(a *domain.Auction) AuctionResponse {
	resp := AuctionResponse{
		ID:             a.ID,
		Title:          a.Title,
		Description:    a.Description,
		StartingPrice:  formatMoney(a.StartingPrice),
		ExpirationTime: a.ExpirationTime,
		Status:         a.Status.String(),
		HighestBid:     formatNullMoney(a.HighestBid),
		Version:        a.Version,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.HighestBidder != nil && a.HighestBidderName != "" {
		name := a.HighestBidderName
		resp.HighestBidder = &name
	}
	return resp
}

type AuctionSummary struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	HighestBid *string `json:"highest_bid"`
	Status     string  `json:"status"`
}

type AuctionPageResponse struct {
	Auctions []AuctionSummary `json:"auctions"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
	Total    int64            `json:"total"`
}

func newAuctionPageResponse(p *domain.AuctionPage) AuctionPageResponse {
	resp := AuctionPageResponse{
		Auctions: make([]AuctionSummary, 0, len(p.Auctions)),
		Page:     p.Page,
		Size:     p.Size,
		Total:    p.Total,
	}
	for _, a := range p.Auctions {
		resp.Auctions = append(resp.Auctions, AuctionSummary{
			ID:         a.ID,
			Title:      a.Title,
			HighestBid: formatNullMoney(a.HighestBid),
			Status:     a.Status.String(),
		})
	}
	return resp
}

type BidResponse struct {
	ID        int64     `json:"id"`
	AuctionID int64     `json:"auction_id"`
	UserID    int64     `json:"user_id"`
	Bidder    string    `json:"bidder"`
	Amount    string    `json:"amount"`
	BidTime   time.Time `json:"bid_time"`
}

func newBidResponse(b *domain.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		UserID:    b.UserID,
		Bidder:    b.Username,
		Amount:    formatMoney(b.Amount),
		BidTime:   b.BidTime,
	}
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func formatNullMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := formatMoney(d.Decimal)
	return &s
}
