package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits a monetary amount may carry.
const MoneyScale int32 = 2

// MoneyPrecision is the total number of digits a monetary amount may carry,
// matching the DECIMAL(19,2) columns.
const MoneyPrecision int32 = 19

type Auction struct {
	ID             int64
	Version        int64
	Title          string
	Description    string
	StartingPrice  decimal.Decimal
	ExpirationTime time.Time
	Status         AuctionStatus
	HighestBid     decimal.NullDecimal
	HighestBidder  *int64
	// HighestBidderName is filled on reads only, it is never persisted.
	HighestBidderName string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasBids reports whether any bid was ever accepted for the auction.
func (a *Auction) HasBids() bool {
	return a.HighestBid.Valid || a.HighestBidder != nil
}

func (a *Auction) IsExpired(now time.Time) bool {
	return a.ExpirationTime.Before(now)
}

// Clone returns a copy that shares no mutable state with a.
func (a *Auction) Clone() *Auction {
	c := *a
	if a.HighestBidder != nil {
		id := *a.HighestBidder
		c.HighestBidder = &id
	}
	return &c
}

type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "OPEN"
	AuctionClosed AuctionStatus = "CLOSED"
)

func (s AuctionStatus) String() string {
	return string(s)
}

func (s AuctionStatus) IsValid() bool {
	return s == AuctionOpen || s == AuctionClosed
}

// ParseAuctionStatus accepts the status in any letter case.
func ParseAuctionStatus(s string) (AuctionStatus, bool) {
	st := AuctionStatus(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.IsValid()
}

type Bid struct {
	ID        int64
	AuctionID int64
	UserID    int64
	Username  string
	Amount    decimal.Decimal
	BidTime   time.Time
}

type User struct {
	ID        int64
	Username  string
	Email     string
	FullName  string
	Roles     []string
	CreatedAt time.Time
	LastLogin *time.Time
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Principal is an already authenticated caller.
type Principal struct {
	UserID   int64
	Username string
	Roles    []string
}

func PrincipalFromUser(u *User) Principal {
	roles := make([]string, len(u.Roles))
	copy(roles, u.Roles)
	return Principal{UserID: u.ID, Username: u.Username, Roles: roles}
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// AuctionDraft carries the fields an administrator supplies on creation.
type AuctionDraft struct {
	Title          string
	Description    string
	StartingPrice  decimal.Decimal
	ExpirationTime time.Time
}

// AuctionUpdate is a partial update, nil fields are left untouched.
type AuctionUpdate struct {
	Title          *string
	Description    *string
	StartingPrice  *decimal.Decimal
	ExpirationTime *time.Time
	Status         *AuctionStatus
}

// AuctionPage is one page of the auction listing.
type AuctionPage struct {
	Auctions []*Auction
	Page     int
	Size     int
	Total    int64
}

// FirstBidPolicy decides the floor for the first bid on an auction.
type FirstBidPolicy string

const (
	// FirstBidAtLeastStartingPrice requires amount >= starting price.
	FirstBidAtLeastStartingPrice FirstBidPolicy = "starting_price"
	// FirstBidAnyPositive accepts any positive amount.
	FirstBidAnyPositive FirstBidPolicy = "any_positive"
)

func (p FirstBidPolicy) IsValid() bool {
	return p == FirstBidAtLeastStartingPrice || p == FirstBidAnyPositive
}
