package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-platform/internal/domain"
	"auction-platform/internal/infrastructure/memory"
	"auction-platform/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var baseTime = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func observedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	adminPrincipal = domain.Principal{UserID: 1, Username: "admin", Roles: []string{domain.RoleAdmin, domain.RoleUser}}
	johnPrincipal  = domain.Principal{UserID: 2, Username: "johndoe", Roles: []string{domain.RoleUser}}
)

// seedAuction stores an open auction with the given starting price and
// optional highest bid, expiring at expires.
func seedAuction(t *testing.T, store *memory.Store, startingPrice string, highestBid string, expires time.Time) *domain.Auction {
	t.Helper()
	a := &domain.Auction{
		Title:          "Vintage watch",
		Description:    "Swiss made, 1962",
		StartingPrice:  money(startingPrice),
		ExpirationTime: expires,
		Status:         domain.AuctionOpen,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
	}
	if highestBid != "" {
		a.ApplyBid(1, money(highestBid), baseTime)
	}
	require.NoError(t, store.Auctions().CreateAuction(context.Background(), a))
	return a
}
