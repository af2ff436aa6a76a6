package handlers

import (
	"auction-platform/internal/api/middleware"
	"auction-platform/internal/domain"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the auction API on g. Every route requires a known
// caller; changes to auctions require the admin role.
func RegisterRoutes(g *echo.Group, users domain.UserRepository, auctions *AuctionHandler, bids *BidHandler) {
	g.Use(middleware.Identity(users, auctions.log))
	admin := middleware.RequireRole(domain.RoleAdmin)

	g.POST("/auctions", auctions.CreateAuction, admin)
	g.GET("/auctions", auctions.ListAuctions)
	g.GET("/auctions/:id", auctions.GetAuction)
	g.PUT("/auctions/:id", auctions.UpdateAuction, admin)

	g.POST("/auctions/:id/bids", bids.PlaceBid)
	g.GET("/auctions/:id/bids", bids.GetBids)
}
