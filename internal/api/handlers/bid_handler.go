package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"auction-platform/internal/api/middleware"
	"auction-platform/internal/domain"
	"auction-platform/internal/services"
	"auction-platform/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidService *services.BidService
	log        logger.Logger
}

func NewBidHandler(bidService *services.BidService, log logger.Logger) *BidHandler {
	return &BidHandler{
		bidService: bidService,
		log:        log,
	}
}

// PlaceBid places a bid as the authenticated caller.
func (h *BidHandler) PlaceBid(c echo.Context) error {
	bidder, ok := middleware.PrincipalFrom(c)
	if !ok {
		return fmt.Errorf("%w: no authenticated caller", domain.ErrUnauthorized)
	}

	auctionID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req PlaceBidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	bid, err := h.bidService.PlaceBid(c.Request().Context(), bidder, auctionID, *req.Amount)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, c.Request().URL.Path+"/"+strconv.FormatInt(bid.ID, 10))
	return c.JSON(http.StatusCreated, newBidResponse(bid))
}

func (h *BidHandler) GetBids(c echo.Context) error {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	bids, err := h.bidService.GetBids(c.Request().Context(), auctionID)
	if err != nil {
		return err
	}

	resp := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, newBidResponse(b))
	}
	return c.JSON(http.StatusOK, resp)
}
