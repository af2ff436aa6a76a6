package handlers

import (
	"net/http"
	"strconv"

	"auction-platform/internal/services"
	"auction-platform/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	log            logger.Logger
}

func NewAuctionHandler(auctionManager *services.AuctionManager, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		log:            log,
	}
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), req.toDraft())
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderLocation, c.Request().URL.Path+"/"+strconv.FormatInt(auction.ID, 10))
	return c.JSON(http.StatusCreated, newAuctionResponse(auction))
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	auction, err := h.auctionManager.GetAuction(c.Request().Context(), auctionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	page, err := queryInt(c, "page", 0)
	if err != nil {
		return err
	}
	size, err := queryInt(c, "size", services.DefaultPageSize)
	if err != nil {
		return err
	}

	result, err := h.auctionManager.ListAuctions(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuctionPageResponse(result))
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	auctionID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	auction, err := h.auctionManager.UpdateAuction(c.Request().Context(), auctionID, req.toUpdate())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return v, nil
}
