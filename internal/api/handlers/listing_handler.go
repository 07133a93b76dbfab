package handlers

import (
	"errors"
	"net/http"
	"time"

	"nft-marketplace/internal/domain"
	"nft-marketplace/internal/services"
	"nft-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ListingHandler exposes the engine's operations over HTTP. Every failure
// carries the specific error kind so integrators can tell "too early" from
// "not authorized" from "conflicting listing".
type ListingHandler struct {
	sales     *services.SaleEngine
	auctions  *services.AuctionEngine
	custodian *services.Custodian
	ledger    *services.ListingLedger
	guard     *services.AccessGuard
	clock     domain.Clock
	log       logger.Logger
}

func NewListingHandler(
	sales *services.SaleEngine,
	auctions *services.AuctionEngine,
	custodian *services.Custodian,
	ledger *services.ListingLedger,
	guard *services.AccessGuard,
	clock domain.Clock,
	log logger.Logger,
) *ListingHandler {
	return &ListingHandler{
		sales:     sales,
		auctions:  auctions,
		custodian: custodian,
		ledger:    ledger,
		guard:     guard,
		clock:     clock,
		log:       log,
	}
}

func (h *ListingHandler) Register(g *echo.Group) {
	g.POST("/sales", h.CreateSale)
	g.POST("/sales/:assetID/buy", h.BuySale)
	g.POST("/sales/:assetID/cancel", h.CancelSale)
	g.POST("/auctions", h.CreateAuction)
	g.POST("/auctions/:assetID/bids", h.PlaceBid)
	g.POST("/auctions/:assetID/end", h.EndAuction)
	g.POST("/auctions/:assetID/cancel", h.CancelAuction)
	g.GET("/listings/:assetID", h.GetListing)
	g.POST("/withdrawals", h.Withdraw)
	g.PUT("/curator", h.SetCurator)
}

type createSaleRequest struct {
	AssetID string `json:"asset_id"`
	Price   uint64 `json:"price"`
	Caller  string `json:"caller"`
}

func (h *ListingHandler) CreateSale(c echo.Context) error {
	var req createSaleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AssetID == "" {
		return badRequest(c, "asset_id required")
	}

	sale, err := h.sales.CreateSale(c.Request().Context(), req.AssetID, req.Price, req.Caller)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"sale_id":  sale.SaleID,
		"asset_id": sale.AssetID,
		"price":    sale.Price,
		"owner":    sale.Owner,
	})
}

type buySaleRequest struct {
	Payment uint64 `json:"payment"`
	Caller  string `json:"caller"`
}

func (h *ListingHandler) BuySale(c echo.Context) error {
	var req buySaleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.sales.BuySale(c.Request().Context(), c.Param("assetID"), req.Payment, req.Caller); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "completed"})
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (h *ListingHandler) CancelSale(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.sales.CancelSale(c.Request().Context(), c.Param("assetID"), req.Caller); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "canceled"})
}

type createAuctionRequest struct {
	AssetID         string `json:"asset_id"`
	DurationSeconds int64  `json:"duration_seconds"`
	ReservePrice    uint64 `json:"reserve_price"`
	Caller          string `json:"caller"`
}

func (h *ListingHandler) CreateAuction(c echo.Context) error {
	var req createAuctionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AssetID == "" {
		return badRequest(c, "asset_id required")
	}
	if req.DurationSeconds <= 0 {
		return badRequest(c, "duration_seconds must be positive")
	}

	auction, err := h.auctions.CreateAuction(c.Request().Context(), req.AssetID,
		time.Duration(req.DurationSeconds)*time.Second, req.ReservePrice, req.Caller)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"auction_id":       auction.AuctionID,
		"asset_id":         auction.AssetID,
		"duration_seconds": int64(auction.Duration / time.Second),
		"reserve_price":    auction.ReservePrice,
		"owner":            auction.Owner,
		"state":            auction.State(h.clock.Now()).String(),
	})
}

type placeBidRequest struct {
	Amount uint64 `json:"amount"`
	Bidder string `json:"bidder"`
}

func (h *ListingHandler) PlaceBid(c echo.Context) error {
	var req placeBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.auctions.PlaceBid(c.Request().Context(), c.Param("assetID"), req.Amount, req.Bidder); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *ListingHandler) EndAuction(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.auctions.EndAuction(c.Request().Context(), c.Param("assetID"), req.Caller); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ended"})
}

func (h *ListingHandler) CancelAuction(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := h.auctions.CancelAuction(c.Request().Context(), c.Param("assetID"), req.Caller); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "canceled"})
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	assetID := c.Param("assetID")

	if sale, ok := h.ledger.Sale(assetID); ok {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"mode":     domain.ModeSale,
			"sale_id":  sale.SaleID,
			"asset_id": sale.AssetID,
			"price":    sale.Price,
			"owner":    sale.Owner,
		})
	}

	if auction, ok := h.ledger.Auction(assetID); ok {
		resp := map[string]interface{}{
			"mode":             domain.ModeAuction,
			"auction_id":       auction.AuctionID,
			"asset_id":         auction.AssetID,
			"duration_seconds": int64(auction.Duration / time.Second),
			"reserve_price":    auction.ReservePrice,
			"owner":            auction.Owner,
			"state":            auction.State(h.clock.Now()).String(),
		}
		if auction.Started() {
			resp["bid"] = auction.Bid
			resp["bidder"] = auction.Bidder
			resp["expires_at"] = auction.Expiry().Format(time.RFC3339)
		}
		return c.JSON(http.StatusOK, resp)
	}

	return c.JSON(http.StatusNotFound, map[string]string{"error": "no active listing"})
}

func (h *ListingHandler) Withdraw(c echo.Context) error {
	var req callerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Caller == "" {
		return badRequest(c, "caller required")
	}

	amount, err := h.custodian.Withdraw(c.Request().Context(), req.Caller)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"amount": amount})
}

type setCuratorRequest struct {
	Caller  string `json:"caller"`
	Curator string `json:"curator"`
}

func (h *ListingHandler) SetCurator(c echo.Context) error {
	var req setCuratorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Curator == "" {
		return badRequest(c, "curator required")
	}

	if err := h.guard.SetCurator(req.Caller, req.Curator); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"curator": req.Curator})
}

func (h *ListingHandler) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidBid), errors.Is(err, domain.ErrSelfTrade):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrReentrant):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Operation failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
