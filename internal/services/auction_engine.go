package services

import (
	"context"
	"fmt"
	"time"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"
)

// AuctionEngine runs the ascending-bid listing lifecycle: create, bid, end,
// cancel. States: created (no bids) -> active (first bid starts the timer)
// -> ended once the window elapses. Cancellation is only possible before the
// first bid. Ending an expired auction is permissionless.
type AuctionEngine struct {
	ledger    *ListingLedger
	registry  domain.AssetRegistry
	custodian *Custodian
	fees      *FeeDistributor
	guard     *AccessGuard
	events    domain.EventPublisher
	clock     domain.Clock
	log       logger.Logger

	minIncrementPct uint64
	timeBuffer      time.Duration
}

func NewAuctionEngine(
	ledger *ListingLedger,
	registry domain.AssetRegistry,
	custodian *Custodian,
	fees *FeeDistributor,
	guard *AccessGuard,
	events domain.EventPublisher,
	clock domain.Clock,
	minIncrementPct uint64,
	timeBuffer time.Duration,
	log logger.Logger,
) *AuctionEngine {
	return &AuctionEngine{
		ledger:          ledger,
		registry:        registry,
		custodian:       custodian,
		fees:            fees,
		guard:           guard,
		events:          events,
		clock:           clock,
		minIncrementPct: minIncrementPct,
		timeBuffer:      timeBuffer,
		log:             log,
	}
}

// CreateAuction lists an asset for a time-boxed ascending auction. The timer
// does not run until the first bid arrives.
func (e *AuctionEngine) CreateAuction(ctx context.Context, assetID string, duration time.Duration, reservePrice uint64, caller string) (*domain.Auction, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	if duration <= 0 {
		return nil, fmt.Errorf("auction duration must be positive: %w", domain.ErrInvalidState)
	}

	owner, err := authorizeLister(ctx, e.registry, assetID, caller)
	if err != nil {
		return nil, err
	}

	if e.ledger.HasAuction(assetID) {
		return nil, fmt.Errorf("asset %s already has an active auction: %w", assetID, domain.ErrConflict)
	}

	auctionID, err := e.ledger.NextAuctionID(ctx)
	if err != nil {
		return nil, err
	}

	auction := &domain.Auction{
		AuctionID:    auctionID,
		AssetID:      assetID,
		Duration:     duration,
		ReservePrice: reservePrice,
		Owner:        owner,
	}

	if err := e.ledger.PutAuction(ctx, auction); err != nil {
		return nil, err
	}

	if err := e.custodian.PullAsset(ctx, owner, assetID); err != nil {
		// Creation is atomic with the custody move; undo the put.
		if rmErr := e.ledger.Remove(ctx, assetID); rmErr != nil {
			e.log.Error("Failed to undo auction after custody failure",
				"asset_id", assetID, "error", rmErr)
		}
		return nil, err
	}

	event := domain.NewListingEvent(domain.AuctionCreatedEv, assetID, e.clock.Now())
	event.AuctionID = auction.AuctionID
	event.Owner = owner
	event.Price = reservePrice
	event.Duration = int64(duration / time.Second)
	e.publish(ctx, event)

	e.log.Info("Auction created", "auction_id", auction.AuctionID, "asset_id", assetID,
		"reserve_price", reservePrice, "duration", duration)
	return auction, nil
}

// PlaceBid accepts a bid on an active auction. The first accepted bid starts
// the timer; later bids must strictly exceed the current bid plus the
// minimum increment (floor of bid * pct / 100). A bid landing inside the
// anti-snipe buffer pushes the expiry out to exactly now + buffer.
func (e *AuctionEngine) PlaceBid(ctx context.Context, assetID string, amount uint64, bidder string) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	auction, ok := e.ledger.Auction(assetID)
	if !ok {
		return fmt.Errorf("no active auction for asset %s: %w", assetID, domain.ErrInvalidState)
	}

	now := e.clock.Now()
	if auction.Expired(now) {
		return fmt.Errorf("bidding window for auction %d has elapsed: %w", auction.AuctionID, domain.ErrInvalidState)
	}
	if amount < auction.ReservePrice {
		return fmt.Errorf("bid %d below reserve price %d: %w", amount, auction.ReservePrice, domain.ErrInvalidBid)
	}
	if auction.Started() {
		// Equal to the floor is not enough; the bid must exceed it.
		floor := auction.Bid + auction.Bid*e.minIncrementPct/100
		if amount <= floor {
			return fmt.Errorf("bid %d must exceed %d (current bid %d plus %d%% increment): %w",
				amount, floor, auction.Bid, e.minIncrementPct, domain.ErrInvalidBid)
		}
	}

	// The standing record is not touched until the update is durable; a
	// failed write must leave the previous bid fully in force.
	updated := *auction
	firstBid := !auction.Started()
	if firstBid {
		updated.FirstBidTime = now
	}
	updated.Bid = amount
	updated.Bidder = bidder

	extended := false
	if remaining := updated.Expiry().Sub(now); remaining < e.timeBuffer {
		updated.Duration += e.timeBuffer - remaining
		extended = true
	}

	if err := e.custodian.CollectPayment(ctx, bidder, amount); err != nil {
		return err
	}

	if err := e.ledger.UpdateAuction(ctx, &updated); err != nil {
		if refundErr := e.custodian.PayOut(ctx, bidder, amount); refundErr != nil {
			e.log.Error("Failed to refund bid after store failure",
				"asset_id", assetID, "bidder", bidder, "amount", amount, "error", refundErr)
		}
		return err
	}

	// The refund cannot fail outright: a rejected push lands in the
	// withdrawal book.
	prevBidder := auction.Bidder
	if !firstBid {
		if err := e.custodian.PayOut(ctx, prevBidder, auction.Bid); err != nil {
			return err
		}
	}

	event := domain.NewListingEvent(domain.AuctionBid, assetID, now)
	event.AuctionID = auction.AuctionID
	event.Bidder = bidder
	event.Amount = amount
	event.FirstBid = firstBid
	event.Extended = extended
	e.publish(ctx, event)

	if extended {
		extEvent := domain.NewListingEvent(domain.DurationExtended, assetID, now)
		extEvent.AuctionID = updated.AuctionID
		extEvent.Duration = int64(updated.Duration / time.Second)
		e.publish(ctx, extEvent)
	}

	e.log.Info("Bid accepted", "auction_id", auction.AuctionID, "asset_id", assetID,
		"bidder", bidder, "amount", amount, "first_bid", firstBid,
		"extended", extended, "previous_bidder", prevBidder)
	return nil
}

// EndAuction settles an auction whose window has elapsed. Any caller may
// trigger settlement; the asset goes to the highest bidder and the held bid
// is split among the parties.
func (e *AuctionEngine) EndAuction(ctx context.Context, assetID string, caller string) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	auction, ok := e.ledger.Auction(assetID)
	if !ok {
		return fmt.Errorf("no active auction for asset %s: %w", assetID, domain.ErrInvalidState)
	}
	if !auction.Started() {
		return fmt.Errorf("auction %d has not begun: %w", auction.AuctionID, domain.ErrInvalidState)
	}
	now := e.clock.Now()
	if !auction.Expired(now) {
		return fmt.Errorf("auction %d is still running until %s: %w",
			auction.AuctionID, auction.Expiry().Format(time.RFC3339), domain.ErrInvalidState)
	}

	beneficiaries, err := resolveBeneficiaries(ctx, e.registry, e.guard, assetID, auction.Owner)
	if err != nil {
		return err
	}
	split := e.fees.Split(auction.Bid, beneficiaries.OwnerIsArtist)

	// The safe transfer fails for a winner that cannot accept custody.
	// Settlement stops there: the auction stays on the books with the bid
	// in escrow and the next EndAuction call retries.
	if err := e.custodian.ReleaseAsset(ctx, auction.Bidder, assetID); err != nil {
		return err
	}

	// Effects before payouts: the listing is gone before any recipient runs.
	if err := e.ledger.Remove(ctx, assetID); err != nil {
		return err
	}

	if err := e.custodian.Distribute(ctx, split, beneficiaries); err != nil {
		return err
	}

	event := domain.NewListingEvent(domain.AuctionEnded, assetID, now)
	event.AuctionID = auction.AuctionID
	event.Owner = auction.Owner
	event.Bidder = auction.Bidder
	event.Amount = auction.Bid
	event.Split = &split
	e.publish(ctx, event)

	e.log.Info("Auction ended", "auction_id", auction.AuctionID, "asset_id", assetID,
		"winner", auction.Bidder, "amount", auction.Bid, "caller", caller)
	return nil
}

// CancelAuction delists an auction that has no bids yet and returns custody
// to the owner. Listing owner or curator only.
func (e *AuctionEngine) CancelAuction(ctx context.Context, assetID string, caller string) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	auction, ok := e.ledger.Auction(assetID)
	if !ok {
		return fmt.Errorf("no active auction for asset %s: %w", assetID, domain.ErrInvalidState)
	}
	if auction.Started() {
		return fmt.Errorf("auction %d already has a bid: %w", auction.AuctionID, domain.ErrInvalidState)
	}
	if !e.guard.CanManageListing(caller, auction.Owner) {
		return fmt.Errorf("caller %s may not cancel auction %d: %w", caller, auction.AuctionID, domain.ErrUnauthorized)
	}

	if err := e.ledger.Remove(ctx, assetID); err != nil {
		return err
	}
	if err := e.custodian.ReturnAsset(ctx, auction.Owner, assetID); err != nil {
		return err
	}

	event := domain.NewListingEvent(domain.AuctionCanceled, assetID, e.clock.Now())
	event.AuctionID = auction.AuctionID
	event.Owner = auction.Owner
	event.Price = auction.ReservePrice
	e.publish(ctx, event)

	e.log.Info("Auction canceled", "auction_id", auction.AuctionID, "asset_id", assetID, "caller", caller)
	return nil
}

func (e *AuctionEngine) publish(ctx context.Context, event *domain.ListingEvent) {
	if err := e.events.PublishListingEvent(ctx, event); err != nil {
		e.log.Error("Failed to publish listing event",
			"type", event.Type, "asset_id", event.AssetID, "error", err)
	}
}
