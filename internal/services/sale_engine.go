package services

import (
	"context"
	"fmt"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"
)

// SaleEngine runs the fixed-price listing lifecycle: create, buy, cancel.
// The asset sits in engine custody from creation until resolution.
type SaleEngine struct {
	ledger    *ListingLedger
	registry  domain.AssetRegistry
	custodian *Custodian
	fees      *FeeDistributor
	guard     *AccessGuard
	events    domain.EventPublisher
	clock     domain.Clock
	log       logger.Logger
}

func NewSaleEngine(
	ledger *ListingLedger,
	registry domain.AssetRegistry,
	custodian *Custodian,
	fees *FeeDistributor,
	guard *AccessGuard,
	events domain.EventPublisher,
	clock domain.Clock,
	log logger.Logger,
) *SaleEngine {
	return &SaleEngine{
		ledger:    ledger,
		registry:  registry,
		custodian: custodian,
		fees:      fees,
		guard:     guard,
		events:    events,
		clock:     clock,
		log:       log,
	}
}

// CreateSale lists an asset at a fixed price. The caller must be the current
// owner or its approved operator; custody moves into the engine together
// with the listing.
func (e *SaleEngine) CreateSale(ctx context.Context, assetID string, price uint64, caller string) (*domain.Sale, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	owner, err := authorizeLister(ctx, e.registry, assetID, caller)
	if err != nil {
		return nil, err
	}

	if e.ledger.HasSale(assetID) {
		return nil, fmt.Errorf("asset %s already has an active sale: %w", assetID, domain.ErrConflict)
	}

	saleID, err := e.ledger.NextSaleID(ctx)
	if err != nil {
		return nil, err
	}

	sale := &domain.Sale{
		SaleID:  saleID,
		AssetID: assetID,
		Price:   price,
		Owner:   owner,
	}

	if err := e.ledger.PutSale(ctx, sale); err != nil {
		return nil, err
	}

	if err := e.custodian.PullAsset(ctx, owner, assetID); err != nil {
		// Creation is atomic with the custody move; undo the put.
		if rmErr := e.ledger.Remove(ctx, assetID); rmErr != nil {
			e.log.Error("Failed to undo sale after custody failure",
				"asset_id", assetID, "error", rmErr)
		}
		return nil, err
	}

	event := domain.NewListingEvent(domain.SaleCreated, assetID, e.clock.Now())
	event.SaleID = sale.SaleID
	event.Owner = owner
	event.Price = price
	e.publish(ctx, event)

	e.log.Info("Sale created", "sale_id", sale.SaleID, "asset_id", assetID, "price", price)
	return sale, nil
}

// BuySale settles an active sale. The full payment, including any amount
// above the asking price, is treated as gross proceeds and split.
func (e *SaleEngine) BuySale(ctx context.Context, assetID string, payment uint64, caller string) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	sale, ok := e.ledger.Sale(assetID)
	if !ok {
		return fmt.Errorf("no active sale for asset %s: %w", assetID, domain.ErrInvalidState)
	}
	if payment < sale.Price {
		return fmt.Errorf("payment %d below price %d: %w", payment, sale.Price, domain.ErrInsufficientFunds)
	}
	if caller == sale.Owner {
		return fmt.Errorf("owner cannot buy own listing: %w", domain.ErrSelfTrade)
	}

	beneficiaries, err := resolveBeneficiaries(ctx, e.registry, e.guard, assetID, sale.Owner)
	if err != nil {
		return err
	}
	split := e.fees.Split(payment, beneficiaries.OwnerIsArtist)

	if err := e.custodian.CollectPayment(ctx, caller, payment); err != nil {
		return err
	}

	// The safe transfer fails for a buyer that cannot accept custody. That
	// must surface before the listing is touched, so a failed purchase only
	// needs the payment unwound.
	if err := e.custodian.ReleaseAsset(ctx, caller, assetID); err != nil {
		if refundErr := e.custodian.PayOut(ctx, caller, payment); refundErr != nil {
			e.log.Error("Failed to refund payment after release failure",
				"asset_id", assetID, "buyer", caller, "amount", payment, "error", refundErr)
		}
		return err
	}

	// Effects before payouts: the listing is gone before any recipient runs.
	if err := e.ledger.Remove(ctx, assetID); err != nil {
		return err
	}

	if err := e.custodian.Distribute(ctx, split, beneficiaries); err != nil {
		return err
	}

	event := domain.NewListingEvent(domain.SaleCompleted, assetID, e.clock.Now())
	event.SaleID = sale.SaleID
	event.Owner = sale.Owner
	event.Buyer = caller
	event.Price = sale.Price
	event.Amount = payment
	event.Split = &split
	e.publish(ctx, event)

	e.log.Info("Sale completed", "sale_id", sale.SaleID, "asset_id", assetID,
		"buyer", caller, "amount", payment)
	return nil
}

// CancelSale delists an asset and returns custody to the owner. Listing
// owner or curator only.
func (e *SaleEngine) CancelSale(ctx context.Context, assetID string, caller string) error {
	if err := e.guard.Enter(); err != nil {
		return err
	}
	defer e.guard.Exit()

	sale, ok := e.ledger.Sale(assetID)
	if !ok {
		return fmt.Errorf("no active sale for asset %s: %w", assetID, domain.ErrInvalidState)
	}
	if !e.guard.CanManageListing(caller, sale.Owner) {
		return fmt.Errorf("caller %s may not cancel sale %d: %w", caller, sale.SaleID, domain.ErrUnauthorized)
	}

	if err := e.ledger.Remove(ctx, assetID); err != nil {
		return err
	}
	if err := e.custodian.ReturnAsset(ctx, sale.Owner, assetID); err != nil {
		return err
	}

	event := domain.NewListingEvent(domain.SaleCanceled, assetID, e.clock.Now())
	event.SaleID = sale.SaleID
	event.Owner = sale.Owner
	event.Price = sale.Price
	e.publish(ctx, event)

	e.log.Info("Sale canceled", "sale_id", sale.SaleID, "asset_id", assetID, "caller", caller)
	return nil
}

// Notifications are advisory; a publish failure never unwinds a settled
// operation.
func (e *SaleEngine) publish(ctx context.Context, event *domain.ListingEvent) {
	if err := e.events.PublishListingEvent(ctx, event); err != nil {
		e.log.Error("Failed to publish listing event",
			"type", event.Type, "asset_id", event.AssetID, "error", err)
	}
}
