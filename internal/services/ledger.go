package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"
)

// ListingLedger owns the two listing tables and the identity counters. It is
// the only holder of listing records; engines read, mutate and remove
// through it. The in-memory tables are authoritative, with an optional
// durable store written through on every mutation and an optional redis
// mirror of each asset's listing mode for off-engine readers.
//
// Invariant: an asset id occupies at most one of the two tables at any time.
// PutSale/PutAuction check only the opposite table; the engines gate
// same-table duplicates before allocating an identity.
type ListingLedger struct {
	store domain.ListingStore      // may be nil
	cache domain.ListingStateCache // may be nil
	log   logger.Logger

	mu            sync.RWMutex
	sales         map[string]*domain.Sale
	auctions      map[string]*domain.Auction
	nextSaleID    uint64
	nextAuctionID uint64
}

func NewListingLedger(store domain.ListingStore, cache domain.ListingStateCache, log logger.Logger) *ListingLedger {
	return &ListingLedger{
		store:         store,
		cache:         cache,
		log:           log,
		sales:         make(map[string]*domain.Sale),
		auctions:      make(map[string]*domain.Auction),
		nextSaleID:    1,
		nextAuctionID: 1,
	}
}

// Restore loads active listings and counters from the durable store.
// Called once at startup, before any operation is accepted.
func (l *ListingLedger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	sales, auctions, counters, err := l.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load listing state: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, sale := range sales {
		l.sales[sale.AssetID] = sale
	}
	for _, auction := range auctions {
		l.auctions[auction.AssetID] = auction
	}
	if counters.NextSaleID > l.nextSaleID {
		l.nextSaleID = counters.NextSaleID
	}
	if counters.NextAuctionID > l.nextAuctionID {
		l.nextAuctionID = counters.NextAuctionID
	}

	l.log.Info("Listing ledger restored",
		"sales", len(sales), "auctions", len(auctions),
		"next_sale_id", l.nextSaleID, "next_auction_id", l.nextAuctionID)
	return nil
}

// NextSaleID allocates the next sale identity. Identities start at 1,
// increment by 1 and are never reused.
func (l *ListingLedger) NextSaleID(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	id := l.nextSaleID
	l.nextSaleID++
	counters := domain.Counters{NextSaleID: l.nextSaleID, NextAuctionID: l.nextAuctionID}
	l.mu.Unlock()

	if err := l.saveCounters(ctx, counters); err != nil {
		return 0, err
	}
	return id, nil
}

// NextAuctionID allocates the next auction identity.
func (l *ListingLedger) NextAuctionID(ctx context.Context) (uint64, error) {
	l.mu.Lock()
	id := l.nextAuctionID
	l.nextAuctionID++
	counters := domain.Counters{NextSaleID: l.nextSaleID, NextAuctionID: l.nextAuctionID}
	l.mu.Unlock()

	if err := l.saveCounters(ctx, counters); err != nil {
		return 0, err
	}
	return id, nil
}

func (l *ListingLedger) saveCounters(ctx context.Context, counters domain.Counters) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveCounters(ctx, counters); err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}
	return nil
}

// PutSale stores a sale record. Fails Conflict when the asset already has an
// active auction.
func (l *ListingLedger) PutSale(ctx context.Context, sale *domain.Sale) error {
	l.mu.Lock()
	if _, exists := l.auctions[sale.AssetID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("asset %s has an active auction: %w", sale.AssetID, domain.ErrConflict)
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.PutSale(ctx, sale); err != nil {
			return fmt.Errorf("persist sale: %w", err)
		}
	}

	l.mu.Lock()
	l.sales[sale.AssetID] = sale
	l.mu.Unlock()

	l.mirrorMode(ctx, sale.AssetID, domain.ModeSale)
	return nil
}

// PutAuction stores an auction record. Fails Conflict when the asset already
// has an active sale.
func (l *ListingLedger) PutAuction(ctx context.Context, auction *domain.Auction) error {
	l.mu.Lock()
	if _, exists := l.sales[auction.AssetID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("asset %s has an active sale: %w", auction.AssetID, domain.ErrConflict)
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.PutAuction(ctx, auction); err != nil {
			return fmt.Errorf("persist auction: %w", err)
		}
	}

	l.mu.Lock()
	l.auctions[auction.AssetID] = auction
	l.mu.Unlock()

	l.mirrorMode(ctx, auction.AssetID, domain.ModeAuction)
	return nil
}

// UpdateAuction persists a mutated auction record and swaps it into the
// table only once the durable write succeeds, so a store failure leaves the
// previous record in force.
func (l *ListingLedger) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	if l.store != nil {
		if err := l.store.UpdateAuction(ctx, auction); err != nil {
			return fmt.Errorf("persist auction update: %w", err)
		}
	}

	l.mu.Lock()
	l.auctions[auction.AssetID] = auction
	l.mu.Unlock()
	return nil
}

func (l *ListingLedger) Sale(assetID string) (*domain.Sale, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sale, ok := l.sales[assetID]
	return sale, ok
}

func (l *ListingLedger) Auction(assetID string) (*domain.Auction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	auction, ok := l.auctions[assetID]
	return auction, ok
}

func (l *ListingLedger) HasSale(assetID string) bool {
	_, ok := l.Sale(assetID)
	return ok
}

func (l *ListingLedger) HasAuction(assetID string) bool {
	_, ok := l.Auction(assetID)
	return ok
}

// Remove clears both tables for the asset. Idempotent: removing an asset
// with no listing is a no-op.
func (l *ListingLedger) Remove(ctx context.Context, assetID string) error {
	if l.store != nil {
		if err := l.store.RemoveListing(ctx, assetID); err != nil {
			return fmt.Errorf("remove listing: %w", err)
		}
	}

	l.mu.Lock()
	delete(l.sales, assetID)
	delete(l.auctions, assetID)
	l.mu.Unlock()

	if l.cache != nil {
		if err := l.cache.ClearListing(ctx, assetID); err != nil {
			l.log.Error("Failed to clear listing mode mirror", "asset_id", assetID, "error", err)
		}
	}
	return nil
}

// ExpiredAuctions returns the asset ids of started auctions whose window has
// elapsed at now. Used by the settlement sweeper.
func (l *ListingLedger) ExpiredAuctions(now time.Time) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var expired []string
	for assetID, auction := range l.auctions {
		if auction.Expired(now) {
			expired = append(expired, assetID)
		}
	}
	return expired
}

// The mode mirror is advisory for off-engine readers; failures are logged,
// not propagated.
func (l *ListingLedger) mirrorMode(ctx context.Context, assetID string, mode domain.ListingMode) {
	if l.cache == nil {
		return
	}
	if err := l.cache.SetListingMode(ctx, assetID, mode); err != nil {
		l.log.Error("Failed to mirror listing mode", "asset_id", assetID, "mode", mode, "error", err)
	}
}
