package domain

import (
	"context"
	"time"
)

// AssetRegistry is the capability surface the engine consumes from the
// external registry collaborator. The engine never mints, burns or stores
// metadata; it only reads ownership facts and moves custody.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, assetID string) (string, error)
	ApprovedOperator(ctx context.Context, assetID string) (string, error)
	TransferCustody(ctx context.Context, from, to, assetID string) error
	// TransferCustodySafe fails when the recipient cannot accept custody.
	TransferCustodySafe(ctx context.Context, from, to, assetID string) error
	ArtistOf(ctx context.Context, assetID string) (string, error)
	CreatorOf(ctx context.Context, assetID string) (string, error)
}

// FundsTransferor moves value between accounts on the settlement substrate.
type FundsTransferor interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
}

// WithdrawalBook holds balances owed to recipients whose push payout failed.
// Take atomically reads and zeroes a balance.
type WithdrawalBook interface {
	Credit(ctx context.Context, account string, amount uint64) error
	Take(ctx context.Context, account string) (uint64, error)
	Balance(ctx context.Context, account string) (uint64, error)
}

// Counters are the engine-wide listing identity counters.
type Counters struct {
	NextSaleID    uint64
	NextAuctionID uint64
}

// ListingStore is the durable mirror of the ledger's two tables and its
// counters. The in-memory ledger stays authoritative; the store lets an
// engine restart resume with the same active listings and identities.
type ListingStore interface {
	PutSale(ctx context.Context, sale *Sale) error
	PutAuction(ctx context.Context, auction *Auction) error
	UpdateAuction(ctx context.Context, auction *Auction) error
	RemoveListing(ctx context.Context, assetID string) error
	SaveCounters(ctx context.Context, counters Counters) error
	LoadState(ctx context.Context) ([]*Sale, []*Auction, Counters, error)
}

// ListingStateCache mirrors each asset's listing mode for off-engine readers.
type ListingStateCache interface {
	SetListingMode(ctx context.Context, assetID string, mode ListingMode) error
	ClearListing(ctx context.Context, assetID string) error
	GetListingMode(ctx context.Context, assetID string) (ListingMode, error)
}

// Event interfaces
type EventPublisher interface {
	PublishListingEvent(ctx context.Context, event *ListingEvent) error
}

type EventSubscriber interface {
	SubscribeToListingEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *ListingEvent) error

// Clock abstracts ledger time so deadline arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// LeaderElection gates background work that must run on one instance only.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces for the observer gateway.
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	ClientID() string
	AssetID() string
}

type ConnectionManager interface {
	RegisterConnection(clientID, assetID string, conn WebSocketConnection) error
	UnregisterConnection(clientID, assetID string) error
	BroadcastToAsset(assetID string, message interface{}) error
	CloseConnectionsForAsset(assetID string) error
}
