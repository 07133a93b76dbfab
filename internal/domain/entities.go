package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sale is an active fixed-price listing. The engine holds custody of the
// asset for as long as the record exists.
type Sale struct {
	SaleID  uint64
	AssetID string
	Price   uint64
	Owner   string
}

// Auction is an active ascending-bid listing. FirstBidTime is zero until the
// first accepted bid; while it is zero Bid is 0 and Bidder is empty.
type Auction struct {
	AuctionID    uint64
	AssetID      string
	Duration     time.Duration
	FirstBidTime time.Time
	ReservePrice uint64
	Bid          uint64
	Owner        string
	Bidder       string
}

// Started reports whether the auction has received its first bid.
func (a *Auction) Started() bool {
	return !a.FirstBidTime.IsZero()
}

// Expiry is the end of the bidding window. Only meaningful once Started.
func (a *Auction) Expiry() time.Time {
	return a.FirstBidTime.Add(a.Duration)
}

// Expired reports whether the bidding window has elapsed at now.
func (a *Auction) Expired(now time.Time) bool {
	return a.Started() && !now.Before(a.Expiry())
}

type AuctionState int

const (
	AuctionCreated AuctionState = iota
	AuctionActive
	AuctionExpired
)

func (s AuctionState) String() string {
	switch s {
	case AuctionCreated:
		return "created"
	case AuctionActive:
		return "active"
	case AuctionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State derives the observable phase of the auction at now. Terminal phases
// (ended, canceled) are not represented; resolution deletes the record.
func (a *Auction) State(now time.Time) AuctionState {
	if !a.Started() {
		return AuctionCreated
	}
	if a.Expired(now) {
		return AuctionExpired
	}
	return AuctionActive
}

// ListingMode tags which table an asset currently occupies.
type ListingMode string

const (
	ModeNone    ListingMode = ""
	ModeSale    ListingMode = "sale"
	ModeAuction ListingMode = "auction"
)

// Split is the division of a gross payment among the configured parties.
// When the listing owner is also the artist, ArtistRoyalty is zero and the
// would-be share stays inside OwnerProceeds.
type Split struct {
	CuratorFee     uint64 `json:"curator_fee"`
	ArtistRoyalty  uint64 `json:"artist_royalty"`
	CreatorRoyalty uint64 `json:"creator_royalty"`
	OwnerProceeds  uint64 `json:"owner_proceeds"`
}

type ListingEventType string

const (
	SaleCreated      ListingEventType = "sale_created"
	SaleCompleted    ListingEventType = "sale_completed"
	SaleCanceled     ListingEventType = "sale_canceled"
	AuctionCreatedEv ListingEventType = "auction_created"
	AuctionBid       ListingEventType = "auction_bid"
	DurationExtended ListingEventType = "duration_extended"
	AuctionEnded     ListingEventType = "auction_ended"
	AuctionCanceled  ListingEventType = "auction_canceled"
)

// ListingEvent is the notification envelope published for off-engine
// observers. Fields not relevant to the event type are left at zero values
// and omitted on the wire.
type ListingEvent struct {
	ID        string           `json:"id"`
	Type      ListingEventType `json:"type"`
	AssetID   string           `json:"asset_id"`
	SaleID    uint64           `json:"sale_id,omitempty"`
	AuctionID uint64           `json:"auction_id,omitempty"`
	Owner     string           `json:"owner,omitempty"`
	Buyer     string           `json:"buyer,omitempty"`
	Bidder    string           `json:"bidder,omitempty"`
	Price     uint64           `json:"price,omitempty"`
	Amount    uint64           `json:"amount,omitempty"`
	Duration  int64            `json:"duration_seconds,omitempty"`
	FirstBid  bool             `json:"first_bid,omitempty"`
	Extended  bool             `json:"extended,omitempty"`
	Split     *Split           `json:"split,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewListingEvent stamps a fresh envelope for the given asset.
func NewListingEvent(t ListingEventType, assetID string, now time.Time) *ListingEvent {
	return &ListingEvent{
		ID:        uuid.NewString(),
		Type:      t,
		AssetID:   assetID,
		Timestamp: now,
	}
}
