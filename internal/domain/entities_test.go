package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuctionPhases(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	auction := &Auction{
		AuctionID:    1,
		AssetID:      "asset-1",
		Duration:     time.Hour,
		ReservePrice: 100,
		Owner:        "alice",
	}

	assert.False(t, auction.Started())
	assert.Equal(t, AuctionCreated, auction.State(now))
	// Without a first bid the window never opens, so it never closes.
	assert.False(t, auction.Expired(now.Add(24*time.Hour)))

	auction.FirstBidTime = now
	auction.Bid = 100
	auction.Bidder = "bob"

	assert.True(t, auction.Started())
	assert.Equal(t, AuctionActive, auction.State(now))
	assert.Equal(t, now.Add(time.Hour), auction.Expiry())

	// The instant of expiry is already outside the window.
	assert.False(t, auction.Expired(now.Add(time.Hour-time.Nanosecond)))
	assert.True(t, auction.Expired(now.Add(time.Hour)))
	assert.Equal(t, AuctionExpired, auction.State(now.Add(time.Hour)))
}

func TestNewListingEventStampsIdentity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	a := NewListingEvent(AuctionBid, "asset-1", now)
	b := NewListingEvent(AuctionBid, "asset-1", now)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, AuctionBid, a.Type)
	assert.Equal(t, "asset-1", a.AssetID)
	assert.Equal(t, now, a.Timestamp)
}
