package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nft-marketplace/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAuctionTakesCustody(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	auction, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), auction.AuctionID)
	assert.Equal(t, ownerAccount, auction.Owner)
	assert.False(t, auction.Started())
	assert.Equal(t, domain.AuctionCreated, auction.State(h.clock.Now()))
	assert.Equal(t, engineAccount, h.registry.holders[assetID])
	assert.Equal(t, []domain.ListingEventType{domain.AuctionCreatedEv}, h.events.types())
}

func TestCreateAuctionRejectsNonPositiveDuration(t *testing.T) {
	h := newHarness(t)

	_, err := h.auctions.CreateAuction(context.Background(), assetID, 0, 100, ownerAccount)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, ownerAccount, h.registry.holders[assetID])
}

func TestCreateAuctionConflictsWithSale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sales.CreateSale(ctx, assetID, 50, ownerAccount)
	require.NoError(t, err)

	_, err = h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, engineAccount)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateAuctionRejectsStranger(t *testing.T) {
	h := newHarness(t)

	_, err := h.auctions.CreateAuction(context.Background(), assetID, time.Hour, 100, "mallory")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, h.ledger.HasAuction(assetID))
}

func TestFirstBidMustMeetReserve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)

	err = h.auctions.PlaceBid(ctx, assetID, 99, "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidBid)
	assert.Equal(t, uint64(0), h.funds.received(engineAccount))

	// Exactly the reserve is enough; it starts the timer.
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.True(t, auction.Started())
	assert.Equal(t, h.clock.Now(), auction.FirstBidTime)
	assert.Equal(t, uint64(100), auction.Bid)
	assert.Equal(t, "bob", auction.Bidder)
	assert.Equal(t, domain.AuctionActive, auction.State(h.clock.Now()))
	assert.Equal(t, uint64(100), h.funds.received(engineAccount))
}

func TestBidMustExceedFivePercentIncrement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	// Current bid 100: the floor is 105, and equaling it is not enough.
	err = h.auctions.PlaceBid(ctx, assetID, 105, "carol")
	assert.ErrorIs(t, err, domain.ErrInvalidBid)

	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.Equal(t, uint64(106), auction.Bid)
	assert.Equal(t, "carol", auction.Bidder)

	// The outbid bidder gets their escrowed amount back immediately.
	assert.Equal(t, uint64(100), h.funds.received("bob"))
}

func TestBidAfterWindowRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	h.clock.Advance(time.Hour)

	err = h.auctions.PlaceBid(ctx, assetID, 200, "carol")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestLateBidExtendsWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := h.clock.Now()

	_, err := h.auctions.CreateAuction(ctx, assetID, 3600*time.Second, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	// 100 seconds remain, inside the 900 second buffer: the window moves
	// out to exactly now + buffer.
	h.clock.Advance(3500 * time.Second)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.Equal(t, 4400*time.Second, auction.Duration)
	assert.Equal(t, start.Add(4400*time.Second), auction.Expiry())
	assert.Equal(t, h.clock.Now().Add(900*time.Second), auction.Expiry())

	types := h.events.types()
	assert.Equal(t, domain.DurationExtended, types[len(types)-1])
}

func TestEarlyBidDoesNotExtendWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, 3600*time.Second, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	// Exactly the buffer remains: no extension.
	h.clock.Advance(2700 * time.Second)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.Equal(t, 3600*time.Second, auction.Duration)
}

func TestEndAuctionSettlesAfterExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	// Too early.
	h.clock.Advance(time.Hour - time.Second)
	err = h.auctions.EndAuction(ctx, assetID, "anyone")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// Exactly at expiry, and any caller may settle.
	h.clock.Advance(time.Second)
	require.NoError(t, h.auctions.EndAuction(ctx, assetID, "anyone"))

	assert.Equal(t, "bob", h.registry.holders[assetID])
	assert.False(t, h.ledger.HasAuction(assetID))

	// 5/10/5 percent of the winning bid of 100.
	assert.Equal(t, uint64(5), h.funds.received(curatorAccount))
	assert.Equal(t, uint64(10), h.funds.received(artistAccount))
	assert.Equal(t, uint64(5), h.funds.received(creatorAcct))
	assert.Equal(t, uint64(80), h.funds.received(ownerAccount))

	last := h.events.last()
	require.NotNil(t, last)
	assert.Equal(t, domain.AuctionEnded, last.Type)
	assert.Equal(t, "bob", last.Bidder)

	err = h.auctions.EndAuction(ctx, assetID, "anyone")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestEndAuctionReleaseFailureLeavesAuctionIntact(t *testing.T) {
	h := newHarness(t)
	h.registry.rejectSafe["bob"] = true
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))
	h.clock.Advance(time.Hour)

	require.Error(t, h.auctions.EndAuction(ctx, assetID, "anyone"))

	// The auction stays on the books with the bid in escrow; nobody was
	// paid and the asset did not move.
	assert.True(t, h.ledger.HasAuction(assetID))
	assert.Equal(t, engineAccount, h.registry.holders[assetID])
	assert.Equal(t, uint64(0), h.funds.received(ownerAccount))
	assert.Equal(t, uint64(0), h.funds.received(curatorAccount))

	// Settlement succeeds on retry once the winner can take custody.
	delete(h.registry.rejectSafe, "bob")
	require.NoError(t, h.auctions.EndAuction(ctx, assetID, "anyone"))
	assert.Equal(t, "bob", h.registry.holders[assetID])
	assert.Equal(t, uint64(80), h.funds.received(ownerAccount))
}

func TestPlaceBidStoreFailureLeavesStandingBid(t *testing.T) {
	store := &fakeStore{}
	h := newHarnessWithStore(t, store)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	store.updateErr = errors.New("connection lost")
	require.Error(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	// The previous bid is fully in force and carol got her money back.
	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.Equal(t, uint64(100), auction.Bid)
	assert.Equal(t, "bob", auction.Bidder)
	assert.Equal(t, uint64(106), h.funds.received("carol"))
	assert.Equal(t, uint64(0), h.funds.received("bob"))

	// Same bid lands once the store recovers, refunding bob.
	store.updateErr = nil
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))
	assert.Equal(t, uint64(100), h.funds.received("bob"))
}

func TestEndAuctionWithoutBidsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)

	// The timer never started, so there is nothing to settle no matter how
	// much wall time passes.
	h.clock.Advance(48 * time.Hour)
	err = h.auctions.EndAuction(ctx, assetID, ownerAccount)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, h.ledger.HasAuction(assetID))
}

func TestCancelAuctionBeforeFirstBid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)

	err = h.auctions.CancelAuction(ctx, assetID, "mallory")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, h.auctions.CancelAuction(ctx, assetID, ownerAccount))
	assert.Equal(t, ownerAccount, h.registry.holders[assetID])
	assert.False(t, h.ledger.HasAuction(assetID))
}

func TestCancelAuctionAfterBidRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	err = h.auctions.CancelAuction(ctx, assetID, ownerAccount)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	err = h.auctions.CancelAuction(ctx, assetID, curatorAccount)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, h.ledger.HasAuction(assetID))
}

func TestRefundBlocksReentrantBid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auctions.CreateAuction(ctx, assetID, time.Hour, 100, ownerAccount)
	require.NoError(t, err)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	// The outbid bidder tries to reclaim the lead from inside their refund.
	var nested []error
	h.funds.onTransfer = func(from, to string, amount uint64) {
		if from == engineAccount && to == "bob" {
			nested = append(nested, h.auctions.PlaceBid(ctx, assetID, 500, "bob"))
		}
	}

	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	require.Len(t, nested, 1)
	assert.ErrorIs(t, nested[0], domain.ErrReentrant)

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	assert.Equal(t, "carol", auction.Bidder)
	assert.Equal(t, uint64(106), auction.Bid)
}

// Full lifecycle: reserve 100, one hour window, 900 second buffer.
func TestAuctionLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	start := h.clock.Now()

	_, err := h.auctions.CreateAuction(ctx, assetID, 3600*time.Second, 100, ownerAccount)
	require.NoError(t, err)

	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 100, "bob"))

	h.clock.Advance(3500 * time.Second)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 106, "carol"))

	auction, ok := h.ledger.Auction(assetID)
	require.True(t, ok)
	require.Equal(t, start.Add(4400*time.Second), auction.Expiry())

	// Current bid 106: the next bid must exceed 111.
	err = h.auctions.PlaceBid(ctx, assetID, 111, "bob")
	assert.ErrorIs(t, err, domain.ErrInvalidBid)
	require.NoError(t, h.auctions.PlaceBid(ctx, assetID, 112, "bob"))

	// Carol's 106 came back when bob retook the lead.
	assert.Equal(t, uint64(106), h.funds.received("carol"))

	h.clock.Advance(900 * time.Second)
	require.NoError(t, h.auctions.EndAuction(ctx, assetID, "sweeper-1"))

	assert.Equal(t, "bob", h.registry.holders[assetID])
	// 5/10/5 percent of 112, floored, remainder to the owner.
	assert.Equal(t, uint64(5), h.funds.received(curatorAccount))
	assert.Equal(t, uint64(11), h.funds.received(artistAccount))
	assert.Equal(t, uint64(5), h.funds.received(creatorAcct))
	assert.Equal(t, uint64(91), h.funds.received(ownerAccount))
}
