package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"nft-marketplace/internal/domain"
)

const (
	engineAccount  = "escrow"
	adminAccount   = "admin"
	curatorAccount = "curator"

	assetID       = "asset-1"
	ownerAccount  = "alice"
	operatorAcct  = "oscar"
	artistAccount = "artemis"
	creatorAcct   = "cora"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeRegistry struct {
	holders    map[string]string
	operators  map[string]string
	artists    map[string]string
	creators   map[string]string
	rejectSafe map[string]bool
	failPull   bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		holders:    map[string]string{assetID: ownerAccount},
		operators:  map[string]string{assetID: operatorAcct},
		artists:    map[string]string{assetID: artistAccount},
		creators:   map[string]string{assetID: creatorAcct},
		rejectSafe: map[string]bool{},
	}
}

func (r *fakeRegistry) OwnerOf(_ context.Context, asset string) (string, error) {
	holder, ok := r.holders[asset]
	if !ok {
		return "", fmt.Errorf("unknown asset %s", asset)
	}
	return holder, nil
}

func (r *fakeRegistry) ApprovedOperator(_ context.Context, asset string) (string, error) {
	return r.operators[asset], nil
}

func (r *fakeRegistry) ArtistOf(_ context.Context, asset string) (string, error) {
	return r.artists[asset], nil
}

func (r *fakeRegistry) CreatorOf(_ context.Context, asset string) (string, error) {
	return r.creators[asset], nil
}

func (r *fakeRegistry) TransferCustody(_ context.Context, from, to, asset string) error {
	if r.failPull && to == engineAccount {
		return errors.New("custody transfer rejected")
	}
	if r.holders[asset] != from {
		return fmt.Errorf("%s does not hold asset %s", from, asset)
	}
	r.holders[asset] = to
	return nil
}

func (r *fakeRegistry) TransferCustodySafe(ctx context.Context, from, to, asset string) error {
	if r.rejectSafe[to] {
		return fmt.Errorf("%s cannot accept custody", to)
	}
	return r.TransferCustody(ctx, from, to, asset)
}

type transferRecord struct {
	from   string
	to     string
	amount uint64
}

type fakeFunds struct {
	transfers  []transferRecord
	failTo     map[string]bool
	onTransfer func(from, to string, amount uint64)
}

func newFakeFunds() *fakeFunds {
	return &fakeFunds{failTo: map[string]bool{}}
}

func (f *fakeFunds) Transfer(_ context.Context, from, to string, amount uint64) error {
	if f.onTransfer != nil {
		f.onTransfer(from, to, amount)
	}
	if f.failTo[to] {
		return fmt.Errorf("transfer to %s rejected", to)
	}
	f.transfers = append(f.transfers, transferRecord{from: from, to: to, amount: amount})
	return nil
}

// received sums everything pushed to the account.
func (f *fakeFunds) received(account string) uint64 {
	var total uint64
	for _, tr := range f.transfers {
		if tr.to == account {
			total += tr.amount
		}
	}
	return total
}

type memWithdrawals struct {
	balances map[string]uint64
}

func newMemWithdrawals() *memWithdrawals {
	return &memWithdrawals{balances: map[string]uint64{}}
}

func (w *memWithdrawals) Credit(_ context.Context, account string, amount uint64) error {
	w.balances[account] += amount
	return nil
}

func (w *memWithdrawals) Take(_ context.Context, account string) (uint64, error) {
	amount := w.balances[account]
	delete(w.balances, account)
	return amount, nil
}

func (w *memWithdrawals) Balance(_ context.Context, account string) (uint64, error) {
	return w.balances[account], nil
}

type recorderPublisher struct {
	events []*domain.ListingEvent
}

func (p *recorderPublisher) PublishListingEvent(_ context.Context, event *domain.ListingEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recorderPublisher) types() []domain.ListingEventType {
	var types []domain.ListingEventType
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

func (p *recorderPublisher) last() *domain.ListingEvent {
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type harness struct {
	clock       *fakeClock
	registry    *fakeRegistry
	funds       *fakeFunds
	withdrawals *memWithdrawals
	events      *recorderPublisher
	ledger      *ListingLedger
	guard       *AccessGuard
	custodian   *Custodian
	fees        *FeeDistributor
	sales       *SaleEngine
	auctions    *AuctionEngine
}

// newHarness wires the engines against in-memory fakes: curator cut 5%,
// artist royalty 10%, creator royalty 5%, bid increment 5%, anti-snipe
// buffer 900 seconds.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

func newHarnessWithStore(t *testing.T, store domain.ListingStore) *harness {
	t.Helper()

	h := &harness{
		clock:       newFakeClock(),
		registry:    newFakeRegistry(),
		funds:       newFakeFunds(),
		withdrawals: newMemWithdrawals(),
		events:      &recorderPublisher{},
	}

	log := nopLogger{}
	h.ledger = NewListingLedger(store, nil, log)
	h.guard = NewAccessGuard(adminAccount, curatorAccount)
	h.fees = NewFeeDistributor(5, 10, 5)
	h.custodian = NewCustodian(h.registry, h.funds, h.withdrawals, engineAccount, log)
	h.sales = NewSaleEngine(h.ledger, h.registry, h.custodian, h.fees, h.guard,
		h.events, h.clock, log)
	h.auctions = NewAuctionEngine(h.ledger, h.registry, h.custodian, h.fees, h.guard,
		h.events, h.clock, 5, 900*time.Second, log)
	return h
}
