package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"

	"github.com/robfig/cron/v3"
)

// SettlementSweeper periodically calls EndAuction for expired auctions.
// Expiry itself is passive; the sweeper is just a caller exercising
// permissionless finalization so auctions do not sit unsettled waiting for
// an interested party. Only the leader instance sweeps.
type SettlementSweeper struct {
	cron       *cron.Cron
	ledger     *ListingLedger
	auctions   *AuctionEngine
	leader     domain.LeaderElection
	clock      domain.Clock
	instanceID string
	interval   time.Duration
	log        logger.Logger
}

func NewSettlementSweeper(
	ledger *ListingLedger,
	auctions *AuctionEngine,
	leader domain.LeaderElection,
	clock domain.Clock,
	instanceID string,
	interval time.Duration,
	log logger.Logger,
) *SettlementSweeper {
	return &SettlementSweeper{
		cron:       cron.New(cron.WithSeconds()),
		ledger:     ledger,
		auctions:   auctions,
		leader:     leader,
		clock:      clock,
		instanceID: instanceID,
		interval:   interval,
		log:        log,
	}
}

func (s *SettlementSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting settlement sweeper", "interval", s.interval)

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *SettlementSweeper) Stop() error {
	s.log.Info("Stopping settlement sweeper")
	s.cron.Stop()
	return nil
}

// Sweep settles every expired auction it can. Failures are logged and
// retried on the next tick; a Reentrant failure just means another
// operation was in flight.
func (s *SettlementSweeper) Sweep(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	for _, assetID := range s.ledger.ExpiredAuctions(s.clock.Now()) {
		if err := s.auctions.EndAuction(ctx, assetID, s.instanceID); err != nil {
			if errors.Is(err, domain.ErrReentrant) {
				continue
			}
			s.log.Error("Failed to settle expired auction", "asset_id", assetID, "error", err)
		}
	}
}
