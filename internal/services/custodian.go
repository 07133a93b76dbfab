package services

import (
	"context"
	"fmt"

	"nft-marketplace/internal/domain"
	"nft-marketplace/pkg/logger"
)

// Custodian is the only component that crosses the trust boundary: it moves
// value to external recipients and asset custody through the registry. A
// payout that the substrate rejects is not allowed to wedge settlement;
// the owed amount is credited to the withdrawal book and the recipient
// pulls it later with Withdraw.
type Custodian struct {
	registry    domain.AssetRegistry
	funds       domain.FundsTransferor
	withdrawals domain.WithdrawalBook
	account     string
	log         logger.Logger
}

// Beneficiaries names the parties of a proceeds distribution.
type Beneficiaries struct {
	Curator       string
	Artist        string
	Creator       string
	Owner         string
	OwnerIsArtist bool
}

func NewCustodian(
	registry domain.AssetRegistry,
	funds domain.FundsTransferor,
	withdrawals domain.WithdrawalBook,
	account string,
	log logger.Logger,
) *Custodian {
	return &Custodian{
		registry:    registry,
		funds:       funds,
		withdrawals: withdrawals,
		account:     account,
		log:         log,
	}
}

func (c *Custodian) Account() string {
	return c.account
}

// CollectPayment pulls value from the payer into the engine's escrow
// account. Runs before any ledger mutation, so a failure aborts the
// operation with no effect.
func (c *Custodian) CollectPayment(ctx context.Context, from string, amount uint64) error {
	if err := c.funds.Transfer(ctx, from, c.account, amount); err != nil {
		return fmt.Errorf("collect payment of %d from %s: %w", amount, from, err)
	}
	return nil
}

// PayOut pushes escrowed value to a recipient. On push failure the amount is
// credited to the recipient's withdrawal balance instead.
func (c *Custodian) PayOut(ctx context.Context, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	if err := c.funds.Transfer(ctx, c.account, to, amount); err != nil {
		c.log.Warn("Push payout failed, crediting withdrawal balance",
			"recipient", to, "amount", amount, "error", err)
		if creditErr := c.withdrawals.Credit(ctx, to, amount); creditErr != nil {
			return fmt.Errorf("payout of %d to %s failed and could not be escrowed: %w", amount, to, creditErr)
		}
	}
	return nil
}

// Distribute pays a computed split to its beneficiaries. Callers must have
// already removed the listing; payouts are the last step of settlement.
func (c *Custodian) Distribute(ctx context.Context, split domain.Split, b Beneficiaries) error {
	if err := c.PayOut(ctx, b.Curator, split.CuratorFee); err != nil {
		return err
	}
	if !b.OwnerIsArtist {
		if err := c.PayOut(ctx, b.Artist, split.ArtistRoyalty); err != nil {
			return err
		}
	}
	if err := c.PayOut(ctx, b.Creator, split.CreatorRoyalty); err != nil {
		return err
	}
	return c.PayOut(ctx, b.Owner, split.OwnerProceeds)
}

// Withdraw pushes a recipient's accumulated withdrawal balance to them and
// returns the amount moved. The balance is re-credited if the push fails.
func (c *Custodian) Withdraw(ctx context.Context, caller string) (uint64, error) {
	amount, err := c.withdrawals.Take(ctx, caller)
	if err != nil {
		return 0, fmt.Errorf("take withdrawal balance for %s: %w", caller, err)
	}
	if amount == 0 {
		return 0, nil
	}

	if err := c.funds.Transfer(ctx, c.account, caller, amount); err != nil {
		if creditErr := c.withdrawals.Credit(ctx, caller, amount); creditErr != nil {
			c.log.Error("Failed to restore withdrawal balance",
				"recipient", caller, "amount", amount, "error", creditErr)
		}
		return 0, fmt.Errorf("withdraw %d to %s: %w", amount, caller, err)
	}
	return amount, nil
}

// PullAsset moves asset custody from the current holder into the engine.
func (c *Custodian) PullAsset(ctx context.Context, from, assetID string) error {
	if err := c.registry.TransferCustody(ctx, from, c.account, assetID); err != nil {
		return fmt.Errorf("take custody of asset %s: %w", assetID, err)
	}
	return nil
}

// ReleaseAsset transfers a settled asset to its new owner. Uses the safe
// variant so a recipient that cannot accept custody surfaces as an error.
func (c *Custodian) ReleaseAsset(ctx context.Context, to, assetID string) error {
	if err := c.registry.TransferCustodySafe(ctx, c.account, to, assetID); err != nil {
		return fmt.Errorf("release asset %s to %s: %w", assetID, to, err)
	}
	return nil
}

// ReturnAsset gives custody back to the listing owner on cancellation.
func (c *Custodian) ReturnAsset(ctx context.Context, to, assetID string) error {
	if err := c.registry.TransferCustody(ctx, c.account, to, assetID); err != nil {
		return fmt.Errorf("return asset %s to %s: %w", assetID, to, err)
	}
	return nil
}
