package services

import (
	"context"
	"fmt"

	"nft-marketplace/internal/domain"
)

// authorizeLister checks the create-listing authorization and returns the
// current owner, which is recorded on the listing as the proceeds recipient.
func authorizeLister(ctx context.Context, registry domain.AssetRegistry, assetID, caller string) (string, error) {
	owner, err := registry.OwnerOf(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("look up owner of asset %s: %w", assetID, err)
	}
	operator, err := registry.ApprovedOperator(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("look up operator of asset %s: %w", assetID, err)
	}
	if caller == "" || (caller != owner && caller != operator) {
		return "", fmt.Errorf("caller %s is neither owner nor approved operator of asset %s: %w",
			caller, assetID, domain.ErrUnauthorized)
	}
	return owner, nil
}

// resolveBeneficiaries looks up the settlement parties for an asset.
func resolveBeneficiaries(ctx context.Context, registry domain.AssetRegistry, guard *AccessGuard, assetID, owner string) (Beneficiaries, error) {
	artist, err := registry.ArtistOf(ctx, assetID)
	if err != nil {
		return Beneficiaries{}, fmt.Errorf("look up artist of asset %s: %w", assetID, err)
	}
	creator, err := registry.CreatorOf(ctx, assetID)
	if err != nil {
		return Beneficiaries{}, fmt.Errorf("look up creator of asset %s: %w", assetID, err)
	}
	return Beneficiaries{
		Curator:       guard.Curator(),
		Artist:        artist,
		Creator:       creator,
		Owner:         owner,
		OwnerIsArtist: owner == artist,
	}, nil
}
