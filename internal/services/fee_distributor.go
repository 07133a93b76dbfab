package services

import (
	"math/bits"

	"nft-marketplace/internal/domain"
)

// FeeDistributor computes the proceeds split for a gross payment. All
// percentage math is integer with floor division by 100; the truncation
// remainder stays in the owner's proceeds, which are computed last as
// gross minus the other shares.
type FeeDistributor struct {
	curatorCutPct     uint64
	artistRoyaltyPct  uint64
	creatorRoyaltyPct uint64
}

func NewFeeDistributor(curatorCutPct, artistRoyaltyPct, creatorRoyaltyPct uint64) *FeeDistributor {
	return &FeeDistributor{
		curatorCutPct:     curatorCutPct,
		artistRoyaltyPct:  artistRoyaltyPct,
		creatorRoyaltyPct: creatorRoyaltyPct,
	}
}

// Split divides gross among curator, artist, creator and owner. When the
// owner is the artist no separate artist royalty is paid and the share is
// not subtracted from the owner's proceeds.
func (f *FeeDistributor) Split(gross uint64, ownerIsArtist bool) domain.Split {
	curatorFee := pctShare(gross, f.curatorCutPct)
	creatorRoyalty := pctShare(gross, f.creatorRoyaltyPct)

	var artistRoyalty uint64
	if !ownerIsArtist {
		artistRoyalty = pctShare(gross, f.artistRoyaltyPct)
	}

	ownerProceeds := gross - curatorFee - creatorRoyalty - artistRoyalty

	return domain.Split{
		CuratorFee:     curatorFee,
		ArtistRoyalty:  artistRoyalty,
		CreatorRoyalty: creatorRoyalty,
		OwnerProceeds:  ownerProceeds,
	}
}

// pctShare is floor(gross * pct / 100) through a 128-bit intermediate so
// large amounts do not overflow. pct never exceeds 100, which keeps the
// quotient within 64 bits.
func pctShare(gross, pct uint64) uint64 {
	hi, lo := bits.Mul64(gross, pct)
	if hi == 0 {
		return lo / 100
	}
	quotient, _ := bits.Div64(hi, lo, 100)
	return quotient
}
