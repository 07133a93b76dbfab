package mysql

import (
	"context"
	"database/sql"
	"time"

	"nft-marketplace/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

// ListingRepository is the durable mirror of the ledger's two tables plus
// the identity counters. Schema:
//
//	CREATE TABLE sales (
//	    asset_id   VARCHAR(128) PRIMARY KEY,
//	    sale_id    BIGINT UNSIGNED NOT NULL,
//	    price      BIGINT UNSIGNED NOT NULL,
//	    owner      VARCHAR(128) NOT NULL,
//	    created_at DATETIME NOT NULL
//	);
//	CREATE TABLE auctions (
//	    asset_id         VARCHAR(128) PRIMARY KEY,
//	    auction_id       BIGINT UNSIGNED NOT NULL,
//	    duration_seconds BIGINT NOT NULL,
//	    first_bid_time   DATETIME NULL,
//	    reserve_price    BIGINT UNSIGNED NOT NULL,
//	    bid              BIGINT UNSIGNED NOT NULL,
//	    owner            VARCHAR(128) NOT NULL,
//	    bidder           VARCHAR(128) NOT NULL DEFAULT '',
//	    updated_at       DATETIME NOT NULL
//	);
//	CREATE TABLE counters (
//	    name  VARCHAR(32) PRIMARY KEY,
//	    value BIGINT UNSIGNED NOT NULL
//	);
type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) PutSale(ctx context.Context, sale *domain.Sale) error {
	query := `
        INSERT INTO sales (asset_id, sale_id, price, owner, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		sale.AssetID, sale.SaleID, sale.Price, sale.Owner, time.Now())
	return err
}

func (r *ListingRepository) PutAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (asset_id, auction_id, duration_seconds, first_bid_time,
                              reserve_price, bid, owner, bidder, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		auction.AssetID, auction.AuctionID, int64(auction.Duration/time.Second),
		nullableTime(auction.FirstBidTime), auction.ReservePrice, auction.Bid,
		auction.Owner, auction.Bidder, time.Now())
	return err
}

func (r *ListingRepository) UpdateAuction(ctx context.Context, auction *domain.Auction) error {
	query := `
        UPDATE auctions
        SET duration_seconds = ?, first_bid_time = ?, bid = ?, bidder = ?, updated_at = ?
        WHERE asset_id = ?
    `
	_, err := r.db.ExecContext(ctx, query,
		int64(auction.Duration/time.Second), nullableTime(auction.FirstBidTime),
		auction.Bid, auction.Bidder, time.Now(), auction.AssetID)
	return err
}

// RemoveListing clears both tables for the asset; removing an unlisted
// asset is a no-op.
func (r *ListingRepository) RemoveListing(ctx context.Context, assetID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE asset_id = ?`, assetID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM auctions WHERE asset_id = ?`, assetID)
	return err
}

func (r *ListingRepository) SaveCounters(ctx context.Context, counters domain.Counters) error {
	query := `
        INSERT INTO counters (name, value) VALUES (?, ?)
        ON DUPLICATE KEY UPDATE value = VALUES(value)
    `
	if _, err := r.db.ExecContext(ctx, query, "next_sale_id", counters.NextSaleID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, query, "next_auction_id", counters.NextAuctionID)
	return err
}

func (r *ListingRepository) LoadState(ctx context.Context) ([]*domain.Sale, []*domain.Auction, domain.Counters, error) {
	counters := domain.Counters{NextSaleID: 1, NextAuctionID: 1}

	sales, err := r.loadSales(ctx)
	if err != nil {
		return nil, nil, counters, err
	}
	auctions, err := r.loadAuctions(ctx)
	if err != nil {
		return nil, nil, counters, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return nil, nil, counters, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value uint64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, nil, counters, err
		}
		switch name {
		case "next_sale_id":
			counters.NextSaleID = value
		case "next_auction_id":
			counters.NextAuctionID = value
		}
	}

	return sales, auctions, counters, rows.Err()
}

func (r *ListingRepository) loadSales(ctx context.Context) ([]*domain.Sale, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT asset_id, sale_id, price, owner FROM sales`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []*domain.Sale
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.AssetID, &sale.SaleID, &sale.Price, &sale.Owner); err != nil {
			return nil, err
		}
		sales = append(sales, &sale)
	}
	return sales, rows.Err()
}

func (r *ListingRepository) loadAuctions(ctx context.Context) ([]*domain.Auction, error) {
	query := `
        SELECT asset_id, auction_id, duration_seconds, first_bid_time,
               reserve_price, bid, owner, bidder
        FROM auctions
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		var auction domain.Auction
		var durationSeconds int64
		var firstBidTime sql.NullTime

		if err := rows.Scan(&auction.AssetID, &auction.AuctionID, &durationSeconds,
			&firstBidTime, &auction.ReservePrice, &auction.Bid,
			&auction.Owner, &auction.Bidder); err != nil {
			return nil, err
		}

		auction.Duration = time.Duration(durationSeconds) * time.Second
		if firstBidTime.Valid {
			auction.FirstBidTime = firstBidTime.Time
		}
		auctions = append(auctions, &auction)
	}
	return auctions, rows.Err()
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
