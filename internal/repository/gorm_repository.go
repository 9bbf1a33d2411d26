package repository

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/config"
	model "auction-engine/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormRepo implements AuctionDB on a relational database. Listing updates
// are guarded by the version column so that writers in different processes
// cannot overwrite each other.
type GormRepo struct {
	db *gorm.DB
}

// NewGormRepo wraps an open gorm connection
func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{db: db}
}

// OpenDatabase opens the configured SQL database and applies the pool settings
func OpenDatabase(cfg config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logLevel),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the tables used by GormRepo
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&listingRecord{}, &bidRecord{}, &orderRecord{}, &orderItemRecord{})
}

// CreateListing stores a new listing with version 1
func (r *GormRepo) CreateListing(ctx context.Context, listing model.Listing) error {
	if listing.ListingID == "" {
		return fmt.Errorf("create listing: %w", biddingerrors.ErrInvalidListing)
	}
	rec := listingToRecord(listing)
	rec.Version = 1
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create listing %s: already exists: %w", listing.ListingID, biddingerrors.ErrInvalidState)
		}
		return fmt.Errorf("create listing %s: %w", listing.ListingID, err)
	}
	return nil
}

// GetListing returns a listing by ID
func (r *GormRepo) GetListing(ctx context.Context, listingID string) (model.Listing, error) {
	var rec listingRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
		}
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return rec.toModel(), nil
}

// ListActiveAuctions returns every listing whose auction is active, soonest end first
func (r *GormRepo) ListActiveAuctions(ctx context.Context) ([]model.Listing, error) {
	var recs []listingRecord
	err := r.db.WithContext(ctx).
		Where("is_auction = ? AND auction_status = ?", true, string(model.AuctionActive)).
		Order("end_time ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list active auctions: %w", err)
	}

	listings := make([]model.Listing, 0, len(recs))
	for _, rec := range recs {
		listings = append(listings, rec.toModel())
	}
	return listings, nil
}

// UpdateAuction applies a version-checked update of the auction fields
func (r *GormRepo) UpdateAuction(ctx context.Context, listing model.Listing, expectedVersion int64) (model.Listing, error) {
	var updated model.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateListingWithVersion(tx, listing, expectedVersion); err != nil {
			return err
		}
		var err error
		updated, err = reloadListing(tx, listing.ListingID)
		return err
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("update auction: %w", err)
	}
	return updated, nil
}

// ReleaseInventory returns reserved units of every item to available stock
func (r *GormRepo) ReleaseInventory(ctx context.Context, items []model.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			res := tx.Model(&listingRecord{}).
				Where("id = ?", item.ListingID).
				Update("reserved_quantity", gorm.Expr(
					"CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END",
					item.Quantity, item.Quantity))
			if res.Error != nil {
				return fmt.Errorf("release inventory for listing %s: %w", item.ListingID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("release inventory for listing %s: %w", item.ListingID, biddingerrors.ErrListingNotFound)
			}
		}
		return nil
	})
}

// FulfillInventory converts reserved units of every item into sold units
func (r *GormRepo) FulfillInventory(ctx context.Context, items []model.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			res := tx.Model(&listingRecord{}).
				Where("id = ?", item.ListingID).
				Updates(map[string]any{
					"sold_quantity": gorm.Expr(
						"sold_quantity + CASE WHEN reserved_quantity >= ? THEN ? ELSE reserved_quantity END",
						item.Quantity, item.Quantity),
					"reserved_quantity": gorm.Expr(
						"CASE WHEN reserved_quantity >= ? THEN reserved_quantity - ? ELSE 0 END",
						item.Quantity, item.Quantity),
				})
			if res.Error != nil {
				return fmt.Errorf("fulfill inventory for listing %s: %w", item.ListingID, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("fulfill inventory for listing %s: %w", item.ListingID, biddingerrors.ErrListingNotFound)
			}
		}
		return nil
	})
}

// GetBid returns a single ledger entry
func (r *GormRepo) GetBid(ctx context.Context, bidID string) (model.Bid, error) {
	var rec bidRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", bidID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
		}
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, err)
	}
	return rec.toModel(), nil
}

// GetBidsByAuction returns all bids for an auction in ledger order
func (r *GormRepo) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	var recs []bidRecord
	if err := r.db.WithContext(ctx).Where("auction_id = ?", auctionID).Order("sequence ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bidsFromRecords(recs), nil
}

// GetBidsByUser returns all bids a user has placed, newest first
func (r *GormRepo) GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error) {
	var recs []bidRecord
	if err := r.db.WithContext(ctx).Where("bidder_id = ?", userID).Order("created_at DESC, sequence DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return bidsFromRecords(recs), nil
}

// GetLeadingBid returns the highest active bid, earliest first on ties
func (r *GormRepo) GetLeadingBid(ctx context.Context, auctionID string) (model.Bid, error) {
	var rec bidRecord
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND status = ?", auctionID, string(model.BidActive)).
		Order("amount DESC, created_at ASC, sequence ASC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Bid{}, fmt.Errorf("get leading bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
		}
		return model.Bid{}, fmt.Errorf("get leading bid for auction %s: %w", auctionID, err)
	}
	return rec.toModel(), nil
}

// CommitBidRound applies a bid round in one database transaction
func (r *GormRepo) CommitBidRound(ctx context.Context, round model.BidRound) (model.Listing, error) {
	var committed model.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if err = updateListingWithVersion(tx, round.Listing, round.ExpectedVersion); err != nil {
			return err
		}
		if err = insertBids(tx, round.Listing.ListingID, round.NewBids); err != nil {
			return err
		}
		if err = applyStatusChanges(tx, round.Listing.ListingID, round.StatusChanges); err != nil {
			return err
		}
		committed, err = reloadListing(tx, round.Listing.ListingID)
		return err
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("commit bid round: %w", err)
	}
	return committed, nil
}

// CommitSettlement applies the close of an auction in one database transaction
func (r *GormRepo) CommitSettlement(ctx context.Context, commit model.SettlementCommit) (model.Listing, error) {
	var committed model.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if err = updateListingWithVersion(tx, commit.Listing, commit.ExpectedVersion); err != nil {
			return err
		}
		if err = applyStatusChanges(tx, commit.Listing.ListingID, commit.StatusChanges); err != nil {
			return err
		}
		if commit.Order != nil {
			if err = insertOrderAndReserve(tx, *commit.Order); err != nil {
				return err
			}
		}
		committed, err = reloadListing(tx, commit.Listing.ListingID)
		return err
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("commit settlement: %w", err)
	}
	return committed, nil
}

// GetOrder returns an order with its items
func (r *GormRepo) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	var rec orderRecord
	if err := r.db.WithContext(ctx).Preload("Items").First(&rec, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, fmt.Errorf("get order %s: %w", orderID, biddingerrors.ErrOrderNotFound)
		}
		return model.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return rec.toModel(), nil
}

// GetOrderByAuction returns the order created when the auction settled
func (r *GormRepo) GetOrderByAuction(ctx context.Context, auctionID string) (model.Order, error) {
	var rec orderRecord
	if err := r.db.WithContext(ctx).Preload("Items").First(&rec, "auction_id = ?", auctionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Order{}, fmt.Errorf("get order for auction %s: %w", auctionID, biddingerrors.ErrOrderNotFound)
		}
		return model.Order{}, fmt.Errorf("get order for auction %s: %w", auctionID, err)
	}
	return rec.toModel(), nil
}

// UpdateOrder writes the payment, status and delivery fields of an order
func (r *GormRepo) UpdateOrder(ctx context.Context, order model.Order) error {
	res := r.db.WithContext(ctx).
		Model(&orderRecord{}).
		Where("id = ?", order.OrderID).
		Updates(map[string]any{
			"payment_status": string(order.Payment.Status),
			"transaction_id": order.Payment.TransactionID,
			"failure_reason": order.Payment.FailureReason,
			"paid_at":        order.Payment.PaidAt,
			"status":         string(order.Status),
			"delivered_at":   order.DeliveredAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update order %s: %w", order.OrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update order %s: %w", order.OrderID, biddingerrors.ErrOrderNotFound)
	}
	return nil
}

func updateListingWithVersion(tx *gorm.DB, listing model.Listing, expected int64) error {
	cols := auctionColumns(listing)
	cols["version"] = expected + 1
	cols["updated_at"] = time.Now().UTC()

	res := tx.Model(&listingRecord{}).
		Where("id = ? AND version = ?", listing.ListingID, expected).
		Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := tx.Model(&listingRecord{}).Where("id = ?", listing.ListingID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("listing %s: %w", listing.ListingID, biddingerrors.ErrListingNotFound)
	}
	return fmt.Errorf("listing %s, expected version %d: %w", listing.ListingID, expected, biddingerrors.ErrStaleListing)
}

func insertBids(tx *gorm.DB, auctionID string, bids []model.Bid) error {
	if len(bids) == 0 {
		return nil
	}

	var maxSeq int64
	if err := tx.Model(&bidRecord{}).
		Where("auction_id = ?", auctionID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&maxSeq).Error; err != nil {
		return err
	}

	recs := make([]bidRecord, 0, len(bids))
	for _, b := range bids {
		maxSeq++
		rec := bidToRecord(b)
		rec.Sequence = maxSeq
		recs = append(recs, rec)
	}
	return tx.Create(&recs).Error
}

func applyStatusChanges(tx *gorm.DB, auctionID string, changes []model.BidStatusChange) error {
	for _, c := range changes {
		cols := map[string]any{"status": string(c.Status)}
		if c.OutbidBy != "" {
			cols["outbid_by"] = c.OutbidBy
		}
		if c.IsWinner {
			cols["is_winner"] = true
		}

		res := tx.Model(&bidRecord{}).Where("id = ? AND auction_id = ?", c.BidID, auctionID).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bid %s: %w", c.BidID, biddingerrors.ErrBidNotFound)
		}
	}
	return nil
}

func insertOrderAndReserve(tx *gorm.DB, order model.Order) error {
	rec := orderToRecord(order)
	if err := tx.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("order for auction %s already exists: %w", order.AuctionID, biddingerrors.ErrInvalidState)
		}
		return err
	}

	for _, item := range order.Items {
		res := tx.Model(&listingRecord{}).
			Where("id = ? AND total_quantity - reserved_quantity - sold_quantity >= ?", item.ListingID, item.Quantity).
			Update("reserved_quantity", gorm.Expr("reserved_quantity + ?", item.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("listing %s: %w", item.ListingID, biddingerrors.ErrInsufficientStock)
		}
	}
	return nil
}

func reloadListing(tx *gorm.DB, listingID string) (model.Listing, error) {
	var rec listingRecord
	if err := tx.First(&rec, "id = ?", listingID).Error; err != nil {
		return model.Listing{}, err
	}
	return rec.toModel(), nil
}

func bidsFromRecords(recs []bidRecord) []model.Bid {
	bids := make([]model.Bid, 0, len(recs))
	for _, rec := range recs {
		bids = append(bids, rec.toModel())
	}
	return bids
}
