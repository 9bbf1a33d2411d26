package repository

import (
	model "auction-engine/internal/models"
	"time"

	"github.com/shopspring/decimal"
)

// listingRecord is the persistence shape of a listing with its embedded auction
type listingRecord struct {
	ID               string          `gorm:"primaryKey;size:64"`
	SellerID         string          `gorm:"size:64;not null;index"`
	Title            string          `gorm:"size:255"`
	Price            decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Status           string          `gorm:"size:16;not null;index"`
	TotalQuantity    int             `gorm:"not null;default:0"`
	ReservedQuantity int             `gorm:"not null;default:0"`
	SoldQuantity     int             `gorm:"not null;default:0"`

	IsAuction       bool                `gorm:"not null;default:false"`
	AuctionStatus   string              `gorm:"size:16;index"`
	StartingBid     decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	CurrentBid      decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0"`
	ReservePrice    decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	ReserveMet      bool                `gorm:"not null;default:false"`
	BidIncrement    decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:1"`
	DurationMinutes int
	StartTime       *time.Time
	EndTime         *time.Time `gorm:"index"`
	WinnerID        string     `gorm:"size:64"`

	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (listingRecord) TableName() string { return "listings" }

// bidRecord is one ledger row
type bidRecord struct {
	ID         string              `gorm:"primaryKey;size:64"`
	AuctionID  string              `gorm:"size:64;not null;index:idx_bids_auction_amount,priority:1"`
	BidderID   string              `gorm:"size:64;not null;index"`
	Amount     decimal.Decimal     `gorm:"type:numeric(18,2);not null;index:idx_bids_auction_amount,priority:2"`
	IsAutoBid  bool                `gorm:"not null;default:false"`
	MaxAutoBid decimal.NullDecimal `gorm:"type:numeric(18,2)"`
	IsWinner   bool                `gorm:"not null;default:false"`
	Status     string              `gorm:"size:16;not null;index"`
	OutbidBy   string              `gorm:"size:64"`
	Sequence   int64               `gorm:"not null"`
	CreatedAt  time.Time           `gorm:"not null"`
}

func (bidRecord) TableName() string { return "bids" }

// orderRecord is the persistence shape of a settlement order. The unique
// auction index enforces at most one order per auction.
type orderRecord struct {
	ID            string              `gorm:"primaryKey;size:64"`
	OrderNumber   string              `gorm:"size:32;not null;uniqueIndex"`
	AuctionID     string              `gorm:"size:64;not null;uniqueIndex"`
	BuyerID       string              `gorm:"size:64;not null;index"`
	SellerID      string              `gorm:"size:64;not null;index"`
	TotalAmount   decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	PaymentMethod string              `gorm:"size:32"`
	PaymentStatus string              `gorm:"size:16;not null"`
	TransactionID string              `gorm:"size:128"`
	FailureReason string              `gorm:"size:255"`
	PaidAt        *time.Time
	Status        string `gorm:"size:16;not null"`
	DeliveredAt   *time.Time
	Items         []orderItemRecord `gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (orderRecord) TableName() string { return "orders" }

type orderItemRecord struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   string          `gorm:"size:64;not null;index"`
	ListingID string          `gorm:"size:64;not null"`
	Quantity  int             `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
}

func (orderItemRecord) TableName() string { return "order_items" }

func listingToRecord(l model.Listing) listingRecord {
	return listingRecord{
		ID:               l.ListingID,
		SellerID:         l.SellerID,
		Title:            l.Title,
		Price:            l.Price,
		Status:           string(l.Status),
		TotalQuantity:    l.Inventory.TotalQuantity,
		ReservedQuantity: l.Inventory.ReservedQuantity,
		SoldQuantity:     l.Inventory.SoldQuantity,
		IsAuction:        l.Auction.IsAuction,
		AuctionStatus:    string(l.Auction.Status),
		StartingBid:      l.Auction.StartingBid,
		CurrentBid:       l.Auction.CurrentBid,
		ReservePrice:     l.Auction.ReservePrice,
		ReserveMet:       l.Auction.ReserveMet,
		BidIncrement:     l.Auction.BidIncrement,
		DurationMinutes:  l.Auction.Duration,
		StartTime:        timePtr(l.Auction.StartTime),
		EndTime:          timePtr(l.Auction.EndTime),
		WinnerID:         l.Auction.WinnerID,
		Version:          l.Version,
		UpdatedAt:        l.UpdatedAt,
	}
}

func (r listingRecord) toModel() model.Listing {
	return model.Listing{
		ListingID: r.ID,
		SellerID:  r.SellerID,
		Title:     r.Title,
		Price:     r.Price,
		Status:    model.ListingStatus(r.Status),
		Inventory: model.Inventory{
			TotalQuantity:    r.TotalQuantity,
			ReservedQuantity: r.ReservedQuantity,
			SoldQuantity:     r.SoldQuantity,
		},
		Auction: model.Auction{
			IsAuction:    r.IsAuction,
			Status:       model.AuctionStatus(r.AuctionStatus),
			StartingBid:  r.StartingBid,
			CurrentBid:   r.CurrentBid,
			ReservePrice: r.ReservePrice,
			ReserveMet:   r.ReserveMet,
			BidIncrement: r.BidIncrement,
			Duration:     r.DurationMinutes,
			StartTime:    timeValue(r.StartTime),
			EndTime:      timeValue(r.EndTime),
			WinnerID:     r.WinnerID,
		},
		Version:   r.Version,
		UpdatedAt: r.UpdatedAt,
	}
}

// auctionColumns are the columns a bid round or settlement may change
func auctionColumns(l model.Listing) map[string]any {
	return map[string]any{
		"status":           string(l.Status),
		"auction_status":   string(l.Auction.Status),
		"current_bid":      l.Auction.CurrentBid,
		"reserve_met":      l.Auction.ReserveMet,
		"duration_minutes": l.Auction.Duration,
		"start_time":       timePtr(l.Auction.StartTime),
		"end_time":         timePtr(l.Auction.EndTime),
		"winner_id":        l.Auction.WinnerID,
	}
}

func bidToRecord(b model.Bid) bidRecord {
	return bidRecord{
		ID:         b.BidID,
		AuctionID:  b.AuctionID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		IsAutoBid:  b.IsAutoBid,
		MaxAutoBid: b.MaxAutoBid,
		IsWinner:   b.IsWinner,
		Status:     string(b.Status),
		OutbidBy:   b.OutbidBy,
		Sequence:   b.Sequence,
		CreatedAt:  b.CreatedAt,
	}
}

func (r bidRecord) toModel() model.Bid {
	return model.Bid{
		BidID:      r.ID,
		AuctionID:  r.AuctionID,
		BidderID:   r.BidderID,
		Amount:     r.Amount,
		IsAutoBid:  r.IsAutoBid,
		MaxAutoBid: r.MaxAutoBid,
		IsWinner:   r.IsWinner,
		Status:     model.BidStatus(r.Status),
		OutbidBy:   r.OutbidBy,
		Sequence:   r.Sequence,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func orderToRecord(o model.Order) orderRecord {
	items := make([]orderItemRecord, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemRecord{
			OrderID:   o.OrderID,
			ListingID: it.ListingID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return orderRecord{
		ID:            o.OrderID,
		OrderNumber:   o.OrderNumber,
		AuctionID:     o.AuctionID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.Payment.Method,
		PaymentStatus: string(o.Payment.Status),
		TransactionID: o.Payment.TransactionID,
		FailureReason: o.Payment.FailureReason,
		PaidAt:        o.Payment.PaidAt,
		Status:        string(o.Status),
		DeliveredAt:   o.DeliveredAt,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func (r orderRecord) toModel() model.Order {
	items := make([]model.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, model.OrderItem{
			ListingID: it.ListingID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return model.Order{
		OrderID:     r.ID,
		OrderNumber: r.OrderNumber,
		AuctionID:   r.AuctionID,
		BuyerID:     r.BuyerID,
		SellerID:    r.SellerID,
		Items:       items,
		TotalAmount: r.TotalAmount,
		Payment: model.Payment{
			Method:        r.PaymentMethod,
			Status:        model.PaymentStatus(r.PaymentStatus),
			TransactionID: r.TransactionID,
			FailureReason: r.FailureReason,
			PaidAt:        r.PaidAt,
		},
		Status:      model.OrderStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		DeliveredAt: r.DeliveredAt,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
