package models

import "time"

// EventType names a notification the engine emits
type EventType string

const (
	EventNewBid               EventType = "new_bid"
	EventOutbid               EventType = "outbid"
	EventAuctionWon           EventType = "auction_won"
	EventAuctionSold          EventType = "auction_sold"
	EventAuctionLost          EventType = "auction_lost"
	EventAuctionEndedNoWinner EventType = "auction_ended_no_winner"
	EventAuctionCancelled     EventType = "auction_cancelled"
	EventPaymentFailed        EventType = "payment_failed"
	EventOrderConfirmed       EventType = "order_confirmed"
)

// Notification is one message addressed to a user
type Notification struct {
	UserID    string         `json:"user_id"`
	Event     EventType      `json:"event"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}
