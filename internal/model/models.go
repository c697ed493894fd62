package model

import (
	"strconv"
	"time"
)

// ── Enums ────────────────────────────────────────────

type Role string

const (
	RoleUser   Role = "USER"
	RoleIssuer Role = "ISSUER"
	RoleAdmin  Role = "ADMIN"
)

type SaleType string

const (
	SaleFixedPrice SaleType = "FIXED_PRICE"
	SaleAuction    SaleType = "AUCTION"
)

type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "ACTIVE"
	AuctionEnded     AuctionStatus = "ENDED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

type PayableKind string

const (
	PayableRoyalty  PayableKind = "ROYALTY"
	PayablePlatform PayableKind = "PLATFORM"
)

// ── Domain Objects ───────────────────────────────────

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountBalance is the per-(account,event) ledger record. OriginalDeposit is
// what the account paid in (mint payments included) and is the amount an
// emergency refund returns together with the locked balance.
type AccountBalance struct {
	AccountID       string `json:"account_id"`
	EventID         string `json:"event_id"`
	TotalDeposited  int64  `json:"total_deposited"`
	Available       int64  `json:"available_balance"`
	Locked          int64  `json:"locked_balance"`
	TotalWithdrawn  int64  `json:"total_withdrawn"`
	TotalProfits    int64  `json:"total_profits"`
	OriginalDeposit int64  `json:"original_deposit"`
}

// EventInfo carries the per-event ledger flags. Ended and EmergencyRefund only
// ever flip false -> true.
type EventInfo struct {
	EventID         string `json:"event_id"`
	Ended           bool   `json:"ended"`
	EmergencyRefund bool   `json:"emergency_refund"`
	TotalDeposited  int64  `json:"total_deposited"`
}

type Listing struct {
	TokenContract string    `json:"token_contract"`
	TokenID       int64     `json:"token_id"`
	EventID       string    `json:"event_id"`
	Seller        string    `json:"seller"`
	Price         int64     `json:"price"`
	SaleType      SaleType  `json:"sale_type"`
	Active        bool      `json:"active"`
	ListedAt      time.Time `json:"listed_at"`
}

func (l *Listing) Key() string { return ListingKey(l.TokenContract, l.TokenID) }

type Auction struct {
	TokenContract  string           `json:"token_contract"`
	TokenID        int64            `json:"token_id"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	ReservePrice   int64            `json:"reserve_price"`
	MinIncrement   int64            `json:"min_bid_increment"`
	HighestBidder  string           `json:"highest_bidder"`
	HighestBid     int64            `json:"highest_bid"`
	Status         AuctionStatus    `json:"status"`
	ExtensionCount int              `json:"extension_count"`
	Bids           map[string]int64 `json:"bids"`    // bidder -> locked amount
	Bidders        []string         `json:"bidders"` // arrival order, unique
}

type Sale struct {
	ID            string    `json:"id"`
	TokenContract string    `json:"token_contract"`
	TokenID       int64     `json:"token_id"`
	EventID       string    `json:"event_id"`
	Seller        string    `json:"seller"`
	Buyer         string    `json:"buyer"`
	Price         int64     `json:"price"`
	SaleType      SaleType  `json:"sale_type"`
	SoldAt        time.Time `json:"sold_at"`
}

type Payable struct {
	EventID   string      `json:"event_id"`
	Kind      PayableKind `json:"kind"`
	Recipient string      `json:"recipient"`
	Amount    int64       `json:"amount"`
}

// Ticket is owned by the issuance side; the marketplace reads it for
// ownership, pricing and refund checks and only writes the marketplace-usage
// marker through the directory.
type Ticket struct {
	TokenContract   string    `json:"token_contract"`
	TokenID         int64     `json:"token_id"`
	EventID         string    `json:"event_id"`
	Owner           string    `json:"owner"`
	EventName       string    `json:"event_name"`
	SeatNumber      string    `json:"seat_number"`
	IsVIP           bool      `json:"is_vip"`
	MintedAt        time.Time `json:"minted_at"`
	PricePaid       int64     `json:"price_paid"`
	IsUsed          bool      `json:"is_used"`
	IsTransferable  bool      `json:"is_transferable"`
	Venue           string    `json:"venue"`
	MarketplaceUsed bool      `json:"marketplace_used"`
	Approved        bool      `json:"approved"` // marketplace transfer authority granted
}

// TicketEvent is the issuance-side event record the marketplace queries.
type TicketEvent struct {
	EventID            string    `json:"event_id"`
	Name               string    `json:"name"`
	Organizer          string    `json:"organizer"`
	StartTime          time.Time `json:"start_time"`
	Cancelled          bool      `json:"cancelled"`
	BaseReferencePrice int64     `json:"base_reference_price"`
	RoyaltyRecipient   string    `json:"royalty_recipient"`
	RoyaltyBps         int64     `json:"royalty_bps"`
}

type EventLog struct {
	ID          int64     `json:"id"`
	ListingKey  *string   `json:"listing_key,omitempty"`
	Type        string    `json:"type"`
	PayloadJSON any       `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// ── Keys ─────────────────────────────────────────────

// ListingKey identifies a listable token. One active listing per key at a time.
func ListingKey(tokenContract string, tokenID int64) string {
	return tokenContract + "/" + strconv.FormatInt(tokenID, 10)
}
