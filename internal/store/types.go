package store

import "github.com/shopspring/decimal"

// SyncStatus tracks whether a local write has been acknowledged by the
// remote mesh.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "SYNCED"
	SyncPending SyncStatus = "PENDING"
	SyncOffline SyncStatus = "OFFLINE"
	SyncError   SyncStatus = "ERROR"
)

// Collection names. Keys are record id except wallets, which key by user id.
const (
	CollectionListings     = "listings"
	CollectionChats        = "chats"
	CollectionMessages     = "messages"
	CollectionWallets      = "wallets"
	CollectionTransactions = "transactions"
	CollectionFavorites    = "favorites"
	CollectionMetadata     = "metadata"
	CollectionClips        = "clips"
	CollectionStories      = "stories"
	CollectionFollows      = "follows"
	CollectionHandshakes   = "handshakes"
)

// Listing is a marketplace listing. CreatedAt is a fixed-width ISO-8601
// string used directly as the sort key.
type Listing struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"ownerId"`
	OwnerName        string          `json:"ownerName"`
	Type             string          `json:"type"`
	Category         string          `json:"category"`
	Title            string          `json:"title"`
	ShortDescription string          `json:"shortDescription,omitempty"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Negotiable       bool            `json:"negotiable"`
	Images           []string        `json:"images"`
	Location         string          `json:"location"`
	CreatedAt        string          `json:"createdAt"`
	IsBoosted        bool            `json:"isBoosted"`
	Views            int64           `json:"views"`
	WhatsApp         string          `json:"whatsapp,omitempty"`
	InAppChat        bool            `json:"inAppChat"`
	SyncStatus       SyncStatus      `json:"syncStatus,omitempty"`
}

// Listing types.
const (
	ListingBuySell   = "BUY_SELL"
	ListingServices  = "SERVICES"
	ListingJobs      = "JOBS"
	ListingProperty  = "PROPERTY"
	ListingPromotion = "PROMOTION"
)

// ChatSession is a conversation with one trading partner.
type ChatSession struct {
	ID            string     `json:"id"`
	PartnerID     string     `json:"partnerId"`
	PartnerName   string     `json:"partnerName"`
	LastMessage   string     `json:"lastMessage"`
	LastTimestamp string     `json:"lastTimestamp"`
	ListingID     string     `json:"listingId,omitempty"`
	SyncStatus    SyncStatus `json:"syncStatus,omitempty"`
}

// Message is a single chat message.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

// Wallet holds one user's balance. Version supports compare-and-swap
// updates; the store never enforces balance >= 0, the ledger does.
type Wallet struct {
	UserID      string          `json:"userId"`
	Balance     decimal.Decimal `json:"balance"`
	Version     int64           `json:"version"`
	LastUpdated int64           `json:"lastUpdated"`
	SyncStatus  SyncStatus      `json:"syncStatus,omitempty"`
}

// Transaction is an append-only ledger record.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Provider    string          `json:"provider"`
	Description string          `json:"description"`
	Checksum    string          `json:"checksum,omitempty"`
	Timestamp   string          `json:"timestamp"`
	SyncStatus  SyncStatus      `json:"syncStatus,omitempty"`
}

// Transaction types.
const (
	TxDeposit         = "DEPOSIT"
	TxWithdrawal      = "WITHDRAWAL"
	TxPayment         = "PAYMENT"
	TxBoost           = "BOOST"
	TxHandshakeEscrow = "HANDSHAKE_ESCROW"
)

// Transaction statuses.
const (
	TxStatusPending = "PENDING"
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"
)

// Handshake is a price agreement between a buyer and a seller, tracked as
// a ledger-adjacent record. Multiple handshakes per chat may exist; lookups
// return the most recent one.
type Handshake struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chatId"`
	SellerID    string          `json:"sellerId"`
	BuyerID     string          `json:"buyerId"`
	ListingID   string          `json:"listingId,omitempty"`
	AgreedPrice decimal.Decimal `json:"agreedPrice"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	SyncStatus  SyncStatus      `json:"syncStatus,omitempty"`
}

// Handshake statuses.
const (
	HandshakePending   = "PENDING"
	HandshakeConfirmed = "CONFIRMED"
	HandshakeCompleted = "COMPLETED"
)

// Clip is short-form video content attached to a seller.
type Clip struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	OwnerName  string     `json:"ownerName"`
	VideoURL   string     `json:"videoUrl"`
	Caption    string     `json:"caption"`
	ListingID  string     `json:"listingId,omitempty"`
	Likes      int64      `json:"likes"`
	Views      int64      `json:"views"`
	CreatedAt  string     `json:"createdAt"`
	SyncStatus SyncStatus `json:"syncStatus,omitempty"`
}

// Story is ephemeral image content. Stories are local-only: they are never
// enqueued for remote sync and expiry is a presentation concern.
type Story struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
	ImageURL  string `json:"imageUrl"`
	CreatedAt string `json:"createdAt"`
	IsLive    bool   `json:"isLive,omitempty"`
}

// OutboxEntry is one not-yet-remotely-synced mutation. Payload is a JSON
// snapshot of the record at enqueue time; the flusher re-reads the live
// record before stamping it synced.
type OutboxEntry struct {
	ID            string
	Collection    string
	RecordKey     string
	Payload       []byte
	Action        string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt int64
	CreatedAt     int64
}

// Outbox actions.
const (
	ActionPut    = "PUT"
	ActionDelete = "DELETE"
)

// Outbox entry statuses.
const (
	OutboxQueued   = "queued"
	OutboxInFlight = "in_flight"
	OutboxDead     = "dead"
)

// Metadata keys for platform counters and per-user flags.
const (
	MetaPlatformRevenue = "platform_revenue"
	MetaAdRevenue       = "ad_revenue"
	MetaWAVerifiedPfx   = "wa_verified_"
)
