package bus

import "time"

// Event represents a change notification published on the bus.
// Payloads are advisory hints only; subscribers re-read the store
// for current truth.
type Event struct {
	Kind      string
	Timestamp time.Time
	// Source identifies the originating context (node name for local
	// events, relay client id for events received over the wire). A
	// context never reprocesses an event carrying its own source.
	Source  string
	Payload any
}

// Event kinds published by the store and its collaborators.
const (
	KindListingUpdated   = "listing.updated"
	KindClipNew          = "clip.new"
	KindStoryNew         = "story.new"
	KindFollowUpdated    = "follow.updated"
	KindFavoriteUpdated  = "favorite.updated"
	KindWalletUpdated    = "wallet.updated"
	KindTransactionNew   = "transaction.new"
	KindChatNew          = "chat.new"
	KindMessageNew       = "message.new"
	KindMetadataUpdated  = "metadata.updated"
	KindHandshakeUpdated = "handshake.updated"
	KindOutboxEnqueued   = "outbox.enqueued"
	KindSyncStarted      = "sync.started"
	KindSyncCompleted    = "sync.completed"
	KindSyncDeadLetter   = "sync.dead_letter"
	KindGlobalAlert      = "alert.global"
	KindMeshHeartbeat    = "mesh.heartbeat"
	KindMeshStatus       = "mesh.status_changed"
)

// Alert is the payload for user-facing alert.global events.
type Alert struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Alert types.
const (
	AlertSuccess   = "SUCCESS"
	AlertDiscovery = "DISCOVERY"
	AlertError     = "ERROR"
)
