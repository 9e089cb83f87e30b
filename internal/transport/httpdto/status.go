package httpdto

import (
	"time"

	"snapshoot-sync/internal/outbox"
)

type StatusResponse struct {
	Online         bool                `json:"online"`
	Authenticated  bool                `json:"authenticated"`
	UserID         string              `json:"user_id,omitempty"`
	TokenExpiresAt *time.Time          `json:"token_expires_at,omitempty"`
	Syncing        bool                `json:"syncing"`
	Queues         []outbox.QueueDepth `json:"queues"`
	LastSync       *outbox.Report      `json:"last_sync,omitempty"`
}

type SyncResponse struct {
	Report    outbox.Report `json:"report"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	Discarded int           `json:"discarded"`
	Pending   int           `json:"pending"`
}

func NewSyncResponse(rep outbox.Report) SyncResponse {
	return SyncResponse{
		Report:    rep,
		Synced:    rep.Synced(),
		Failed:    rep.Failed(),
		Discarded: rep.Discarded(),
		Pending:   rep.Pending(),
	}
}

// SyncAccepted answers an asynchronous sync request.
type SyncAccepted struct {
	Started bool `json:"started"`
}

type ConnectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

type ConnectivityResponse struct {
	Online bool `json:"online"`
}
