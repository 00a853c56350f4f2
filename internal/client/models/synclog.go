package models

import "time"

type SyncLogType string

const (
	SyncLogDownload SyncLogType = "download"
	SyncLogUpload   SyncLogType = "upload"
	SyncLogError    SyncLogType = "error"
	// SyncLogOffline marks a write kept locally because the server could not
	// be reached. It is queued, not yet uploaded.
	SyncLogOffline SyncLogType = "offline"
)

type SyncLogStatus string

const (
	SyncStatusSuccess SyncLogStatus = "success"
	SyncStatusPartial SyncLogStatus = "partial"
	SyncStatusFailed  SyncLogStatus = "failed"
	SyncStatusQueued  SyncLogStatus = "queued"
)

// SyncLogEntry is an immutable diagnostic record. Table is a table name or
// "all".
type SyncLogEntry struct {
	ID        int64         `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      SyncLogType   `json:"type"`
	Table     string        `json:"table"`
	ItemCount int           `json:"item_count"`
	Status    SyncLogStatus `json:"status"`
	Details   string        `json:"details"`
}

// SyncStatus is computed live from the queue and metadata.
type SyncStatus struct {
	IsOnline       bool       `json:"is_online"`
	IsSyncing      bool       `json:"is_syncing"`
	PendingChanges int        `json:"pending_changes"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
}

// Metadata keys used by the engine.
const (
	MetaLastSync  = "lastSync"
	MetaOwnerID   = "ownerID"
	MetaUsername  = "username"
	MetaSalt      = "salt"
	MetaVerifier  = "verifier"
	MetaServerURL = "serverURL"
)
