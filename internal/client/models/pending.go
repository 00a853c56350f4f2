// Package models defines the client-side bookkeeping types of the sync
// engine: queued mutations, sync log entries and the live status snapshot.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/possync/internal/models"
	"github.com/google/uuid"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// PendingMutation is one local write not yet confirmed by the server. Its
// presence in the queue means the server does not reflect the write yet.
type PendingMutation struct {
	ID        string
	Seq       int64
	Table     models.Table
	RecordID  string
	Action    Action
	Data      json.RawMessage
	Timestamp time.Time
	Synced    bool
}

// NewPendingID builds a queue entry id from the table, the record id and the
// creation time, plus a random suffix so that two writes within the same
// millisecond never collide.
func NewPendingID(table models.Table, recordID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%s", table, recordID, at.UnixMilli(), uuid.NewString()[:8])
}

// Record decodes the queued payload.
func (m PendingMutation) Record() (models.Record, error) {
	return models.Decode(m.Table, m.Data)
}
