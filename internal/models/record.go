package models

import "time"

// Record is implemented by every synchronized entity. All of them embed Base.
type Record interface {
	Table() Table
	GetID() string
	GetOwnerID() string
	// IndexValue returns the value stored in a secondary index column.
	IndexValue(column string) string
	Validate() error
	Meta() *Base
}

// Base carries the attributes shared by all records.
type Base struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (b *Base) GetID() string      { return b.ID }
func (b *Base) GetOwnerID() string { return b.OwnerID }
func (b *Base) Meta() *Base        { return b }

// Touch sets UpdatedAt to now, and CreatedAt too when it is unset.
func (b *Base) Touch(now time.Time) {
	created, updated := now.UTC(), now.UTC()
	if b.CreatedAt == nil {
		b.CreatedAt = &created
	}
	b.UpdatedAt = &updated
}

func (b *Base) baseIndex(column string) (string, bool) {
	if column == ColumnOwnerID {
		return b.OwnerID, true
	}
	return "", false
}
