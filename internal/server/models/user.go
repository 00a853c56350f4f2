// Package models holds the server-side account types. Synchronized records
// live in internal/models.
package models

import "time"

// User is an account. Its ID is the owner id of the records it writes.
type User struct {
	ID        string
	UserName  string
	Salt      []byte
	Verifier  []byte
	CreatedAt time.Time
}
