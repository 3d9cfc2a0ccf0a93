package models

import "time"

// User represents a registered user in the system
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	PINHash   string    `json:"-"` // Not serialized
	CreatedAt time.Time `json:"created_at"`
}
