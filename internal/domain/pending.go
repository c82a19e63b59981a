package domain

import "time"

// PendingRequest is a prompt handed off from the entry flow to the session
// flow without a server round trip. It is written on submit, read once on
// the next session start, and cleared on consumption.
type PendingRequest struct {
	UserID    string
	Prompt    string
	CreatedAt time.Time
}
