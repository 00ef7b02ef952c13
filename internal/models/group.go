package models

import "time"

// Group is a named collection of links. LinksCount is denormalized and
// recomputed whenever group membership changes; deleting a group detaches
// its member links instead of deleting them.
type Group struct {
	ID          int64
	Name        string
	Description string
	LinksCount  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
