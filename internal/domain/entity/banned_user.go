package entity

import "time"

// BannedUser blocks a submitter from creating media requests.
type BannedUser struct {
	UserID    string
	Reason    *string
	BannedBy  *string
	CreatedAt time.Time
}
