package models

import "time"

// Client is a policyholder managed by the back office.
type Client struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedBy string // user id of the admin/agent who created the record
	CreatedAt time.Time
	UpdatedAt time.Time
}
