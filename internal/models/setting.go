package models

import "time"

// Setting is a key/value pair in the company settings table.
type Setting struct {
	Key       string
	Value     string
	UpdatedBy string
	UpdatedAt time.Time
}
