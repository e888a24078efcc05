package models

import "time"

// Snapshot is the persisted state: the full booking collection plus the
// time of the last write. It is stored as a single opaque blob under one
// fixed key, whatever the backend.
type Snapshot struct {
	Bookings    []Booking `json:"bookings"`
	LastUpdated time.Time `json:"lastUpdated"`
}
