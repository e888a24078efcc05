package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

var ErrInvalidForm = errors.New("invalid booking form")

// Booking is a single reservation of one apartment for a half-open
// date interval [StartDate, EndDate): the checkout day is free again.
// ApartmentName is a denormalized copy taken from the catalog at
// creation time and is deliberately not kept in sync with later
// catalog renames.
type Booking struct {
	ID            string    `json:"id"`
	ApartmentID   string    `json:"apartmentId"`
	ApartmentName string    `json:"apartmentName"`
	GuestName     string    `json:"guestName"`
	GuestEmail    string    `json:"guestEmail,omitempty"`
	GuestPhone    string    `json:"guestPhone,omitempty"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Status        string    `json:"status"` // pending, confirmed, cancelled
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// BookingForm carries the operator-supplied fields of a booking.
// Fields the store stamps itself (id, apartment name, timestamps) are
// absent here.
type BookingForm struct {
	ApartmentID string
	GuestName   string
	GuestEmail  string
	GuestPhone  string
	StartDate   time.Time
	EndDate     time.Time
	Status      string
	Notes       string
}

// BookingPatch is a partial update: nil fields keep their current value.
type BookingPatch struct {
	ApartmentID *string
	GuestName   *string
	GuestEmail  *string
	GuestPhone  *string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      *string
	Notes       *string
}

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

func (f BookingForm) Validate() error {
	if f.ApartmentID == "" {
		return fmt.Errorf("%w: apartment id is required", ErrInvalidForm)
	}
	if f.GuestName == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidForm)
	}
	if f.StartDate.IsZero() || f.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidForm)
	}
	if !f.EndDate.After(f.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidForm)
	}
	if !ValidStatus(f.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidForm, f.Status)
	}
	return nil
}

// Day normalizes a timestamp to the calendar day it falls on (UTC
// midnight). All interval arithmetic in the store runs on normalized
// days.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
