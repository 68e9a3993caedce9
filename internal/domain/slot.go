package domain

import "time"

type Slot struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"propertyId"`
	Date       string    `json:"date"`      // YYYY-MM-DD, stored as given
	StartTime  string    `json:"startTime"` // HH:MM
	EndTime    string    `json:"endTime"`   // HH:MM
	Booked     bool      `json:"booked"`
	Booker     *Booker   `json:"booker,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Booker struct {
	Name           string `json:"name"`
	FamilySize     int    `json:"familySize"`
	Contact        string `json:"contact"`
	HasApplication bool   `json:"hasApplication"`
}

// TimeRange is one unit produced by splitting an admin-declared window.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BookingNotice is what the admin receives after a successful booking.
type BookingNotice struct {
	SlotID          string
	PropertyID      string
	PropertyAddress string
	Date            string
	StartTime       string
	EndTime         string
	Booker          Booker
}
