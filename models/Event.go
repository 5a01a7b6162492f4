package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event lifecycle is admin-driven: draft -> published -> past. This service
// only ever reads these fields; editing happens in the admin dashboard.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusPast      = "past"

	EventVisibilityPublic = "public"
	EventVisibilityHidden = "hidden"
)

type Event struct {
	ID uint `json:"id" gorm:"primaryKey"`

	Name     string `json:"name" gorm:"not null"`
	Location string `json:"location" gorm:"size:255"`

	// Meeting point specifics, entry codes, host phone number. Shown only
	// to approved participants.
	PrivateDetails string `json:"privateDetails" gorm:"type:text"`

	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`

	// Capacity is ignored when IsUnlimitedCapacity is set. When it is not
	// set, Capacity must be a positive integer.
	Capacity            int  `json:"capacity"`
	IsUnlimitedCapacity bool `json:"isUnlimitedCapacity"`

	RequiresApproval          bool `json:"requiresApproval"`
	HideLocationUntilApproved bool `json:"hideLocationUntilApproved"`
	ShowParticipants          bool `json:"showParticipants"`

	// 0 means free. Prices are stored in minor units to keep arithmetic
	// exact; the currency is an ISO 4217 code.
	TicketPriceCents int64  `json:"ticketPriceCents"`
	Currency         string `json:"currency" gorm:"size:3"`

	Status     string `json:"status" gorm:"size:16;index"`     // draft, published, past
	Visibility string `json:"visibility" gorm:"size:16;index"` // public, hidden

	// Event-specific registration questions as an ordered JSON array of
	// {key, label, required} objects.
	RegistrationQuestions datatypes.JSON `json:"registrationQuestions"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsPaid reports whether registration must go through the payment checkout.
func (e *Event) IsPaid() bool {
	return e.TicketPriceCents > 0
}

// AcceptsSignups reports whether a new registration may be submitted right
// now. Published events whose end time has passed behave like past events
// even if the status rollover job has not run yet.
func (e *Event) AcceptsSignups(now time.Time) bool {
	if e.Status != EventStatusPublished {
		return false
	}
	if !e.EndsAt.IsZero() && e.EndsAt.Before(now) {
		return false
	}
	return true
}
