package models

import (
	"time"

	"gorm.io/datatypes"
)

// ParticipationStatus is the closed set of states a registration moves
// through. Raw strings never cross the service boundary; transition
// functions accept only these values.
type ParticipationStatus string

const (
	StatusPendingPayment ParticipationStatus = "pending_payment"
	StatusPending        ParticipationStatus = "pending"
	StatusApproved       ParticipationStatus = "approved"
	StatusRejected       ParticipationStatus = "rejected"
	StatusWaitlisted     ParticipationStatus = "waitlisted"
)

// CountingStatuses are the states that hold a seat against event capacity.
// Waitlisted and rejected records do not reserve a seat.
var CountingStatuses = []ParticipationStatus{StatusPendingPayment, StatusPending, StatusApproved}

func (s ParticipationStatus) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPending, StatusApproved, StatusRejected, StatusWaitlisted:
		return true
	}
	return false
}

// EventParticipant is one user's registration on one event. The pair is
// unique at the database level; concurrent duplicate submissions are
// serialized by the composite index rather than application checks.
type EventParticipant struct {
	ID      uint  `json:"id" gorm:"primaryKey"`
	EventID uint  `json:"eventID" gorm:"not null;uniqueIndex:idx_event_user"`
	Event   Event `json:"event" gorm:"foreignKey:EventID"`

	UserID uint `json:"userID" gorm:"not null;uniqueIndex:idx_event_user"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	Status ParticipationStatus `json:"status" gorm:"size:16;index"`

	// Payment trail for paid events. CheckoutRef is the processor's opaque
	// session reference, PaidAt is set when the capture webhook lands,
	// RefundedAt when a rejection refund has been issued.
	CheckoutRef *string    `json:"checkoutRef" gorm:"size:128"`
	PaidAt      *time.Time `json:"paidAt"`
	RefundedAt  *time.Time `json:"refundedAt"`

	Answers []RegistrationAnswer `json:"answers" gorm:"foreignKey:ParticipantID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Paid reports whether money was captured for this record. Only captured
// records owe a refund when rejected.
func (p *EventParticipant) Paid() bool {
	return p.PaidAt != nil
}

// RegistrationAnswer captures one answer to an event-specific registration
// question at submission time. Immutable once written; it never affects
// the state machine.
type RegistrationAnswer struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	ParticipantID uint `json:"participantID" gorm:"not null;index"`

	Question string         `json:"question" gorm:"size:255"`
	Value    datatypes.JSON `json:"value"`

	CreatedAt time.Time `json:"createdAt"`
}
