package services

import (
	"time"

	"gatherly-server/models"
)

// LocationPlaceholder is what non-approved viewers see instead of the
// address when an event hides its location.
const LocationPlaceholder = "Location revealed after approval"

// ParticipantSummary is the roster entry shape. Only approved participants
// ever appear in a roster, no matter who is looking.
type ParticipantSummary struct {
	UserID    uint   `json:"userID"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	AvatarURL string `json:"avatarURL"`
}

// EventView is the status-filtered projection of an event for one viewer.
type EventView struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`

	Location         string `json:"location"`
	LocationRevealed bool   `json:"locationRevealed"`
	PrivateDetails   string `json:"privateDetails,omitempty"`

	TicketPriceCents int64  `json:"ticketPriceCents"`
	Currency         string `json:"currency"`
	RequiresApproval bool   `json:"requiresApproval"`

	SpotsLeft *int `json:"spotsLeft"` // null means unlimited

	ParticipationStatus *models.ParticipationStatus `json:"participationStatus"`
	Participants        []ParticipantSummary        `json:"participants,omitempty"`
}

// ProjectEventView computes what the viewer may see. Pure function of the
// event's policy and the viewer's current record; callers must re-run it on
// every read so a status change is reflected immediately.
func ProjectEventView(event *models.Event, record *models.EventParticipant, roster []models.EventParticipant, spotsLeft *int) EventView {
	view := EventView{
		ID:               event.ID,
		Name:             event.Name,
		StartsAt:         event.StartsAt,
		EndsAt:           event.EndsAt,
		TicketPriceCents: event.TicketPriceCents,
		Currency:         event.Currency,
		RequiresApproval: event.RequiresApproval,
		SpotsLeft:        spotsLeft,
	}

	approved := record != nil && record.Status == models.StatusApproved
	if record != nil {
		status := record.Status
		view.ParticipationStatus = &status
	}

	if !event.HideLocationUntilApproved || approved {
		view.Location = event.Location
		view.LocationRevealed = true
	} else {
		view.Location = LocationPlaceholder
	}

	if approved {
		view.PrivateDetails = event.PrivateDetails
	}

	if event.ShowParticipants || approved {
		view.Participants = make([]ParticipantSummary, 0, len(roster))
		for _, p := range roster {
			if p.Status != models.StatusApproved {
				continue
			}
			view.Participants = append(view.Participants, ParticipantSummary{
				UserID:    p.UserID,
				FirstName: p.User.FirstName,
				LastName:  p.User.LastName,
				AvatarURL: p.User.AvatarURL,
			})
		}
	}

	return view
}

// GetEventView assembles the projection for one viewer: event policy, the
// viewer's own record, the approved roster and a fresh capacity snapshot.
func (s *ParticipationService) GetEventView(eventID, userID uint) (*EventView, error) {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return nil, err
	}

	record, err := s.Get(eventID, userID)
	if err != nil {
		return nil, err
	}

	var roster []models.EventParticipant
	if err := s.db.Where("event_id = ? AND status = ?", eventID, models.StatusApproved).
		Preload("User").
		Find(&roster).Error; err != nil {
		return nil, err
	}

	spotsLeft, err := s.SpotsLeft(event)
	if err != nil {
		return nil, err
	}

	view := ProjectEventView(event, record, roster, spotsLeft)
	return &view, nil
}
