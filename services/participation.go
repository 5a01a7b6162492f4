package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gatherly-server/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine errors. Routes map these to HTTP codes with errors.Is.
var (
	ErrEventNotFound            = errors.New("event not found")
	ErrRecordNotFound           = errors.New("participation record not found")
	ErrEventNotAcceptingSignups = errors.New("event is not accepting signups")
	ErrDuplicateRegistration    = errors.New("already registered for this event")
	ErrCapacityExceeded         = errors.New("event capacity exceeded")
	ErrEventIsFree              = errors.New("event is free, no checkout required")
	ErrInvalidTransition        = errors.New("transition not allowed from current status")
	ErrRefundFailed             = errors.New("refund failed, rejection aborted")
)

// AnswerInput is one registration answer as submitted by the user.
type AnswerInput struct {
	Question string          `json:"question" validate:"required,max=255"`
	Value    json.RawMessage `json:"value" validate:"required"`
}

// RegistrationResult is what a successful Register call hands back. For paid
// events CheckoutURL is set and the record sits in pending_payment until the
// processor's webhook arrives.
type RegistrationResult struct {
	Record      *models.EventParticipant `json:"record"`
	CheckoutURL string                   `json:"checkoutUrl,omitempty"`
}

// ParticipationService is the participation lifecycle engine: capacity
// accounting, the approval state machine and the paid-ticket gate. The
// database is the only shared state; every guarded transition is a single
// conditional write so concurrent actors cannot oversell an event.
type ParticipationService struct {
	db       *gorm.DB
	payments PaymentClient
	notifier *NotificationService
}

func NewParticipationService(db *gorm.DB, payments PaymentClient, notifier *NotificationService) *ParticipationService {
	return &ParticipationService{db: db, payments: payments, notifier: notifier}
}

func countingStatusValues() []string {
	out := make([]string, 0, len(models.CountingStatuses))
	for _, s := range models.CountingStatuses {
		out = append(out, string(s))
	}
	return out
}

// GetEvent loads an event or reports ErrEventNotFound.
func (s *ParticipationService) GetEvent(eventID uint) (*models.Event, error) {
	var event models.Event
	if err := s.db.First(&event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// CountInCountingStates counts the records currently holding a seat:
// pending_payment, pending and approved. Rejected and waitlisted do not.
func (s *ParticipationService) CountInCountingStates(eventID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.EventParticipant{}).
		Where("event_id = ? AND status IN ?", eventID, countingStatusValues()).
		Count(&count).Error
	return count, err
}

// CountApproved counts confirmed seats only.
func (s *ParticipationService) CountApproved(eventID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.EventParticipant{}).
		Where("event_id = ? AND status = ?", eventID, models.StatusApproved).
		Count(&count).Error
	return count, err
}

// SpotsLeft returns the remaining seats, or nil for unlimited events. Never
// cached; recomputed on every call.
func (s *ParticipationService) SpotsLeft(event *models.Event) (*int, error) {
	if event.IsUnlimitedCapacity {
		return nil, nil
	}
	count, err := s.CountInCountingStates(event.ID)
	if err != nil {
		return nil, err
	}
	left := event.Capacity - int(count)
	if left < 0 {
		left = 0
	}
	return &left, nil
}

// Register submits a registration for the given user. Free events create the
// record directly; paid events go through the checkout gate and come back
// into the same pipeline once the payment webhook lands.
func (s *ParticipationService) Register(ctx context.Context, eventID, userID uint, answers []AnswerInput) (*RegistrationResult, error) {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !event.AcceptsSignups(time.Now()) {
		return nil, ErrEventNotAcceptingSignups
	}

	if event.IsPaid() {
		return s.InitiateCheckout(ctx, event, userID, answers)
	}

	initial := models.StatusPending
	if !event.RequiresApproval {
		initial = models.StatusApproved
	}

	record, err := s.createRecordWithAnswers(event, userID, initial, answers)
	if err != nil {
		return nil, err
	}

	if initial == models.StatusApproved {
		s.notify(userID, "registration_approved", "You're in! 🎉",
			fmt.Sprintf("Your spot at '%s' is confirmed.", event.Name), record)
	}

	return &RegistrationResult{Record: record}, nil
}

// InitiateCheckout reserves a seat in pending_payment, then asks the
// processor for a checkout session. If the processor call fails the seat is
// released again so a failed checkout never blocks the event. Fails with
// ErrEventIsFree for free events; those take the direct path.
func (s *ParticipationService) InitiateCheckout(ctx context.Context, event *models.Event, userID uint, answers []AnswerInput) (*RegistrationResult, error) {
	if !event.IsPaid() {
		return nil, ErrEventIsFree
	}

	record, err := s.createRecordWithAnswers(event, userID, models.StatusPendingPayment, answers)
	if err != nil {
		return nil, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, event.TicketPriceCents, event.Currency, CheckoutMetadata{
		EventID: event.ID,
		UserID:  userID,
	})
	if err != nil {
		// Release the reserved seat; the user can retry.
		if derr := s.db.Where("participant_id = ?", record.ID).Delete(&models.RegistrationAnswer{}).Error; derr != nil {
			log.Printf("failed to delete answers for reservation %d after checkout failure: %v", record.ID, derr)
		}
		if derr := s.db.Delete(&models.EventParticipant{}, record.ID).Error; derr != nil {
			log.Printf("failed to release reservation %d after checkout failure: %v", record.ID, derr)
		}
		return nil, err
	}

	if err := s.db.Model(record).Update("checkout_ref", session.Ref).Error; err != nil {
		return nil, err
	}
	record.CheckoutRef = &session.Ref

	return &RegistrationResult{Record: record, CheckoutURL: session.URL}, nil
}

// createRecordWithAnswers creates the participation record and its answers
// atomically: a failed answer write releases the seat again instead of
// leaving an answerless record that blocks the user's retry.
func (s *ParticipationService) createRecordWithAnswers(event *models.Event, userID uint, status models.ParticipationStatus, answers []AnswerInput) (*models.EventParticipant, error) {
	var record *models.EventParticipant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = createCountingRecord(tx, event, userID, status)
		if err != nil {
			return err
		}
		return saveAnswers(tx, record.ID, answers)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// createCountingRecord inserts a participation record if and only if a seat
// is still available, as one conditional write. The composite unique index
// on (event_id, user_id) turns concurrent duplicate submissions into
// ErrDuplicateRegistration.
func createCountingRecord(tx *gorm.DB, event *models.Event, userID uint, status models.ParticipationStatus) (*models.EventParticipant, error) {
	now := time.Now()

	if event.IsUnlimitedCapacity {
		record := models.EventParticipant{EventID: event.ID, UserID: userID, Status: status}
		if err := tx.Create(&record).Error; err != nil {
			if isDuplicateErr(err) {
				return nil, ErrDuplicateRegistration
			}
			return nil, err
		}
		return &record, nil
	}

	res := tx.Exec(`
		INSERT INTO event_participants (event_id, user_id, status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM event_participants
		       WHERE event_id = ? AND status IN ?) < ?`,
		event.ID, userID, string(status), now, now,
		event.ID, countingStatusValues(), event.Capacity)
	if res.Error != nil {
		if isDuplicateErr(res.Error) {
			return nil, ErrDuplicateRegistration
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// A full event and a duplicate submission both write zero rows here:
		// the capacity guard fails before the unique index gets a chance to
		// fire. An existing record for the pair takes precedence.
		var existing int64
		if err := tx.Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", event.ID, userID).
			Count(&existing).Error; err != nil {
			return nil, err
		}
		if existing > 0 {
			return nil, ErrDuplicateRegistration
		}
		return nil, ErrCapacityExceeded
	}

	var record models.EventParticipant
	if err := tx.Where("event_id = ? AND user_id = ?", event.ID, userID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func saveAnswers(tx *gorm.DB, participantID uint, answers []AnswerInput) error {
	for _, a := range answers {
		answer := models.RegistrationAnswer{
			ParticipantID: participantID,
			Question:      a.Question,
			Value:         datatypes.JSON(a.Value),
		}
		if err := tx.Create(&answer).Error; err != nil {
			return err
		}
	}
	return nil
}

// ConfirmPayment reacts to the processor's payment.succeeded webhook. The
// conditional update makes duplicate deliveries a no-op: only a record still
// in pending_payment moves forward, exactly once.
func (s *ParticipationService) ConfirmPayment(eventID, userID uint) error {
	event, err := s.GetEvent(eventID)
	if err != nil {
		return err
	}

	target := models.StatusPending
	if !event.RequiresApproval {
		target = models.StatusApproved
	}

	now := time.Now()
	res := s.db.Model(&models.EventParticipant{}).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, models.StatusPendingPayment).
		Updates(map[string]interface{}{"status": target, "paid_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Duplicate or out-of-order delivery. Log the anomaly when there is
		// no record at all (e.g. webhook for an abandoned checkout).
		var count int64
		s.db.Model(&models.EventParticipant{}).
			Where("event_id = ? AND user_id = ?", eventID, userID).
			Count(&count)
		if count == 0 {
			log.Printf("payment confirmed for unknown registration (event %d, user %d), ignoring", eventID, userID)
		}
		return nil
	}

	title, msg := "Payment received ✅", fmt.Sprintf("Your payment for '%s' went through. We'll let you know once you're approved.", event.Name)
	if target == models.StatusApproved {
		title, msg = "You're in! 🎉", fmt.Sprintf("Your payment for '%s' went through and your spot is confirmed.", event.Name)
	}
	var record models.EventParticipant
	if err := s.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&record).Error; err == nil {
		s.notify(userID, "payment_confirmed", title, msg, &record)
	}
	return nil
}

// AbandonPayment reacts to checkout expiry: the reserved seat is released.
// Nothing was captured, so there is nothing to refund. Idempotent.
func (s *ParticipationService) AbandonPayment(eventID, userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var record models.EventParticipant
		err := tx.Where("event_id = ? AND user_id = ? AND status = ?",
			eventID, userID, models.StatusPendingPayment).First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("participant_id = ?", record.ID).Delete(&models.RegistrationAnswer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.EventParticipant{}, record.ID).Error
	})
}

// Approve confirms a pending or waitlisted registration. For finite-capacity
// events the approved count is re-checked inside the same write, so racing
// admins cannot push the event past capacity; the loser gets
// ErrCapacityExceeded and has to waitlist instead.
func (s *ParticipationService) Approve(recordID uint) (*models.EventParticipant, error) {
	record, event, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}

	sourceStatuses := []string{string(models.StatusPending), string(models.StatusWaitlisted)}
	now := time.Now()

	var res *gorm.DB
	if event.IsUnlimitedCapacity {
		res = s.db.Model(&models.EventParticipant{}).
			Where("id = ? AND status IN ?", recordID, sourceStatuses).
			Updates(map[string]interface{}{"status": models.StatusApproved, "updated_at": now})
	} else {
		res = s.db.Exec(`
			UPDATE event_participants SET status = ?, updated_at = ?
			WHERE id = ? AND status IN ?
			  AND (SELECT COUNT(*) FROM event_participants
			       WHERE event_id = ? AND status = ?) < ?`,
			string(models.StatusApproved), now,
			recordID, sourceStatuses,
			event.ID, string(models.StatusApproved), event.Capacity)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.diagnoseApprovalFailure(recordID)
	}

	updated, _, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}
	s.notify(record.UserID, "registration_approved", "You're in! 🎉",
		fmt.Sprintf("Your registration for '%s' was approved.", event.Name), updated)
	return updated, nil
}

// diagnoseApprovalFailure decides why a guarded approval wrote zero rows.
func (s *ParticipationService) diagnoseApprovalFailure(recordID uint) error {
	var record models.EventParticipant
	if err := s.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	switch record.Status {
	case models.StatusPending, models.StatusWaitlisted:
		return ErrCapacityExceeded
	default:
		return ErrInvalidTransition
	}
}

// Reject declines a pending or waitlisted registration. If money was
// captured for the record, the refund is issued inside the same transaction
// as the status write: a failed refund rolls the rejection back, so a
// rejected-but-unrefunded record is never visible to readers.
func (s *ParticipationService) Reject(ctx context.Context, recordID uint) (*models.EventParticipant, error) {
	record, event, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.StatusPending && record.Status != models.StatusWaitlisted {
		return nil, ErrInvalidTransition
	}

	sourceStatuses := []string{string(models.StatusPending), string(models.StatusWaitlisted)}
	now := time.Now()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.StatusRejected, "updated_at": now}
		needsRefund := record.Paid() && record.RefundedAt == nil
		if needsRefund {
			updates["refunded_at"] = now
		}

		res := tx.Model(&models.EventParticipant{}).
			Where("id = ? AND status IN ?", recordID, sourceStatuses).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race with another admin action.
			return ErrInvalidTransition
		}

		if needsRefund {
			if record.CheckoutRef == nil {
				return fmt.Errorf("%w: record %d has no checkout reference", ErrRefundFailed, recordID)
			}
			if err := s.payments.Refund(ctx, *record.CheckoutRef); err != nil {
				// Rolls back the uncommitted status write.
				return fmt.Errorf("%w: %v", ErrRefundFailed, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, _, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}
	s.notify(record.UserID, "registration_rejected", "Registration update",
		fmt.Sprintf("Your registration for '%s' was declined.%s", event.Name, rejectionRefundNote(record)), updated)
	return updated, nil
}

func rejectionRefundNote(record *models.EventParticipant) string {
	if record.Paid() {
		return " Your payment will be refunded."
	}
	return ""
}

// Waitlist parks a pending registration. A waitlisted record gives its seat
// back to the pool but stays eligible for later approval.
func (s *ParticipationService) Waitlist(recordID uint) (*models.EventParticipant, error) {
	record, event, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}

	res := s.db.Model(&models.EventParticipant{}).
		Where("id = ? AND status = ?", recordID, models.StatusPending).
		Updates(map[string]interface{}{"status": models.StatusWaitlisted, "updated_at": time.Now()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	updated, _, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}
	s.notify(record.UserID, "registration_waitlisted", "You're on the waitlist",
		fmt.Sprintf("'%s' is full right now. We'll notify you if a spot opens up.", event.Name), updated)
	return updated, nil
}

// Reopen is the administrative override: it moves a record into pending,
// waitlisted or approved from any current status. Approval targets still
// honor the capacity guard; overrides trade strict terminality for
// operational flexibility, not for overselling.
func (s *ParticipationService) Reopen(recordID uint, target models.ParticipationStatus) (*models.EventParticipant, error) {
	switch target {
	case models.StatusPending, models.StatusWaitlisted, models.StatusApproved:
	default:
		return nil, fmt.Errorf("%w: cannot reopen into %q", ErrInvalidTransition, target)
	}

	record, event, err := s.loadRecordWithEvent(recordID)
	if err != nil {
		return nil, err
	}
	if record.Status == target {
		return record, nil
	}

	now := time.Now()
	var res *gorm.DB
	if target == models.StatusApproved && !event.IsUnlimitedCapacity {
		res = s.db.Exec(`
			UPDATE event_participants SET status = ?, updated_at = ?
			WHERE id = ? AND status <> ?
			  AND (SELECT COUNT(*) FROM event_participants
			       WHERE event_id = ? AND status = ?) < ?`,
			string(target), now, recordID, string(target),
			event.ID, string(models.StatusApproved), event.Capacity)
	} else {
		res = s.db.Model(&models.EventParticipant{}).
			Where("id = ? AND status <> ?", recordID, target).
			Updates(map[string]interface{}{"status": target, "updated_at": now})
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if target == models.StatusApproved {
			return nil, ErrCapacityExceeded
		}
		return nil, ErrInvalidTransition
	}

	return s.reload(recordID)
}

// ListByEvent returns an event's participation records for the admin
// approval screen, optionally filtered by status.
func (s *ParticipationService) ListByEvent(eventID uint, statusFilter models.ParticipationStatus) ([]models.EventParticipant, error) {
	q := s.db.Where("event_id = ?", eventID).
		Preload("User").
		Preload("Answers").
		Order("created_at ASC")
	if statusFilter != "" {
		if !statusFilter.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, statusFilter)
		}
		q = q.Where("status = ?", statusFilter)
	}

	var records []models.EventParticipant
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the (event, user) pair's record, if any.
func (s *ParticipationService) Get(eventID, userID uint) (*models.EventParticipant, error) {
	var record models.EventParticipant
	err := s.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListByUser returns a user's registrations with their events preloaded.
func (s *ParticipationService) ListByUser(userID uint) ([]models.EventParticipant, error) {
	var records []models.EventParticipant
	err := s.db.Where("user_id = ?", userID).
		Preload("Event").
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

func (s *ParticipationService) loadRecordWithEvent(recordID uint) (*models.EventParticipant, *models.Event, error) {
	var record models.EventParticipant
	if err := s.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRecordNotFound
		}
		return nil, nil, err
	}
	var event models.Event
	if err := s.db.First(&event, record.EventID).Error; err != nil {
		return nil, nil, err
	}
	return &record, &event, nil
}

func (s *ParticipationService) reload(recordID uint) (*models.EventParticipant, error) {
	var record models.EventParticipant
	if err := s.db.First(&record, recordID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *ParticipationService) notify(userID uint, kind, title, message string, record *models.EventParticipant) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyParticipant(userID, kind, title, message, record); err != nil {
		log.Printf("failed to notify user %d (%s): %v", userID, kind, err)
	}
}

// isDuplicateErr matches unique-constraint violations across the postgres
// and sqlite drivers.
func isDuplicateErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
