package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gatherly-server/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "engine_test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// Serialize access; sqlite cannot handle concurrent writers the way
	// postgres does, and the engine must not depend on that.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventParticipant{},
		&models.RegistrationAnswer{},
		&models.Notification{},
		&models.AuditLog{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// fakePaymentClient records calls instead of talking to a processor.
type fakePaymentClient struct {
	mu           sync.Mutex
	sessions     int
	refunds      []string
	failCheckout bool
	failRefund   bool
}

func (f *fakePaymentClient) CreateCheckoutSession(ctx context.Context, amountCents int64, currency string, meta CheckoutMetadata) (*CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCheckout {
		return nil, fmt.Errorf("%w: processor unavailable", ErrPaymentGateway)
	}
	f.sessions++
	ref := fmt.Sprintf("sess_%d", f.sessions)
	return &CheckoutSession{Ref: ref, URL: "https://pay.example/" + ref}, nil
}

func (f *fakePaymentClient) Refund(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefund {
		return fmt.Errorf("%w: refund declined", ErrPaymentGateway)
	}
	f.refunds = append(f.refunds, ref)
	return nil
}

func (f *fakePaymentClient) refundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refunds)
}

func newTestEngine(t *testing.T) (*gorm.DB, *ParticipationService, *fakePaymentClient) {
	t.Helper()
	db := newTestDB(t)
	payments := &fakePaymentClient{}
	engine := NewParticipationService(db, payments, NewNotificationService(db))
	return db, engine, payments
}

type eventOption func(*models.Event)

func withCapacity(n int) eventOption {
	return func(e *models.Event) { e.Capacity = n; e.IsUnlimitedCapacity = false }
}

func unlimited() eventOption {
	return func(e *models.Event) { e.IsUnlimitedCapacity = true }
}

func paid(cents int64) eventOption {
	return func(e *models.Event) { e.TicketPriceCents = cents; e.Currency = "USD" }
}

func noApproval() eventOption {
	return func(e *models.Event) { e.RequiresApproval = false }
}

func withStatus(status string) eventOption {
	return func(e *models.Event) { e.Status = status }
}

func ended() eventOption {
	return func(e *models.Event) {
		e.StartsAt = time.Now().Add(-48 * time.Hour)
		e.EndsAt = time.Now().Add(-24 * time.Hour)
	}
}

func seedEvent(t *testing.T, db *gorm.DB, opts ...eventOption) *models.Event {
	t.Helper()
	event := models.Event{
		Name:             "Sunday Supper Club",
		Location:         "12 Rue des Artistes",
		StartsAt:         time.Now().Add(72 * time.Hour),
		EndsAt:           time.Now().Add(76 * time.Hour),
		Capacity:         10,
		RequiresApproval: true,
		Status:           models.EventStatusPublished,
		Visibility:       models.EventVisibilityPublic,
		Currency:         "USD",
	}
	for _, opt := range opts {
		opt(&event)
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return &event
}

func seedParticipant(t *testing.T, db *gorm.DB, eventID, userID uint, status models.ParticipationStatus) *models.EventParticipant {
	t.Helper()
	record := models.EventParticipant{EventID: eventID, UserID: userID, Status: status}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("failed to seed participant: %v", err)
	}
	return &record
}

func TestRegisterFreeEventPending(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	result, err := engine.Register(context.Background(), event.ID, 1, []AnswerInput{
		{Question: "dietary", Value: []byte(`"vegetarian"`)},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.Record.Status != models.StatusPending {
		t.Errorf("expected pending, got %s", result.Record.Status)
	}
	if result.CheckoutURL != "" {
		t.Errorf("free event must not return a checkout URL")
	}

	var answers []models.RegistrationAnswer
	db.Where("participant_id = ?", result.Record.ID).Find(&answers)
	if len(answers) != 1 || answers[0].Question != "dietary" {
		t.Errorf("expected 1 saved answer, got %+v", answers)
	}

	spotsLeft, err := engine.SpotsLeft(event)
	if err != nil {
		t.Fatalf("spots left: %v", err)
	}
	if spotsLeft == nil || *spotsLeft != 4 {
		t.Errorf("expected 4 spots left, got %v", spotsLeft)
	}
}

func TestRegisterAutoApprovesWithoutApprovalGate(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5), noApproval())

	result, err := engine.Register(context.Background(), event.ID, 1, nil)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.Record.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", result.Record.Status)
	}
}

func TestRegisterRejectsUnpublishedAndPastEvents(t *testing.T) {
	db, engine, _ := newTestEngine(t)

	draft := seedEvent(t, db, withStatus(models.EventStatusDraft))
	if _, err := engine.Register(context.Background(), draft.ID, 1, nil); !errors.Is(err, ErrEventNotAcceptingSignups) {
		t.Errorf("draft event: expected ErrEventNotAcceptingSignups, got %v", err)
	}

	past := seedEvent(t, db, ended())
	if _, err := engine.Register(context.Background(), past.ID, 1, nil); !errors.Is(err, ErrEventNotAcceptingSignups) {
		t.Errorf("past event: expected ErrEventNotAcceptingSignups, got %v", err)
	}

	if _, err := engine.Register(context.Background(), 9999, 1, nil); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("missing event: expected ErrEventNotFound, got %v", err)
	}
}

func TestDuplicateRegistrationAlwaysConflicts(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), event.ID, 1, nil); !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("expected ErrDuplicateRegistration, got %v", err)
	}

	// Still a duplicate after the first attempt lands in a terminal state.
	record, err := engine.Get(event.ID, 1)
	if err != nil || record == nil {
		t.Fatalf("get record: %v", err)
	}
	if _, err := engine.Reject(context.Background(), record.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), event.ID, 1, nil); !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("expected ErrDuplicateRegistration after rejection, got %v", err)
	}

	// On a full event the duplicate verdict still wins: the holder of the
	// last seat re-registering is a duplicate, not a capacity failure.
	full := seedEvent(t, db, withCapacity(1))
	if _, err := engine.Register(context.Background(), full.ID, 1, nil); err != nil {
		t.Fatalf("register on capacity-1 event failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), full.ID, 1, nil); !errors.Is(err, ErrDuplicateRegistration) {
		t.Errorf("expected ErrDuplicateRegistration on a full event, got %v", err)
	}
	// A genuinely new user gets the capacity verdict.
	if _, err := engine.Register(context.Background(), full.ID, 2, nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded for a new user, got %v", err)
	}
}

func TestRegistrationRollsBackWhenAnswersFail(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1))

	if err := db.Migrator().DropTable(&models.RegistrationAnswer{}); err != nil {
		t.Fatalf("drop answers table: %v", err)
	}

	answers := []AnswerInput{{Question: "dietary", Value: []byte(`"none"`)}}
	if _, err := engine.Register(context.Background(), event.ID, 1, answers); err == nil {
		t.Fatal("expected register to fail when answers cannot be saved")
	}

	// The seat must not be held by the failed registration.
	count, err := engine.CountInCountingStates(event.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("failed registration must not hold a seat, got %d", count)
	}

	// After recovery the same user can register again.
	if err := db.AutoMigrate(&models.RegistrationAnswer{}); err != nil {
		t.Fatalf("recreate answers table: %v", err)
	}
	if _, err := engine.Register(context.Background(), event.ID, 1, answers); err != nil {
		t.Fatalf("retry after recovery failed: %v", err)
	}
}

func TestRegistrationCapacityGuard(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1))

	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), event.ID, 2, nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestWaitlistedDoesNotHoldASeat(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1))

	resultA, err := engine.Register(context.Background(), event.ID, 1, nil)
	if err != nil {
		t.Fatalf("register A failed: %v", err)
	}
	if _, err := engine.Waitlist(resultA.Record.ID); err != nil {
		t.Fatalf("waitlist failed: %v", err)
	}

	// A's seat is back in the pool.
	if _, err := engine.Register(context.Background(), event.ID, 2, nil); err != nil {
		t.Fatalf("register B after waitlist failed: %v", err)
	}

	count, err := engine.CountInCountingStates(event.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 counting record, got %d", count)
	}
}

func TestApprovalCapacityGuard(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1))

	resultA, err := engine.Register(context.Background(), event.ID, 1, nil)
	if err != nil {
		t.Fatalf("register A failed: %v", err)
	}

	spotsLeft, _ := engine.SpotsLeft(event)
	if spotsLeft == nil || *spotsLeft != 0 {
		t.Errorf("pending must count against capacity, got %v spots left", spotsLeft)
	}

	if _, err := engine.Register(context.Background(), event.ID, 2, nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded for B, got %v", err)
	}

	if _, err := engine.Approve(resultA.Record.ID); err != nil {
		t.Fatalf("approve A failed: %v", err)
	}

	// A second pending record (however it got there) cannot be approved
	// past capacity; the admin has to waitlist it.
	stray := seedParticipant(t, db, event.ID, 3, models.StatusPending)
	if _, err := engine.Approve(stray.ID); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded approving past capacity, got %v", err)
	}
	if _, err := engine.Waitlist(stray.ID); err != nil {
		t.Errorf("waitlisting the stray record should work: %v", err)
	}
}

func TestApproveTransitionRules(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	if _, err := engine.Approve(9999); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	record := seedParticipant(t, db, event.ID, 1, models.StatusRejected)
	if _, err := engine.Approve(record.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from rejected, got %v", err)
	}

	waitlisted := seedParticipant(t, db, event.ID, 2, models.StatusWaitlisted)
	updated, err := engine.Approve(waitlisted.ID)
	if err != nil {
		t.Fatalf("approve from waitlist failed: %v", err)
	}
	if updated.Status != models.StatusApproved {
		t.Errorf("expected approved, got %s", updated.Status)
	}
}

func TestConcurrentRegistrationsNeverOversell(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	capacity := 5
	event := seedEvent(t, db, withCapacity(capacity))

	numRequests := 20
	var successCount, fullCount, errorCount int32

	var wg sync.WaitGroup
	wg.Add(numRequests)
	for i := 0; i < numRequests; i++ {
		go func(userID int) {
			defer wg.Done()
			_, err := engine.Register(context.Background(), event.ID, uint(userID+1), nil)
			switch {
			case err == nil:
				atomic.AddInt32(&successCount, 1)
			case errors.Is(err, ErrCapacityExceeded):
				atomic.AddInt32(&fullCount, 1)
			default:
				t.Logf("unexpected error for user %d: %v", userID+1, err)
				atomic.AddInt32(&errorCount, 1)
			}
		}(i)
	}
	wg.Wait()

	if successCount != int32(capacity) {
		t.Errorf("expected exactly %d successes, got %d", capacity, successCount)
	}
	if fullCount != int32(numRequests-capacity) {
		t.Errorf("expected %d capacity rejections, got %d", numRequests-capacity, fullCount)
	}
	if errorCount != 0 {
		t.Errorf("expected 0 unexpected errors, got %d", errorCount)
	}

	count, err := engine.CountInCountingStates(event.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != int64(capacity) {
		t.Errorf("expected %d counting records in db, got %d", capacity, count)
	}
}

func TestConcurrentApprovalsNeverExceedCapacity(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(2))

	// Waitlisted records do not hold seats, so five of them can coexist
	// with capacity 2; only two may win approval.
	var ids []uint
	for i := 1; i <= 5; i++ {
		record := seedParticipant(t, db, event.ID, uint(i), models.StatusWaitlisted)
		ids = append(ids, record.ID)
	}

	var approvedCount, fullCount int32
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(recordID uint) {
			defer wg.Done()
			_, err := engine.Approve(recordID)
			switch {
			case err == nil:
				atomic.AddInt32(&approvedCount, 1)
			case errors.Is(err, ErrCapacityExceeded):
				atomic.AddInt32(&fullCount, 1)
			default:
				t.Errorf("unexpected approve error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if approvedCount != 2 {
		t.Errorf("expected exactly 2 approvals, got %d", approvedCount)
	}
	if fullCount != 3 {
		t.Errorf("expected 3 capacity rejections, got %d", fullCount)
	}

	finalApproved, err := engine.CountApproved(event.ID)
	if err != nil {
		t.Fatalf("count approved: %v", err)
	}
	if finalApproved != 2 {
		t.Errorf("approved count in db is %d, capacity is 2", finalApproved)
	}
}

func TestPaidRegistrationLifecycle(t *testing.T) {
	db, engine, payments := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5), paid(2000))

	result, err := engine.Register(context.Background(), event.ID, 1, nil)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.Record.Status != models.StatusPendingPayment {
		t.Errorf("expected pending_payment, got %s", result.Record.Status)
	}
	if result.CheckoutURL == "" {
		t.Error("paid registration must return a checkout URL")
	}
	if result.Record.CheckoutRef == nil {
		t.Fatal("checkout ref must be stored")
	}

	if err := engine.ConfirmPayment(event.ID, 1); err != nil {
		t.Fatalf("confirm payment failed: %v", err)
	}
	record, err := engine.Get(event.ID, 1)
	if err != nil || record == nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != models.StatusPending {
		t.Errorf("expected pending after capture, got %s", record.Status)
	}
	if record.PaidAt == nil {
		t.Error("paid_at must be set after capture")
	}

	updated, err := engine.Reject(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if updated.Status != models.StatusRejected {
		t.Errorf("expected rejected, got %s", updated.Status)
	}
	if updated.RefundedAt == nil {
		t.Error("refunded_at must be set on a paid rejection")
	}
	if payments.refundCount() != 1 {
		t.Errorf("expected exactly 1 refund call, got %d", payments.refundCount())
	}
}

func TestRejectFailsClosedWhenRefundFails(t *testing.T) {
	db, engine, payments := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5), paid(2000))

	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := engine.ConfirmPayment(event.ID, 1); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	record, _ := engine.Get(event.ID, 1)

	payments.failRefund = true
	if _, err := engine.Reject(context.Background(), record.ID); !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected ErrRefundFailed, got %v", err)
	}

	// The status write must have rolled back; no rejected-but-unrefunded
	// state is ever visible.
	reloaded, _ := engine.Get(event.ID, 1)
	if reloaded.Status != models.StatusPending {
		t.Errorf("expected record to stay pending, got %s", reloaded.Status)
	}
	if reloaded.RefundedAt != nil {
		t.Error("refunded_at must not be set after a failed refund")
	}

	// Retrying after the processor recovers completes the rejection.
	payments.failRefund = false
	updated, err := engine.Reject(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("retried reject failed: %v", err)
	}
	if updated.Status != models.StatusRejected || updated.RefundedAt == nil {
		t.Errorf("expected rejected+refunded, got %s (refundedAt %v)", updated.Status, updated.RefundedAt)
	}
}

func TestRejectFreeRecordSkipsRefund(t *testing.T) {
	db, engine, payments := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	result, err := engine.Register(context.Background(), event.ID, 1, nil)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := engine.Reject(context.Background(), result.Record.ID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if payments.refundCount() != 0 {
		t.Errorf("free rejection must not refund, got %d calls", payments.refundCount())
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5), paid(1500))

	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := engine.ConfirmPayment(event.ID, 1); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := engine.ConfirmPayment(event.ID, 1); err != nil {
		t.Fatalf("duplicate delivery must be a no-op, got %v", err)
	}

	record, _ := engine.Get(event.ID, 1)
	if record.Status != models.StatusPending {
		t.Errorf("expected pending after duplicate delivery, got %s", record.Status)
	}

	// A late duplicate after approval must not regress the status.
	if _, err := engine.Approve(record.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := engine.ConfirmPayment(event.ID, 1); err != nil {
		t.Fatalf("late duplicate delivery failed: %v", err)
	}
	record, _ = engine.Get(event.ID, 1)
	if record.Status != models.StatusApproved {
		t.Errorf("late duplicate must not change status, got %s", record.Status)
	}

	// A confirmation with no matching record is logged and swallowed.
	if err := engine.ConfirmPayment(event.ID, 42); err != nil {
		t.Errorf("unknown confirmation must be a no-op, got %v", err)
	}
}

func TestAbandonedCheckoutReleasesSeat(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1), paid(1000))

	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("register A failed: %v", err)
	}
	if _, err := engine.Register(context.Background(), event.ID, 2, nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded for B, got %v", err)
	}

	if err := engine.AbandonPayment(event.ID, 1); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}
	// Idempotent.
	if err := engine.AbandonPayment(event.ID, 1); err != nil {
		t.Fatalf("second abandon must be a no-op, got %v", err)
	}

	if _, err := engine.Register(context.Background(), event.ID, 2, nil); err != nil {
		t.Fatalf("register B after abandon failed: %v", err)
	}
}

func TestFailedCheckoutReleasesSeat(t *testing.T) {
	db, engine, payments := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1), paid(1000))

	payments.failCheckout = true
	if _, err := engine.Register(context.Background(), event.ID, 1, nil); !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}

	count, err := engine.CountInCountingStates(event.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("failed checkout must not hold a seat, got %d", count)
	}

	payments.failCheckout = false
	if _, err := engine.Register(context.Background(), event.ID, 1, nil); err != nil {
		t.Fatalf("retry after gateway recovery failed: %v", err)
	}
}

func TestInitiateCheckoutRejectsFreeEvents(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	if _, err := engine.InitiateCheckout(context.Background(), event, 1, nil); !errors.Is(err, ErrEventIsFree) {
		t.Errorf("expected ErrEventIsFree, got %v", err)
	}
}

func TestReopenOverride(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(1))

	rejected := seedParticipant(t, db, event.ID, 1, models.StatusRejected)
	updated, err := engine.Reopen(rejected.ID, models.StatusPending)
	if err != nil {
		t.Fatalf("reopen to pending failed: %v", err)
	}
	if updated.Status != models.StatusPending {
		t.Errorf("expected pending, got %s", updated.Status)
	}

	// Reopening into approved still honors capacity.
	seedParticipant(t, db, event.ID, 2, models.StatusApproved)
	if _, err := engine.Reopen(updated.ID, models.StatusApproved); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded, got %v", err)
	}

	// Terminal states are not valid reopen targets.
	if _, err := engine.Reopen(updated.ID, models.StatusRejected); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for rejected target, got %v", err)
	}
}

func TestUnlimitedCapacityEvents(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, unlimited())

	for i := 1; i <= 25; i++ {
		if _, err := engine.Register(context.Background(), event.ID, uint(i), nil); err != nil {
			t.Fatalf("register user %d failed: %v", i, err)
		}
	}

	spotsLeft, err := engine.SpotsLeft(event)
	if err != nil {
		t.Fatalf("spots left: %v", err)
	}
	if spotsLeft != nil {
		t.Errorf("unlimited event must report nil spots left, got %d", *spotsLeft)
	}
}

func TestWaitlistOnlyFromPending(t *testing.T) {
	db, engine, _ := newTestEngine(t)
	event := seedEvent(t, db, withCapacity(5))

	approved := seedParticipant(t, db, event.ID, 1, models.StatusApproved)
	if _, err := engine.Waitlist(approved.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition waitlisting approved, got %v", err)
	}
}
