package appointment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
	redisclient "github.com/hackgods/attorney-scheduling/internal/redis"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

var (
	// Sunday noon
	testNow       = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	nextWednesday = schedule.NewDate(2026, time.October, 21)
)

func slotAt(hhmm string) time.Time {
	return nextWednesday.At(schedule.MustTime(hhmm), time.UTC)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []outbox.Event
	err    error
}

func (r *captureRecorder) Record(_ context.Context, evt outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *captureRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *MemoryStore
	events   *captureRecorder
	attorney uuid.UUID
}

// newFixture builds the Wednesday schedule used throughout: 09:00 and 10:00
// recurring, with 09:00 removed and 14:00 added on nextWednesday.
func newFixture(t *testing.T, store Store) fixture {
	t.Helper()
	ctx := context.Background()
	attorney := uuid.New()

	schedules := schedule.NewMemoryRepository()
	if err := schedules.ReplaceWeekday(ctx, attorney, schedule.Wednesday, []schedule.TimeOfDay{schedule.MustTime("09:00"), schedule.MustTime("10:00")}); err != nil {
		t.Fatal(err)
	}
	exc, err := schedule.NewDateException(nextWednesday, []schedule.TimeOfDay{schedule.MustTime("09:00")}, []schedule.TimeOfDay{schedule.MustTime("14:00")}, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := schedules.UpsertException(ctx, attorney, exc); err != nil {
		t.Fatal(err)
	}

	events := &captureRecorder{}
	mem := NewMemoryStore(events)
	if store == nil {
		store = mem
	}
	svc := NewService(store, schedules, redisclient.NewLocalLocker(), ServiceConfig{Location: time.UTC}, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return fixture{svc: svc, store: mem, events: events, attorney: attorney}
}

func (f fixture) book(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), BookRequest{
		AttorneyID:  f.attorney,
		ClientID:    uuid.New(),
		ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("book %s: %v", at, err)
	}
	return appt
}

func TestBook_CreatesPendingAppointment(t *testing.T) {
	f := newFixture(t, nil)
	client := uuid.New()

	appt, err := f.svc.Book(context.Background(), BookRequest{
		AttorneyID:  f.attorney,
		ClientID:    client,
		ScheduledAt: slotAt("10:00"),
		Notes:       "contract review",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != StatusPending {
		t.Errorf("status = %s, want pending", appt.Status)
	}
	if appt.ClientID != client || appt.Notes != "contract review" {
		t.Errorf("unexpected appointment: %+v", appt)
	}
	if appt.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if got := f.events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentBooked {
		t.Errorf("events = %v", got)
	}
}

func TestBook_AcceptsOffsetInstants(t *testing.T) {
	f := newFixture(t, nil)

	// 14:00 UTC written with a -04:00 offset.
	at := time.Date(2026, time.October, 21, 10, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	appt := f.book(t, at)
	if !appt.ScheduledAt.Equal(slotAt("14:00")) {
		t.Fatalf("scheduledAt = %s", appt.ScheduledAt)
	}
}

func TestBook_SecondBookingConflicts(t *testing.T) {
	f := newFixture(t, nil)
	f.book(t, slotAt("10:00"))

	_, err := f.svc.Book(context.Background(), BookRequest{
		AttorneyID:  f.attorney,
		ClientID:    uuid.New(),
		ScheduledAt: slotAt("10:00"),
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestBook_CancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t, nil)
	first := f.book(t, slotAt("10:00"))

	if _, err := f.svc.Transition(context.Background(), first.ID, StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	second := f.book(t, slotAt("10:00"))
	if second.ID == first.ID {
		t.Fatal("expected a new appointment")
	}
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t, nil)
	yesterday := testNow.Add(-24 * time.Hour).Truncate(time.Hour)

	tests := []struct {
		name  string
		req   BookRequest
		field string
	}{
		{"yesterday", BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: yesterday}, "scheduledAt"},
		{"now", BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: testNow}, "scheduledAt"},
		{"missing time", BookRequest{AttorneyID: f.attorney, ClientID: uuid.New()}, "scheduledAt"},
		{"sub-minute", BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: slotAt("10:00").Add(30 * time.Second)}, "scheduledAt"},
		{"no attorney", BookRequest{ClientID: uuid.New(), ScheduledAt: slotAt("10:00")}, "attorneyId"},
		{"no client", BookRequest{AttorneyID: f.attorney, ScheduledAt: slotAt("10:00")}, "clientId"},
		{"long notes", BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: slotAt("10:00"), Notes: strings.Repeat("x", MaxNotesLength+1)}, "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tt.req)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if d, _ := apperr.Detail(err); d.Field != tt.field {
				t.Fatalf("field = %q, want %q", d.Field, tt.field)
			}
		})
	}

	if got, _ := f.store.ListByAttorney(context.Background(), f.attorney, time.Time{}, slotAt("23:59")); len(got) != 0 {
		t.Fatalf("validation failures must not persist anything, found %d", len(got))
	}
}

func TestBook_SlotUnavailable(t *testing.T) {
	f := newFixture(t, nil)

	for _, at := range []time.Time{
		slotAt("09:00"), // removed by the exception
		slotAt("11:00"), // never offered
		nextWednesday.AddDays(1).At(schedule.MustTime("10:00"), time.UTC),
	} {
		_, err := f.svc.Book(context.Background(), BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: at})
		if !errors.Is(err, apperr.ErrSlotUnavailable) {
			t.Errorf("%s: expected slot unavailable, got %v", at, err)
		}
	}
}

func TestBook_ConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t, nil)
	const callers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Book(context.Background(), BookRequest{
				AttorneyID:  f.attorney,
				ClientID:    uuid.New(),
				ScheduledAt: slotAt("14:00"),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 || conflicts != callers-1 || len(others) != 0 {
		t.Fatalf("successes=%d conflicts=%d others=%v", successes, conflicts, others)
	}
}

// blindStore skips the fast-path check so the unique constraint is what
// rejects the second insert.
type blindStore struct{ *MemoryStore }

func (blindStore) FindConflicting(context.Context, uuid.UUID, time.Time) (*Appointment, error) {
	return nil, nil
}

func TestBook_StoreConstraintIsFinalArbiter(t *testing.T) {
	f := newFixture(t, blindStore{NewMemoryStore(nil)})
	f.book(t, slotAt("10:00"))

	_, err := f.svc.Book(context.Background(), BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: slotAt("10:00")})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict from store, got %v", err)
	}
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, uuid.UUID, time.Time, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestBook_HeldLockIsConflict(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.locker = busyLocker{}

	_, err := f.svc.Book(context.Background(), BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: slotAt("10:00")})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !errors.Is(err, redisclient.ErrLockNotAcquired) {
		t.Fatalf("expected lock error as cause, got %v", err)
	}
}

func TestBook_EventFailureRollsBackBooking(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	outboxDown := errors.New("outbox down")
	f.events.err = outboxDown

	_, err := f.svc.Book(ctx, BookRequest{AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: slotAt("10:00")})
	if !errors.Is(err, outboxDown) {
		t.Fatalf("expected outbox error, got %v", err)
	}
	if got, _ := f.store.ListByAttorney(ctx, f.attorney, time.Time{}, slotAt("23:59")); len(got) != 0 {
		t.Fatalf("booking stored without its event: %+v", got)
	}

	// The slot is still free once events can be recorded again.
	f.events.err = nil
	f.book(t, slotAt("10:00"))
	if got := f.events.types(); len(got) != 1 || got[0] != outbox.EventAppointmentBooked {
		t.Fatalf("events = %v", got)
	}
}

func TestTransition_EventFailureKeepsStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, slotAt("10:00"))
	f.events.err = errors.New("outbox down")

	if _, err := f.svc.Transition(ctx, appt.ID, StatusConfirmed); err == nil {
		t.Fatal("expected error")
	}
	stored, err := f.store.GetByID(ctx, appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != StatusPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
	if got := f.events.types(); len(got) != 1 {
		t.Fatalf("events = %v, want only the booking", got)
	}
}

func TestBook_FallBackSlotBooksOnlyItsResolvedInstant(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ctx := context.Background()
	attorney := uuid.New()
	fallBack := schedule.NewDate(2026, time.November, 1)
	slot := schedule.MustTime("01:30")

	schedules := schedule.NewMemoryRepository()
	if err := schedules.ReplaceWeekday(ctx, attorney, schedule.Sunday, []schedule.TimeOfDay{slot}); err != nil {
		t.Fatal(err)
	}
	svc := NewService(NewMemoryStore(nil), schedules, redisclient.NewLocalLocker(), ServiceConfig{Location: ny}, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	// 01:30 happens twice; the other occurrence is an hour either side.
	canonical := fallBack.At(slot, ny)
	other := canonical.Add(time.Hour)
	if l := canonical.Add(-time.Hour).In(ny); l.Hour() == 1 && l.Minute() == 30 {
		other = canonical.Add(-time.Hour)
	}
	if l := other.In(ny); l.Hour() != 1 || l.Minute() != 30 {
		t.Fatalf("no second 01:30 around %s", canonical)
	}

	_, err = svc.Book(ctx, BookRequest{AttorneyID: attorney, ClientID: uuid.New(), ScheduledAt: other})
	if !errors.Is(err, apperr.ErrSlotUnavailable) {
		t.Fatalf("repeated 01:30: expected slot unavailable, got %v", err)
	}
	if _, err := svc.Book(ctx, BookRequest{AttorneyID: attorney, ClientID: uuid.New(), ScheduledAt: canonical}); err != nil {
		t.Fatalf("resolved 01:30: %v", err)
	}
}

var allStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

func TestTransition_StateMachineClosure(t *testing.T) {
	allowed := map[[2]AppointmentStatus]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusConfirmed, StatusCompleted}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t, nil)
				ctx := context.Background()
				seeded, err := f.store.Insert(ctx, &Appointment{
					ID:          uuid.New(),
					AttorneyID:  f.attorney,
					ClientID:    uuid.New(),
					ScheduledAt: testNow.Add(-2 * time.Hour),
					Status:      from,
				}, nil)
				if err != nil {
					t.Fatal(err)
				}

				got, err := f.svc.Transition(ctx, seeded.ID, to)
				if allowed[[2]AppointmentStatus{from, to}] {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
					if got.Status != to {
						t.Fatalf("status = %s, want %s", got.Status, to)
					}
					return
				}

				if !errors.Is(err, apperr.ErrInvalidTransition) {
					t.Fatalf("expected invalid transition, got %v", err)
				}
				stored, _ := f.store.GetByID(ctx, seeded.ID)
				if stored.Status != from {
					t.Fatalf("stored status changed to %s", stored.Status)
				}
				if len(f.events.types()) != 0 {
					t.Fatalf("rejected transition recorded events: %v", f.events.types())
				}
			})
		}
	}
}

func TestTransition_CannotCompleteFutureAppointment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	appt := f.book(t, slotAt("10:00"))
	if _, err := f.svc.Transition(ctx, appt.ID, StatusConfirmed); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Transition(ctx, appt.ID, StatusCompleted)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	f.svc.now = func() time.Time { return slotAt("10:00") }
	done, err := f.svc.Transition(ctx, appt.ID, StatusCompleted)
	if err != nil {
		t.Fatalf("completion at the scheduled time should succeed: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}
}

func TestTransition_UnknownID(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Transition(context.Background(), uuid.New(), StatusConfirmed)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// flakyStore reports a stale status for the first stale calls to
// UpdateStatus. When interfere is set, it first applies that status so the
// retry sees a real concurrent change.
type flakyStore struct {
	*MemoryStore
	stale     int
	interfere AppointmentStatus
	updates   int
}

func (s *flakyStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, evt *outbox.Event) (*Appointment, error) {
	s.updates++
	if s.stale > 0 {
		s.stale--
		if s.interfere != "" {
			if _, err := s.MemoryStore.UpdateStatus(ctx, id, expected, s.interfere, nil); err != nil {
				return nil, err
			}
		}
		return nil, apperr.StaleState("status", string(expected), "appointment status changed")
	}
	return s.MemoryStore.UpdateStatus(ctx, id, expected, next, evt)
}

func seedPending(t *testing.T, store *MemoryStore, attorney uuid.UUID) *Appointment {
	t.Helper()
	appt, err := store.Insert(context.Background(), &Appointment{
		ID:          uuid.New(),
		AttorneyID:  attorney,
		ClientID:    uuid.New(),
		ScheduledAt: slotAt("10:00"),
		Status:      StatusPending,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return appt
}

func TestTransition_RetriesStaleOnce(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(nil), stale: 1}
	f := newFixture(t, store)
	appt := seedPending(t, store.MemoryStore, f.attorney)

	got, err := f.svc.Transition(context.Background(), appt.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("status = %s", got.Status)
	}
	if store.updates != 2 {
		t.Fatalf("UpdateStatus calls = %d, want 2", store.updates)
	}
}

func TestTransition_GivesUpAfterOneRetry(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(nil), stale: 5}
	f := newFixture(t, store)
	appt := seedPending(t, store.MemoryStore, f.attorney)

	_, err := f.svc.Transition(context.Background(), appt.ID, StatusConfirmed)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %s", apperr.KindOf(err))
	}
	if store.updates != 2 {
		t.Fatalf("UpdateStatus calls = %d, want 2", store.updates)
	}
	stored, _ := store.GetByID(context.Background(), appt.ID)
	if stored.Status != StatusPending {
		t.Fatalf("stored status = %s", stored.Status)
	}
}

func TestTransition_RetryRevalidatesFreshStatus(t *testing.T) {
	store := &flakyStore{MemoryStore: NewMemoryStore(nil), stale: 1, interfere: StatusCancelled}
	f := newFixture(t, store)
	appt := seedPending(t, store.MemoryStore, f.attorney)

	_, err := f.svc.Transition(context.Background(), appt.ID, StatusConfirmed)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from cancelled, got %v", err)
	}
	if store.updates != 1 {
		t.Fatalf("UpdateStatus calls = %d, want 1", store.updates)
	}
}

func TestTransition_RecordsEvent(t *testing.T) {
	f := newFixture(t, nil)
	appt := f.book(t, slotAt("10:00"))

	if _, err := f.svc.Transition(context.Background(), appt.ID, StatusConfirmed); err != nil {
		t.Fatal(err)
	}
	want := []string{outbox.EventAppointmentBooked, outbox.EventAppointmentStatusChanged}
	got := f.events.types()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestCompleteElapsed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	seed := func(at time.Time, status AppointmentStatus) uuid.UUID {
		a, err := f.store.Insert(ctx, &Appointment{ID: uuid.New(), AttorneyID: f.attorney, ClientID: uuid.New(), ScheduledAt: at, Status: status}, nil)
		if err != nil {
			t.Fatal(err)
		}
		return a.ID
	}
	elapsed := seed(testNow.Add(-3*time.Hour), StatusConfirmed)
	recent := seed(testNow.Add(-30*time.Minute), StatusConfirmed)
	pending := seed(testNow.Add(-4*time.Hour), StatusPending)

	n, err := f.svc.CompleteElapsed(ctx, time.Hour, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("completed %d, want 1", n)
	}

	for id, want := range map[uuid.UUID]AppointmentStatus{
		elapsed: StatusCompleted,
		recent:  StatusConfirmed,
		pending: StatusPending,
	} {
		got, _ := f.store.GetByID(ctx, id)
		if got.Status != want {
			t.Errorf("%s: status = %s, want %s", id, got.Status, want)
		}
	}
}

func TestListByAttorney_DateWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.book(t, slotAt("10:00"))
	f.book(t, slotAt("14:00"))

	got, err := f.svc.ListByAttorney(ctx, f.attorney, nextWednesday, nextWednesday)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].ScheduledAt.Before(got[1].ScheduledAt) {
		t.Fatalf("expected two appointments in order, got %+v", got)
	}

	got, err = f.svc.ListByAttorney(ctx, f.attorney, nextWednesday.AddDays(1), nextWednesday.AddDays(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected none, got %d", len(got))
	}

	if _, err := f.svc.ListByAttorney(ctx, f.attorney, nextWednesday, nextWednesday.AddDays(-1)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for reversed range, got %v", err)
	}
	if _, err := f.svc.ListByClient(ctx, uuid.New(), nextWednesday, nextWednesday.AddDays(MaxListDays)); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for long range, got %v", err)
	}
}
