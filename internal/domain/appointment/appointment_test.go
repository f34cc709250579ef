package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransitionTo(t *testing.T) {
	all := []AppointmentStatus{
		StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow,
	}

	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusScheduled:  {StatusConfirmed, StatusCancelled},
		StatusConfirmed:  {StatusInProgress, StatusNoShow, StatusCancelled},
		StatusInProgress: {StatusCompleted},
	}

	for _, from := range all {
		for _, to := range all {
			a := &Appointment{Status: from}
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			if got := a.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, from := range []AppointmentStatus{StatusCompleted, StatusCancelled, StatusNoShow} {
		a := &Appointment{Status: from}
		if !a.IsTerminal() {
			t.Errorf("%s not reported terminal", from)
		}
		err := a.Transition(StatusScheduled, uuid.New(), "")
		if !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("transition out of %s: got %v, want ErrInvalidStatusTransition", from, err)
		}
		if a.Status != from {
			t.Errorf("failed transition mutated status to %s", a.Status)
		}
	}
}

func TestTransitionCancelRecordsWhoAndWhy(t *testing.T) {
	a := &Appointment{Status: StatusConfirmed}
	by := uuid.New()

	if err := a.Transition(StatusCancelled, by, "patient request"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if a.Status != StatusCancelled {
		t.Errorf("status = %s", a.Status)
	}
	if a.CancelledAt == nil {
		t.Error("cancelled_at not stamped")
	}
	if a.CancelledBy == nil || *a.CancelledBy != by {
		t.Error("cancelled_by not recorded")
	}
	if a.CancellationReason != "patient request" {
		t.Errorf("reason = %q", a.CancellationReason)
	}
}

func TestTransitionCompleteStampsTime(t *testing.T) {
	a := &Appointment{Status: StatusInProgress}
	if err := a.Transition(StatusCompleted, uuid.New(), ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if a.CompletedAt == nil {
		t.Error("completed_at not stamped")
	}
	if a.CancelledAt != nil {
		t.Error("completion stamped cancellation fields")
	}
}

func TestEndsAt(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	a := &Appointment{ScheduledAt: start, DurationMins: 45}
	if got, want := a.EndsAt(), start.Add(45*time.Minute); !got.Equal(want) {
		t.Errorf("EndsAt = %v, want %v", got, want)
	}
}
