package rules

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
)

func seedEvent(t *testing.T, f *fakeEvents, eventType, entityID, actor string, p model.Payload, age time.Duration) {
	t.Helper()
	ev := model.Event{
		Type:      eventType,
		Entity:    "meeting",
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC().Add(-age),
		Payload:   p,
	}
	if _, err := f.Save(context.Background(), &ev); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func alertsByTitle(f *fakeEvents, title string) []*model.EventRecord {
	var out []*model.EventRecord
	for _, r := range f.saved {
		if r.Event.Type != "alert.created" {
			continue
		}
		if ap, ok := r.Event.Payload.(model.AlertPayload); ok && ap.Title == title {
			out = append(out, r)
		}
	}
	return out
}

func TestIdleOwnerCheckEmitsOnce(t *testing.T) {
	f := &fakeEvents{}
	w := NewWatchdog(f, NewEngine(f, zerolog.Nop()), 7, zerolog.Nop())

	// owner 7 only chatted; owner 8 held a meeting
	seedEvent(t, f, "chat.post", "c1", "user_7", model.DomainPayload{Message: "hi"}, time.Hour)
	seedEvent(t, f, "meeting.completed", "m1", "user_8", model.DomainPayload{Agenda: "notes"}, time.Hour)

	w.RunChecks(context.Background())

	alerts := alertsByTitle(f, "No meetings this week")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 idle-owner alert, got %d", len(alerts))
	}
	ap := alerts[0].Event.Payload.(model.AlertPayload)
	dp, ok := ap.Data.(model.DomainPayload)
	if !ok || dp.Fields["owner"] != "7" {
		t.Fatalf("alert should identify owner 7: %#v", ap.Data)
	}

	// the same condition on the next run must be suppressed
	w.RunChecks(context.Background())
	if got := alertsByTitle(f, "No meetings this week"); len(got) != 1 {
		t.Fatalf("repeat run emitted duplicates: %d", len(got))
	}
}

func TestIdleOwnerCheckIgnoresSystemAndAnonymous(t *testing.T) {
	f := &fakeEvents{}
	w := NewWatchdog(f, NewEngine(f, zerolog.Nop()), 7, zerolog.Nop())

	seedEvent(t, f, "kpi.updated", "k1", "system", model.DomainPayload{}, time.Hour)
	seedEvent(t, f, "chat.post", "c1", "anonymous", model.DomainPayload{}, time.Hour)

	w.RunChecks(context.Background())
	if got := alertsByTitle(f, "No meetings this week"); len(got) != 0 {
		t.Fatalf("system and anonymous activity must not alert: %d", len(got))
	}
}

func TestUnstartedMeetingCheck(t *testing.T) {
	f := &fakeEvents{}
	w := NewWatchdog(f, NewEngine(f, zerolog.Nop()), 7, zerolog.Nop())

	past := time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
	future := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)

	// overdue and untouched
	seedEvent(t, f, "meeting.created", "m1", "user_7", model.DomainPayload{
		Status: "scheduled", Fields: map[string]string{"scheduled_time": past},
	}, 3*time.Hour)
	// overdue but started
	seedEvent(t, f, "meeting.created", "m2", "user_7", model.DomainPayload{
		Status: "scheduled", Fields: map[string]string{"scheduled_time": past},
	}, 3*time.Hour)
	seedEvent(t, f, "meeting.started", "m2", "user_7", model.DomainPayload{}, time.Hour)
	// not yet due
	seedEvent(t, f, "meeting.created", "m3", "user_7", model.DomainPayload{
		Status: "scheduled", Fields: map[string]string{"scheduled_time": future},
	}, time.Hour)
	// keeps the owner out of the idle check
	seedEvent(t, f, "meeting.completed", "m0", "user_7", model.DomainPayload{Agenda: "notes"}, time.Hour)

	w.RunChecks(context.Background())

	alerts := alertsByTitle(f, "Meeting not started on time")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 unstarted-meeting alert, got %d", len(alerts))
	}
	ap := alerts[0].Event.Payload.(model.AlertPayload)
	if ap.Severity != model.SeverityCritical {
		t.Fatalf("unexpected severity: %s", ap.Severity)
	}

	w.RunChecks(context.Background())
	if got := alertsByTitle(f, "Meeting not started on time"); len(got) != 1 {
		t.Fatalf("repeat run emitted duplicates: %d", len(got))
	}
}

func TestWatchdogRejectsBadSchedule(t *testing.T) {
	f := &fakeEvents{}
	w := NewWatchdog(f, NewEngine(f, zerolog.Nop()), 7, zerolog.Nop())
	if err := w.Start("not a schedule"); err == nil {
		t.Fatal("expected schedule parse error")
	}
}
