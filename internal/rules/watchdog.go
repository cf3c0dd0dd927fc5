package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/store"
)

// Watchdog runs the scheduled rule class: checks that scan the recent log
// on a cron cadence instead of reacting to single events. Because the same
// condition is observed on every run, each check deduplicates against
// alerts already emitted for the same subject and window.
type Watchdog struct {
	events store.Events
	engine *Engine
	window time.Duration
	cron   *cron.Cron
	log    zerolog.Logger
}

// NewWatchdog builds a Watchdog with the given lookback window in days.
func NewWatchdog(events store.Events, engine *Engine, windowDays int, log zerolog.Logger) *Watchdog {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Watchdog{
		events: events,
		engine: engine,
		window: time.Duration(windowDays) * 24 * time.Hour,
		cron:   cron.New(),
		log:    log,
	}
}

// Start schedules RunChecks on the given cron expression.
func (w *Watchdog) Start(schedule string) error {
	_, err := w.cron.AddFunc(schedule, func() {
		w.RunChecks(context.Background())
	})
	if err != nil {
		return fmt.Errorf("watchdog schedule %q: %w", schedule, err)
	}
	w.cron.Start()
	w.log.Info().Str("schedule", schedule).Msg("watchdog started")
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (w *Watchdog) Stop() {
	<-w.cron.Stop().Done()
}

// RunChecks executes every scheduled check once. Check failures are logged
// and do not stop sibling checks.
func (w *Watchdog) RunChecks(ctx context.Context) {
	if err := w.checkIdleOwners(ctx); err != nil {
		w.log.Error().Err(err).Msg("idle-owner check failed")
	}
	if err := w.checkUnstartedMeetings(ctx); err != nil {
		w.log.Error().Err(err).Msg("unstarted-meeting check failed")
	}
}

const idleOwnerTitle = "No meetings this week"

// checkIdleOwners alerts for owners active in the window without a single
// meeting event.
func (w *Watchdog) checkIdleOwners(ctx context.Context) error {
	since := time.Now().UTC().Add(-w.window)
	recs, err := w.events.ListSince(ctx, since)
	if err != nil {
		return err
	}

	seen := map[int64]bool{}
	hasMeeting := map[int64]bool{}
	for _, r := range recs {
		if r.OwnerID == nil || *r.OwnerID == 0 {
			continue
		}
		seen[*r.OwnerID] = true
		if strings.HasPrefix(r.Event.Type, "meeting.") {
			hasMeeting[*r.OwnerID] = true
		}
	}

	for owner := range seen {
		if hasMeeting[owner] {
			continue
		}
		needle := fmt.Sprintf(`"owner":"%d"`, owner)
		n, err := w.events.CountAlertsSince(ctx, idleOwnerTitle, needle, since)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		alert := model.NewAlert(
			model.SeverityWarning,
			idleOwnerTitle,
			fmt.Sprintf("Owner %d had no meeting activity in the last %d days.", owner, int(w.window.Hours()/24)),
			"",
			model.DomainPayload{Fields: map[string]string{"owner": strconv.FormatInt(owner, 10)}},
		)
		if err := w.engine.Emit(ctx, alert); err != nil {
			w.log.Error().Err(err).Int64("owner", owner).Msg("idle-owner alert emission failed")
		}
	}
	return nil
}

const unstartedMeetingTitle = "Meeting not started on time"

// checkUnstartedMeetings alerts for meetings whose scheduled time has passed
// without a completion, start, or cancellation in the log.
func (w *Watchdog) checkUnstartedMeetings(ctx context.Context) error {
	since := time.Now().UTC().Add(-w.window)
	recs, err := w.events.ListSince(ctx, since)
	if err != nil {
		return err
	}

	progressed := map[string]bool{}
	for _, r := range recs {
		switch r.Event.Type {
		case "meeting.started", "meeting.completed", "meeting.cancelled":
			progressed[r.Event.EntityID] = true
		}
	}

	now := time.Now().UTC()
	for _, r := range recs {
		if r.Event.Type != "meeting.created" || progressed[r.Event.EntityID] {
			continue
		}
		p, ok := r.Event.Payload.(model.DomainPayload)
		if !ok || p.Status != "scheduled" {
			continue
		}
		scheduled, err := time.Parse(time.RFC3339, p.Fields["scheduled_time"])
		if err != nil || scheduled.After(now) {
			continue
		}
		needle := fmt.Sprintf("Meeting '%s' was scheduled", r.Event.EntityID)
		n, err := w.events.CountAlertsSince(ctx, unstartedMeetingTitle, needle, since)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		alert := model.NewAlert(
			model.SeverityCritical,
			unstartedMeetingTitle,
			fmt.Sprintf("Meeting '%s' was scheduled for %s and was not started.",
				r.Event.EntityID, scheduled.Format(time.RFC3339)),
			r.Event.ID,
			r.Event.Payload,
		)
		if err := w.engine.Emit(ctx, alert); err != nil {
			w.log.Error().Err(err).Str("meeting", r.Event.EntityID).Msg("unstarted-meeting alert emission failed")
		}
	}
	return nil
}
