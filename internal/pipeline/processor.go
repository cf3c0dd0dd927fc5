// Package pipeline fans stored events out into derived work: memory
// summaries, alert evaluation, and automation triggers. Everything past the
// durable save is best-effort and must never surface a failure to the
// producer of the original event.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atriumhq/atrium/internal/memory"
	"github.com/atriumhq/atrium/internal/model"
	"github.com/atriumhq/atrium/internal/rules"
)

// Processor converts events into memory entries and runs the alert rules.
type Processor struct {
	index  *memory.Index
	engine *rules.Engine
	log    zerolog.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(index *memory.Index, engine *rules.Engine, log zerolog.Logger) *Processor {
	return &Processor{index: index, engine: engine, log: log}
}

// Process resolves the event's owner, writes a human-readable memory entry,
// and evaluates the alert rules. It returns the written entry, or nil when
// any step failed; it never returns an error and never panics on unknown or
// malformed event types.
func (p *Processor) Process(ctx context.Context, ev model.Event) *model.MemoryEntry {
	ownerID := model.ResolveOwner(ev.Actor)
	content := Summarize(ev)

	entry := &model.MemoryEntry{
		OwnerID:    ownerID,
		EntityType: ev.Entity,
		EntityID:   ev.EntityID,
		Content:    content,
		Metadata: map[string]interface{}{
			"event_type": ev.Type,
			"event_id":   ev.ID,
			"source":     "event_processor",
			"processed":  true,
		},
	}

	id, err := p.index.Write(ctx, ownerID, entry.EntityType, entry.EntityID, entry.Content, entry.Metadata)
	if err != nil {
		p.log.Error().Err(err).Str("event_id", ev.ID).Str("event_type", ev.Type).
			Msg("memory write failed")
		entry = nil
	} else {
		entry.ID = id
		p.log.Debug().Str("event_type", ev.Type).Str("memory_id", id).Msg("event processed")
	}

	p.engine.EvaluateAndEmit(ctx, ev)
	return entry
}

// Summarize renders a one-line human-readable description of an event. The
// dispatch is keyed by type prefix; unknown types fall back to a generic
// sentence rather than failing.
func Summarize(ev model.Event) string {
	switch {
	case ev.Type == "api.error":
		p, _ := ev.Payload.(model.HTTPPayload)
		return fmt.Sprintf("Error at %s: %s", orDefault(p.Path, "unknown endpoint"), orDefault(p.Error, "unknown error"))

	case ev.TypePrefix() == "http" || ev.TypePrefix() == "api":
		p, ok := ev.Payload.(model.HTTPPayload)
		if !ok {
			break
		}
		return fmt.Sprintf("HTTP %s %s - status %d - %.0fms", p.Method, p.Path, p.StatusCode, p.ResponseTimeMs)

	case ev.TypePrefix() == "meeting":
		title := "Untitled"
		if p, ok := ev.Payload.(model.DomainPayload); ok && p.Title != "" {
			title = p.Title
		}
		action := ev.Type[strings.IndexByte(ev.Type, '.')+1:]
		switch action {
		case "created":
			return fmt.Sprintf("Meeting created: '%s'", title)
		case "updated":
			return fmt.Sprintf("Meeting updated: '%s'", title)
		case "completed":
			return fmt.Sprintf("Meeting completed: '%s'", title)
		default:
			return fmt.Sprintf("Meeting %s: '%s'", action, title)
		}

	case ev.TypePrefix() == "chat":
		msg := ""
		if p, ok := ev.Payload.(model.DomainPayload); ok {
			msg = p.Message
		}
		// truncate on a rune boundary so multibyte text stays valid UTF-8
		if r := []rune(msg); len(r) > 100 {
			msg = string(r[:100])
		}
		return fmt.Sprintf("Chat: %s...", msg)
	}
	return fmt.Sprintf("Event %s processed", ev.Type)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
