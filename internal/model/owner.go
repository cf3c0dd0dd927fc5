package model

import (
	"regexp"
	"strconv"
	"strings"
)

// System actor literals that map to owner 0.
var systemActors = map[string]bool{
	"system":       true,
	"assistant":    true,
	"alert_engine": true,
}

var digitRun = regexp.MustCompile(`\d+`)

// ResolveOwner converts a free-form actor string into a numeric owner
// identity for storage. The mapping is pure and total; unmappable actors
// resolve to nil (anonymous), never an error.
//
// Priority order: empty or "anonymous" -> nil; a recognized system literal
// -> 0; "user_<digits>" -> digits; all digits -> the number; otherwise the
// first embedded run of digits; otherwise nil.
func ResolveOwner(actor string) *int64 {
	if actor == "" || actor == "anonymous" {
		return nil
	}
	if systemActors[actor] {
		return ownerOf(0)
	}
	if rest, ok := strings.CutPrefix(actor, "user_"); ok {
		if n, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return ownerOf(n)
		}
	}
	if n, err := strconv.ParseInt(actor, 10, 64); err == nil {
		return ownerOf(n)
	}
	if run := digitRun.FindString(actor); run != "" {
		if n, err := strconv.ParseInt(run, 10, 64); err == nil {
			return ownerOf(n)
		}
	}
	return nil
}

// ActorForOwner is the inverse presentation mapping used when events are
// rebuilt from storage rows.
func ActorForOwner(ownerID *int64) string {
	switch {
	case ownerID == nil:
		return "anonymous"
	case *ownerID == 0:
		return "system"
	default:
		return "user_" + strconv.FormatInt(*ownerID, 10)
	}
}

func ownerOf(n int64) *int64 { return &n }
