package model

import "testing"

func TestResolveOwner(t *testing.T) {
	cases := []struct {
		actor string
		want  *int64
	}{
		{"", nil},
		{"anonymous", nil},
		{"system", ownerOf(0)},
		{"assistant", ownerOf(0)},
		{"user_7", ownerOf(7)},
		{"user_12345", ownerOf(12345)},
		{"42", ownerOf(42)},
		{"abc123", ownerOf(123)},
		{"agent-9-west", ownerOf(9)},
		{"ceo", nil},
		{"user_", nil},
	}
	for _, c := range cases {
		got := ResolveOwner(c.actor)
		switch {
		case c.want == nil && got != nil:
			t.Errorf("ResolveOwner(%q) = %d, want nil", c.actor, *got)
		case c.want != nil && got == nil:
			t.Errorf("ResolveOwner(%q) = nil, want %d", c.actor, *c.want)
		case c.want != nil && got != nil && *got != *c.want:
			t.Errorf("ResolveOwner(%q) = %d, want %d", c.actor, *got, *c.want)
		}
	}
}

func TestResolveOwnerIsPure(t *testing.T) {
	a := ResolveOwner("ops_team_17")
	b := ResolveOwner("ops_team_17")
	if a == nil || b == nil || *a != *b {
		t.Fatalf("mapping not reproducible: %v vs %v", a, b)
	}
}

func TestActorForOwner(t *testing.T) {
	if got := ActorForOwner(nil); got != "anonymous" {
		t.Errorf("nil owner = %q", got)
	}
	if got := ActorForOwner(ownerOf(0)); got != "system" {
		t.Errorf("owner 0 = %q", got)
	}
	if got := ActorForOwner(ownerOf(7)); got != "user_7" {
		t.Errorf("owner 7 = %q", got)
	}
}
