package viewmode

import (
	"strings"
	"testing"

	"avatar-hub/internal/fault"
)

func TestDetermine(t *testing.T) {
	tests := []struct {
		name      string
		owner     string
		requester string
		expected  Mode
	}{
		{"absent requester is guest", "u1", "", ModeGuest},
		{"owner sees owner mode", "u1", "u1", ModeOwner},
		{"other user sees public", "u1", "u2", ModePublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Determine(tt.owner, tt.requester); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestDetermine_ExactlyOneMode(t *testing.T) {
	pairs := []struct{ owner, requester string }{
		{"u1", ""}, {"u1", "u1"}, {"u1", "u2"}, {"", ""}, {"", "u2"},
	}

	for _, p := range pairs {
		mode := Determine(p.owner, p.requester)
		if mode != ModeOwner && mode != ModePublic && mode != ModeGuest {
			t.Errorf("(%q, %q): unknown mode %d", p.owner, p.requester, mode)
		}
	}
}

func contains(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func TestAvailableActions_Owner(t *testing.T) {
	actions := AvailableActions(ModeOwner, Relation{})

	for _, want := range []Action{ActionEdit, ActionManageAvatars, ActionViewAnalytics, ActionSwitchAvatar, ActionShare, ActionDelete} {
		if !contains(actions, want) {
			t.Errorf("owner missing %s", want)
		}
	}
	for _, never := range []Action{ActionFollow, ActionUnfollow, ActionMessage} {
		if contains(actions, never) {
			t.Errorf("owner must never have %s", never)
		}
	}
}

func TestAvailableActions_FollowUnfollowExclusive(t *testing.T) {
	for _, following := range []bool{true, false} {
		actions := AvailableActions(ModePublic, Relation{IsFollowing: following})

		hasFollow := contains(actions, ActionFollow)
		hasUnfollow := contains(actions, ActionUnfollow)

		if hasFollow && hasUnfollow {
			t.Errorf("following=%v: follow and unfollow both present", following)
		}
		if following && !hasUnfollow {
			t.Error("following viewer should see unfollow")
		}
		if !following && !hasFollow {
			t.Error("non-following viewer should see follow")
		}
	}
}

func TestAvailableActions_Blocked(t *testing.T) {
	actions := AvailableActions(ModePublic, Relation{IsBlocked: true})

	if !contains(actions, ActionUnblock) {
		t.Error("blocked viewer should see unblock")
	}
	for _, never := range []Action{ActionMessage, ActionFollow, ActionUnfollow} {
		if contains(actions, never) {
			t.Errorf("blocked viewer must not see %s", never)
		}
	}
}

func TestAvailableActions_Guest(t *testing.T) {
	actions := AvailableActions(ModeGuest, Relation{})

	for _, want := range []Action{ActionViewProfile, ActionShare, ActionLogin} {
		if !contains(actions, want) {
			t.Errorf("guest missing %s", want)
		}
	}
	// no authenticated-only action may leak into guest view
	for _, never := range []Action{ActionFollow, ActionMessage, ActionEdit, ActionDelete, ActionBlock} {
		if contains(actions, never) {
			t.Errorf("guest must not see %s", never)
		}
	}
}

func TestPrimaryAction(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		rel      Relation
		expected Action
	}{
		{"owner edits", ModeOwner, Relation{}, ActionEdit},
		{"public follows", ModePublic, Relation{}, ActionFollow},
		{"following unfollows", ModePublic, Relation{IsFollowing: true}, ActionUnfollow},
		{"guest logs in", ModeGuest, Relation{}, ActionLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryAction(tt.mode, tt.rel); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCanPerform_AgreesWithTable(t *testing.T) {
	modes := []Mode{ModeOwner, ModePublic, ModeGuest}
	rels := []Relation{{}, {IsFollowing: true}, {IsBlocked: true}}
	all := []Action{
		ActionEdit, ActionManageAvatars, ActionViewAnalytics, ActionSwitchAvatar,
		ActionShare, ActionDelete, ActionFollow, ActionUnfollow, ActionMessage,
		ActionReport, ActionBlock, ActionUnblock, ActionViewProfile, ActionLogin,
	}

	for _, mode := range modes {
		for _, rel := range rels {
			table := AvailableActions(mode, rel)
			for _, a := range all {
				if CanPerform(a, mode, rel) != contains(table, a) {
					t.Errorf("mode=%s rel=%+v action=%s: CanPerform disagrees with table", mode, rel, a)
				}
			}
		}
	}
}

func TestValidatePermission_OwnerOnly(t *testing.T) {
	err := ValidatePermission(ActionEdit, "u1", "u2", Relation{})
	if err == nil {
		t.Fatal("expected unauthorized for non-owner edit")
	}
	if !fault.IsKind(err, fault.KindUnauthorized) {
		t.Errorf("expected unauthorized kind, got %v", err)
	}

	if err := ValidatePermission(ActionEdit, "u1", "u1", Relation{}); err != nil {
		t.Errorf("owner edit should pass, got %v", err)
	}
}

func TestValidatePermission_RequiresAuthentication(t *testing.T) {
	err := ValidatePermission(ActionFollow, "u1", "", Relation{})
	if err == nil {
		t.Fatal("expected unauthorized for guest follow")
	}
	if !fault.IsKind(err, fault.KindUnauthorized) {
		t.Errorf("expected unauthorized kind, got %v", err)
	}
}

func TestValidatePermission_Reasons(t *testing.T) {
	tests := []struct {
		name      string
		action    Action
		requester string
		want      string
	}{
		{"owner-only by non-owner", ActionEdit, "u2", "requires avatar ownership"},
		{"owner-only by guest", ActionEdit, "", "requires authentication"},
		{"authenticated-only by guest", ActionFollow, "", "requires authentication"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermission(tt.action, "u1", tt.requester, Relation{})
			if err == nil {
				t.Fatal("expected unauthorized")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected reason containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidatePermission_AgreesWithCanPerform(t *testing.T) {
	cases := []struct {
		action    Action
		owner     string
		requester string
		rel       Relation
	}{
		{ActionEdit, "u1", "u1", Relation{}},
		{ActionEdit, "u1", "u2", Relation{}},
		{ActionFollow, "u1", "u2", Relation{}},
		{ActionUnfollow, "u1", "u2", Relation{IsFollowing: true}},
		{ActionFollow, "u1", "u2", Relation{IsFollowing: true}},
		{ActionMessage, "u1", "u2", Relation{IsBlocked: true}},
		{ActionShare, "u1", "", Relation{}},
		{ActionLogin, "u1", "", Relation{}},
	}

	for _, c := range cases {
		mode := Determine(c.owner, c.requester)
		allowed := CanPerform(c.action, mode, c.rel)
		err := ValidatePermission(c.action, c.owner, c.requester, c.rel)
		if allowed && err != nil {
			t.Errorf("%s in %s: table allows but validate rejects: %v", c.action, mode, err)
		}
		if !allowed && err == nil {
			t.Errorf("%s in %s: table forbids but validate passes", c.action, mode)
		}
	}
}
