// Package viewmode maps (profile owner, requester) pairs to a view mode and
// the set of actions that mode allows. The tables here are the single source
// of truth for both the advisory query path (CanPerform) and the enforcement
// path (ValidatePermission).
package viewmode

import "avatar-hub/internal/fault"

// Mode classifies a profile viewer relative to the profile's owner.
type Mode int

const (
	ModeOwner Mode = iota
	ModePublic
	ModeGuest
)

func (m Mode) String() string {
	switch m {
	case ModeOwner:
		return "owner"
	case ModePublic:
		return "public"
	case ModeGuest:
		return "guest"
	default:
		return "unknown"
	}
}

type Action string

const (
	ActionEdit          Action = "edit"
	ActionManageAvatars Action = "manage-avatars"
	ActionViewAnalytics Action = "view-analytics"
	ActionSwitchAvatar  Action = "switch-avatar"
	ActionShare         Action = "share"
	ActionDelete        Action = "delete"
	ActionFollow        Action = "follow"
	ActionUnfollow      Action = "unfollow"
	ActionMessage       Action = "message"
	ActionReport        Action = "report"
	ActionBlock         Action = "block"
	ActionUnblock       Action = "unblock"
	ActionViewProfile   Action = "view-profile"
	ActionLogin         Action = "login"
)

// Determine resolves the view mode for a requester. An empty requester id
// means unauthenticated.
func Determine(resourceOwnerID, requesterID string) Mode {
	switch {
	case requesterID == "":
		return ModeGuest
	case requesterID == resourceOwnerID:
		return ModeOwner
	default:
		return ModePublic
	}
}

// Relation carries the requester's social state toward the profile, needed to
// pick between follow/unfollow and to strip actions from blocked viewers.
type Relation struct {
	IsFollowing bool
	IsBlocked   bool
}

// AvailableActions returns the action set for a mode. Follow and unfollow are
// mutually exclusive; a blocked public viewer keeps only unblock, share and
// report.
func AvailableActions(mode Mode, rel Relation) []Action {
	switch mode {
	case ModeOwner:
		return []Action{
			ActionEdit,
			ActionManageAvatars,
			ActionViewAnalytics,
			ActionSwitchAvatar,
			ActionShare,
			ActionDelete,
		}
	case ModePublic:
		if rel.IsBlocked {
			return []Action{ActionUnblock, ActionShare, ActionReport}
		}
		if rel.IsFollowing {
			return []Action{ActionUnfollow, ActionMessage, ActionShare, ActionReport, ActionBlock}
		}
		return []Action{ActionFollow, ActionMessage, ActionShare, ActionReport, ActionBlock}
	case ModeGuest:
		return []Action{ActionViewProfile, ActionShare, ActionLogin}
	default:
		return nil
	}
}

// PrimaryAction is the default call-to-action rendered for a mode.
func PrimaryAction(mode Mode, rel Relation) Action {
	switch mode {
	case ModeOwner:
		return ActionEdit
	case ModePublic:
		if rel.IsFollowing {
			return ActionUnfollow
		}
		return ActionFollow
	default:
		return ActionLogin
	}
}

// CanPerform reports whether action is allowed in the given state. Derived
// strictly from AvailableActions so query and enforcement never disagree.
func CanPerform(action Action, mode Mode, rel Relation) bool {
	for _, a := range AvailableActions(mode, rel) {
		if a == action {
			return true
		}
	}
	return false
}

// ownerOnly are the actions that require avatar ownership regardless of the
// requester's social state.
var ownerOnly = map[Action]bool{
	ActionEdit:          true,
	ActionManageAvatars: true,
	ActionViewAnalytics: true,
	ActionSwitchAvatar:  true,
	ActionDelete:        true,
}

// ValidatePermission is the enforcement point: it resolves the requester's
// view mode and fails with an unauthorized fault when the action is not in
// that mode's table.
func ValidatePermission(action Action, resourceOwnerID, requesterID string, rel Relation) error {
	const op = "viewmode.ValidatePermission"

	mode := Determine(resourceOwnerID, requesterID)
	if CanPerform(action, mode, rel) {
		return nil
	}

	// an absent requester gets the login-path reason even for owner-only
	// actions; ownership cannot be judged without an identity
	if requesterID == "" {
		return fault.New(fault.KindUnauthorized, op, "action '"+string(action)+"' requires authentication")
	}
	if ownerOnly[action] && mode != ModeOwner {
		return fault.New(fault.KindUnauthorized, op, "action '"+string(action)+"' requires avatar ownership")
	}
	return fault.New(fault.KindUnauthorized, op, "action '"+string(action)+"' not available in "+mode.String()+" view")
}
