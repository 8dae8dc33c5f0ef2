package convo

import "bot-ojek/internal/repo"

// Access is the visibility predicate an identity implies. Group and personal
// context are mutually exclusive; partner and admin flags come from the
// resolved identity.
type Access struct {
	IsGroup   bool
	IsPartner bool
	IsAdmin   bool
}

// AccessForUser derives the predicate for a resolved user in a chat context.
func AccessForUser(u *repo.User, isGroup bool) Access {
	return Access{IsGroup: isGroup, IsPartner: u.IsPartner, IsAdmin: u.IsAdmin}
}

// AccessForGroup derives the predicate for a resolved group chat.
func AccessForGroup(g *repo.GroupChat) Access {
	return Access{IsGroup: true, IsPartner: g.IsPartner}
}

// Allows reports whether the command is visible under this predicate.
//
// Admins see partner-tagged commands implicitly, but partners are never
// granted admin-tagged ones. Group chats never see admin-tagged commands.
func (a Access) Allows(cmd repo.Command) bool {
	if a.IsGroup {
		if !cmd.IsGroup || cmd.IsAdmin {
			return false
		}
		if cmd.IsPartner && !a.IsPartner {
			return false
		}
		return true
	}

	if !cmd.IsPersonal {
		return false
	}
	if cmd.IsAdmin && !a.IsAdmin {
		return false
	}
	if cmd.IsPartner && !a.IsPartner && !a.IsAdmin {
		return false
	}
	return true
}
