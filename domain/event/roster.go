package event

import (
	"chat-presence/domain"

	"github.com/samber/lo"
)

func NewUserList(users []domain.User) UserList {
	return UserList{Users: lo.Map(users, func(u domain.User, _ int) RosterEntry {
		return RosterEntry{ID: u.ID, Username: u.Username, Online: u.Online}
	})}
}
