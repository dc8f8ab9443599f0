package domain

import "slices"

type RoomID string

const DefaultRoomName = "general"

type Room struct {
	ID        RoomID   `json:"id"`
	Name      string   `json:"name"`
	IsPrivate bool     `json:"isPrivate"`
	Members   []UserID `json:"members"`
}

func (r Room) HasMember(userID UserID) bool {
	return slices.Contains(r.Members, userID)
}

// WithMember adds userID to the members once. The boolean reports whether
// the room changed.
func (r Room) WithMember(userID UserID) (Room, bool) {
	if r.HasMember(userID) {
		return r, false
	}
	r.Members = append(slices.Clone(r.Members), userID)
	return r, true
}
