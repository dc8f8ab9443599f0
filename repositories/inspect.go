package repositories

import (
	"chat-presence/domain"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders a raw key/value pair of the chat store for the Badger inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, messageIndexPrefix),
		strings.HasPrefix(key, userKeyPrefix),
		strings.HasPrefix(key, roomNamePrefix):
		row.Type = "INDEX"
		row.Detail = "-> " + string(val)
	case strings.HasPrefix(key, messagePrefix):
		var m DiskMessage
		if err := json.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%s: %s", m.SenderUsername, m.Content)
		if m.FileURL != "" {
			row.Detail += " [" + m.FileURL + "]"
		}
	case strings.HasPrefix(key, userIDPrefix):
		var u DiskUser
		if err := json.Unmarshal(val, &u); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "USER"
		row.Detail = fmt.Sprintf("%s online=%t", u.Username, u.Online)
	case strings.HasPrefix(key, roomIDPrefix):
		var r domain.Room
		if err := json.Unmarshal(val, &r); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "ROOM"
		row.Detail = fmt.Sprintf("%s (%d members)", r.Name, len(r.Members))
	}
	return row
}
