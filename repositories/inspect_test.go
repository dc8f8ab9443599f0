package repositories

import (
	"chat-presence/domain"
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestInspectMapper(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, nil)
	ctx := context.Background()

	// Given a user who posted in a room
	user, err := store.UpsertUser(ctx, "name:alice", "alice")
	req.NoError(err)
	room, err := store.FindOrCreateRoom(ctx, "general")
	req.NoError(err)
	_, err = store.CreateMessage(ctx, domain.Message{
		RoomID:  room.ID,
		Sender:  domain.Sender{ID: user.ID, Username: "alice"},
		Content: "hello",
	})
	req.NoError(err)

	// When every key goes through the inspector
	rows := map[string][]string{}
	err = store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				row := InspectMapper(key, val)
				rows[row.Type] = append(rows[row.Type], row.Detail)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	req.NoError(err)

	// Then each entity is recognised
	req.Equal([]string{"alice: hello"}, rows["MESSAGE"])
	req.Equal([]string{"alice online=false"}, rows["USER"])
	req.Equal([]string{"general (0 members)"}, rows["ROOM"])
	req.Len(rows["INDEX"], 3)
}
