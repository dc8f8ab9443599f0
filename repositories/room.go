package repositories

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	roomNamePrefix = "room:name:"
	roomIDPrefix   = "room:id:"
)

// FindOrCreateRoom reads the name index and creates the room when absent.
// Two concurrent creators conflict on the name key; the loser replays and finds the winner's room.
func (s *BadgerStore) FindOrCreateRoom(ctx context.Context, name string) (domain.Room, error) {
	var room domain.Room
	err := s.update(ctx, func(txn *badger.Txn) error {
		id, err := get(txn, roomNamePrefix+name)
		switch {
		case err == nil:
			return getJSON(txn, roomIDPrefix+string(id), &room)
		case !errors.Is(err, errors.ErrNotFound):
			return err
		}

		room = domain.Room{ID: domain.RoomID(uuid.NewString()), Name: name, Members: []domain.UserID{}}
		if err := txn.Set([]byte(roomNamePrefix+name), []byte(room.ID)); err != nil {
			return err
		}
		return setJSON(txn, roomIDPrefix+string(room.ID), room)
	})
	if err != nil {
		return domain.Room{}, err
	}
	s.log.Debug("Room resolved", "room_id", room.ID, "name", name)
	return room, nil
}

func (s *BadgerStore) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	var room domain.Room
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, roomIDPrefix+string(id), &room)
	})
	return room, err
}

// AddMember is idempotent, a user appears at most once in Members.
func (s *BadgerStore) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (domain.Room, error) {
	var room domain.Room
	err := s.update(ctx, func(txn *badger.Txn) error {
		var current domain.Room
		if err := getJSON(txn, roomIDPrefix+string(roomID), &current); err != nil {
			return err
		}
		updated, changed := current.WithMember(userID)
		room = updated
		if !changed {
			return nil
		}
		return setJSON(txn, roomIDPrefix+string(roomID), updated)
	})
	return room, err
}
