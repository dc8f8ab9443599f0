package repositories

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	userKeyPrefix = "user:key:"
	userIDPrefix  = "user:id:"
)

// DiskUser is the stored form of a user. Unlike domain.User it keeps the identity key.
type DiskUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Key      string `json:"key"`
	Online   bool   `json:"online"`
}

// UpsertUser resolves the identity key to a user, creating one on first use.
// An existing user keeps the username it was created with.
func (s *BadgerStore) UpsertUser(ctx context.Context, key, username string) (domain.User, error) {
	var user DiskUser
	err := s.update(ctx, func(txn *badger.Txn) error {
		id, err := get(txn, userKeyPrefix+key)
		switch {
		case err == nil:
			return getJSON(txn, userIDPrefix+string(id), &user)
		case !errors.Is(err, errors.ErrNotFound):
			return err
		}

		user = DiskUser{ID: uuid.NewString(), Username: username, Key: key}
		if err := txn.Set([]byte(userKeyPrefix+key), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userIDPrefix+user.ID, user)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(user), nil
}

func (s *BadgerStore) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	var user DiskUser
	err := s.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, userIDPrefix+string(id), &user)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(user), nil
}

func (s *BadgerStore) SetOnline(ctx context.Context, id domain.UserID, online bool) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var user DiskUser
		if err := getJSON(txn, userIDPrefix+string(id), &user); err != nil {
			return err
		}
		if user.Online == online {
			return nil
		}
		user.Online = online
		return setJSON(txn, userIDPrefix+string(id), user)
	})
}

// ResetPresence marks every stored user offline in a single write batch.
// It runs at startup, before any connection is accepted.
func (s *BadgerStore) ResetPresence(ctx context.Context) error {
	users, err := s.listDiskUsers(ctx)
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	reset := 0
	for _, user := range users {
		if !user.Online {
			continue
		}
		user.Online = false
		bytes, err := json.Marshal(user)
		if err != nil {
			wb.Cancel()
			return fmt.Errorf("marshal failed: %w", err)
		}
		if err = wb.Set([]byte(userIDPrefix+user.ID), bytes); err != nil {
			wb.Cancel()
			return err
		}
		reset++
	}
	if err = wb.Flush(); err != nil {
		return err
	}
	s.log.Debug("Presence reset", "users", reset)
	return nil
}

func (s *BadgerStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.listDiskUsers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u DiskUser, _ int) domain.User { return toUser(u) }), nil
}

func (s *BadgerStore) listDiskUsers(ctx context.Context) ([]DiskUser, error) {
	var users []DiskUser
	err := s.view(ctx, func(txn *badger.Txn) error {
		users = nil
		prefix := []byte(userIDPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user DiskUser
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return nil
	})
	return users, err
}

func toUser(u DiskUser) domain.User {
	return domain.User{
		ID:       domain.UserID(u.ID),
		Username: u.Username,
		Key:      u.Key,
		Online:   u.Online,
	}
}
