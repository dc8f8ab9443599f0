package e2e

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type rosterEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  struct {
		Username string `json:"username"`
	} `json:"sender"`
	Reactions []struct {
		Type string `json:"type"`
	} `json:"reactions"`
}

type testPresenceSuite struct {
	BaseWsSuite
}

func TestPresenceSuite(t *testing.T) {
	suite.Run(t, &testPresenceSuite{})
}

func onlineOf(roster []rosterEntry, username string) (bool, bool) {
	for _, entry := range roster {
		if entry.Username == username {
			return entry.Online, true
		}
	}
	return false, false
}

func (s *testPresenceSuite) TestTwoUsersChat() {
	// Unique names keep reruns against the same server apart
	suffix := uuid.NewString()[:8]
	aliceName, bobName := "alice-"+suffix, "bob-"+suffix
	var roomID string

	alice := s.Dial(aliceName)
	bob := s.Dial(bobName)

	s.Run("Step 1: alice joins the default room", func() {
		alice.Send("join", map[string]string{"username": aliceName})
		var joined struct {
			RoomID string `json:"roomId"`
		}
		alice.Expect("room_joined", &joined)
		s.Require().NotEmpty(joined.RoomID)
		roomID = joined.RoomID
		alice.Expect("user_joined", nil)
	})

	s.Run("Step 2: bob joins and alice sees him online", func() {
		bob.Send("join", map[string]string{"username": bobName})
		bob.Expect("room_joined", nil)

		var roster []rosterEntry
		alice.Expect("user_list", &roster)
		online, found := onlineOf(roster, bobName)
		s.Require().True(found)
		s.Require().True(online)
	})

	var sent message
	s.Run("Step 3: alice talks, bob listens", func() {
		content := fmt.Sprintf("hello at %s", time.Now().Format(time.RFC3339Nano))
		alice.Send("send_message", map[string]string{"roomId": roomID, "content": content})

		bob.Expect("receive_message", &sent)
		for sent.Content != content {
			bob.Expect("receive_message", &sent)
		}
		s.Require().Equal(aliceName, sent.Sender.Username)
	})

	s.Run("Step 4: bob reacts", func() {
		bob.Send("react", map[string]string{"messageId": sent.ID, "reaction": "👍"})
		var updated message
		bob.Expect("reaction_updated", &updated)
		s.Require().Len(updated.Reactions, 1)
	})

	s.Run("Step 5: bob leaves", func() {
		bob.Close()
		var left struct {
			Username string `json:"username"`
		}
		alice.Expect("user_left", &left)
		s.Require().Equal(bobName, left.Username)

		var roster []rosterEntry
		alice.Expect("user_list", &roster)
		online, found := onlineOf(roster, bobName)
		s.Require().True(found)
		s.Require().False(online)
	})
}
