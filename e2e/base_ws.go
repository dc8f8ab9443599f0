package e2e

import (
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatAddr == "" {
		s.T().Skip("CHAT_ADDR not set, no live server to talk to")
	}
}

// Client is one websocket connection with step logging.
type Client struct {
	suite *BaseWsSuite
	t     *testing.T
	name  string
	conn  *websocket.Conn
}

// Dial opens a connection and prints a colorized header for the step in logs
func (s *BaseWsSuite) Dial(name string) *Client {
	t := s.T()
	header := fmt.Sprintf("  ====== %s connects ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	u := url.URL{Scheme: "ws", Host: s.Config.ChatAddr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ChatAddr)
	t.Cleanup(func() { _ = conn.Close() })
	return &Client{suite: s, t: t, name: name, conn: conn}
}

func (c *Client) Send(name string, data any) {
	raw, err := json.Marshal(data)
	c.suite.Require().NoError(err)
	c.suite.Require().NoError(c.conn.WriteJSON(Frame{Event: name, Data: raw}))
}

// Expect skips frames until one named event arrives whose data decodes into out.
// The history batch and live messages share receive_message, a shape mismatch is skipped too.
func (c *Client) Expect(event string, out any) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		c.suite.Require().NoError(c.conn.SetReadDeadline(deadline))
		var f Frame
		c.suite.Require().NoError(c.conn.ReadJSON(&f), "%s waiting for %s", c.name, event)
		if c.suite.Config.DebugJSON {
			c.t.Logf("%s <- %s %s", c.name, f.Event, f.Data)
		}
		if f.Event != event {
			continue
		}
		if out != nil && json.Unmarshal(f.Data, out) != nil {
			continue
		}
		return
	}
}

func (c *Client) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}
