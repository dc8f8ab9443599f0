package main

import (
	"bufio"
	"chat-presence/domain"
	"chat-presence/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Username      string `env:"CHAT_USERNAME,required=true"`
	Email         string `env:"CHAT_EMAIL"`
	LogLevel      string `env:"LOG_LEVEL,default=WARN"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// session is what the reader learns and the prompt needs.
type session struct {
	mu          sync.Mutex
	roomID      domain.RoomID
	lastMessage domain.MessageID
}

func (s *session) get() (domain.RoomID, domain.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.lastMessage
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the websocket and join.
	wsURL := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	if err := send(conn, "join", map[string]string{"username": config.Username, "email": config.Email}); err != nil {
		return exitRuntime, err
	}

	state := &session{}
	readErr := make(chan error, 1)
	go func() { readErr <- readLoop(conn, state, os.Stdout) }()

	lines := make(chan string)
	go scanLines(os.Stdin, lines)

	fmt.Println(color.New(color.FgCyan).Render("Connected as " + config.Username + ". /who, /react <emoji>, /read, /join <room>, /typing on|off, /quit"))

	// 4. Prompt loop, the only writer on conn.
	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-readErr:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, err
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			quit, err := handleLine(ctx, conn, state, config.ServerAddress, line, log)
			if err != nil {
				return exitRuntime, err
			}
			if quit {
				return exitOK, nil
			}
		}
	}
}

func scanLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func handleLine(ctx context.Context, conn *websocket.Conn, state *session, addr, line string, log *slog.Logger) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	roomID, lastMessage := state.get()
	command, arg, _ := strings.Cut(line, " ")

	switch command {
	case "/quit":
		return true, nil
	case "/who":
		if err := printRoster(ctx, addr, os.Stdout); err != nil {
			log.Warn("Roster unavailable", "error", err)
		}
		return false, nil
	case "/react":
		if lastMessage == "" || arg == "" {
			return false, nil
		}
		return false, send(conn, "react", map[string]string{"messageId": string(lastMessage), "reaction": arg})
	case "/read":
		if lastMessage == "" {
			return false, nil
		}
		return false, send(conn, "read", map[string]string{"messageId": string(lastMessage)})
	case "/join":
		return false, send(conn, "join_room", map[string]string{"roomId": arg})
	case "/typing":
		return false, send(conn, "typing", map[string]any{"roomId": roomID, "isTyping": arg == "on"})
	default:
		return false, send(conn, "send_message", map[string]any{"roomId": roomID, "content": line})
	}
}

func send(conn *websocket.Conn, name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(frame{Event: name, Data: raw}); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}
	return nil
}

// readLoop prints every inbound frame until the connection drops.
func readLoop(conn *websocket.Conn, state *session, out io.Writer) error {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		if text := render(f, state); text != "" {
			fmt.Fprintln(out, text)
		}
	}
}

// render turns a frame into a printable line and records the room and last message seen.
func render(f frame, state *session) string {
	switch event.Type(f.Event) {
	case event.RoomJoinedType:
		var e event.RoomJoined
		if json.Unmarshal(f.Data, &e) != nil {
			return ""
		}
		state.mu.Lock()
		state.roomID = e.RoomID
		state.mu.Unlock()
		return color.New(color.FgCyan).Render(fmt.Sprintf("*** joined room %s", e.RoomID))
	case event.ReceiveMessageType:
		// Either the history batch or a single message
		var history []domain.Message
		if json.Unmarshal(f.Data, &history) == nil {
			return strings.Join(renderMessages(history, state), "\n")
		}
		var msg domain.Message
		if json.Unmarshal(f.Data, &msg) != nil {
			return ""
		}
		return strings.Join(renderMessages([]domain.Message{msg}, state), "\n")
	case event.UserJoinedType, event.UserLeftType:
		var e event.UserJoined
		if json.Unmarshal(f.Data, &e) != nil {
			return ""
		}
		verb := "joined"
		if f.Event == string(event.UserLeftType) {
			verb = "left"
		}
		return color.New(color.FgYellow).Render(fmt.Sprintf("*** %s %s", e.Username, verb))
	case event.TypingUsersType:
		var usernames []string
		if json.Unmarshal(f.Data, &usernames) != nil || len(usernames) == 0 {
			return ""
		}
		return color.New(color.FgGray).Render(strings.Join(usernames, ", ") + " typing...")
	case event.ReactionUpdatedType:
		var msg domain.Message
		if json.Unmarshal(f.Data, &msg) != nil {
			return ""
		}
		reactions := make([]string, 0, len(msg.Reactions))
		for _, r := range msg.Reactions {
			reactions = append(reactions, r.Type)
		}
		return color.New(color.FgGray).Render("reactions: " + strings.Join(reactions, " "))
	case event.ErrorType:
		var e event.Error
		if json.Unmarshal(f.Data, &e) != nil {
			return ""
		}
		return color.New(color.FgRed).Render(fmt.Sprintf("!!! %s: %s", e.Code, e.Message))
	default:
		// user_list is only shown on /who
		return ""
	}
}

func renderMessages(messages []domain.Message, state *session) []string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		state.mu.Lock()
		state.lastMessage = msg.ID
		state.mu.Unlock()
		line := fmt.Sprintf("[%s] %s: %s",
			msg.CreatedAt.Local().Format(time.TimeOnly),
			color.New(color.FgGreen).Render(msg.Sender.Username),
			msg.Content,
		)
		if msg.FileURL != "" {
			line += " " + msg.FileURL
		}
		lines = append(lines, line)
	}
	return lines
}

func printRoster(ctx context.Context, addr string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/api/users", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var users []domain.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return err
	}
	renderRoster(users, out)
	return nil
}

func renderRoster(users []domain.User, out io.Writer) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Username", "Status"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, u := range users {
		status := "offline"
		if u.Online {
			status = "online"
		}
		table.Append([]string{u.Username, status})
	}
	table.Render()
}
