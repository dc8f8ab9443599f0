package ws

import (
	"chat-presence/domain/event"
	"chat-presence/errors"
	"chat-presence/services"
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	JoinEvent        = "join"
	UserJoinEvent    = "user_join"
	JoinRoomEvent    = "join_room"
	SendMessageEvent = "send_message"
	TypingEvent      = "typing"
	ReactEvent       = "react"
	ReadEvent        = "read"
)

// InboundFrame is what clients send: {"event": "...", "data": {...}}.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundFrame is what connections receive.
type OutboundFrame struct {
	Event event.Type `json:"event"`
	Data  any        `json:"data"`
}

func encodeEvent(e event.DomainEvent) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: e.Type(), Data: e.Payload()})
}

func decodeFrame(raw []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("malformed frame: %w", errors.ErrValidation)
	}
	if frame.Event == "" {
		return InboundFrame{}, fmt.Errorf("frame without event: %w", errors.ErrValidation)
	}
	return frame, nil
}

// decodeData reads the data field of a frame into T.
func decodeData[T any](frame InboundFrame) (T, error) {
	var data T
	if len(frame.Data) == 0 || string(frame.Data) == "null" {
		return data, nil
	}
	if err := json.Unmarshal(frame.Data, &data); err != nil {
		return data, fmt.Errorf("%s: malformed data: %w", frame.Event, errors.ErrValidation)
	}
	return data, nil
}

// decodeJoinRoom accepts the room id either bare ("data": "r1") or as {"roomId": "r1"}.
func decodeJoinRoom(frame InboundFrame) (services.JoinRoomRequest, error) {
	var roomID string
	if err := json.Unmarshal(frame.Data, &roomID); err == nil {
		return services.JoinRoomRequest{RoomID: roomID}, nil
	}
	return decodeData[services.JoinRoomRequest](frame)
}
