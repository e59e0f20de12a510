package main

import (
	"encoding/json"
	"fmt"
)

// Client and server exchange JSON tagged unions, one message per websocket
// text frame, in the shape {"type":"...","data":{...}}.

type clientMessage interface {
	isClientMessage()
}

// JoinMessage renames the sender; the server assigns a default name on
// connect, so "Join" is effectively an introduction.
type JoinMessage struct {
	Name string `json:"name"`
}

// TypedProgressMessage shares the sender's in-progress typing with the room.
type TypedProgressMessage struct {
	Typed string `json:"typed"`
}

// SubmitWordMessage is the sender's attempt to win the current round.
type SubmitWordMessage struct {
	Word string `json:"word"`
}

func (JoinMessage) isClientMessage()          {}
func (TypedProgressMessage) isClientMessage() {}
func (SubmitWordMessage) isClientMessage()    {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// decodeClientMessage parses one inbound frame. Unknown discriminants and
// malformed payloads are errors; the caller drops the frame and carries on.
func decodeClientMessage(payload []byte) (clientMessage, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decoding message envelope: %w", err)
	}

	switch env.Type {
	case "Join":
		var msg JoinMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decoding Join payload: %w", err)
		}
		return msg, nil
	case "TypedProgress":
		var msg TypedProgressMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decoding TypedProgress payload: %w", err)
		}
		return msg, nil
	case "SubmitWord":
		var msg SubmitWordMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("decoding SubmitWord payload: %w", err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// ServerMessage is an outbound frame.
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type WelcomeData struct {
	PlayerID uint64 `json:"player_id"`
}

// PlayerState is one entry in a state snapshot's scoreboard.
type PlayerState struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Score uint64 `json:"score"`
	Typed string `json:"typed"`
}

// StateData is the complete broadcastable view of the game at one instant.
type StateData struct {
	Round           uint64        `json:"round"`
	CurrentWord     string        `json:"current_word"`
	Players         []PlayerState `json:"players"`
	WinnerLastRound *string       `json:"winner_last_round"`
}

func welcomeMessage(playerID uint64) ServerMessage {
	return ServerMessage{
		Type: "Welcome",
		Data: WelcomeData{PlayerID: playerID},
	}
}

func stateMessage(state StateData) ServerMessage {
	return ServerMessage{
		Type: "State",
		Data: state,
	}
}
