// Package protocol defines the wire schema spoken between client and
// server: named events multiplexed over one bidirectional connection,
// request/response correlation, and the typed payloads for each event.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hexhold/hexhold/internal/model"
)

// Client-initiated events. Each expects exactly one acknowledging
// Response correlated by sequence number.
const (
	EventRegister   = "register"
	EventAuth       = "auth"
	EventHostRoom   = "hostRoom"
	EventJoinRoom   = "joinRoom"
	EventLeaveRoom  = "leaveRoom"
	EventStartMatch = "startMatch"
	EventMessage    = "message"
	EventTowers     = "towers"
	EventReady      = "ready"
)

// Server-pushed events. Unsolicited; routed by room relevance on the
// client side.
const (
	EventPushMessage   = "message"
	EventPushUsers     = "users"
	EventPushStart     = "start"
	EventPushAllReady  = "allReady"
	EventPushSetTowers = "setTowers"
)

// Envelope frames every message on the wire. Requests carry a non-zero
// Seq; the matching response echoes it in Ack. Pushes carry neither.
type Envelope struct {
	Event string          `json:"event"`
	Seq   uint64          `json:"seq,omitempty"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserInfo is one roster entry
type UserInfo struct {
	Username string `json:"username"`
	Color    string `json:"color,omitempty"`
}

// Response is the discriminated shape every acknowledgment carries:
// a non-empty Error XOR a Data payload, plus an optional roster.
type Response struct {
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data,omitempty"`
	Users []UserInfo      `json:"users,omitempty"`
}

// OK reports whether the response carries data rather than an error
func (r *Response) OK() bool {
	return r.Error == ""
}

// Err converts a non-empty error string into a ProtocolError. A
// response that claims both error and data is itself malformed.
func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return fmt.Errorf("%w: %s", model.ErrProtocol, r.Error)
}

// DecodeData unmarshals the response payload into v, rejecting
// malformed payloads as ProtocolError rather than panicking on
// missing fields downstream.
func (r *Response) DecodeData(v any) error {
	if r.Error != "" {
		return r.Err()
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: response carried no data", model.ErrProtocol)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", model.ErrProtocol, err)
	}
	return nil
}

// Ok builds a success response with the given payload
func Ok(data any) Response {
	raw, _ := json.Marshal(data)
	return Response{Data: raw}
}

// OkUsers builds a success response with a payload and roster
func OkUsers(data any, users []UserInfo) Response {
	r := Ok(data)
	r.Users = users
	return r
}

// Fail builds an error response from err's message
func Fail(err error) Response {
	return Response{Error: err.Error()}
}

// Roster converts room members to wire roster entries
func Roster(members []model.Credential) []UserInfo {
	users := make([]UserInfo, 0, len(members))
	for _, m := range members {
		users = append(users, UserInfo{Username: m.Username, Color: m.ColorHex})
	}
	return users
}

// DecodeRequest unmarshals a request envelope's payload into v. An
// absent payload decodes zero values, matching events like hostRoom
// that carry no arguments.
func DecodeRequest(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed request: %v", model.ErrProtocol, err)
	}
	return nil
}
