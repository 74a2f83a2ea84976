package domain

import (
	"encoding/json"
	"time"
)

// Socket topics. A socket receives broadcasts for the topics it is tagged with.
const (
	TopicCounterUpdates    = "counter-updates"
	TopicConnectionUpdates = "connection-updates"
)

// Raw text keepalive frames. They are not JSON.
const (
	PingFrame = "ping"
	PongFrame = "pong"
)

// MessageType is the "type" field of a JSON frame.
type MessageType string

const (
	TypeSubscribe       MessageType = "subscribe"
	TypeUnsubscribe     MessageType = "unsubscribe"
	TypeCounterState    MessageType = "counter-state"
	TypeCounterUpdate   MessageType = "counter-update"
	TypeConnectionCount MessageType = "connection-count"
)

// Inbound is a decoded client frame. The set of implementations is closed:
// Ping, Subscribe, Unsubscribe and Unknown.
type Inbound interface {
	inbound()
}

// Ping is the raw "ping" keepalive.
type Ping struct{}

// Subscribe asks to (re)join the socket's topic.
type Subscribe struct {
	Timestamp int64
}

// Unsubscribe asks to leave the socket's topic without closing it.
type Unsubscribe struct {
	Timestamp int64
}

// Unknown is any frame that is neither a ping nor a known JSON message.
type Unknown struct {
	Type string
	Raw  []byte
}

func (Ping) inbound()        {}
func (Subscribe) inbound()   {}
func (Unsubscribe) inbound() {}
func (Unknown) inbound()     {}

// DecodeInbound classifies a client frame. It never fails; anything that
// cannot be understood becomes Unknown.
func DecodeInbound(raw []byte) Inbound {
	if string(raw) == PingFrame {
		return Ping{}
	}

	var f struct {
		Type      MessageType `json:"type"`
		Timestamp int64       `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return Unknown{Raw: raw}
	}

	switch f.Type {
	case TypeSubscribe:
		return Subscribe{Timestamp: f.Timestamp}
	case TypeUnsubscribe:
		return Unsubscribe{Timestamp: f.Timestamp}
	default:
		return Unknown{Type: string(f.Type), Raw: raw}
	}
}

// Frame is a JSON message on the socket, in either direction.
type Frame struct {
	Type      MessageType   `json:"type"`
	Data      *CounterState `json:"data,omitempty"`
	Count     *int          `json:"count,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// CounterStateFrame is sent to a single socket on connect or subscribe.
func CounterStateFrame(s CounterState, now time.Time) Frame {
	c := s.Clone()
	return Frame{Type: TypeCounterState, Data: &c, Timestamp: now.UnixMilli()}
}

// CounterUpdateFrame is broadcast after a committed mutation.
func CounterUpdateFrame(s CounterState, now time.Time) Frame {
	c := s.Clone()
	return Frame{Type: TypeCounterUpdate, Data: &c, Timestamp: now.UnixMilli()}
}

// ConnectionCountFrame is broadcast whenever the subscriber set changes.
func ConnectionCountFrame(n int, now time.Time) Frame {
	return Frame{Type: TypeConnectionCount, Count: &n, Timestamp: now.UnixMilli()}
}

// SubscribeFrame is sent by clients once the socket opens.
func SubscribeFrame(now time.Time) Frame {
	return Frame{Type: TypeSubscribe, Timestamp: now.UnixMilli()}
}

// UnsubscribeFrame is sent by clients before a deliberate close.
func UnsubscribeFrame(now time.Time) Frame {
	return Frame{Type: TypeUnsubscribe, Timestamp: now.UnixMilli()}
}

// Encode marshals the frame. Frame contains only plain fields, so
// marshalling cannot fail.
func (f Frame) Encode() []byte {
	b, _ := json.Marshal(f)
	return b
}

// DecodeFrame parses a JSON frame.
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, ErrBadRequest.WithDetails("malformed frame").WithCause(err)
	}
	return f, nil
}
