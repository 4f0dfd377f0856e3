// Package event defines the wire schema for relay frames: a tagged event
// union plus the routing envelope types shared by the websocket layer, the
// dispatcher, and the system responder.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SystemAddress is the reserved recipient id handled by the built-in
// responder rather than a human user.
const SystemAddress uint64 = 0

// Kind names the event variant. It appears twice on the wire: as the union
// tag inside "event" and mirrored in the top-level "eventType" field.
type Kind string

const (
	KindChat    Kind = "chat"
	KindSpeech  Kind = "speech"
	KindLoading Kind = "loading"
	KindError   Kind = "error"
)

// Event is the tagged payload union. On the wire it is an object with a
// single key naming the variant: {"chat":"..."}, {"speech":"..."},
// {"loading":true} or {"error":"..."}.
type Event struct {
	Kind    Kind
	Text    string // chat text, speech file name, or error reason
	Loading bool
}

func Chat(text string) Event          { return Event{Kind: KindChat, Text: text} }
func Speech(path string) Event        { return Event{Kind: KindSpeech, Text: path} }
func Loading(on bool) Event           { return Event{Kind: KindLoading, Loading: on} }
func ServerError(reason string) Event { return Event{Kind: KindError, Text: reason} }

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindChat, KindSpeech, KindError:
		return json.Marshal(map[Kind]string{e.Kind: e.Text})
	case KindLoading:
		return json.Marshal(map[Kind]bool{e.Kind: e.Loading})
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[Kind]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("event must have exactly one variant, got %d", len(raw))
	}
	for kind, payload := range raw {
		switch kind {
		case KindChat, KindSpeech, KindError:
			if err := json.Unmarshal(payload, &e.Text); err != nil {
				return fmt.Errorf("event %q payload: %w", kind, err)
			}
		case KindLoading:
			if err := json.Unmarshal(payload, &e.Loading); err != nil {
				return fmt.Errorf("event %q payload: %w", kind, err)
			}
		default:
			return fmt.Errorf("unknown event kind %q", kind)
		}
		e.Kind = kind
	}
	return nil
}

// Message is one relay frame. To == SystemAddress routes to the built-in
// responder; any other To fans out to the recipient's open connections.
type Message struct {
	From       uint64  `json:"from"`
	To         uint64  `json:"to"`
	Event      Event   `json:"event"`
	Type       Kind    `json:"eventType"`
	MsgID      string  `json:"msgId"`
	ReplyMsgID *string `json:"replyMsgId"`
}

// Validate rejects frames whose mirrored eventType disagrees with the union
// tag, and frames with an empty message id.
func (m Message) Validate() error {
	if m.Type != m.Event.Kind {
		return fmt.Errorf("eventType %q does not match event tag %q", m.Type, m.Event.Kind)
	}
	if m.MsgID == "" {
		return fmt.Errorf("missing msgId")
	}
	return nil
}

// New builds a consistent Message for the given event.
func New(from, to uint64, ev Event, msgID string, replyMsgID *string) Message {
	return Message{From: from, To: to, Event: ev, Type: ev.Kind, MsgID: msgID, ReplyMsgID: replyMsgID}
}

// Envelope pairs an inbound message with the connection it arrived on, so the
// dispatcher can attribute system requests to the originating socket.
type Envelope struct {
	ConnID uuid.UUID
	Msg    Message
}
