// Package protocol is the JSON wire format shared by the relay and clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/validator"
)

type Type string

const (
	TypeUpdate      Type = Type(domain.EventUpdate)
	TypePlay        Type = Type(domain.EventPlay)
	TypePause       Type = Type(domain.EventPause)
	TypeSeek        Type = Type(domain.EventSeek)
	TypeChange      Type = Type(domain.EventChange)
	TypeJoined      Type = "joined"
	TypeRoleUpdated Type = "role_updated"
	TypeError       Type = "error"
)

var ErrUnknownType = errors.New("unknown message type")

// Message is the envelope every frame travels in. SenderID is stamped by the
// relay; clients leave it empty.
type Message struct {
	Type     Type            `json:"type"`
	SenderID string          `json:"sender_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type SeekPayload struct {
	Time float64 `json:"time" validate:"gte=0"`
}

type JoinedPayload struct {
	MemberID  string             `json:"member_id" validate:"required"`
	Role      string             `json:"role" validate:"oneof=owner member"`
	AuthToken string             `json:"auth_token" validate:"required"`
	State     *domain.Descriptor `json:"state"`
}

type RoleUpdatedPayload struct {
	MemberID string `json:"member_id" validate:"required"`
	Role     string `json:"role" validate:"oneof=owner member"`
}

type ErrorPayload struct {
	Message string                      `json:"message"`
	Errors  []validator.ValidationError `json:"errors,omitempty"`
}

// IsEvent reports whether t is one of the playback events routed to a
// session.
func (t Type) IsEvent() bool {
	switch t {
	case TypeUpdate, TypePlay, TypePause, TypeSeek, TypeChange:
		return true
	default:
		return false
	}
}

// Codec encodes and decodes envelopes and validates their payloads.
type Codec struct {
	validator *validator.Validator
}

func NewCodec(v *validator.Validator) *Codec {
	if v == nil {
		v = validator.NewValidator()
	}

	return &Codec{validator: v}
}

func NewMessage(t Type, senderID string, payload any) (Message, error) {
	msg := Message{
		Type:     t,
		SenderID: senderID,
	}

	if payload == nil {
		return msg, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	msg.Payload = raw

	return msg, nil
}

func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	return data, nil
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("message without type: %w", domain.ErrInvalidEvent)
	}

	return msg, nil
}

// Payload unmarshals msg's payload into dst and validates it.
func (c *Codec) Payload(msg Message, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s without payload: %w", msg.Type, domain.ErrInvalidEvent)
	}

	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", msg.Type, errors.Join(domain.ErrInvalidEvent, err))
	}

	if err := c.validator.Struct(dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msg.Type, errors.Join(domain.ErrInvalidEvent, err))
	}

	return nil
}

// Event converts a playback message into a domain event.
func (c *Codec) Event(msg Message) (domain.Event, error) {
	ev := domain.Event{
		Type:     domain.EventType(msg.Type),
		SenderID: msg.SenderID,
	}

	switch msg.Type {
	case TypeUpdate, TypeChange:
		var d domain.Descriptor
		if err := c.Payload(msg, &d); err != nil {
			return domain.Event{}, err
		}
		ev.Descriptor = &d
	case TypeSeek:
		var p SeekPayload
		if err := c.Payload(msg, &p); err != nil {
			return domain.Event{}, err
		}
		ev.Time = p.Time
	case TypePlay, TypePause:
	default:
		return domain.Event{}, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	return ev, nil
}

// FromEvent is the inverse of Event.
func FromEvent(ev domain.Event) (Message, error) {
	switch ev.Type {
	case domain.EventUpdate, domain.EventChange:
		if ev.Descriptor == nil {
			return Message{}, fmt.Errorf("%s without descriptor: %w", ev.Type, domain.ErrInvalidEvent)
		}
		return NewMessage(Type(ev.Type), ev.SenderID, ev.Descriptor)
	case domain.EventSeek:
		return NewMessage(TypeSeek, ev.SenderID, SeekPayload{Time: ev.Time})
	case domain.EventPlay, domain.EventPause:
		return NewMessage(Type(ev.Type), ev.SenderID, nil)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
}

func (c *Codec) Joined(msg Message) (JoinedPayload, error) {
	var p JoinedPayload
	if err := c.Payload(msg, &p); err != nil {
		return JoinedPayload{}, err
	}

	if p.State != nil {
		if err := c.validator.Struct(p.State); err != nil {
			return JoinedPayload{}, fmt.Errorf("invalid joined state: %w", errors.Join(domain.ErrInvalidEvent, err))
		}
	}

	return p, nil
}

func (c *Codec) RoleUpdated(msg Message) (RoleUpdatedPayload, error) {
	var p RoleUpdatedPayload
	if err := c.Payload(msg, &p); err != nil {
		return RoleUpdatedPayload{}, err
	}

	return p, nil
}

func (c *Codec) Error(msg Message) (ErrorPayload, error) {
	var p ErrorPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return ErrorPayload{}, fmt.Errorf("failed to unmarshal error payload: %w", err)
	}

	return p, nil
}
