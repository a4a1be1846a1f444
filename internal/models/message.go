package models

import (
	"fmt"
	"strings"

	"mentorbridge/backend/internal/apperrors"
)

// MessageType tags the payload variant of a chat message.
type MessageType string

const (
	MessageText      MessageType = "text"
	MessageVoice     MessageType = "voice"
	MessageVideo     MessageType = "video"
	MessageVideoCall MessageType = "video_call"
	MessageRoadmap   MessageType = "roadmap"
)

// Message is one entry of a room's append-only chat log. Order is Timestamp asc, then ID asc.
type Message struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	RoomID        string      `gorm:"type:text;not null;index:idx_room_time,priority:1" json:"roomId"`
	SenderID      uint        `gorm:"not null" json:"senderId"`
	Type          MessageType `gorm:"type:text;not null" json:"type"`
	Text          string      `gorm:"type:text" json:"text,omitempty"`
	VoiceURL      string      `gorm:"type:text" json:"voiceUrl,omitempty"`
	AttachmentURL string      `gorm:"type:text" json:"attachmentUrl,omitempty"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `gorm:"not null;index:idx_room_time,priority:2" json:"timestamp"`
}

// Payload is the typed content of a message. Exactly one implementation exists per
// MessageType.
type Payload interface {
	Type() MessageType
	apply(m *Message)
}

type TextPayload struct{ Text string }

type VoicePayload struct {
	VoiceURL string
	Caption  string
}

type VideoPayload struct {
	VideoURL string
	Caption  string
}

type VideoCallPayload struct {
	CallURL string
	Note    string
}

type RoadmapPayload struct{ Roadmap string }

func (TextPayload) Type() MessageType      { return MessageText }
func (VoicePayload) Type() MessageType     { return MessageVoice }
func (VideoPayload) Type() MessageType     { return MessageVideo }
func (VideoCallPayload) Type() MessageType { return MessageVideoCall }
func (RoadmapPayload) Type() MessageType   { return MessageRoadmap }

func (p TextPayload) apply(m *Message)  { m.Text = p.Text }
func (p VoicePayload) apply(m *Message) { m.VoiceURL, m.Text = p.VoiceURL, p.Caption }
func (p VideoPayload) apply(m *Message) { m.AttachmentURL, m.Text = p.VideoURL, p.Caption }
func (p VideoCallPayload) apply(m *Message) {
	m.AttachmentURL, m.Text = p.CallURL, p.Note
}
func (p RoadmapPayload) apply(m *Message) { m.Text = p.Roadmap }

// MessageDraft is the loosely-typed inbound form of a message, as posted by clients.
type MessageDraft struct {
	RoomID        string      `json:"roomId" binding:"required"`
	SenderID      uint        `json:"senderId"`
	Type          MessageType `json:"type"`
	Text          string      `json:"text"`
	VoiceURL      string      `json:"voiceUrl"`
	AttachmentURL string      `json:"attachmentUrl"`
}

// Payload decodes the draft into its typed variant. An empty type means text.
func (d MessageDraft) Payload() (Payload, error) {
	text := strings.TrimSpace(d.Text)
	switch d.Type {
	case MessageText, "":
		if text == "" {
			return nil, invalid("text message requires text")
		}
		return TextPayload{Text: text}, nil
	case MessageVoice:
		if d.VoiceURL == "" {
			return nil, invalid("voice message requires voiceUrl")
		}
		return VoicePayload{VoiceURL: d.VoiceURL, Caption: text}, nil
	case MessageVideo:
		url := d.AttachmentURL
		if url == "" {
			url = d.VoiceURL
		}
		if url == "" {
			return nil, invalid("video message requires attachmentUrl")
		}
		return VideoPayload{VideoURL: url, Caption: text}, nil
	case MessageVideoCall:
		if d.AttachmentURL == "" {
			return nil, invalid("video_call message requires attachmentUrl")
		}
		return VideoCallPayload{CallURL: d.AttachmentURL, Note: text}, nil
	case MessageRoadmap:
		if text == "" {
			return nil, invalid("roadmap message requires text")
		}
		return RoadmapPayload{Roadmap: text}, nil
	default:
		return nil, invalid(fmt.Sprintf("unknown message type %q", d.Type))
	}
}

// NewMessage builds an unsaved message from a typed payload.
func NewMessage(roomID string, senderID uint, p Payload, timestamp int64) *Message {
	m := &Message{RoomID: roomID, SenderID: senderID, Type: p.Type(), Timestamp: timestamp}
	p.apply(m)
	return m
}

func invalid(msg string) error {
	return apperrors.New(apperrors.ErrValidation, msg)
}
