package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotJSON is returned when a message carries a binary payload
var ErrNotJSON = errors.New("message payload is not JSON")

// Header holds the fields common to every JSON payload
type Header struct {
	Type      string `json:"type"`
	RequestID int    `json:"requestId"`
}

// ParseHeader decodes the type and request id of a string-payload message
func ParseHeader(m *Message) (Header, error) {
	var h Header
	if m.PayloadType != PayloadString {
		return h, ErrNotJSON
	}
	if err := json.Unmarshal([]byte(m.PayloadUTF8), &h); err != nil {
		return h, fmt.Errorf("failed to decode %s payload: %w", m.Namespace, err)
	}
	return h, nil
}

// IsErrorType reports whether a payload type is a receiver error response
func IsErrorType(t string) bool {
	switch t {
	case TypeInvalidRequest, TypeLoadFailed, "LOAD_CANCELLED", "INVALID_PLAYER_STATE":
		return true
	default:
		return false
	}
}

// Namespace is one namespace an application listens on
type Namespace struct {
	Name string `json:"name"`
}

// Application is a receiver application in a RECEIVER_STATUS
type Application struct {
	AppID        string      `json:"appId"`
	DisplayName  string      `json:"displayName"`
	SessionID    string      `json:"sessionId"`
	TransportID  string      `json:"transportId"`
	StatusText   string      `json:"statusText"`
	IsIdleScreen bool        `json:"isIdleScreen"`
	Namespaces   []Namespace `json:"namespaces"`
}

// HasNamespace reports whether the application listens on ns
func (a Application) HasNamespace(ns string) bool {
	for _, n := range a.Namespaces {
		if n.Name == ns {
			return true
		}
	}
	return false
}

// Volume is the receiver volume
type Volume struct {
	Level *float64 `json:"level"`
	Muted bool     `json:"muted"`
}

// ReceiverStatus is the status object of a RECEIVER_STATUS message
type ReceiverStatus struct {
	Applications []Application `json:"applications"`
	Volume       Volume        `json:"volume"`
}

// MediaApp returns the first running application that speaks the media
// namespace. The backdrop (idle screen) never does.
func (s *ReceiverStatus) MediaApp() (Application, bool) {
	for _, app := range s.Applications {
		if app.IsIdleScreen || app.TransportID == "" {
			continue
		}
		if app.HasNamespace(NamespaceMedia) {
			return app, true
		}
	}
	return Application{}, false
}

type receiverStatusPayload struct {
	Header
	Status ReceiverStatus `json:"status"`
}

// ParseReceiverStatus decodes a RECEIVER_STATUS message
func ParseReceiverStatus(m *Message) (*ReceiverStatus, error) {
	var p receiverStatusPayload
	if err := decodeTyped(m, TypeReceiverStatus, &p, &p.Header); err != nil {
		return nil, err
	}
	return &p.Status, nil
}

// MediaMetadata is the descriptive part of a media item
type MediaMetadata struct {
	MetadataType int    `json:"metadataType"`
	Title        string `json:"title"`
	Subtitle     string `json:"subtitle"`
	Artist       string `json:"artist"`
	AlbumName    string `json:"albumName"`
	SeriesTitle  string `json:"seriesTitle"`
}

// MediaInformation describes the loaded media item
type MediaInformation struct {
	ContentID   string         `json:"contentId"`
	ContentType string         `json:"contentType"`
	StreamType  string         `json:"streamType"`
	Duration    *float64       `json:"duration"`
	Metadata    *MediaMetadata `json:"metadata"`
}

// Title returns the metadata title, or "" when the item has no metadata
func (mi *MediaInformation) Title() string {
	if mi == nil || mi.Metadata == nil {
		return ""
	}
	return mi.Metadata.Title
}

// MediaStatus is one media session entry of a MEDIA_STATUS message.
// Media is nil when the receiver omitted it because it did not change.
type MediaStatus struct {
	MediaSessionID int               `json:"mediaSessionId"`
	PlayerState    string            `json:"playerState"`
	IdleReason     string            `json:"idleReason"`
	CurrentTime    float64           `json:"currentTime"`
	Media          *MediaInformation `json:"media"`
}

type mediaStatusPayload struct {
	Header
	Status []MediaStatus `json:"status"`
}

// ParseMediaStatus decodes a MEDIA_STATUS message. An empty list means the
// application has no media session.
func ParseMediaStatus(m *Message) ([]MediaStatus, error) {
	var p mediaStatusPayload
	if err := decodeTyped(m, TypeMediaStatus, &p, &p.Header); err != nil {
		return nil, err
	}
	return p.Status, nil
}

func decodeTyped(m *Message, want string, v any, h *Header) error {
	if m.PayloadType != PayloadString {
		return ErrNotJSON
	}
	if err := json.Unmarshal([]byte(m.PayloadUTF8), v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", want, err)
	}
	if h.Type != want {
		return fmt.Errorf("unexpected message type %q (want %s)", h.Type, want)
	}
	return nil
}
