package protocol

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Namespaces used by a status-reading sender
const (
	NamespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	NamespaceHeartbeat  = "urn:x-cast:com.google.cast.tp.heartbeat"
	NamespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	NamespaceMedia      = "urn:x-cast:com.google.cast.media"
)

// Well-known endpoint ids
const (
	DefaultSenderID   = "sender-0"
	DefaultReceiverID = "receiver-0"

	// BroadcastID is the destination of unsolicited status updates
	BroadcastID = "*"
)

// Message types carried in the JSON "type" field
const (
	TypeConnect        = "CONNECT"
	TypeClose          = "CLOSE"
	TypePing           = "PING"
	TypePong           = "PONG"
	TypeGetStatus      = "GET_STATUS"
	TypeReceiverStatus = "RECEIVER_STATUS"
	TypeMediaStatus    = "MEDIA_STATUS"
	TypeInvalidRequest = "INVALID_REQUEST"
	TypeLoadFailed     = "LOAD_FAILED"
)

// userAgent identifies this sender in CONNECT messages
const userAgent = "castwatch"

// Request id counter shared by all connections (thread-safe)
var requestIDCounter int64

// GenerateRequestID returns the next request id.
//
// Receivers answer a request with the same requestId; unsolicited updates
// carry 0, so 0 is never returned.
func GenerateRequestID() int {
	for {
		id := int(atomic.AddInt64(&requestIDCounter, 1) & 0x7fffffff)
		if id != 0 {
			return id
		}
	}
}

type connectPayload struct {
	Type      string         `json:"type"`
	Origin    map[string]any `json:"origin"`
	UserAgent string         `json:"userAgent"`
}

type typedPayload struct {
	Type string `json:"type"`
}

type requestPayload struct {
	Type      string `json:"type"`
	RequestID int    `json:"requestId"`
}

// BuildJSONMessage constructs a string-payload message from sender-0.
func BuildJSONMessage(namespace, destination string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", namespace, err)
	}
	return &Message{
		ProtocolVersion: ProtocolVersion,
		SourceID:        DefaultSenderID,
		DestinationID:   destination,
		Namespace:       namespace,
		PayloadType:     PayloadString,
		PayloadUTF8:     string(data),
	}, nil
}

// BuildConnect opens a virtual connection to destination, which is
// receiver-0 for the platform or an application's transportId.
func BuildConnect(destination string) (*Message, error) {
	return BuildJSONMessage(NamespaceConnection, destination, connectPayload{
		Type:      TypeConnect,
		Origin:    map[string]any{},
		UserAgent: userAgent,
	})
}

// BuildClose closes the virtual connection to destination
func BuildClose(destination string) (*Message, error) {
	return BuildJSONMessage(NamespaceConnection, destination, typedPayload{Type: TypeClose})
}

// BuildPing constructs a heartbeat PING to the platform receiver
func BuildPing() (*Message, error) {
	return BuildJSONMessage(NamespaceHeartbeat, DefaultReceiverID, typedPayload{Type: TypePing})
}

// BuildPong answers a heartbeat PING from destination
func BuildPong(destination string) (*Message, error) {
	return BuildJSONMessage(NamespaceHeartbeat, destination, typedPayload{Type: TypePong})
}

// BuildReceiverGetStatus asks the platform receiver for its running applications
func BuildReceiverGetStatus(requestID int) (*Message, error) {
	return BuildJSONMessage(NamespaceReceiver, DefaultReceiverID, requestPayload{
		Type:      TypeGetStatus,
		RequestID: requestID,
	})
}

// BuildMediaGetStatus asks the application at transportID for its media sessions
func BuildMediaGetStatus(transportID string, requestID int) (*Message, error) {
	return BuildJSONMessage(NamespaceMedia, transportID, requestPayload{
		Type:      TypeGetStatus,
		RequestID: requestID,
	})
}
