package protocol

import (
	"go.uber.org/zap"

	"github.com/castwatch/castwatch/internal/logging"
)

// ControlAction tells the connection owner what to do with a message
type ControlAction int

const (
	// ActionDeliver means the message is not connection control and belongs
	// to the caller
	ActionDeliver ControlAction = iota

	// ActionReply means Reply must be written back
	ActionReply

	// ActionClosed means the receiver closed the virtual connection
	ActionClosed

	// ActionIgnore means the message needs no handling (e.g., PONG)
	ActionIgnore
)

// HandleControl processes connection-level messages every sender must answer
// itself: heartbeat PINGs and CLOSE from the platform receiver.
func HandleControl(m *Message) (ControlAction, *Message) {
	switch m.Namespace {
	case NamespaceHeartbeat, NamespaceConnection:
	default:
		return ActionDeliver, nil
	}

	h, err := ParseHeader(m)
	if err != nil {
		logging.Debug("Ignoring malformed control message",
			zap.String("namespace", m.Namespace),
			zap.Error(err),
		)
		return ActionIgnore, nil
	}

	switch {
	case m.Namespace == NamespaceHeartbeat && h.Type == TypePing:
		pong, err := BuildPong(m.SourceID)
		if err != nil {
			return ActionIgnore, nil
		}
		return ActionReply, pong

	case m.Namespace == NamespaceConnection && h.Type == TypeClose:
		logging.Debug("Receiver closed virtual connection", zap.String("source", m.SourceID))
		return ActionClosed, nil

	default:
		return ActionIgnore, nil
	}
}
