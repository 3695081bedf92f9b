package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// MaxMessageSize is the largest encoded CastMessage accepted or sent.
	// Receivers never send more than 64 KiB in one message.
	MaxMessageSize = 64 * 1024

	// frameHeaderSize is the big-endian uint32 length prefix
	frameHeaderSize = 4

	// ProtocolVersion is CASTV2_1_0, the only version in use
	ProtocolVersion = 0
)

// PayloadType selects which payload field of a message is set
type PayloadType int32

const (
	PayloadString PayloadType = 0
	PayloadBinary PayloadType = 1
)

// CastMessage field numbers
const (
	fieldProtocolVersion protowire.Number = 1
	fieldSourceID        protowire.Number = 2
	fieldDestinationID   protowire.Number = 3
	fieldNamespace       protowire.Number = 4
	fieldPayloadType     protowire.Number = 5
	fieldPayloadUTF8     protowire.Number = 6
	fieldPayloadBinary   protowire.Number = 7
)

// ErrMessageTooLarge is returned for frames above MaxMessageSize
var ErrMessageTooLarge = errors.New("cast message too large")

// Message is one CastMessage exchanged over the device channel
type Message struct {
	ProtocolVersion int32
	SourceID        string
	DestinationID   string
	Namespace       string
	PayloadType     PayloadType
	PayloadUTF8     string
	PayloadBinary   []byte
}

// Marshal encodes the message in protobuf wire format.
func (m *Message) Marshal() []byte {
	b := make([]byte, 0, 64+len(m.Namespace)+len(m.PayloadUTF8)+len(m.PayloadBinary))

	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion))
	b = protowire.AppendTag(b, fieldSourceID, protowire.BytesType)
	b = protowire.AppendString(b, m.SourceID)
	b = protowire.AppendTag(b, fieldDestinationID, protowire.BytesType)
	b = protowire.AppendString(b, m.DestinationID)
	b = protowire.AppendTag(b, fieldNamespace, protowire.BytesType)
	b = protowire.AppendString(b, m.Namespace)
	b = protowire.AppendTag(b, fieldPayloadType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.PayloadType))

	switch m.PayloadType {
	case PayloadBinary:
		b = protowire.AppendTag(b, fieldPayloadBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, m.PayloadBinary)
	default:
		b = protowire.AppendTag(b, fieldPayloadUTF8, protowire.BytesType)
		b = protowire.AppendString(b, m.PayloadUTF8)
	}

	return b
}

// Unmarshal decodes a CastMessage. Unknown fields are skipped.
func Unmarshal(data []byte) (*Message, error) {
	m := &Message{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("failed to read field tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldProtocolVersion || num == fieldPayloadType):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to read field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if num == fieldProtocolVersion {
				m.ProtocolVersion = int32(v)
			} else {
				m.PayloadType = PayloadType(v)
			}

		case typ == protowire.BytesType && num >= fieldSourceID && num <= fieldPayloadBinary && num != fieldPayloadType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("failed to read field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case fieldSourceID:
				m.SourceID = string(v)
			case fieldDestinationID:
				m.DestinationID = string(v)
			case fieldNamespace:
				m.Namespace = string(v)
			case fieldPayloadUTF8:
				m.PayloadUTF8 = string(v)
			case fieldPayloadBinary:
				m.PayloadBinary = append([]byte(nil), v...)
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	return m, nil
}

// ReadFrame reads one length-prefixed CastMessage from the reader
func ReadFrame(r io.Reader) (*Message, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header)
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, size, MaxMessageSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	return Unmarshal(body)
}

// WriteFrame writes the message with its length prefix in a single Write
func WriteFrame(w io.Writer, m *Message) error {
	body := m.Marshal()
	if len(body) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(body), MaxMessageSize)
	}

	frame := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[frameHeaderSize:], body)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// String returns a debug representation of the message
func (m *Message) String() string {
	if m.PayloadType == PayloadBinary {
		return fmt.Sprintf("Message{%s -> %s, ns=%s, binary=%d bytes}",
			m.SourceID, m.DestinationID, m.Namespace, len(m.PayloadBinary))
	}
	return fmt.Sprintf("Message{%s -> %s, ns=%s, payload=%s}",
		m.SourceID, m.DestinationID, m.Namespace, m.PayloadUTF8)
}
