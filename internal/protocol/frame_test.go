package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestMessage_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "string payload",
			msg: &Message{
				SourceID:      DefaultSenderID,
				DestinationID: DefaultReceiverID,
				Namespace:     NamespaceReceiver,
				PayloadType:   PayloadString,
				PayloadUTF8:   `{"type":"GET_STATUS","requestId":7}`,
			},
		},
		{
			name: "binary payload",
			msg: &Message{
				SourceID:      "web-5",
				DestinationID: DefaultSenderID,
				Namespace:     "urn:x-cast:com.google.cast.tp.deviceauth",
				PayloadType:   PayloadBinary,
				PayloadBinary: []byte{0x0a, 0x00, 0xff},
			},
		},
		{
			name: "empty strings",
			msg:  &Message{PayloadType: PayloadString},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unmarshal(tt.msg.Marshal())
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got.SourceID != tt.msg.SourceID || got.DestinationID != tt.msg.DestinationID ||
				got.Namespace != tt.msg.Namespace || got.PayloadType != tt.msg.PayloadType ||
				got.PayloadUTF8 != tt.msg.PayloadUTF8 || !bytes.Equal(got.PayloadBinary, tt.msg.PayloadBinary) {
				t.Errorf("Unmarshal(Marshal()) = %v, want %v", got, tt.msg)
			}
		})
	}
}

func TestMessage_MarshalWireLayout(t *testing.T) {
	msg := &Message{SourceID: "s", DestinationID: "d", Namespace: "n", PayloadUTF8: "p"}

	want := []byte{
		0x08, 0x00, // 1: protocol_version = 0
		0x12, 0x01, 's', // 2: source_id
		0x1a, 0x01, 'd', // 3: destination_id
		0x22, 0x01, 'n', // 4: namespace
		0x28, 0x00, // 5: payload_type = STRING
		0x32, 0x01, 'p', // 6: payload_utf8
	}
	if got := msg.Marshal(); !bytes.Equal(got, want) {
		t.Errorf("Marshal() = % x, want % x", got, want)
	}
}

func TestUnmarshal_SkipsUnknownFields(t *testing.T) {
	b := (&Message{Namespace: NamespaceMedia, PayloadUTF8: "{}"}).Marshal()
	b = protowire.AppendTag(b, 15, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)
	b = protowire.AppendTag(b, 16, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Namespace != NamespaceMedia || got.PayloadUTF8 != "{}" {
		t.Errorf("Unmarshal() = %v", got)
	}
}

func TestUnmarshal_Truncated(t *testing.T) {
	b := (&Message{Namespace: NamespaceMedia, PayloadUTF8: `{"type":"PING"}`}).Marshal()

	if _, err := Unmarshal(b[:len(b)-3]); err == nil {
		t.Error("Unmarshal() of truncated message: error = nil, want error")
	}
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	first, _ := BuildPing()
	second, _ := BuildReceiverGetStatus(42)

	if err := WriteFrame(&buf, first); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if err := WriteFrame(&buf, second); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	size := binary.BigEndian.Uint32(buf.Bytes()[:4])
	if int(size) != len(first.Marshal()) {
		t.Errorf("length prefix = %d, want %d", size, len(first.Marshal()))
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if got.Namespace != NamespaceHeartbeat {
		t.Errorf("first frame namespace = %v, want %v", got.Namespace, NamespaceHeartbeat)
	}

	got, err = ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if got.PayloadUTF8 != second.PayloadUTF8 {
		t.Errorf("second frame payload = %v, want %v", got.PayloadUTF8, second.PayloadUTF8)
	}

	if _, err := ReadFrame(&buf); !errors.Is(err, io.EOF) {
		t.Errorf("ReadFrame() on empty stream error = %v, want EOF", err)
	}
}

func TestReadFrame_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{
			name:    "oversized length",
			data:    []byte{0x00, 0x01, 0x00, 0x01},
			wantErr: ErrMessageTooLarge,
		},
		{
			name:    "short header",
			data:    []byte{0x00, 0x00},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "short body",
			data:    []byte{0x00, 0x00, 0x00, 0x10, 0x08, 0x00},
			wantErr: io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ReadFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteFrame_TooLarge(t *testing.T) {
	msg := &Message{PayloadType: PayloadBinary, PayloadBinary: make([]byte, MaxMessageSize)}

	err := WriteFrame(io.Discard, msg)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("WriteFrame() error = %v, want %v", err, ErrMessageTooLarge)
	}
}
