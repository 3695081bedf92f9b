package protocol

import (
	"testing"
)

func jsonMessage(namespace, payload string) *Message {
	return &Message{
		SourceID:      DefaultReceiverID,
		DestinationID: DefaultSenderID,
		Namespace:     namespace,
		PayloadType:   PayloadString,
		PayloadUTF8:   payload,
	}
}

const receiverStatusJSON = `{
  "type": "RECEIVER_STATUS",
  "requestId": 12,
  "status": {
    "applications": [
      {
        "appId": "E8C28D3C",
        "displayName": "Backdrop",
        "isIdleScreen": true,
        "sessionId": "b1",
        "transportId": "b1",
        "namespaces": [{"name": "urn:x-cast:com.google.cast.sse"}]
      },
      {
        "appId": "CC32E753",
        "displayName": "Spotify",
        "sessionId": "7E2FF513-CDF6-4DAB-A6C3-6A6E3A8BE1D2",
        "statusText": "Spotify",
        "transportId": "web-5",
        "namespaces": [
          {"name": "urn:x-cast:com.google.cast.media"},
          {"name": "urn:x-cast:com.spotify.chromecast.secure.v1"}
        ]
      }
    ],
    "volume": {"level": 0.35, "muted": false}
  }
}`

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(jsonMessage(NamespaceReceiver, receiverStatusJSON))
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if h.Type != TypeReceiverStatus || h.RequestID != 12 {
		t.Errorf("ParseHeader() = %+v, want RECEIVER_STATUS/12", h)
	}

	if _, err := ParseHeader(&Message{PayloadType: PayloadBinary}); err != ErrNotJSON {
		t.Errorf("ParseHeader(binary) error = %v, want %v", err, ErrNotJSON)
	}
	if _, err := ParseHeader(jsonMessage(NamespaceMedia, "{not json")); err == nil {
		t.Error("ParseHeader(invalid) error = nil, want error")
	}
}

func TestParseReceiverStatus(t *testing.T) {
	status, err := ParseReceiverStatus(jsonMessage(NamespaceReceiver, receiverStatusJSON))
	if err != nil {
		t.Fatalf("ParseReceiverStatus() error = %v", err)
	}

	if len(status.Applications) != 2 {
		t.Fatalf("len(Applications) = %d, want 2", len(status.Applications))
	}
	if status.Volume.Level == nil || *status.Volume.Level != 0.35 {
		t.Errorf("Volume.Level = %v, want 0.35", status.Volume.Level)
	}

	app, ok := status.MediaApp()
	if !ok {
		t.Fatal("MediaApp() found no media application")
	}
	if app.TransportID != "web-5" || app.DisplayName != "Spotify" {
		t.Errorf("MediaApp() = %+v, want Spotify on web-5", app)
	}
}

func TestReceiverStatus_MediaAppIdle(t *testing.T) {
	payload := `{"type":"RECEIVER_STATUS","requestId":1,"status":{"applications":[
		{"appId":"E8C28D3C","isIdleScreen":true,"transportId":"b1","namespaces":[{"name":"urn:x-cast:com.google.cast.media"}]}
	]}}`
	status, err := ParseReceiverStatus(jsonMessage(NamespaceReceiver, payload))
	if err != nil {
		t.Fatalf("ParseReceiverStatus() error = %v", err)
	}
	if _, ok := status.MediaApp(); ok {
		t.Error("MediaApp() on idle receiver = true, want false")
	}

	empty := &ReceiverStatus{}
	if _, ok := empty.MediaApp(); ok {
		t.Error("MediaApp() with no applications = true, want false")
	}
}

func TestParseReceiverStatus_WrongType(t *testing.T) {
	_, err := ParseReceiverStatus(jsonMessage(NamespaceReceiver, `{"type":"LAUNCH_ERROR","requestId":1}`))
	if err == nil {
		t.Error("ParseReceiverStatus() error = nil, want unexpected type error")
	}
}

func TestParseMediaStatus(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantLen      int
		wantContent  string
		wantType     string
		wantTitle    string
		wantDuration *float64
		wantMedia    bool
	}{
		{
			name: "playing with metadata",
			payload: `{"type":"MEDIA_STATUS","requestId":5,"status":[{
				"mediaSessionId":1,"playerState":"PLAYING","currentTime":12.5,
				"media":{"contentId":"spotify:track:abc","contentType":"application/x-spotify.track",
				"streamType":"BUFFERED","duration":215.5,"metadata":{"metadataType":3,"title":"Song A","artist":"Band"}}}]}`,
			wantLen:      1,
			wantContent:  "spotify:track:abc",
			wantType:     "application/x-spotify.track",
			wantTitle:    "Song A",
			wantDuration: floatPtr(215.5),
			wantMedia:    true,
		},
		{
			name: "live stream without duration",
			payload: `{"type":"MEDIA_STATUS","requestId":0,"status":[{
				"mediaSessionId":2,"playerState":"BUFFERING",
				"media":{"contentId":"http://radio/stream","contentType":"audio/mpeg","streamType":"LIVE","duration":null}}]}`,
			wantLen:     1,
			wantContent: "http://radio/stream",
			wantType:    "audio/mpeg",
			wantMedia:   true,
		},
		{
			name:    "update without media",
			payload: `{"type":"MEDIA_STATUS","requestId":0,"status":[{"mediaSessionId":1,"playerState":"PAUSED"}]}`,
			wantLen: 1,
		},
		{
			name:    "no session",
			payload: `{"type":"MEDIA_STATUS","requestId":6,"status":[]}`,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statuses, err := ParseMediaStatus(jsonMessage(NamespaceMedia, tt.payload))
			if err != nil {
				t.Fatalf("ParseMediaStatus() error = %v", err)
			}
			if len(statuses) != tt.wantLen {
				t.Fatalf("len(status) = %d, want %d", len(statuses), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}

			media := statuses[0].Media
			if (media != nil) != tt.wantMedia {
				t.Fatalf("Media present = %v, want %v", media != nil, tt.wantMedia)
			}
			if media == nil {
				return
			}
			if media.ContentID != tt.wantContent {
				t.Errorf("ContentID = %v, want %v", media.ContentID, tt.wantContent)
			}
			if media.ContentType != tt.wantType {
				t.Errorf("ContentType = %v, want %v", media.ContentType, tt.wantType)
			}
			if media.Title() != tt.wantTitle {
				t.Errorf("Title() = %v, want %v", media.Title(), tt.wantTitle)
			}
			switch {
			case tt.wantDuration == nil && media.Duration != nil:
				t.Errorf("Duration = %v, want nil", *media.Duration)
			case tt.wantDuration != nil && (media.Duration == nil || *media.Duration != *tt.wantDuration):
				t.Errorf("Duration = %v, want %v", media.Duration, *tt.wantDuration)
			}
		})
	}
}

func TestMediaInformation_TitleNil(t *testing.T) {
	var mi *MediaInformation
	if got := mi.Title(); got != "" {
		t.Errorf("Title() on nil = %q, want empty", got)
	}
}

func TestIsErrorType(t *testing.T) {
	tests := map[string]bool{
		TypeInvalidRequest: true,
		TypeLoadFailed:     true,
		TypeMediaStatus:    false,
		TypePong:           false,
	}
	for typ, want := range tests {
		if got := IsErrorType(typ); got != want {
			t.Errorf("IsErrorType(%q) = %v, want %v", typ, got, want)
		}
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
