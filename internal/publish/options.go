package publish

import (
	"encoding/json"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// DefaultConnectTimeout is the time allowed for the initial connection
	DefaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the time to wait for a publish acknowledgment
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time in milliseconds to drain on disconnect
	defaultDisconnectQuiesce = 500

	defaultKeepAlive         = 60 * time.Second
	defaultMaxReconnectDelay = 30 * time.Second

	maxQoS = 2
)

// Config holds the broker connection and publishing settings.
type Config struct {
	Broker         string // e.g. tcp://localhost:1883 or ssl://broker:8883
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retained       bool
	ConnectTimeout time.Duration
}

// statePayload is the body of the <prefix>/state topic.
type statePayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(defaultMaxReconnectDelay)
	opts.SetKeepAlive(defaultKeepAlive)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	opts.SetConnectTimeout(timeout)

	configureLWT(opts, cfg)
	return opts
}

// configureLWT makes the broker publish "offline" on <prefix>/state when the
// connection drops without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, cfg Config) {
	payload := buildStatePayload("offline", cfg.ClientID, "unexpected_disconnect", time.Now())
	opts.SetBinaryWill(Topics{Prefix: cfg.TopicPrefix}.State(), payload, 1, true)
}

func buildStatePayload(status, clientID, reason string, now time.Time) []byte {
	payload, _ := json.Marshal(statePayload{ //nolint:errchkjson // plain struct of strings
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	return payload
}
